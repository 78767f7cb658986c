package sandbox

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := NewExecutor(DefaultConfig())
	if !e.IsAvailable() {
		t.Skip("Skipping sandbox executor test: no container runtime available")
	}
	return e
}

func TestExecutor_RunEchoesStdout(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()

	result, err := e.Run(context.Background(), "echo hello", dir, Config{TimeoutSeconds: 10})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
	assert.False(t, result.TimedOut)
	assert.False(t, result.OOMKilled)
}

func TestExecutor_RunDetectsWorkspaceMutation(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/existing.txt", []byte("before"), 0o644))

	result, err := e.Run(context.Background(), "echo added > new.txt && echo changed > existing.txt", dir, Config{TimeoutSeconds: 10})
	require.NoError(t, err)

	byPath := make(map[string]ChangeKind, len(result.Changes))
	for _, c := range result.Changes {
		byPath[c.Path] = c.Kind
	}
	assert.Equal(t, ChangeAdded, byPath["new.txt"])
	assert.Equal(t, ChangeModified, byPath["existing.txt"])
}

func TestExecutor_RunTimesOut(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()

	result, err := e.Run(context.Background(), "sleep 30", dir, Config{TimeoutSeconds: 1})
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
}

func TestExecutor_RunNonZeroExit(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()

	result, err := e.Run(context.Background(), "exit 7", dir, Config{TimeoutSeconds: 10})
	require.NoError(t, err)

	assert.Equal(t, 7, result.ExitCode)
}

func TestExecutor_CreatesWorkspaceWhenAbsent(t *testing.T) {
	e := newTestExecutor(t)

	result, err := e.Run(context.Background(), "echo hi > created.txt", "", Config{TimeoutSeconds: 10})
	require.NoError(t, err)

	_, err = os.Stat(result.WorkspaceDir)
	assert.True(t, os.IsNotExist(err), "temporary workspace should be removed after the run")
}

func TestTruncateUTF8_CapsAndReplacesInvalidBytes(t *testing.T) {
	small := truncateUTF8([]byte("hello"), 64*1024)
	assert.Equal(t, "hello", small)

	big := make([]byte, 70*1024)
	for i := range big {
		big[i] = 'a'
	}
	truncated := truncateUTF8(big, 64*1024)
	assert.LessOrEqual(t, len(truncated), 64*1024)

	invalid := []byte{'a', 'b', 0xff, 'c'}
	out := truncateUTF8(invalid, 64*1024)
	assert.Contains(t, out, "�")
}
