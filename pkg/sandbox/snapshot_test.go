package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSnapshotWorkspace_HashesRegularFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	writeFile(t, dir, "nested/b.txt", "world")

	snap, err := snapshotWorkspace(dir)
	require.NoError(t, err)

	assert.Len(t, snap, 2)
	assert.Contains(t, snap, "a.txt")
	assert.Contains(t, snap, "nested/b.txt")
	assert.NotEqual(t, snap["a.txt"], snap["nested/b.txt"])
}

func TestSnapshotWorkspace_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.txt", "content")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")))

	snap, err := snapshotWorkspace(dir)
	require.NoError(t, err)

	assert.Contains(t, snap, "real.txt")
	assert.NotContains(t, snap, "link.txt")
}

func TestDiffSnapshots_ClassifiesEveryChangeKind(t *testing.T) {
	before := Snapshot{"unchanged.txt": "h1", "modified.txt": "h2", "deleted.txt": "h3"}
	after := Snapshot{"unchanged.txt": "h1", "modified.txt": "h2-new", "added.txt": "h4"}

	changes := diffSnapshots(before, after)

	byPath := make(map[string]ChangeKind, len(changes))
	for _, c := range changes {
		byPath[c.Path] = c.Kind
	}

	assert.Equal(t, ChangeUnchanged, byPath["unchanged.txt"])
	assert.Equal(t, ChangeModified, byPath["modified.txt"])
	assert.Equal(t, ChangeDeleted, byPath["deleted.txt"])
	assert.Equal(t, ChangeAdded, byPath["added.txt"])
}

func TestDiffSnapshots_SortedByPath(t *testing.T) {
	before := Snapshot{}
	after := Snapshot{"z.txt": "1", "a.txt": "2", "m.txt": "3"}

	changes := diffSnapshots(before, after)

	require.Len(t, changes, 3)
	assert.Equal(t, []string{"a.txt", "m.txt", "z.txt"}, []string{changes[0].Path, changes[1].Path, changes[2].Path})
}
