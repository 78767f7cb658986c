package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const maxOutputBytes = 64 * 1024

// containerNameCounter is combined with the process id to derive a
// deterministic container name per run (spec §5: "container names derived
// from a monotonic counter plus process identifier; no two concurrent runs
// share a workspace").
var containerNameCounter uint64

// Executor runs commands inside Docker containers via the docker CLI binary.
// It never links against a Docker SDK; every interaction is a subprocess
// call, mirroring the pack's own shell-out sandbox executor.
type Executor struct {
	dockerPath string
	available  bool
	config     Config
}

// NewExecutor probes for a usable docker binary and returns an Executor
// configured with defaults. Availability is cached at construction time and
// refreshed only by calling Probe.
func NewExecutor(config Config) *Executor {
	e := &Executor{config: DefaultConfig().merge(config)}
	e.Probe(context.Background())
	return e
}

// Probe re-checks whether the container runtime is reachable within a short
// timeout, updating IsAvailable's result (spec §4.5 "Availability probe").
func (e *Executor) Probe(ctx context.Context) bool {
	dockerPath, err := exec.LookPath("docker")
	if err != nil {
		e.available = false
		return false
	}
	e.dockerPath = dockerPath

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, dockerPath, "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		e.available = false
		return false
	}

	e.available = true
	return true
}

// IsAvailable reports whether the last Probe found a working container
// runtime.
func (e *Executor) IsAvailable() bool {
	return e.available
}

// Run executes command inside an isolated container rooted at workspaceDir
// (created fresh and cleaned up if empty), following the protocol of
// spec §4.5 steps 1-8.
func (e *Executor) Run(ctx context.Context, command string, workspaceDir string, override Config) (*Result, error) {
	if !e.available {
		return nil, fmt.Errorf("sandbox: container runtime unavailable")
	}

	cfg := e.config.merge(override)

	ownsWorkspace := workspaceDir == ""
	if ownsWorkspace {
		dir, err := os.MkdirTemp("", "governor-sandbox-*")
		if err != nil {
			return nil, fmt.Errorf("sandbox: create workspace: %w", err)
		}
		workspaceDir = dir
		defer os.RemoveAll(workspaceDir)
	}

	before, err := snapshotWorkspace(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: pre-execution snapshot: %w", err)
	}

	containerName := fmt.Sprintf("governor-sbx-%d-%d", os.Getpid(), atomic.AddUint64(&containerNameCounter, 1))
	args := e.buildRunArgs(containerName, workspaceDir, command, cfg)

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdoutBuf, stderrBuf bytes.Buffer
	runCmd := exec.CommandContext(runCtx, e.dockerPath, args...)
	runCmd.Stdout = &stdoutBuf
	runCmd.Stderr = &stderrBuf

	result := &Result{WorkspaceDir: workspaceDir, ExitCode: -1}
	result.StartedAt = time.Now().UTC()
	runErr := runCmd.Run()
	result.FinishedAt = time.Now().UTC()

	// Teardown runs on every exit path, including a timed-out wait, and its
	// own failure must never mask the run's result.
	e.removeContainer(containerName)

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
	} else if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if runErr == nil {
		result.ExitCode = 0
	} else {
		return nil, fmt.Errorf("sandbox: run container: %w", runErr)
	}

	if result.ExitCode == 137 {
		result.OOMKilled = e.inspectOOM(ctx, containerName)
	}

	result.Stdout = truncateUTF8(stdoutBuf.Bytes(), maxOutputBytes)
	result.Stderr = truncateUTF8(stderrBuf.Bytes(), maxOutputBytes)

	after, err := snapshotWorkspace(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: post-execution snapshot: %w", err)
	}
	result.Changes = diffSnapshots(before, after)

	return result, nil
}

func (e *Executor) buildRunArgs(containerName, workspaceDir, command string, cfg Config) []string {
	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--network", cfg.NetworkMode,
		"--read-only",
		"--tmpfs", "/tmp:size=100m",
		"-v", fmt.Sprintf("%s:/workspace:rw", workspaceDir),
		"-w", "/workspace",
	}
	if cfg.MemoryLimit != "" {
		args = append(args, "--memory", cfg.MemoryLimit)
	}
	if cfg.CPULimit > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(cfg.CPULimit, 'f', -1, 64))
	}
	args = append(args, cfg.Image, "sh", "-c", command)
	return args
}

// removeContainer best-effort force-removes a container; teardown failures
// are swallowed since the run's result already reflects what happened.
func (e *Executor) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, e.dockerPath, "rm", "-f", name).Run()
}

// inspectOOM asks the runtime whether the container's last exit was due to
// the OOM killer.
func (e *Executor) inspectOOM(ctx context.Context, containerName string) bool {
	inspectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(inspectCtx, e.dockerPath, "inspect", "--format", "{{.State.OOMKilled}}", containerName)
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// truncateUTF8 caps b at max bytes and decodes it replacing invalid
// sequences, so a cut made mid-rune never produces garbage output.
func truncateUTF8(b []byte, max int) string {
	if len(b) > max {
		b = b[:max]
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
