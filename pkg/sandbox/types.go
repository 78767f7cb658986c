package sandbox

import "time"

// Config holds the per-run overrides for a sandbox execution (spec §4.5).
// Every field has a package default applied by Executor.Run when the zero
// value is supplied.
type Config struct {
	Image          string
	MemoryLimit    string // e.g. "256m"
	CPULimit       float64
	TimeoutSeconds int
	NetworkMode    string // defaults to "none"
}

// DefaultConfig returns the baseline sandbox configuration.
func DefaultConfig() Config {
	return Config{
		Image:          "alpine:latest",
		MemoryLimit:    "256m",
		CPULimit:       1.0,
		TimeoutSeconds: 30,
		NetworkMode:    "none",
	}
}

// merge overlays non-zero fields of override onto the receiver's defaults.
func (c Config) merge(override Config) Config {
	out := c
	if override.Image != "" {
		out.Image = override.Image
	}
	if override.MemoryLimit != "" {
		out.MemoryLimit = override.MemoryLimit
	}
	if override.CPULimit != 0 {
		out.CPULimit = override.CPULimit
	}
	if override.TimeoutSeconds != 0 {
		out.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.NetworkMode != "" {
		out.NetworkMode = override.NetworkMode
	}
	return out
}

// ChangeKind classifies a workspace path between a pre- and post-execution
// snapshot.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeModified  ChangeKind = "modified"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeUnchanged ChangeKind = "unchanged"
)

// PathChange is one entry of the diff between two workspace snapshots.
type PathChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

// Result is the outcome of one sandbox run (spec §3, §4.5).
type Result struct {
	ExitCode     int          `json:"exit_code"`
	Stdout       string       `json:"stdout"`
	Stderr       string       `json:"stderr"`
	TimedOut     bool         `json:"timed_out"`
	OOMKilled    bool         `json:"oom_killed"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	WorkspaceDir string       `json:"workspace_dir"`
	Changes      []PathChange `json:"changes"`
}
