package evidence

import (
	"time"

	"github.com/latticeguard/governor/pkg/sandbox"
)

// Environment captures the sandbox configuration a run was executed under,
// for inclusion in the evidence packet (spec §3).
type Environment struct {
	Image          string  `json:"image"`
	NetworkMode    string  `json:"network_mode"`
	MemoryLimit    string  `json:"memory_limit"`
	CPULimit       float64 `json:"cpu_limit"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// Packet is the evidence document assembled after a sandbox run (spec §3,
// §4.6). EvidenceHash covers the canonical serialisation of every other
// field and is computed last, by Build.
type Packet struct {
	ProposalID   string          `json:"proposal_id"`
	ChainID      string          `json:"chain_id"`
	ActorID      string          `json:"actor_id"`
	ActionType   string          `json:"action_type"`
	Command      string          `json:"command"`
	BlastBox     *sandbox.Result `json:"blast_box"`
	Environment  Environment     `json:"environment"`
	CreatedAt    time.Time       `json:"created_at"`
	EvidenceHash string          `json:"evidence_hash"`
}

// Category is one of the closed set of review finding categories (spec §3).
type Category string

const (
	CategoryScopeViolation   Category = "scope_violation"
	CategoryForbiddenPath    Category = "forbidden_path"
	CategorySecretExposure   Category = "secret_exposure"
	CategoryDependencyChange Category = "dependency_change"
	CategoryNetworkAttempt   Category = "network_attempt"
)

// Severity is one of the closed set of finding severities (spec §3).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Finding is a single defect surfaced by the deterministic reviewer.
type Finding struct {
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	FilePath       string   `json:"file_path,omitempty"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
}

// ReviewResult is the outcome of running the deterministic reviewer over a
// Packet (spec §3).
type ReviewResult struct {
	Passed         bool      `json:"passed"`
	Findings       []Finding `json:"findings"`
	RiskDelta      float64   `json:"risk_delta"`
	ScopeCompliant bool      `json:"scope_compliant"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	WeightMapHash  string    `json:"weight_map_hash"`
}
