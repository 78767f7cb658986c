// Package policy implements the stateless, deterministic pre-execution
// evaluator: given a proposed action, decide APPROVED / DENIED / ESCALATED
// with a structured, reproducible rationale.
package policy

// Decision is the outcome of evaluating a proposal.
type Decision string

const (
	Approved  Decision = "APPROVED"
	Denied    Decision = "DENIED"
	Escalated Decision = "ESCALATED"
)

// Signal is a structured tag describing what a check matched, surfaced in
// Result.Signals for audit readability alongside the free-text rationale.
type Signal string

const (
	SignalProtectedPathWrite    Signal = "protected_path_write"
	SignalDestructiveCommand    Signal = "destructive_command"
	SignalExternalNetworkAccess Signal = "external_network_access"
	SignalStandardOperation     Signal = "standard_operation"
)

// Violation is one triggered rule.
type Violation struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// Proposal is the subset of the proposal envelope the evaluator needs.
type Proposal struct {
	ActorID    string
	ActionType string
	Content    string
	TargetPath string
}

// Result is the evaluator's structured output (spec §3, §4.3).
type Result struct {
	Decision     Decision    `json:"decision"`
	RiskScore    float64     `json:"risk_score"`
	Violations   []Violation `json:"violations"`
	Rationale    []string    `json:"rationale"`
	MatchedRules []string    `json:"matched_rules"`
	Signals      []string    `json:"signals"`
}
