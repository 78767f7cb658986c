package gateway

import (
	"time"

	"github.com/latticeguard/governor/pkg/evidence"
	"github.com/latticeguard/governor/pkg/policy"
)

// Action is the proposed side-effecting operation (spec §3's
// action={action_type, content}). TargetPath is optional; when absent the
// policy evaluator matches against Content instead.
type Action struct {
	ActionType string `json:"action_type"`
	Content    string `json:"content"`
	TargetPath string `json:"target_path,omitempty"`
}

// Scope is the proposal's declared blast radius (spec §3).
type Scope struct {
	AllowPaths    []string `json:"allow_paths,omitempty"`
	AllowCommands []string `json:"allow_commands,omitempty"`
	AllowNetwork  bool     `json:"allow_network,omitempty"`
}

// Envelope is the canonical, transport-independent shape of a propose
// request (spec §3's "Proposal envelope"). The HTTP layer is responsible
// for accepting both the legacy flat encoding and this envelope shape and
// normalising to it before calling Gateway.Propose.
type Envelope struct {
	ActorID          string   `json:"actor_id"`
	Role             string   `json:"role,omitempty"`
	TierRequest      int      `json:"tier_request"`
	Goal             string   `json:"goal"`
	Scope            Scope    `json:"scope"`
	ExpectedOutcomes []string `json:"expected_outcomes,omitempty"`
	Action           Action   `json:"action"`
	ChainID          string   `json:"chain_id,omitempty"`
}

// ProposeResult is the response to a propose call (spec §6).
type ProposeResult struct {
	ChainID                 string            `json:"chain_id"`
	Decision                policy.Decision   `json:"decision"`
	RiskScore               float64           `json:"risk_score"`
	IntentEventID           string            `json:"intent_event_id"`
	PolicyEventID           string            `json:"policy_event_id"`
	Violations              []policy.Violation `json:"violations"`
	Rationale               []string          `json:"rationale"`
	MatchedRules            []string          `json:"matched_rules"`
	Signals                 []string          `json:"signals"`
	ApprovalConsumedEventID string            `json:"approval_consumed_event_id,omitempty"`
	ActorTier               int               `json:"actor_tier"`
	TierDescription         string            `json:"tier_description"`
	ExpiresAt               *time.Time        `json:"expires_at,omitempty"`
	HardDeadline            *time.Time        `json:"hard_deadline,omitempty"`
}

// ApprovalResult is the response to approve/deny (spec §6).
type ApprovalResult struct {
	EventID string `json:"event_id"`
}

// ExecuteResult is the response to execute (spec §6, §4.7).
type ExecuteResult struct {
	EvidenceEventID string                `json:"evidence_event_id"`
	Packet          *evidence.Packet      `json:"packet"`
	Review          evidence.ReviewResult `json:"review"`
	AutoApproved    bool                  `json:"auto_approved"`
}

// EscalationsSummary is the response to GET /escalations (spec §6).
type EscalationsSummary struct {
	Pending               int `json:"pending"`
	HumanRequired         int `json:"human_required"`
	AutoDenied            int `json:"auto_denied"`
	Resolved              int `json:"resolved"`
	InitialTimeoutSeconds int `json:"initial_timeout_seconds"`
	MaxTimeoutSeconds     int `json:"max_timeout_seconds"`
}
