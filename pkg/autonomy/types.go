// Package autonomy implements the tiered-autonomy gate and the
// escalation/liveness state machine derived from the ledger: tier policies,
// escalation lifecycle states, and the timeout sweeper that converts stale
// escalations into auto-denials.
package autonomy

import "time"

// Tier is one of the four autonomy levels an actor identity carries.
type Tier int

const (
	TierProposeOnly   Tier = 0
	TierSandboxOnly   Tier = 1
	TierReserved      Tier = 2 // not implemented; always rejected
	TierHumanRequired Tier = 3
)

// TierPolicy describes one tier's execution rules (spec §3).
type TierPolicy struct {
	Tier                  Tier
	CanExecute            bool
	RequiresSandbox       bool
	RequiresHumanApproval bool
	Description           string
}

// Policies is the fixed, four-row tier table (spec §4.4).
var Policies = map[Tier]TierPolicy{
	TierProposeOnly: {
		Tier: TierProposeOnly, CanExecute: false, RequiresSandbox: false, RequiresHumanApproval: false,
		Description: "Tier 0: propose-only, execution forbidden",
	},
	TierSandboxOnly: {
		Tier: TierSandboxOnly, CanExecute: true, RequiresSandbox: true, RequiresHumanApproval: false,
		Description: "Tier 1: sandbox-only execution",
	},
	TierReserved: {
		Tier: TierReserved, CanExecute: false, RequiresSandbox: false, RequiresHumanApproval: false,
		Description: "Tier 2: reserved, not implemented",
	},
	TierHumanRequired: {
		Tier: TierHumanRequired, CanExecute: true, RequiresSandbox: true, RequiresHumanApproval: true,
		Description: "Tier 3: requires explicit human approval",
	},
}

// EscalationState is the derived lifecycle state of an ESCALATED intent
// (spec §4.4). It is never stored; it is always recomputed from the ledger.
type EscalationState string

const (
	StatePendingReview     EscalationState = "PENDING_REVIEW"
	StateHumanRequired     EscalationState = "HUMAN_REQUIRED"
	StateAutoDeniedTimeout EscalationState = "AUTO_DENIED_TIMEOUT"
	StateResolved          EscalationState = "RESOLVED"
)

// Timeouts configures the escalation clock (spec §6's
// ESCALATION_INITIAL_TIMEOUT_SECONDS / ESCALATION_MAX_TIMEOUT_SECONDS).
type Timeouts struct {
	InitialTimeout time.Duration
	HardDeadline   time.Duration
}
