package autonomy

import "time"

// DeriveState computes the escalation lifecycle state for an ESCALATED
// intent from wall-clock age and whether a resolution event already
// references it (spec §4.4). Escalation state is never cached across
// appends; every caller recomputes it from the ledger.
func DeriveState(intentCreatedAt time.Time, now time.Time, resolved bool, timeouts Timeouts) EscalationState {
	if resolved {
		return StateResolved
	}

	age := now.Sub(intentCreatedAt)
	switch {
	case age >= timeouts.HardDeadline:
		return StateAutoDeniedTimeout
	case age >= timeouts.InitialTimeout:
		return StateHumanRequired
	default:
		return StatePendingReview
	}
}
