package gateway

import "errors"

var (
	// ErrNotEscalated is returned by Approve/Deny when the referenced policy
	// evaluation did not escalate (spec §4.7).
	ErrNotEscalated = errors.New("gateway: policy evaluation is not ESCALATED")

	// ErrInvalidTarget is returned by Approve/Deny when the referenced
	// events are not an INBOUND_INTENT/POLICY_EVAL:* pair.
	ErrInvalidTarget = errors.New("gateway: referenced events are not a valid intent/policy pair")

	// ErrActorMismatch is returned by Approve/Deny when the intent and
	// policy evaluation belong to different actors.
	ErrActorMismatch = errors.New("gateway: intent and policy evaluation actor mismatch")

	// ErrDenied is returned by Execute when the proposal's policy decision
	// (or its human resolution) is a denial.
	ErrDenied = errors.New("gateway: proposal is denied")

	// ErrAwaitingApproval is returned by Execute when an ESCALATED
	// proposal has not yet been resolved.
	ErrAwaitingApproval = errors.New("gateway: escalation is still awaiting resolution")

	// ErrEscalationExpired is returned by Execute when an ESCALATED
	// proposal's hard deadline has passed without resolution.
	ErrEscalationExpired = errors.New("gateway: escalation hard deadline has passed")

	// ErrSandboxUnavailable is returned by Execute when the container
	// runtime cannot be reached.
	ErrSandboxUnavailable = errors.New("gateway: sandbox runtime unavailable")
)

// RoleLockError is returned by Propose when a chain's actor attempts to act
// under a role different from the one its first intent bound (spec §3 I6).
type RoleLockError struct {
	ChainID       string
	ActorID       string
	BoundRole     string
	RequestedRole string
}

func (e *RoleLockError) Error() string {
	return "gateway: chain " + e.ChainID + " is role-locked to " + e.BoundRole + " for actor " + e.ActorID
}

// TierBlockedError is returned by Execute when the tiered-autonomy gate
// refuses the run (spec §4.4).
type TierBlockedError struct {
	Reason string
}

func (e *TierBlockedError) Error() string {
	return "gateway: tier gate refused execution: " + e.Reason
}
