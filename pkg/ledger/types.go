// Package ledger implements the append-only, hash-chained event store that
// is the single source of truth for every governance decision. Every other
// package in governor either appends to it or derives state by querying it;
// none of them keep mutable state of their own.
package ledger

import "time"

// ActionType is the closed set of ledger event kinds. POLICY_EVAL carries a
// dynamic suffix (POLICY_EVAL:BASH, POLICY_EVAL:FILE_WRITE, ...) so it is
// modeled as a string rather than one of these constants; PolicyEvalType
// builds it.
type ActionType string

const (
	ActionInboundIntent               ActionType = "INBOUND_INTENT"
	ActionHumanApprovalGranted        ActionType = "HUMAN_APPROVAL_GRANTED"
	ActionHumanDenial                 ActionType = "HUMAN_DENIAL"
	ActionApprovalConsumed            ActionType = "APPROVAL_CONSUMED"
	ActionAutoDeniedTimeout           ActionType = "AUTO_DENIED_TIMEOUT"
	ActionEvidencePacket              ActionType = "EVIDENCE_PACKET"
	ActionEvidenceReviewDeterministic ActionType = "EVIDENCE_REVIEW_DETERMINISTIC"
	ActionEvidenceAutoApprove         ActionType = "EVIDENCE_AUTO_APPROVE"

	policyEvalPrefix = "POLICY_EVAL:"

	// GenesisHash is the literal previous_event_hash of the first event in
	// the chain.
	GenesisHash = "GENESIS"
)

// PolicyEvalType builds the POLICY_EVAL:<UPPER_ACTION> action type for a
// proposal's action_type, e.g. "bash" -> "POLICY_EVAL:BASH".
func PolicyEvalType(action string) string {
	return policyEvalPrefix + upperASCII(action)
}

// IsPolicyEval reports whether actionType is a POLICY_EVAL:* event.
func IsPolicyEval(actionType string) bool {
	return len(actionType) > len(policyEvalPrefix) && actionType[:len(policyEvalPrefix)] == policyEvalPrefix
}

func upperASCII(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Event is one immutable row of the ledger. Once appended, no field changes.
type Event struct {
	ID                string
	CreatedAt         time.Time
	ActorID           string
	ActionType        string
	IntentPayload     map[string]any
	PolicyVersion     string
	EventHash         string
	PreviousEventHash string
}
