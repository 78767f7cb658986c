package api

import "github.com/latticeguard/governor/pkg/gateway"

// ActionRequest is the envelope encoding's nested action object.
type ActionRequest struct {
	ActionType string `json:"action_type"`
	Content    string `json:"content"`
	TargetPath string `json:"target_path,omitempty"`
}

// ScopeRequest is the envelope encoding's nested scope object.
type ScopeRequest struct {
	AllowPaths    []string `json:"allow_paths,omitempty"`
	AllowCommands []string `json:"allow_commands,omitempty"`
	AllowNetwork  bool     `json:"allow_network,omitempty"`
}

// ProposeRequest is the HTTP body for POST /propose. It accepts both the
// envelope encoding (a nested "action" object) and the legacy flat encoding
// (top-level action_type/content/target_path), per spec §6's "envelope or
// legacy form".
type ProposeRequest struct {
	ActorID          string         `json:"actor_id"`
	Role             string         `json:"role,omitempty"`
	TierRequest      int            `json:"tier_request,omitempty"`
	Goal             string         `json:"goal,omitempty"`
	Scope            *ScopeRequest  `json:"scope,omitempty"`
	ExpectedOutcomes []string       `json:"expected_outcomes,omitempty"`
	ChainID          string         `json:"chain_id,omitempty"`
	Action           *ActionRequest `json:"action,omitempty"`

	// Legacy flat encoding — used only when Action is nil.
	ActionType string `json:"action_type,omitempty"`
	Content    string `json:"content,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
}

// ToEnvelope normalises either encoding into gateway.Envelope.
func (r ProposeRequest) ToEnvelope() gateway.Envelope {
	action := gateway.Action{ActionType: r.ActionType, Content: r.Content, TargetPath: r.TargetPath}
	if r.Action != nil {
		action = gateway.Action{
			ActionType: r.Action.ActionType,
			Content:    r.Action.Content,
			TargetPath: r.Action.TargetPath,
		}
	}

	var scope gateway.Scope
	if r.Scope != nil {
		scope = gateway.Scope{
			AllowPaths:    r.Scope.AllowPaths,
			AllowCommands: r.Scope.AllowCommands,
			AllowNetwork:  r.Scope.AllowNetwork,
		}
	}

	return gateway.Envelope{
		ActorID:          r.ActorID,
		Role:             r.Role,
		TierRequest:      r.TierRequest,
		Goal:             r.Goal,
		Scope:            scope,
		ExpectedOutcomes: r.ExpectedOutcomes,
		Action:           action,
		ChainID:          r.ChainID,
	}
}

// ResolutionRequest is the HTTP body for POST /approve and POST /deny.
type ResolutionRequest struct {
	IntentEventID string `json:"intent_event_id"`
	PolicyEventID string `json:"policy_event_id"`
	Reason        string `json:"reason,omitempty"`
}

// ExecuteRequest is the HTTP body for POST /execute.
type ExecuteRequest struct {
	ProposalID string `json:"proposal_id"`
}
