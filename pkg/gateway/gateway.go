// Package gateway is the single orchestrator tying the ledger, identity
// registry, policy evaluator, tiered-autonomy gate, sandbox executor, and
// evidence pipeline into the propose/approve/deny/execute/escalations
// flows (spec §4.7). Every other package in governor is either read
// through it or has no state of its own; gateway is where their results
// get sequenced and written back to the ledger.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/latticeguard/governor/pkg/autonomy"
	"github.com/latticeguard/governor/pkg/evidence"
	"github.com/latticeguard/governor/pkg/identity"
	"github.com/latticeguard/governor/pkg/ledger"
	"github.com/latticeguard/governor/pkg/policy"
	"github.com/latticeguard/governor/pkg/sandbox"
)

// SandboxRunner is the subset of *sandbox.Executor the gateway depends on.
// Declaring it as an interface lets tests exercise Execute without a real
// container runtime.
type SandboxRunner interface {
	IsAvailable() bool
	Run(ctx context.Context, command, workspaceDir string, override sandbox.Config) (*sandbox.Result, error)
}

// Gateway holds every collaborator the governance flows need. It keeps no
// state of its own beyond these references; everything it decides is
// either computed fresh or read back from the ledger.
type Gateway struct {
	store           *ledger.Store
	identities      *identity.Registry
	sandboxExec     SandboxRunner
	policyVersion   string
	approvalTTL     time.Duration
	timeouts        autonomy.Timeouts
	sandboxDefaults sandbox.Config
}

// New constructs a Gateway. It panics if any required collaborator is nil,
// matching the pack's service constructors that treat missing wiring as a
// programmer error rather than a runtime condition to recover from.
func New(store *ledger.Store, identities *identity.Registry, sandboxExec SandboxRunner, policyVersion string, approvalTTL time.Duration, timeouts autonomy.Timeouts, sandboxDefaults sandbox.Config) *Gateway {
	if store == nil {
		panic("gateway: store is required")
	}
	if identities == nil {
		panic("gateway: identities is required")
	}
	if sandboxExec == nil {
		panic("gateway: sandboxExec is required")
	}
	if policyVersion == "" {
		panic("gateway: policyVersion is required")
	}
	return &Gateway{
		store:           store,
		identities:      identities,
		sandboxExec:     sandboxExec,
		policyVersion:   policyVersion,
		approvalTTL:     approvalTTL,
		timeouts:        timeouts,
		sandboxDefaults: sandboxDefaults,
	}
}

// Propose runs the full propose flow: authenticate the actor, bind or
// verify the chain's role lock, append the inbound intent, evaluate
// policy, and attempt approval consumption when the evaluation escalates
// (spec §4.7).
func (g *Gateway) Propose(ctx context.Context, env Envelope) (*ProposeResult, error) {
	actor, err := g.identities.Lookup(env.ActorID)
	if err != nil {
		return nil, err
	}

	role := env.Role
	if role == "" {
		role = actor.Role
	}

	chainID := env.ChainID
	if chainID == "" {
		chainID = uuid.NewString()
	}

	boundRole, bound, err := g.store.ChainRole(ctx, chainID, env.ActorID)
	if err != nil {
		return nil, fmt.Errorf("gateway: chain role lookup: %w", err)
	}
	if bound && boundRole != role {
		return nil, &RoleLockError{ChainID: chainID, ActorID: env.ActorID, BoundRole: boundRole, RequestedRole: role}
	}

	intentPayload := map[string]any{
		"chain_id":          chainID,
		"role":              role,
		"tier_request":      env.TierRequest,
		"goal":              env.Goal,
		"scope":             env.Scope,
		"expected_outcomes": env.ExpectedOutcomes,
		"action": map[string]any{
			"action_type": env.Action.ActionType,
			"content":     env.Action.Content,
			"target_path": env.Action.TargetPath,
		},
	}

	intentEventID, err := g.store.Append(ctx, env.ActorID, string(ledger.ActionInboundIntent), intentPayload, g.policyVersion)
	if err != nil {
		return nil, fmt.Errorf("gateway: append inbound intent: %w", err)
	}

	targetPath := env.Action.TargetPath
	if targetPath == "" {
		targetPath = env.Action.Content
	}
	evalResult := policy.Evaluate(policy.Proposal{
		ActorID:    env.ActorID,
		ActionType: env.Action.ActionType,
		Content:    env.Action.Content,
		TargetPath: targetPath,
	})

	policyPayload := map[string]any{
		"intent_event_id": intentEventID,
		"decision":        string(evalResult.Decision),
		"risk_score":      evalResult.RiskScore,
		"violations":      evalResult.Violations,
		"rationale":       evalResult.Rationale,
		"matched_rules":   evalResult.MatchedRules,
		"signals":         evalResult.Signals,
	}
	policyEventID, err := g.store.Append(ctx, env.ActorID, ledger.PolicyEvalType(env.Action.ActionType), policyPayload, g.policyVersion)
	if err != nil {
		return nil, fmt.Errorf("gateway: append policy eval: %w", err)
	}

	result := &ProposeResult{
		ChainID:         chainID,
		Decision:        evalResult.Decision,
		RiskScore:       evalResult.RiskScore,
		IntentEventID:   intentEventID,
		PolicyEventID:   policyEventID,
		Violations:      evalResult.Violations,
		Rationale:       evalResult.Rationale,
		MatchedRules:    evalResult.MatchedRules,
		Signals:         evalResult.Signals,
		ActorTier:       actor.Tier,
		TierDescription: autonomy.Policies[autonomy.Tier(actor.Tier)].Description,
	}

	if evalResult.Decision == policy.Escalated {
		if consumedEventID, consumed, err := g.tryConsumeApproval(ctx, env, intentEventID, policyEventID); err != nil {
			return nil, err
		} else if consumed {
			result.Decision = policy.Approved
			result.ApprovalConsumedEventID = consumedEventID
		}
	}

	if result.Decision == policy.Escalated {
		now := time.Now().UTC()
		expiresAt := now.Add(g.approvalTTL)
		hardDeadline := now.Add(g.timeouts.HardDeadline)
		result.ExpiresAt = &expiresAt
		result.HardDeadline = &hardDeadline
	}

	return result, nil
}

// tryConsumeApproval looks for a still-valid, not-yet-consumed approval
// matching this actor/action/content and, if one exists, consumes it
// (spec §4.4's "treat consumption as a conditional append").
func (g *Gateway) tryConsumeApproval(ctx context.Context, env Envelope, intentEventID, policyEventID string) (string, bool, error) {
	approval, err := g.store.FindValidApproval(ctx, env.ActorID, env.Action.ActionType, env.Action.Content, g.approvalTTL)
	if errors.Is(err, ledger.ErrEventNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("gateway: find valid approval: %w", err)
	}

	consumedEventID, consumed, err := g.store.ConsumeApproval(ctx, approval.ID, env.ActorID, map[string]any{
		"original_intent_id":      approval.IntentPayload["intent_event_id"],
		"current_intent_event_id": intentEventID,
		"current_policy_event_id": policyEventID,
		"consumed_at":             time.Now().UTC().Format(time.RFC3339Nano),
	}, g.policyVersion)
	if err != nil {
		return "", false, fmt.Errorf("gateway: consume approval: %w", err)
	}
	return consumedEventID, consumed, nil
}

// Approve grants a pending escalation (spec §4.7).
func (g *Gateway) Approve(ctx context.Context, adminActorID, intentEventID, policyEventID, reason string) (*ApprovalResult, error) {
	return g.resolveEscalation(ctx, adminActorID, intentEventID, policyEventID, reason, string(ledger.ActionHumanApprovalGranted))
}

// Deny refuses a pending escalation (spec §4.7).
func (g *Gateway) Deny(ctx context.Context, adminActorID, intentEventID, policyEventID, reason string) (*ApprovalResult, error) {
	return g.resolveEscalation(ctx, adminActorID, intentEventID, policyEventID, reason, string(ledger.ActionHumanDenial))
}

func (g *Gateway) resolveEscalation(ctx context.Context, adminActorID, intentEventID, policyEventID, reason, resolutionType string) (*ApprovalResult, error) {
	intent, err := g.store.Get(ctx, intentEventID)
	if err != nil {
		return nil, err
	}
	if intent.ActionType != string(ledger.ActionInboundIntent) {
		return nil, ErrInvalidTarget
	}

	policyEvent, err := g.store.Get(ctx, policyEventID)
	if err != nil {
		return nil, err
	}
	if !ledger.IsPolicyEval(policyEvent.ActionType) {
		return nil, ErrInvalidTarget
	}
	if decision, _ := policyEvent.IntentPayload["decision"].(string); decision != string(policy.Escalated) {
		return nil, ErrNotEscalated
	}
	if intent.ActorID != policyEvent.ActorID {
		return nil, ErrActorMismatch
	}

	eventID, err := g.store.Append(ctx, intent.ActorID, resolutionType, map[string]any{
		"intent_event_id": intentEventID,
		"policy_event_id": policyEventID,
		"reason":          reason,
		"resolved_by":     adminActorID,
	}, g.policyVersion)
	if err != nil {
		return nil, fmt.Errorf("gateway: append resolution: %w", err)
	}
	return &ApprovalResult{EventID: eventID}, nil
}

// Execute runs the sandboxed side effect for an already-proposed intent and
// appends its evidence packet and deterministic review (spec §4.5-§4.7).
func (g *Gateway) Execute(ctx context.Context, proposalID string) (*ExecuteResult, error) {
	intent, err := g.store.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	policyEvent, err := g.store.FindPolicyEvalForIntent(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	decision, _ := policyEvent.IntentPayload["decision"].(string)
	if decision == string(policy.Denied) {
		return nil, ErrDenied
	}

	actor, err := g.identities.Lookup(intent.ActorID)
	if err != nil {
		return nil, err
	}

	hasApproval := false
	if decision == string(policy.Escalated) {
		hasApproval, err = g.checkEscalationResolved(ctx, proposalID, intent.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	gate := autonomy.Gate(autonomy.Tier(actor.Tier), hasApproval)
	if !gate.Allowed {
		return nil, &TierBlockedError{Reason: gate.Reason}
	}

	if !g.sandboxExec.IsAvailable() {
		return nil, ErrSandboxUnavailable
	}

	action, _ := intent.IntentPayload["action"].(map[string]any)
	actionType, _ := action["action_type"].(string)
	command, _ := action["content"].(string)
	chainID, _ := intent.IntentPayload["chain_id"].(string)

	sandboxCfg := g.sandboxDefaults
	runResult, err := g.sandboxExec.Run(ctx, command, "", sandboxCfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: sandbox run: %w", err)
	}

	env := evidence.Environment{
		Image:          firstNonEmpty(sandboxCfg.Image, sandbox.DefaultConfig().Image),
		NetworkMode:    firstNonEmpty(sandboxCfg.NetworkMode, sandbox.DefaultConfig().NetworkMode),
		MemoryLimit:    firstNonEmpty(sandboxCfg.MemoryLimit, sandbox.DefaultConfig().MemoryLimit),
		CPULimit:       sandboxCfg.CPULimit,
		TimeoutSeconds: sandboxCfg.TimeoutSeconds,
	}

	packet, err := evidence.Build(proposalID, chainID, intent.ActorID, actionType, command, runResult, env)
	if err != nil {
		return nil, fmt.Errorf("gateway: build evidence packet: %w", err)
	}

	packetPayload, err := packet.ToPayload()
	if err != nil {
		return nil, fmt.Errorf("gateway: evidence packet payload: %w", err)
	}
	evidenceEventID, err := g.store.Append(ctx, intent.ActorID, string(ledger.ActionEvidencePacket), packetPayload, g.policyVersion)
	if err != nil {
		return nil, fmt.Errorf("gateway: append evidence packet: %w", err)
	}

	allowPaths := scopeAllowPaths(intent.IntentPayload)
	review := evidence.Review(packet, allowPaths)

	reviewPayload := map[string]any{
		"proposal_id":      proposalID,
		"evidence_event_id": evidenceEventID,
		"passed":           review.Passed,
		"findings":         review.Findings,
		"risk_delta":       review.RiskDelta,
		"scope_compliant":  review.ScopeCompliant,
		"weight_map_hash":  review.WeightMapHash,
	}
	if _, err := g.store.Append(ctx, intent.ActorID, string(ledger.ActionEvidenceReviewDeterministic), reviewPayload, g.policyVersion); err != nil {
		return nil, fmt.Errorf("gateway: append evidence review: %w", err)
	}

	autoApproved := false
	if autonomy.Tier(actor.Tier) == autonomy.TierSandboxOnly && evidence.ShouldAutoApprove(review) {
		if _, err := g.store.Append(ctx, intent.ActorID, string(ledger.ActionEvidenceAutoApprove), map[string]any{
			"proposal_id":   proposalID,
			"auto_approved": true,
			"reason":        "tier-1 sandbox run passed deterministic review within the auto-approve risk ceiling",
		}, g.policyVersion); err != nil {
			return nil, fmt.Errorf("gateway: append auto-approve: %w", err)
		}
		autoApproved = true
	}

	return &ExecuteResult{
		EvidenceEventID: evidenceEventID,
		Packet:          packet,
		Review:          review,
		AutoApproved:    autoApproved,
	}, nil
}

// checkEscalationResolved classifies how (or whether) an ESCALATED intent
// has been resolved, per spec §4.7 execute steps 3 and 5.
func (g *Gateway) checkEscalationResolved(ctx context.Context, proposalID string, intentCreatedAt time.Time) (hasApproval bool, err error) {
	resolution, err := g.store.FindResolutionEvent(ctx, proposalID)
	if errors.Is(err, ledger.ErrEventNotFound) {
		if time.Since(intentCreatedAt) >= g.timeouts.HardDeadline {
			return false, ErrEscalationExpired
		}
		return false, ErrAwaitingApproval
	}
	if err != nil {
		return false, fmt.Errorf("gateway: find resolution event: %w", err)
	}

	switch ledger.ActionType(resolution.ActionType) {
	case ledger.ActionHumanDenial:
		return false, ErrDenied
	case ledger.ActionAutoDeniedTimeout:
		return false, ErrEscalationExpired
	case ledger.ActionHumanApprovalGranted, ledger.ActionApprovalConsumed:
		return true, nil
	default:
		return false, ErrAwaitingApproval
	}
}

// Escalations summarises every ESCALATED intent by its derived lifecycle
// state (spec §4.4, §4.7).
func (g *Gateway) Escalations(ctx context.Context) (*EscalationsSummary, error) {
	tuples, err := g.store.EscalatedTuples(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: escalated tuples: %w", err)
	}

	ids := make([]string, len(tuples))
	for i, t := range tuples {
		ids[i] = t.IntentEventID
	}
	resolved, err := g.store.ResolvedIntentIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("gateway: resolved intent ids: %w", err)
	}

	summary := &EscalationsSummary{
		InitialTimeoutSeconds: int(g.timeouts.InitialTimeout.Seconds()),
		MaxTimeoutSeconds:     int(g.timeouts.HardDeadline.Seconds()),
	}

	now := time.Now().UTC()
	for _, t := range tuples {
		switch autonomy.DeriveState(t.IntentCreatedAt, now, resolved[t.IntentEventID], g.timeouts) {
		case autonomy.StatePendingReview:
			summary.Pending++
		case autonomy.StateHumanRequired:
			summary.HumanRequired++
		case autonomy.StateAutoDeniedTimeout:
			summary.AutoDenied++
		case autonomy.StateResolved:
			summary.Resolved++
		}
	}
	return summary, nil
}

func scopeAllowPaths(intentPayload map[string]any) []string {
	scope, ok := intentPayload["scope"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := scope["allow_paths"].([]any)
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
