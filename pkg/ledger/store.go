package ledger

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// pgSerializationFailure is the PostgreSQL SQLSTATE for serialization
// failures under SERIALIZABLE isolation.
const pgSerializationFailure = "40001"

// RetryConfig controls Append's bounded retry-on-conflict behaviour
// (spec §4.1, §5): up to MaxAttempts tries, backoff growing by
// InitialBackoff*(attempt+1).
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryConfig matches the normative 50ms*(attempt+1), 3 attempts.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 3, InitialBackoff: 50 * time.Millisecond}

// Store is the PostgreSQL-backed implementation of the ledger contract.
// It is the only component in governor that mutates shared state; every
// other package either reads through it or holds no state at all.
type Store struct {
	db    *stdsql.DB
	retry RetryConfig
}

// NewStore wraps db. db should already have migrations applied (see
// pkg/database.NewClient).
func NewStore(db *stdsql.DB) *Store {
	return &Store{db: db, retry: DefaultRetryConfig}
}

// WithRetryConfig returns a copy of s using cfg for Append's conflict
// retries. Exposed mainly for tests that want tight backoffs.
func (s *Store) WithRetryConfig(cfg RetryConfig) *Store {
	clone := *s
	clone.retry = cfg
	return &clone
}

// Append atomically computes previous_event_hash from the current tail,
// computes this event's hash, inserts the row, and returns its id. It
// retries up to s.retry.MaxAttempts times on tail contention, per spec §4.1.
func (s *Store) Append(ctx context.Context, actorID, actionType string, payload map[string]any, policyVersion string) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt+1) * s.retry.InitialBackoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		id, err := s.appendOnce(ctx, actorID, actionType, payload, policyVersion)
		if err == nil {
			return id, nil
		}
		if !isConflict(err) {
			return "", err
		}
		lastErr = err
		slog.Warn("ledger: append conflict, retrying", "attempt", attempt+1, "action_type", actionType, "error", err)
	}

	return "", &ConflictError{Attempts: s.retry.MaxAttempts, Err: fmt.Errorf("%w: %v", ErrConflictRetryExhausted, lastErr)}
}

func (s *Store) appendOnce(ctx context.Context, actorID, actionType string, payload map[string]any, policyVersion string) (string, error) {
	tx, err := s.db.BeginTx(ctx, &stdsql.TxOptions{Isolation: stdsql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	previousHash := GenesisHash
	row := tx.QueryRowContext(ctx,
		`SELECT event_hash FROM events ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`)
	switch err := row.Scan(&previousHash); {
	case errors.Is(err, stdsql.ErrNoRows):
		previousHash = GenesisHash
	case err != nil:
		return "", fmt.Errorf("ledger: read tail: %w", err)
	}

	createdAt := time.Now().UTC()
	id := uuid.New().String()

	eventHash, err := ComputeEventHash(previousHash, actorID, actionType, payload, policyVersion, createdAt)
	if err != nil {
		return "", err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ledger: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, createdAt, actorID, actionType, payloadJSON, policyVersion, eventHash, previousHash,
	)
	if err != nil {
		return "", fmt.Errorf("ledger: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ledger: commit: %w", err)
	}

	return id, nil
}

// ConsumeApproval appends APPROVAL_CONSUMED for approvalEventID unless a
// prior consumption already exists, checked and inserted inside the same
// SERIALIZABLE transaction as the append. Two concurrent propose calls
// racing to consume the same approval cannot both succeed: Postgres detects
// the write-skew between the two transactions' overlapping read/insert sets
// and aborts one with a serialization failure, which Append's retry
// machinery also drives this method's own retry loop (spec §9's "treat
// consumption as a conditional append" open question). The bool return is
// false, with no error, when the approval was already consumed by someone
// else.
func (s *Store) ConsumeApproval(ctx context.Context, approvalEventID, actorID string, payload map[string]any, policyVersion string) (string, bool, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt+1) * s.retry.InitialBackoff
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		id, consumed, err := s.consumeApprovalOnce(ctx, approvalEventID, actorID, payload, policyVersion)
		if err == nil {
			return id, consumed, nil
		}
		if !isConflict(err) {
			return "", false, err
		}
		lastErr = err
		slog.Warn("ledger: approval consumption conflict, retrying", "attempt", attempt+1, "error", err)
	}
	return "", false, &ConflictError{Attempts: s.retry.MaxAttempts, Err: fmt.Errorf("%w: %v", ErrConflictRetryExhausted, lastErr)}
}

func (s *Store) consumeApprovalOnce(ctx context.Context, approvalEventID, actorID string, payload map[string]any, policyVersion string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, &stdsql.TxOptions{Isolation: stdsql.LevelSerializable})
	if err != nil {
		return "", false, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var alreadyConsumed bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE action_type = 'APPROVAL_CONSUMED' AND intent_payload->>'approval_event_id' = $1)`,
		approvalEventID,
	).Scan(&alreadyConsumed)
	if err != nil {
		return "", false, fmt.Errorf("ledger: check prior consumption: %w", err)
	}
	if alreadyConsumed {
		return "", false, nil
	}

	previousHash := GenesisHash
	row := tx.QueryRowContext(ctx,
		`SELECT event_hash FROM events ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`)
	switch err := row.Scan(&previousHash); {
	case errors.Is(err, stdsql.ErrNoRows):
		previousHash = GenesisHash
	case err != nil:
		return "", false, fmt.Errorf("ledger: read tail: %w", err)
	}

	createdAt := time.Now().UTC()
	id := uuid.New().String()

	if payload == nil {
		payload = map[string]any{}
	}
	payload["approval_event_id"] = approvalEventID

	eventHash, err := ComputeEventHash(previousHash, actorID, string(ActionApprovalConsumed), payload, policyVersion, createdAt)
	if err != nil {
		return "", false, err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("ledger: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, createdAt, actorID, string(ActionApprovalConsumed), payloadJSON, policyVersion, eventHash, previousHash,
	)
	if err != nil {
		return "", false, fmt.Errorf("ledger: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("ledger: commit: %w", err)
	}

	return id, true, nil
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation || pgErr.Code == pgSerializationFailure
	}
	return false
}

// Get returns a single event by id.
func (s *Store) Get(ctx context.Context, eventID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash
		 FROM events WHERE id = $1`, eventID)
	return scanEvent(row)
}

func scanEvent(row *stdsql.Row) (*Event, error) {
	var e Event
	var payloadJSON []byte
	err := row.Scan(&e.ID, &e.CreatedAt, &e.ActorID, &e.ActionType, &payloadJSON, &e.PolicyVersion, &e.EventHash, &e.PreviousEventHash)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: scan event: %w", err)
	}
	if err := json.Unmarshal(payloadJSON, &e.IntentPayload); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal payload: %w", err)
	}
	return &e, nil
}

// FindPolicyEvalForIntent returns the POLICY_EVAL:* event correlated with
// intentID. It first looks for an explicit intent_event_id correlation
// (governor always writes one), falling back to the time-ordering rule from
// spec §4.1 for legacy-shaped events: earliest POLICY_EVAL:* by the same
// actor with created_at >= the intent's created_at.
func (s *Store) FindPolicyEvalForIntent(ctx context.Context, intentID string) (*Event, error) {
	intent, err := s.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash
		 FROM events
		 WHERE action_type LIKE 'POLICY_EVAL:%' AND intent_payload->>'intent_event_id' = $1
		 ORDER BY created_at ASC, id ASC LIMIT 1`, intentID)
	if e, err := scanEvent(row); err == nil {
		return e, nil
	} else if !errors.Is(err, ErrEventNotFound) {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash
		 FROM events
		 WHERE action_type LIKE 'POLICY_EVAL:%' AND actor_id = $1 AND created_at >= $2
		 ORDER BY created_at ASC, id ASC LIMIT 1`, intent.ActorID, intent.CreatedAt)
	return scanEvent(row)
}

// ChainRole returns the role bound by the first INBOUND_INTENT for
// (chainID, actorID), per the role-lock invariant (spec §3 I6).
func (s *Store) ChainRole(ctx context.Context, chainID, actorID string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT intent_payload->>'role' FROM events
		 WHERE action_type = 'INBOUND_INTENT' AND actor_id = $1 AND intent_payload->>'chain_id' = $2
		 ORDER BY created_at ASC, id ASC LIMIT 1`, actorID, chainID)

	var role stdsql.NullString
	err := row.Scan(&role)
	if errors.Is(err, stdsql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ledger: chain role lookup: %w", err)
	}
	return role.String, true, nil
}

// FindValidApproval returns the newest HUMAN_APPROVAL_GRANTED event whose
// referenced intent matches (actorID, actionType, content), is no older
// than ttl, and has not already been consumed (spec §4.1, §4.4, I5).
func (s *Store) FindValidApproval(ctx context.Context, actorID, actionType, content string, ttl time.Duration) (*Event, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.created_at, a.actor_id, a.action_type, a.intent_payload, a.policy_version, a.event_hash, a.previous_event_hash
		FROM events a
		JOIN events intent ON intent.id = a.intent_payload->>'intent_event_id'
		WHERE a.action_type = 'HUMAN_APPROVAL_GRANTED'
		  AND a.created_at >= $4
		  AND intent.actor_id = $1
		  AND intent.intent_payload->'action'->>'action_type' = $2
		  AND intent.intent_payload->'action'->>'content' = $3
		  AND NOT EXISTS (
		      SELECT 1 FROM events c
		      WHERE c.action_type = 'APPROVAL_CONSUMED'
		        AND c.intent_payload->>'approval_event_id' = a.id
		  )
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT 1`,
		actorID, actionType, content, cutoff,
	)
	return scanEvent(row)
}

// ResolvedIntentIDs returns the subset of ids referenced by any resolution
// event (approval, denial, consumption, or auto-deny), per the RESOLVED
// derivation in spec §4.4.
func (s *Store) ResolvedIntentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	resolved := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT COALESCE(intent_payload->>'intent_event_id', intent_payload->>'current_intent_event_id') AS iid
		FROM events
		WHERE action_type IN ('HUMAN_APPROVAL_GRANTED', 'HUMAN_DENIAL', 'APPROVAL_CONSUMED', 'AUTO_DENIED_TIMEOUT')
		  AND COALESCE(intent_payload->>'intent_event_id', intent_payload->>'current_intent_event_id') = ANY($1)`,
		pqStringArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolved intent ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var iid string
		if err := rows.Scan(&iid); err != nil {
			return nil, fmt.Errorf("ledger: scan resolved intent id: %w", err)
		}
		resolved[iid] = true
	}
	return resolved, rows.Err()
}

// FindResolutionEvent returns the earliest resolution event (approval
// grant, denial, consumption, or auto-deny) that references intentID, so
// callers can distinguish which kind of resolution closed it rather than
// just knowing that one exists (spec §4.4, §4.7 execute step 3).
func (s *Store) FindResolutionEvent(ctx context.Context, intentID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash
		FROM events
		WHERE action_type IN ('HUMAN_APPROVAL_GRANTED', 'HUMAN_DENIAL', 'APPROVAL_CONSUMED', 'AUTO_DENIED_TIMEOUT')
		  AND COALESCE(intent_payload->>'intent_event_id', intent_payload->>'current_intent_event_id') = $1
		ORDER BY created_at ASC, id ASC LIMIT 1`, intentID)
	return scanEvent(row)
}

// EscalatedTuple is one ESCALATED intent/policy pair as seen by the sweeper.
type EscalatedTuple struct {
	PolicyEventID   string
	ActorID         string
	IntentEventID   string
	IntentCreatedAt time.Time
	PolicyCreatedAt time.Time
}

// EscalatedTuples fetches every ESCALATED (policy, intent) pair via the
// single correlated query described in spec §4.4 step 1: for each
// POLICY_EVAL:* with decision ESCALATED, the most recent INBOUND_INTENT by
// the same actor at-or-before that evaluation.
func (s *Store) EscalatedTuples(ctx context.Context) ([]EscalatedTuple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.actor_id, p.created_at, i.id, i.created_at
		FROM events p
		JOIN LATERAL (
		    SELECT id, created_at FROM events
		    WHERE action_type = 'INBOUND_INTENT' AND actor_id = p.actor_id AND created_at <= p.created_at
		    ORDER BY created_at DESC, id DESC LIMIT 1
		) i ON true
		WHERE p.action_type LIKE 'POLICY_EVAL:%' AND p.intent_payload->>'decision' = 'ESCALATED'`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: escalated tuples: %w", err)
	}
	defer rows.Close()

	var tuples []EscalatedTuple
	for rows.Next() {
		var t EscalatedTuple
		if err := rows.Scan(&t.PolicyEventID, &t.ActorID, &t.PolicyCreatedAt, &t.IntentEventID, &t.IntentCreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan escalated tuple: %w", err)
		}
		tuples = append(tuples, t)
	}
	return tuples, rows.Err()
}

// VerifyChain rehashes every event in append order and reports how many of
// the total links are broken (spec §4.1, §8).
func (s *Store) VerifyChain(ctx context.Context) (total int, broken int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, actor_id, action_type, intent_payload, policy_version, event_hash, previous_event_hash
		 FROM events ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger: verify chain query: %w", err)
	}
	defer rows.Close()

	expectedPrevious := GenesisHash
	for rows.Next() {
		var e Event
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.ActorID, &e.ActionType, &payloadJSON, &e.PolicyVersion, &e.EventHash, &e.PreviousEventHash); err != nil {
			return 0, 0, fmt.Errorf("ledger: verify chain scan: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &e.IntentPayload); err != nil {
			return 0, 0, fmt.Errorf("ledger: verify chain unmarshal: %w", err)
		}
		total++

		recomputed, err := ComputeEventHash(e.PreviousEventHash, e.ActorID, e.ActionType, e.IntentPayload, e.PolicyVersion, e.CreatedAt)
		if err != nil {
			return 0, 0, err
		}

		if e.PreviousEventHash != expectedPrevious || recomputed != e.EventHash {
			broken++
		}
		expectedPrevious = e.EventHash
	}
	return total, broken, rows.Err()
}

// pqStringArray renders a Go string slice as a Postgres text array literal
// usable with = ANY($1).
func pqStringArray(ids []string) string {
	arr := "{"
	for i, id := range ids {
		if i > 0 {
			arr += ","
		}
		arr += `"` + escapeArrayElement(id) + `"`
	}
	arr += "}"
	return arr
}

func escapeArrayElement(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
