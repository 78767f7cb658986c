package autonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/latticeguard/governor/pkg/ledger"
)

// LedgerStore is the subset of ledger.Store the sweeper needs, so tests can
// supply a fake instead of a real Postgres-backed store.
type LedgerStore interface {
	EscalatedTuples(ctx context.Context) ([]ledger.EscalatedTuple, error)
	ResolvedIntentIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Append(ctx context.Context, actorID, actionType string, payload map[string]any, policyVersion string) (string, error)
}

// Sweeper periodically scans ESCALATED intents past their hard deadline and
// appends AUTO_DENIED_TIMEOUT events (spec §4.4). Its lifecycle is a ticker
// loop gated by a sync.Once-guarded stop channel, joined via a WaitGroup on
// Stop.
type Sweeper struct {
	store         LedgerStore
	timeouts      Timeouts
	interval      time.Duration
	policyVersion string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// NewSweeper constructs a Sweeper. Call Start to begin the periodic scan.
func NewSweeper(store LedgerStore, timeouts Timeouts, interval time.Duration, policyVersion string) *Sweeper {
	return &Sweeper{
		store:         store,
		timeouts:      timeouts,
		interval:      interval,
		policyVersion: policyVersion,
		stopCh:        make(chan struct{}),
	}
}

// Start spawns the sweep loop. Safe to call once; subsequent calls are
// no-ops.
func (s *Sweeper) Start(ctx context.Context) {
	if s.started {
		slog.Warn("autonomy: sweeper already started, ignoring duplicate Start call")
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("autonomy: sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass: fetch ESCALATED tuples, batch-resolve already-decided
// intents, and append AUTO_DENIED_TIMEOUT for every tuple whose hard
// deadline has passed (spec §4.4 steps 1-3). It is exported so callers (and
// the /execute path checking for an expired escalation) can trigger an
// immediate sweep instead of waiting for the next tick.
func (s *Sweeper) Sweep(ctx context.Context) error {
	tuples, err := s.store.EscalatedTuples(ctx)
	if err != nil {
		return fmt.Errorf("autonomy: fetch escalated tuples: %w", err)
	}
	if len(tuples) == 0 {
		return nil
	}

	ids := make([]string, len(tuples))
	for i, t := range tuples {
		ids[i] = t.IntentEventID
	}

	resolved, err := s.store.ResolvedIntentIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("autonomy: fetch resolved intent ids: %w", err)
	}

	now := time.Now().UTC()
	denied := 0
	for _, t := range tuples {
		if resolved[t.IntentEventID] {
			continue
		}
		if now.Sub(t.IntentCreatedAt) < s.timeouts.HardDeadline {
			continue
		}

		payload := map[string]any{
			"intent_event_id": t.IntentEventID,
			"policy_event_id": t.PolicyEventID,
			"actor_id":        t.ActorID,
			"reason":          "escalation exceeded hard deadline without resolution",
			"auto_denied_at":  now.Format(time.RFC3339Nano),
		}
		if _, err := s.store.Append(ctx, t.ActorID, "AUTO_DENIED_TIMEOUT", payload, s.policyVersion); err != nil {
			slog.Error("autonomy: failed to append auto-denial", "intent_event_id", t.IntentEventID, "error", err)
			continue
		}
		resolved[t.IntentEventID] = true // avoid double-counting within this sweep
		denied++
	}

	if denied > 0 {
		slog.Warn("autonomy: swept escalations past hard deadline", "count", denied)
	}
	return nil
}
