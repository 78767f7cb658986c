package autonomy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeguard/governor/pkg/ledger"
)

type fakeStore struct {
	mu       sync.Mutex
	tuples   []ledger.EscalatedTuple
	resolved map[string]bool
	appended []map[string]any
}

func (f *fakeStore) EscalatedTuples(ctx context.Context) ([]ledger.EscalatedTuple, error) {
	return f.tuples, nil
}

func (f *fakeStore) ResolvedIntentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if f.resolved[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) Append(ctx context.Context, actorID, actionType string, payload map[string]any, policyVersion string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, payload)
	return uuid.NewString(), nil
}

func TestSweeper_DeniesPastDeadlineOnly(t *testing.T) {
	now := time.Now().UTC()
	timeouts := Timeouts{InitialTimeout: 5 * time.Minute, HardDeadline: time.Hour}

	store := &fakeStore{
		resolved: map[string]bool{},
		tuples: []ledger.EscalatedTuple{
			{PolicyEventID: "p1", ActorID: "agent:coder", IntentEventID: "i1", IntentCreatedAt: now.Add(-2 * time.Hour)},
			{PolicyEventID: "p2", ActorID: "agent:coder", IntentEventID: "i2", IntentCreatedAt: now.Add(-10 * time.Minute)},
		},
	}

	sweeper := NewSweeper(store, timeouts, time.Minute, "1.0.0")
	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, store.appended, 1)
	assert.Equal(t, "i1", store.appended[0]["intent_event_id"])
}

func TestSweeper_SkipsAlreadyResolved(t *testing.T) {
	now := time.Now().UTC()
	timeouts := Timeouts{InitialTimeout: 5 * time.Minute, HardDeadline: time.Hour}

	store := &fakeStore{
		resolved: map[string]bool{"i1": true},
		tuples: []ledger.EscalatedTuple{
			{PolicyEventID: "p1", ActorID: "agent:coder", IntentEventID: "i1", IntentCreatedAt: now.Add(-2 * time.Hour)},
		},
	}

	sweeper := NewSweeper(store, timeouts, time.Minute, "1.0.0")
	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Empty(t, store.appended)
}

func TestSweeper_StartStopIsIdempotentAndJoins(t *testing.T) {
	store := &fakeStore{resolved: map[string]bool{}}
	sweeper := NewSweeper(store, Timeouts{InitialTimeout: time.Minute, HardDeadline: time.Hour}, 10*time.Millisecond, "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	sweeper.Start(ctx) // no-op, must not panic or double-spawn
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}
