package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/latticeguard/governor/test/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := testdb.NewTestClient(t)
	return NewStore(client.DB())
}

func TestStore_AppendGenesisAndChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{"goal": "say hi"}, "1.0.0")
	require.NoError(t, err)

	e1, err := store.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, e1.PreviousEventHash)

	id2, err := store.Append(ctx, "agent:coder", "POLICY_EVAL:BASH", map[string]any{"decision": "APPROVED", "intent_event_id": id1}, "1.0.0")
	require.NoError(t, err)

	e2, err := store.Get(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, e1.EventHash, e2.PreviousEventHash)
}

func TestStore_VerifyChain_NoBreaks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{"n": i}, "1.0.0")
		require.NoError(t, err)
	}

	total, broken, err := store.VerifyChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 0, broken)
}

func TestStore_ConcurrentAppends_Linearise(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 10
	const perWriter = 10

	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{"writer": w, "i": i}, "1.0.0"); err != nil {
					errCh <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	total, broken, err := store.VerifyChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, total)
	assert.Equal(t, 0, broken)
}

func TestStore_FindPolicyEvalForIntent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	intentID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{"goal": "x"}, "1.0.0")
	require.NoError(t, err)

	policyID, err := store.Append(ctx, "agent:coder", "POLICY_EVAL:BASH",
		map[string]any{"decision": "APPROVED", "intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	found, err := store.FindPolicyEvalForIntent(ctx, intentID)
	require.NoError(t, err)
	assert.Equal(t, policyID, found.ID)
}

func TestStore_ChainRole_FirstIntentBindsRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT",
		map[string]any{"chain_id": "chain-1", "role": "coder"}, "1.0.0")
	require.NoError(t, err)
	_, err = store.Append(ctx, "agent:coder", "INBOUND_INTENT",
		map[string]any{"chain_id": "chain-1", "role": "coder"}, "1.0.0")
	require.NoError(t, err)

	role, ok, err := store.ChainRole(ctx, "chain-1", "agent:coder")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "coder", role)
}

func TestStore_FindValidApproval_ConsumedOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	intentID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT",
		map[string]any{"action": map[string]any{"action_type": "bash", "content": "curl https://x"}}, "1.0.0")
	require.NoError(t, err)

	approvalID, err := store.Append(ctx, "agent:admin", "HUMAN_APPROVAL_GRANTED",
		map[string]any{"intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	found, err := store.FindValidApproval(ctx, "agent:coder", "bash", "curl https://x", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, approvalID, found.ID)

	_, err = store.Append(ctx, "agent:coder", "APPROVAL_CONSUMED",
		map[string]any{"approval_event_id": approvalID, "current_intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	_, err = store.FindValidApproval(ctx, "agent:coder", "bash", "curl https://x", time.Hour)
	assert.ErrorIs(t, err, ErrEventNotFound, "approval is single-use")
}

func TestStore_ConsumeApproval_OnlyOnceAcrossConcurrentCallers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	intentID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT",
		map[string]any{"action": map[string]any{"action_type": "bash", "content": "curl https://x"}}, "1.0.0")
	require.NoError(t, err)
	approvalID, err := store.Append(ctx, "agent:admin", "HUMAN_APPROVAL_GRANTED",
		map[string]any{"intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	const racers = 5
	var wg sync.WaitGroup
	results := make([]bool, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, consumed, err := store.ConsumeApproval(ctx, approvalID, "agent:coder",
				map[string]any{"current_intent_event_id": intentID}, "1.0.0")
			results[i], errs[i] = consumed, err
		}(i)
	}
	wg.Wait()

	consumedCount := 0
	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i])
		if results[i] {
			consumedCount++
		}
	}
	assert.Equal(t, 1, consumedCount, "exactly one concurrent caller consumes the approval")
}

func TestStore_ConsumeApproval_AlreadyConsumedReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	intentID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{}, "1.0.0")
	require.NoError(t, err)
	approvalID, err := store.Append(ctx, "agent:admin", "HUMAN_APPROVAL_GRANTED",
		map[string]any{"intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	_, firstConsumed, err := store.ConsumeApproval(ctx, approvalID, "agent:coder", map[string]any{}, "1.0.0")
	require.NoError(t, err)
	assert.True(t, firstConsumed)

	_, secondConsumed, err := store.ConsumeApproval(ctx, approvalID, "agent:coder", map[string]any{}, "1.0.0")
	require.NoError(t, err)
	assert.False(t, secondConsumed)
}

func TestStore_ResolvedIntentIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	intentID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{}, "1.0.0")
	require.NoError(t, err)
	unresolvedID, err := store.Append(ctx, "agent:coder", "INBOUND_INTENT", map[string]any{}, "1.0.0")
	require.NoError(t, err)

	_, err = store.Append(ctx, "agent:admin", "HUMAN_DENIAL", map[string]any{"intent_event_id": intentID}, "1.0.0")
	require.NoError(t, err)

	resolved, err := store.ResolvedIntentIDs(ctx, []string{intentID, unresolvedID})
	require.NoError(t, err)
	assert.True(t, resolved[intentID])
	assert.False(t, resolved[unresolvedID])
}
