package autonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveState(t *testing.T) {
	timeouts := Timeouts{InitialTimeout: 300 * time.Second, HardDeadline: 3600 * time.Second}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		age      time.Duration
		resolved bool
		want     EscalationState
	}{
		{"fresh", 0, false, StatePendingReview},
		{"just under initial timeout", 299 * time.Second, false, StatePendingReview},
		{"exactly at initial timeout", 300 * time.Second, false, StateHumanRequired},
		{"between thresholds", 30 * time.Minute, false, StateHumanRequired},
		{"exactly at hard deadline", 3600 * time.Second, false, StateAutoDeniedTimeout},
		{"past hard deadline", 2 * time.Hour, false, StateAutoDeniedTimeout},
		{"resolved regardless of age", 10 * time.Hour, true, StateResolved},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			now := created.Add(c.age)
			got := DeriveState(created, now, c.resolved, timeouts)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestGate(t *testing.T) {
	assert.False(t, Gate(TierProposeOnly, false).Allowed)
	assert.False(t, Gate(TierProposeOnly, true).Allowed, "tier 0 forbidden regardless of approval")

	assert.True(t, Gate(TierSandboxOnly, false).Allowed)

	assert.False(t, Gate(TierReserved, true).Allowed)

	assert.False(t, Gate(TierHumanRequired, false).Allowed)
	assert.True(t, Gate(TierHumanRequired, true).Allowed)
}
