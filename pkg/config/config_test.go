package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGatewayConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadGatewayConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.PolicyVersion)
	assert.Equal(t, 3600*time.Second, cfg.ApprovalTTL)
	assert.Equal(t, 300*time.Second, cfg.EscalationInitialTimeout)
	assert.Equal(t, 3600*time.Second, cfg.EscalationMaxTimeout)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, "none", cfg.Sandbox.NetworkMode)
}

func TestLoadGatewayConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("POLICY_VERSION", "2.1.0")
	t.Setenv("APPROVAL_TTL_SECONDS", "60")
	t.Setenv("ESCALATION_INITIAL_TIMEOUT_SECONDS", "10")
	t.Setenv("ESCALATION_MAX_TIMEOUT_SECONDS", "20")

	cfg, err := LoadGatewayConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", cfg.PolicyVersion)
	assert.Equal(t, 60*time.Second, cfg.ApprovalTTL)
}

func TestGatewayConfig_Validate(t *testing.T) {
	t.Run("rejects initial timeout >= max timeout", func(t *testing.T) {
		t.Setenv("ESCALATION_INITIAL_TIMEOUT_SECONDS", "3600")
		t.Setenv("ESCALATION_MAX_TIMEOUT_SECONDS", "3600")
		_, err := LoadGatewayConfigFromEnv()
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("rejects non-positive approval TTL", func(t *testing.T) {
		t.Setenv("APPROVAL_TTL_SECONDS", "0")
		_, err := LoadGatewayConfigFromEnv()
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}
