// Package config loads governor's environment-driven configuration and
// the identity document, using the same getenv-with-defaults and
// YAML-document loading idioms throughout the codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GatewayConfig holds the gateway's environment-configurable knobs.
type GatewayConfig struct {
	// PolicyVersion is stamped onto every ledger event and policy result.
	PolicyVersion string

	// ApprovalTTL bounds how long a HUMAN_APPROVAL_GRANTED event remains
	// consumable.
	ApprovalTTL time.Duration

	// EscalationInitialTimeout is the PENDING_REVIEW → HUMAN_REQUIRED boundary.
	EscalationInitialTimeout time.Duration

	// EscalationMaxTimeout is the hard deadline after which an ESCALATED
	// intent is auto-denied.
	EscalationMaxTimeout time.Duration

	// SweepInterval is how often the timeout sweeper scans for expired
	// escalations.
	SweepInterval time.Duration

	// HTTPPort is the port the gateway's HTTP surface listens on.
	HTTPPort string

	// IdentityDocumentPath points at the YAML actor allowlist.
	IdentityDocumentPath string

	Sandbox SandboxConfig
}

// SandboxConfig holds the container-runtime defaults applied when a
// proposal's execute request does not override them.
type SandboxConfig struct {
	Image          string
	MemoryLimit    string
	CPULimit       float64
	TimeoutSeconds int
	NetworkMode    string
}

// LoadGatewayConfigFromEnv loads GatewayConfig from the environment,
// applying conservative production defaults.
func LoadGatewayConfigFromEnv() (GatewayConfig, error) {
	approvalTTL, err := parseSecondsEnv("APPROVAL_TTL_SECONDS", 3600)
	if err != nil {
		return GatewayConfig{}, err
	}
	initialTimeout, err := parseSecondsEnv("ESCALATION_INITIAL_TIMEOUT_SECONDS", 300)
	if err != nil {
		return GatewayConfig{}, err
	}
	maxTimeout, err := parseSecondsEnv("ESCALATION_MAX_TIMEOUT_SECONDS", 3600)
	if err != nil {
		return GatewayConfig{}, err
	}
	sweepInterval, err := parseSecondsEnv("ESCALATION_SWEEP_INTERVAL_SECONDS", 30)
	if err != nil {
		return GatewayConfig{}, err
	}

	cpuLimit, err := strconv.ParseFloat(getEnvOrDefault("SANDBOX_CPU_LIMIT", "1.0"), 64)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid SANDBOX_CPU_LIMIT: %w", err)
	}
	sandboxTimeout, err := strconv.Atoi(getEnvOrDefault("SANDBOX_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid SANDBOX_TIMEOUT_SECONDS: %w", err)
	}

	cfg := GatewayConfig{
		PolicyVersion:            getEnvOrDefault("POLICY_VERSION", "1.0.0"),
		ApprovalTTL:              approvalTTL,
		EscalationInitialTimeout: initialTimeout,
		EscalationMaxTimeout:     maxTimeout,
		SweepInterval:            sweepInterval,
		HTTPPort:                 getEnvOrDefault("HTTP_PORT", "8080"),
		IdentityDocumentPath:     getEnvOrDefault("IDENTITY_DOCUMENT_PATH", "./deploy/config/identities.yaml"),
		Sandbox: SandboxConfig{
			Image:          getEnvOrDefault("SANDBOX_IMAGE", "alpine:3.19"),
			MemoryLimit:    getEnvOrDefault("SANDBOX_MEMORY_LIMIT", "256m"),
			CPULimit:       cpuLimit,
			TimeoutSeconds: sandboxTimeout,
			NetworkMode:    getEnvOrDefault("SANDBOX_NETWORK_MODE", "none"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold before the gateway starts.
func (c GatewayConfig) Validate() error {
	if c.EscalationInitialTimeout >= c.EscalationMaxTimeout {
		return fmt.Errorf("%w: ESCALATION_INITIAL_TIMEOUT_SECONDS must be less than ESCALATION_MAX_TIMEOUT_SECONDS", ErrInvalidValue)
	}
	if c.ApprovalTTL <= 0 {
		return fmt.Errorf("%w: APPROVAL_TTL_SECONDS must be positive", ErrInvalidValue)
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: SANDBOX_TIMEOUT_SECONDS must be positive", ErrInvalidValue)
	}
	return nil
}

func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	raw := getEnvOrDefault(key, strconv.Itoa(defaultSeconds))
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
