package api

import "github.com/latticeguard/governor/pkg/database"

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health. It carries a base
// {status, service} shape plus additive database/sandbox detail.
type HealthResponse struct {
	Status           string                 `json:"status"`
	Service          string                 `json:"service"`
	Version          string                 `json:"version,omitempty"`
	Database         *database.HealthStatus `json:"database,omitempty"`
	SandboxAvailable *bool                  `json:"sandbox_available,omitempty"`
}

// EscalationsResponse is returned by GET /escalations (spec §6).
type EscalationsResponse struct {
	Summary               EscalationsSummaryCounts `json:"summary"`
	InitialTimeoutSeconds int                      `json:"initial_timeout_seconds"`
	MaxTimeoutSeconds     int                      `json:"max_timeout_seconds"`
}

// EscalationsSummaryCounts is the nested "summary" object of EscalationsResponse.
type EscalationsSummaryCounts struct {
	Pending       int `json:"pending"`
	HumanRequired int `json:"human_required"`
	AutoDenied    int `json:"auto_denied"`
	Resolved      int `json:"resolved"`
}
