package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// escalationsHandler handles GET /escalations (spec §4.7, §6).
func (s *Server) escalationsHandler(c *echo.Context) error {
	summary, err := s.gateway.Escalations(c.Request().Context())
	if err != nil {
		return unexpectedError(err)
	}

	return c.JSON(http.StatusOK, &EscalationsResponse{
		Summary: EscalationsSummaryCounts{
			Pending:       summary.Pending,
			HumanRequired: summary.HumanRequired,
			AutoDenied:    summary.AutoDenied,
			Resolved:      summary.Resolved,
		},
		InitialTimeoutSeconds: summary.InitialTimeoutSeconds,
		MaxTimeoutSeconds:     summary.MaxTimeoutSeconds,
	})
}
