package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/latticeguard/governor/pkg/database"
	"github.com/latticeguard/governor/pkg/version"
)

// healthHandler handles GET /health. Returns a {status, service} shape as
// the common case, enriched with database pool stats and sandbox-runtime
// availability so a caller can distinguish "degraded but serving" from
// "fully operational" without a separate endpoint.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:   "unhealthy",
			Service:  "governance-gateway",
			Version:  version.Full(),
			Database: dbHealth,
		})
	}

	status := "operational"
	available := s.sandboxExec.IsAvailable()
	if !available {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:           status,
		Service:          "governance-gateway",
		Version:          version.Full(),
		Database:         dbHealth,
		SandboxAvailable: &available,
	})
}
