package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// denyHandler handles POST /deny (spec §4.7, §6).
func (s *Server) denyHandler(c *echo.Context) error {
	admin, ok := s.authenticateAdmin(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "bearer authentication failed")
	}

	var req ResolutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.IntentEventID == "" || req.PolicyEventID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "intent_event_id and policy_event_id are required")
	}

	result, err := s.gateway.Deny(c.Request().Context(), admin.ActorID, req.IntentEventID, req.PolicyEventID, req.Reason)
	if err != nil {
		return mapResolutionError(err)
	}
	return c.JSON(http.StatusOK, result)
}
