package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/latticeguard/governor/pkg/policy"
)

// proposeHandler handles POST /propose (spec §4.7, §6).
func (s *Server) proposeHandler(c *echo.Context) error {
	var req ProposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	env := req.ToEnvelope()
	if env.ActorID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "actor_id is required")
	}
	if env.Action.ActionType == "" || env.Action.Content == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "action.action_type and action.content are required")
	}

	result, err := s.gateway.Propose(c.Request().Context(), env)
	if err != nil {
		return mapProposeError(err)
	}

	status := http.StatusOK
	switch result.Decision {
	case policy.Denied:
		status = http.StatusForbidden
	case policy.Escalated:
		status = http.StatusAccepted
	}
	return c.JSON(status, result)
}
