package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// executeHandler handles POST /execute (spec §4.7, §6).
func (s *Server) executeHandler(c *echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if req.ProposalID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "proposal_id is required")
	}

	result, err := s.gateway.Execute(c.Request().Context(), req.ProposalID)
	if err != nil {
		return mapExecuteError(err)
	}
	return c.JSON(http.StatusOK, result)
}
