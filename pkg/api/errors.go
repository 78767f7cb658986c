package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/latticeguard/governor/pkg/gateway"
	"github.com/latticeguard/governor/pkg/identity"
	"github.com/latticeguard/governor/pkg/ledger"
)

// mapProposeError maps Gateway.Propose errors to HTTP status codes per
// spec §6 ("403 unknown actor, 409 role-lock violation, 500 ledger
// failure"). Policy decisions (DENIED/ESCALATED) are not errors — Propose
// returns them as a normal result, not an error — so they are handled by
// the handler directly rather than here.
func mapProposeError(err error) *echo.HTTPError {
	if errors.Is(err, identity.ErrUnknownActor) || errors.Is(err, identity.ErrRevokedActor) {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	var roleLockErr *gateway.RoleLockError
	if errors.As(err, &roleLockErr) {
		return echo.NewHTTPError(http.StatusConflict, roleLockErr.Error())
	}
	return unexpectedError(err)
}

// mapResolutionError maps Gateway.Approve/Deny errors to HTTP status codes
// per spec §6 ("404 unknown event, 422 non-ESCALATED target").
func mapResolutionError(err error) *echo.HTTPError {
	if errors.Is(err, ledger.ErrEventNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "referenced event not found")
	}
	if errors.Is(err, gateway.ErrInvalidTarget) || errors.Is(err, gateway.ErrNotEscalated) || errors.Is(err, gateway.ErrActorMismatch) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return unexpectedError(err)
}

// mapExecuteError maps Gateway.Execute errors to HTTP status codes per
// spec §6 ("403 denied or tier-blocked, 404 unknown, 410 escalation
// expired, 503 sandbox unavailable") and §4.7 step 3 ("202 still awaiting").
func mapExecuteError(err error) *echo.HTTPError {
	if errors.Is(err, ledger.ErrEventNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
	}
	if errors.Is(err, gateway.ErrDenied) {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	var tierErr *gateway.TierBlockedError
	if errors.As(err, &tierErr) {
		return echo.NewHTTPError(http.StatusForbidden, tierErr.Error())
	}
	if errors.Is(err, gateway.ErrAwaitingApproval) {
		return echo.NewHTTPError(http.StatusAccepted, err.Error())
	}
	if errors.Is(err, gateway.ErrEscalationExpired) {
		return echo.NewHTTPError(http.StatusGone, err.Error())
	}
	if errors.Is(err, gateway.ErrSandboxUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return unexpectedError(err)
}

func unexpectedError(err error) *echo.HTTPError {
	slog.Error("api: unexpected gateway error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
