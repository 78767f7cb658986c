package api

import (
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposeEscalated(t *testing.T, s *Server) (intentEventID, policyEventID string) {
	t.Helper()
	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:escalator",
		Action:  &ActionRequest{ActionType: "bash", Content: "sudo rm -rf /tmp/cache"},
	}, "", s.proposeHandler)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var decoded struct {
		IntentEventID string `json:"intent_event_id"`
		PolicyEventID string `json:"policy_event_id"`
	}
	decodeJSON(t, rec, &decoded)
	return decoded.IntentEventID, decoded.PolicyEventID
}

func TestApproveHandler_MissingBearerIsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := doJSON(t, s, http.MethodPost, "/approve", ResolutionRequest{
		IntentEventID: "x", PolicyEventID: "y",
	}, "", s.approveHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestApproveHandler_WrongBearerIsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := doJSON(t, s, http.MethodPost, "/approve", ResolutionRequest{
		IntentEventID: "x", PolicyEventID: "y",
	}, "not-the-admin-token", s.approveHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestApproveHandler_GrantsPendingEscalation(t *testing.T) {
	s := newTestServer(t, nil)
	intentEventID, policyEventID := proposeEscalated(t, s)

	rec, err := doJSON(t, s, http.MethodPost, "/approve", ResolutionRequest{
		IntentEventID: intentEventID, PolicyEventID: policyEventID, Reason: "looks fine",
	}, testAdminToken, s.approveHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApproveHandler_NonEscalatedTargetIsUnprocessable(t *testing.T) {
	s := newTestServer(t, nil)

	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:coder",
		Action:  &ActionRequest{ActionType: "bash", Content: "echo hi"},
	}, "", s.proposeHandler)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		IntentEventID string `json:"intent_event_id"`
		PolicyEventID string `json:"policy_event_id"`
	}
	decodeJSON(t, rec, &decoded)

	_, err = doJSON(t, s, http.MethodPost, "/approve", ResolutionRequest{
		IntentEventID: decoded.IntentEventID, PolicyEventID: decoded.PolicyEventID,
	}, testAdminToken, s.approveHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
}

func TestApproveHandler_UnknownEventIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := doJSON(t, s, http.MethodPost, "/approve", ResolutionRequest{
		IntentEventID: "00000000-0000-0000-0000-000000000000",
		PolicyEventID: "00000000-0000-0000-0000-000000000001",
	}, testAdminToken, s.approveHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}
