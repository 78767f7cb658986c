package api

import (
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeHandler_ApprovedStandardOperation(t *testing.T) {
	s := newTestServer(t, nil)

	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:coder",
		Action:  &ActionRequest{ActionType: "bash", Content: "echo hello"},
	}, "", s.proposeHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"decision":"APPROVED"`)
}

func TestProposeHandler_EscalatesHighRiskCommand(t *testing.T) {
	s := newTestServer(t, nil)

	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:escalator",
		Action:  &ActionRequest{ActionType: "bash", Content: "sudo rm -rf /tmp/cache"},
	}, "", s.proposeHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"decision":"ESCALATED"`)
}

func TestProposeHandler_LegacyFlatEncoding(t *testing.T) {
	s := newTestServer(t, nil)

	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID:    "agent:coder",
		ActionType: "bash",
		Content:    "echo hello",
	}, "", s.proposeHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProposeHandler_MissingActorIDIsMalformed(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		Action: &ActionRequest{ActionType: "bash", Content: "echo hi"},
	}, "", s.proposeHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Code)
}

func TestProposeHandler_UnknownActorIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)

	_, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:ghost",
		Action:  &ActionRequest{ActionType: "bash", Content: "echo hi"},
	}, "", s.proposeHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestProposeHandler_RoleLockViolationIsConflict(t *testing.T) {
	s := newTestServer(t, nil)

	rec, err := doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:coder",
		Role:    "coder",
		Action:  &ActionRequest{ActionType: "bash", Content: "echo hi"},
	}, "", s.proposeHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		ChainID string `json:"chain_id"`
	}
	decodeJSON(t, rec, &decoded)

	_, err = doJSON(t, s, http.MethodPost, "/propose", ProposeRequest{
		ActorID: "agent:coder",
		Role:    "reviewer",
		ChainID: decoded.ChainID,
		Action:  &ActionRequest{ActionType: "bash", Content: "echo hi"},
	}, "", s.proposeHandler)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Code)
}
