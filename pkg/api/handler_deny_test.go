package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenyHandler_RefusesPendingEscalation(t *testing.T) {
	s := newTestServer(t, nil)
	intentEventID, policyEventID := proposeEscalated(t, s)

	rec, err := doJSON(t, s, http.MethodPost, "/deny", ResolutionRequest{
		IntentEventID: intentEventID, PolicyEventID: policyEventID, Reason: "too risky",
	}, testAdminToken, s.denyHandler)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
