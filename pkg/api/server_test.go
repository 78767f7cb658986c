package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"

	"github.com/latticeguard/governor/pkg/autonomy"
	"github.com/latticeguard/governor/pkg/gateway"
	"github.com/latticeguard/governor/pkg/identity"
	"github.com/latticeguard/governor/pkg/ledger"
	"github.com/latticeguard/governor/pkg/sandbox"
	testdb "github.com/latticeguard/governor/test/database"
)

const testAdminToken = "s3cr3t-admin-token"

// fakeSandbox lets handler tests run without a container runtime.
type fakeSandbox struct {
	available bool
	result    *sandbox.Result
	err       error
}

func (f *fakeSandbox) IsAvailable() bool { return f.available }

func (f *fakeSandbox) Run(ctx context.Context, command, workspaceDir string, override sandbox.Config) (*sandbox.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func writeTestIdentities(t *testing.T) string {
	t.Helper()
	sum := sha256.Sum256([]byte(testAdminToken))
	fingerprint := "sha256:" + hex.EncodeToString(sum[:])

	path := filepath.Join(t.TempDir(), "identities.yaml")
	contents := `
actors:
  agent:coder:
    role: coder
    status: active
    tier: 1
  agent:escalator:
    role: coder
    status: active
    tier: 3
  agent:observer:
    role: reviewer
    status: active
    tier: 0
  agent:admin:
    role: admin
    status: active
    tier: 3
    key_fingerprint: "` + fingerprint + `"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func newTestServer(t *testing.T, sandboxExec gateway.SandboxRunner) *Server {
	t.Helper()
	client := testdb.NewTestClient(t)
	store := ledger.NewStore(client.DB())

	reg, err := identity.NewRegistry(writeTestIdentities(t))
	require.NoError(t, err)

	if sandboxExec == nil {
		sandboxExec = &fakeSandbox{available: true, result: &sandbox.Result{ExitCode: 0, Stdout: "ok"}}
	}

	gw := gateway.New(store, reg, sandboxExec, "1.0.0", time.Hour, autonomy.Timeouts{
		InitialTimeout: 5 * time.Minute,
		HardDeadline:   time.Hour,
	}, sandbox.DefaultConfig())

	return NewServer(gw, reg, client, sandboxExec)
}

// doJSON binds body (marshaled to JSON) into an echo.Context for method/path
// and runs fn against it. On success the handler has already written to rec
// via c.JSON; on failure the handler's returned error (normally an
// *echo.HTTPError) is handed back for the caller to assert on directly.
func doJSON(t *testing.T, s *Server, method, path string, body any, bearer string, fn func(*echo.Context) error) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err := fn(c)
	return rec, err
}

// decodeJSON unmarshals rec's body into out, failing the test on error.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
