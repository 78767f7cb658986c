package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, token string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(token))
	fingerprint := "sha256:" + hex.EncodeToString(sum[:])

	path := filepath.Join(t.TempDir(), "identities.yaml")
	contents := `
actors:
  agent:coder:
    role: coder
    status: active
    tier: 1
  agent:reviewer:
    role: reviewer
    status: active
    tier: 0
  agent:retired:
    role: coder
    status: revoked
    tier: 1
  agent:admin:
    role: admin
    status: active
    tier: 3
    key_fingerprint: "` + fingerprint + `"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry(writeRegistry(t, "s3cr3t"))
	require.NoError(t, err)

	id, err := reg.Lookup("agent:coder")
	require.NoError(t, err)
	assert.Equal(t, 1, id.Tier)
	assert.True(t, id.Active())

	_, err = reg.Lookup("agent:retired")
	assert.ErrorIs(t, err, ErrRevokedActor)

	_, err = reg.Lookup("agent:ghost")
	assert.ErrorIs(t, err, ErrUnknownActor)
}

func TestRegistry_AuthenticateBearer(t *testing.T) {
	reg, err := NewRegistry(writeRegistry(t, "s3cr3t"))
	require.NoError(t, err)

	id, err := reg.AuthenticateBearer("s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, "agent:admin", id.ActorID)

	_, err = reg.AuthenticateBearer("wrong-token")
	assert.ErrorIs(t, err, ErrBearerAuthFailed)

	_, err = reg.AuthenticateBearer("")
	assert.ErrorIs(t, err, ErrBearerAuthFailed)
}

func TestRegistry_AuthenticateBearer_RejectsNonAdmin(t *testing.T) {
	path := writeRegistry(t, "s3cr3t")
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	// agent:coder has no key_fingerprint at all, so any token must fail.
	_, err = reg.AuthenticateBearer("anything")
	require.Error(t, err)
}

func TestRegistry_Reload_PicksUpRevocation(t *testing.T) {
	path := writeRegistry(t, "s3cr3t")
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	_, err = reg.Lookup("agent:coder")
	require.NoError(t, err)

	revoked := `
actors:
  agent:coder:
    role: coder
    status: revoked
`
	require.NoError(t, os.WriteFile(path, []byte(revoked), 0o600))
	require.NoError(t, reg.Reload())

	_, err = reg.Lookup("agent:coder")
	assert.ErrorIs(t, err, ErrRevokedActor)
}
