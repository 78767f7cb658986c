// Package identity is the actor allowlist: it answers "who is this caller,
// what role do they act as, and what autonomy tier are they granted" from a
// configuration document loaded at startup.
package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/latticeguard/governor/pkg/config"
)

var (
	// ErrUnknownActor is returned when an actor id has no entry in the
	// registry.
	ErrUnknownActor = errors.New("identity: unknown actor")

	// ErrRevokedActor is returned when an actor exists but its status is
	// revoked.
	ErrRevokedActor = errors.New("identity: actor revoked")

	// ErrBearerAuthFailed is returned by AuthenticateBearer when no active
	// admin identity matches the token.
	ErrBearerAuthFailed = errors.New("identity: bearer authentication failed")
)

// Identity is a resolved actor record.
type Identity struct {
	ActorID        string
	Role           string
	Status         config.IdentityStatus
	Tier           int
	KeyFingerprint string
}

// Active reports whether the identity may act at all.
func (i Identity) Active() bool {
	return i.Status == config.IdentityStatusActive
}

// Registry is the read-mostly actor allowlist. It supports explicit reload
// (spec §4.2: "Loaded from a configuration document at startup,
// reloadable") rather than caching indefinitely, since the escalation and
// tier-gate logic must never see stale revocations.
type Registry struct {
	mu     sync.RWMutex
	path   string
	actors map[string]Identity
}

// NewRegistry loads the identity document at path and returns a ready
// Registry.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the identity document from disk, replacing the in-memory
// table atomically. Safe to call concurrently with lookups.
func (r *Registry) Reload() error {
	doc, err := config.LoadIdentityDocument(r.path)
	if err != nil {
		return err
	}

	actors := make(map[string]Identity, len(doc.Actors))
	for actorID, a := range doc.Actors {
		actors[actorID] = Identity{
			ActorID:        actorID,
			Role:           a.Role,
			Status:         a.Status,
			Tier:           a.Tier,
			KeyFingerprint: a.KeyFingerprint,
		}
	}

	r.mu.Lock()
	r.actors = actors
	r.mu.Unlock()
	return nil
}

// Lookup returns the identity for actorID, or ErrUnknownActor /
// ErrRevokedActor.
func (r *Registry) Lookup(actorID string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.actors[actorID]
	if !ok {
		return Identity{}, ErrUnknownActor
	}
	if !id.Active() {
		return Identity{}, ErrRevokedActor
	}
	return id, nil
}

// AuthenticateBearer returns the sole active admin identity whose
// key_fingerprint matches "sha256:" + hex(SHA256(token)), per spec §4.2.
// Fingerprint comparison is constant-time to avoid timing side-channels on
// the bearer token.
func (r *Registry) AuthenticateBearer(token string) (Identity, error) {
	sum := sha256.Sum256([]byte(token))
	expected := "sha256:" + hex.EncodeToString(sum[:])

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.actors {
		if id.Role != "admin" || !id.Active() || id.KeyFingerprint == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(id.KeyFingerprint), []byte(expected)) == 1 {
			return id, nil
		}
	}
	return Identity{}, ErrBearerAuthFailed
}
