package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// IdentityStatus is the closed set of actor lifecycle states.
type IdentityStatus string

const (
	IdentityStatusActive  IdentityStatus = "active"
	IdentityStatusRevoked IdentityStatus = "revoked"
)

// ActorIdentity is one entry of the identity document: an actor's role,
// status, autonomy tier, and optional bearer-auth key fingerprint.
type ActorIdentity struct {
	Role           string         `yaml:"role"`
	Status         IdentityStatus `yaml:"status"`
	Tier           int            `yaml:"tier"`
	KeyFingerprint string         `yaml:"key_fingerprint,omitempty"`
}

// IdentityDocument is the top-level shape of the identity document: a
// mapping under a top-level actors key. Loaded as YAML rather than raw
// JSON for consistency with the rest of the configuration layer; YAML is
// a superset of JSON so a strict JSON document still loads unchanged.
type IdentityDocument struct {
	Actors map[string]ActorIdentity `yaml:"actors"`
}

// LoadIdentityDocument reads and parses the identity document at path.
// Tier defaults to 0 when absent.
func LoadIdentityDocument(path string) (*IdentityDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}

	var doc IdentityDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	for actorID, identity := range doc.Actors {
		if identity.Status == "" {
			return nil, NewValidationError("identity", actorID, "status", ErrMissingRequiredField)
		}
		if identity.Status != IdentityStatusActive && identity.Status != IdentityStatusRevoked {
			return nil, NewValidationError("identity", actorID, "status", fmt.Errorf("%w: %q", ErrInvalidValue, identity.Status))
		}
		if identity.Tier < 0 || identity.Tier > 3 {
			return nil, NewValidationError("identity", actorID, "tier", fmt.Errorf("%w: %d", ErrInvalidValue, identity.Tier))
		}
	}

	return &doc, nil
}
