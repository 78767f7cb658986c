package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ComputeEventHash reproduces the normative hash-chain formula:
//
//	SHA256(previous || "|" || actor_id || "|" || action_type || "|" ||
//	       canonical(intent_payload) || "|" || policy_version || "|" ||
//	       canonical(created_at))
//
// It must give byte-identical results at append time and during
// VerifyChain, so this is the only place either call site computes a hash.
func ComputeEventHash(previousEventHash, actorID, actionType string, payload map[string]any, policyVersion string, createdAt time.Time) (string, error) {
	canonicalPayload, err := Canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize payload: %w", err)
	}

	canonicalCreatedAt, err := Canonicalize(createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize created_at: %w", err)
	}

	material := strings.Join([]string{
		previousEventHash,
		actorID,
		actionType,
		canonicalPayload,
		policyVersion,
		canonicalCreatedAt,
	}, "|")

	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:]), nil
}
