package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/latticeguard/governor/pkg/ledger"
	"github.com/latticeguard/governor/pkg/sandbox"
)

// Build assembles the evidence document for one execute flow (spec §3,
// §4.6): every field but EvidenceHash is populated, the packet is
// canonicalised, and EvidenceHash is set to the SHA-256 of that
// serialisation. The packet returned is ready to be stored as the payload
// of an EVIDENCE_PACKET ledger event.
func Build(proposalID, chainID, actorID, actionType, command string, result *sandbox.Result, env Environment) (*Packet, error) {
	packet := &Packet{
		ProposalID:  proposalID,
		ChainID:     chainID,
		ActorID:     actorID,
		ActionType:  actionType,
		Command:     command,
		BlastBox:    result,
		Environment: env,
		CreatedAt:   time.Now().UTC(),
	}

	hash, err := hashPacket(packet)
	if err != nil {
		return nil, fmt.Errorf("evidence: hash packet: %w", err)
	}
	packet.EvidenceHash = hash
	return packet, nil
}

// hashPacket canonicalises the packet with EvidenceHash held empty, so the
// hash never includes itself.
func hashPacket(packet *Packet) (string, error) {
	unsealed := *packet
	unsealed.EvidenceHash = ""

	canonical, err := ledger.Canonicalize(unsealed)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// ToPayload converts a Packet into the map[string]any shape the ledger
// store accepts as an event payload.
func (p *Packet) ToPayload() (map[string]any, error) {
	canonical, err := ledger.Canonicalize(*p)
	if err != nil {
		return nil, fmt.Errorf("evidence: canonicalize packet for payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(canonical), &payload); err != nil {
		return nil, fmt.Errorf("evidence: decode canonical packet: %w", err)
	}
	return payload, nil
}
