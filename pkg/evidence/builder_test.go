package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeguard/governor/pkg/sandbox"
)

func sampleResult() *sandbox.Result {
	return &sandbox.Result{
		ExitCode:   0,
		Stdout:     "ok",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Changes: []sandbox.PathChange{
			{Path: "main.go", Kind: sandbox.ChangeModified},
		},
	}
}

func TestBuild_SetsEvidenceHashOverRemainingFields(t *testing.T) {
	env := Environment{Image: "alpine:latest", NetworkMode: "none", MemoryLimit: "256m", CPULimit: 1, TimeoutSeconds: 30}

	packet, err := Build("prop-1", "chain-1", "agent:coder", "FILE_WRITE", "echo hi", sampleResult(), env)
	require.NoError(t, err)

	assert.NotEmpty(t, packet.EvidenceHash)

	rehash, err := hashPacket(packet)
	require.NoError(t, err)
	assert.NotEqual(t, packet.EvidenceHash, rehash, "the stored hash must not itself be part of what it covers")
}

func TestBuild_DeterministicForIdenticalInputsExceptTimestamp(t *testing.T) {
	env := Environment{Image: "alpine:latest", NetworkMode: "none"}
	result := sampleResult()

	a, err := Build("prop-1", "chain-1", "agent:coder", "FILE_WRITE", "echo hi", result, env)
	require.NoError(t, err)
	b, err := Build("prop-1", "chain-1", "agent:coder", "FILE_WRITE", "echo hi", result, env)
	require.NoError(t, err)

	// CreatedAt differs between the two builds, so the hashes diverge even
	// though every other field is identical.
	assert.NotEqual(t, a.EvidenceHash, b.EvidenceHash)
}

func TestPacket_ToPayload_RoundTripsAsMap(t *testing.T) {
	env := Environment{Image: "alpine:latest", NetworkMode: "none"}
	packet, err := Build("prop-1", "chain-1", "agent:coder", "FILE_WRITE", "echo hi", sampleResult(), env)
	require.NoError(t, err)

	payload, err := packet.ToPayload()
	require.NoError(t, err)

	assert.Equal(t, "prop-1", payload["proposal_id"])
	assert.Equal(t, packet.EvidenceHash, payload["evidence_hash"])
}
