package signaling

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testCandidate = json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host"}`)

func TestSendICECandidateOneToOne(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)

	env.engine.SendICECandidate(ctx, "alice", "c1", testCandidate)
	data, ok := bob.last(EventReceiveICECandidate)
	assert.True(t, ok)
	relayed := data.(ReceiveICECandidatePayload)
	assert.Equal(t, "c1", relayed.CallID)
	assert.Equal(t, "alice", relayed.SenderID)
	assert.JSONEq(t, string(testCandidate), string(relayed.Candidate))

	env.engine.SendICECandidate(ctx, "bob", "c1", testCandidate)
	data, ok = alice.last(EventReceiveICECandidate)
	assert.True(t, ok)
	assert.Equal(t, "bob", data.(ReceiveICECandidatePayload).SenderID)
}

func TestSendICECandidateUnknownCallDropsSilently(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	env.engine.SendICECandidate(context.Background(), "alice", "nope", testCandidate)

	assert.Equal(t, 0, alice.count(EventCallError))
}

func TestSendICECandidateNonParticipantDropped(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	env.connect(t, "carol")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.SendICECandidate(ctx, "carol", "c1", testCandidate)

	assert.Equal(t, 0, alice.count(EventReceiveICECandidate))
	assert.Equal(t, 0, bob.count(EventReceiveICECandidate))
}

func TestSendICECandidateGroupGoesToInitiator(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")
	carol := env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	env.engine.SendICECandidate(ctx, "bob", "g1", testCandidate)

	// star topology: candidates converge on the initiator
	assert.Equal(t, 1, alice.count(EventReceiveICECandidate))
	assert.Equal(t, 0, carol.count(EventReceiveICECandidate))
}

func TestSendMediaStatusOneToOne(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)

	env.engine.SendMediaStatus(ctx, "alice", "c1", "audio", false)

	data, ok := bob.last(EventUserMediaStatus)
	assert.True(t, ok)
	status := data.(UserMediaStatusPayload)
	assert.Equal(t, "alice", status.UserID)
	assert.Equal(t, "audio", status.MediaType)
	assert.False(t, status.Enabled)
}

func TestSendMediaStatusGroupFansOut(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	carol := env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	env.engine.SendMediaStatus(ctx, "bob", "g1", "video", true)

	assert.Equal(t, 1, alice.count(EventUserMediaStatus))
	assert.Equal(t, 1, carol.count(EventUserMediaStatus))
	assert.Equal(t, 0, bob.count(EventUserMediaStatus))
}

func TestSendMediaStatusGroupNonParticipantDropped(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	dave := env.connect(t, "dave")

	startTestGroupCall(t, env, "bob")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)

	env.engine.SendMediaStatus(ctx, "dave", "g1", "audio", false)

	assert.Equal(t, 0, alice.count(EventUserMediaStatus))
	assert.Equal(t, 0, bob.count(EventUserMediaStatus))
	assert.Equal(t, 0, dave.count(EventCallError))
}
