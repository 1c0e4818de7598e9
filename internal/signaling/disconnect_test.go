package signaling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisconnectEndsOneToOneCall(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)

	env.engine.HandleDisconnect(ctx, "bob", bob)

	data, ok := alice.last(EventCallEnded)
	assert.True(t, ok)
	ended := data.(CallEndedPayload)
	assert.Equal(t, "c1", ended.CallID)
	assert.Equal(t, "bob", ended.EndedBy)
	assert.Equal(t, "User disconnected", ended.Reason)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
	_, tagged := env.engine.store.State("alice")
	assert.False(t, tagged)
}

func TestDisconnectCancelsRingingOffer(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.HandleDisconnect(ctx, "alice", alice)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
	_, tagged := env.engine.store.State("bob")
	assert.False(t, tagged)
}

func TestDisconnectLeavesGroupCall(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	env.engine.HandleDisconnect(ctx, "bob", bob)

	data, ok := alice.last(EventGroupCallUpdate)
	assert.True(t, ok)
	update := data.(GroupCallUpdatePayload)
	assert.Equal(t, UpdateParticipantLeft, update.UpdateType)
	assert.Equal(t, "bob", update.ParticipantID)

	group, found := env.engine.store.GroupSnapshot("g1")
	assert.True(t, found)
	assert.Nil(t, group.participant("bob"))
}

func TestDisconnectAutoEndsGroupCall(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	startTestGroupCall(t, env, "bob")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)

	env.engine.HandleDisconnect(ctx, "bob", bob)

	_, found := env.engine.store.GroupSnapshot("g1")
	assert.False(t, found)

	data, ok := alice.last(EventGroupCallEnded)
	assert.True(t, ok)
	assert.Equal(t, "bob", data.(GroupCallEndedPayload).EndedBy)
}

func TestDisconnectWithoutCallsIsClean(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.engine.HandleDisconnect(ctx, "alice", alice)

	assert.False(t, env.engine.IsOnline("alice"))
	assert.Equal(t, 0, env.engine.Registry().Count())
}
