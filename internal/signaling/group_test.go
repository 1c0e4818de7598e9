package signaling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/errors"
)

func startTestGroupCall(t *testing.T, env *testEnv, invitees ...string) {
	t.Helper()
	env.engine.StartGroupCall(context.Background(), "alice", "g1", "team", "Team", "", invitees, testOffer)
}

func TestStartGroupCallInvitesOnlineMembers(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	carol := env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")

	for _, conn := range []*fakeConn{bob, carol} {
		data, ok := conn.last(EventReceiveCallOffer)
		assert.True(t, ok)
		offer := data.(ReceiveCallOfferPayload)
		assert.Equal(t, "group-call-offer", offer.Type)
		assert.Equal(t, "g1", offer.CallID)
		assert.Equal(t, "team", offer.GroupID)
		assert.True(t, offer.IsGroupCall)
	}

	data, ok := alice.last(EventGroupCallStarted)
	assert.True(t, ok)
	started := data.(GroupCallStartedPayload)
	assert.Equal(t, 3, started.ParticipantCount)
	assert.Equal(t, 2, started.InvitedCount)

	state, _ := env.engine.store.State("alice")
	assert.Equal(t, constants.CallStateInGroupCall, state)
	state, _ = env.engine.store.State("bob")
	assert.Equal(t, constants.CallStateRinging, state)

	assert.Len(t, env.history.starts, 1)
	assert.Equal(t, "group", env.history.starts[0].Kind)
}

func TestStartGroupCallDeduplicatesInvitees(t *testing.T) {
	env := newTestEnv(0)

	env.connect(t, "alice")
	bob := env.connect(t, "bob")

	startTestGroupCall(t, env, "bob", "bob", "alice")

	assert.Equal(t, 1, bob.count(EventReceiveCallOffer))

	group, ok := env.engine.store.GroupSnapshot("g1")
	assert.True(t, ok)
	assert.Len(t, group.Participants, 2)
}

func TestStartGroupCallOfflineInviteesGetPush(t *testing.T) {
	env := newTestEnv(0)

	env.connect(t, "alice")
	env.connect(t, "bob")

	startTestGroupCall(t, env, "bob", "dave")

	assert.Equal(t, 1, env.notifier.count())
	invite := env.notifier.invites[0]
	assert.Equal(t, []string{"dave"}, invite.CalleeIDs)
	assert.Equal(t, "group", invite.CallKind)
}

func TestStartGroupCallCountsDeliveredInvites(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	// carol and dave are offline: participant records exist for all four,
	// but only bob's invitation is delivered
	startTestGroupCall(t, env, "bob", "carol", "dave")

	data, ok := alice.last(EventGroupCallStarted)
	assert.True(t, ok)
	started := data.(GroupCallStartedPayload)
	assert.Equal(t, 4, started.ParticipantCount)
	assert.Equal(t, 1, started.InvitedCount)
}

func TestAcceptGroupCallStarTopology(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)

	// the answer reaches the initiator only
	data, ok := alice.last(EventCallAccepted)
	assert.True(t, ok)
	accepted := data.(CallAcceptedPayload)
	assert.Equal(t, "bob", accepted.ParticipantID)
	assert.True(t, accepted.IsGroupCall)

	data, ok = bob.last(EventGroupCallJoined)
	assert.True(t, ok)
	joined := data.(GroupCallJoinedPayload)
	assert.Equal(t, "g1", joined.CallID)
	assert.Equal(t, 2, joined.ParticipantCount)

	state, _ := env.engine.store.State("bob")
	assert.Equal(t, constants.CallStateInGroupCall, state)
}

func TestAcceptGroupCallNotifiesJoinedParticipants(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	for _, conn := range []*fakeConn{alice, bob} {
		data, ok := conn.last(EventGroupCallUpdate)
		assert.True(t, ok)
		update := data.(GroupCallUpdatePayload)
		assert.Equal(t, UpdateParticipantJoined, update.UpdateType)
		assert.Equal(t, "carol", update.ParticipantID)
		assert.Equal(t, 3, update.ParticipantCount)
	}
}

func TestAcceptGroupCallNotInvited(t *testing.T) {
	env := newTestEnv(0)

	env.connect(t, "alice")
	env.connect(t, "bob")
	dave := env.connect(t, "dave")

	startTestGroupCall(t, env, "bob")
	env.engine.AcceptGroupCall(context.Background(), "dave", "g1", testAnswer)

	data, ok := dave.last(EventCallError)
	assert.True(t, ok)
	assert.Equal(t, string(errors.ErrCodeNotInvited), data.(CallErrorPayload).Code)
}

func TestAcceptCallDispatchesGroupCallID(t *testing.T) {
	env := newTestEnv(0)

	env.connect(t, "alice")
	bob := env.connect(t, "bob")

	startTestGroupCall(t, env, "bob")
	env.engine.AcceptCall(context.Background(), "bob", "g1", testAnswer)

	assert.Equal(t, 1, bob.count(EventGroupCallJoined))
}

func TestRejectGroupInvitationInformsHost(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	startTestGroupCall(t, env, "bob")
	env.engine.RejectCall(context.Background(), "bob", "g1", "")

	data, ok := alice.last(EventGroupCallUpdate)
	assert.True(t, ok)
	update := data.(GroupCallUpdatePayload)
	assert.Equal(t, UpdateParticipantRejected, update.UpdateType)
	assert.Equal(t, "bob", update.ParticipantID)

	// declining clears the ringing tag but keeps the call alive
	_, tagged := env.engine.store.State("bob")
	assert.False(t, tagged)
	_, found := env.engine.store.GroupSnapshot("g1")
	assert.True(t, found)
}

func TestLeaveGroupCallBroadcastsAndAutoEnds(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")
	carol := env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	env.engine.LeaveGroupCall(ctx, "bob", "g1")

	data, ok := carol.last(EventGroupCallUpdate)
	assert.True(t, ok)
	update := data.(GroupCallUpdatePayload)
	assert.Equal(t, UpdateParticipantLeft, update.UpdateType)
	assert.Equal(t, "bob", update.ParticipantID)
	assert.Equal(t, 2, update.ParticipantCount)

	// two joined remain, call keeps going
	_, found := env.engine.store.GroupSnapshot("g1")
	assert.True(t, found)

	env.engine.LeaveGroupCall(ctx, "carol", "g1")

	// one joined participant left: auto-end
	_, found = env.engine.store.GroupSnapshot("g1")
	assert.False(t, found)

	data, ok = alice.last(EventGroupCallEnded)
	assert.True(t, ok)
	assert.Equal(t, "Not enough participants", data.(GroupCallEndedPayload).Reason)

	_, tagged := env.engine.store.State("alice")
	assert.False(t, tagged)
}

func TestEndGroupCallNotifiesAllJoined(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	carol := env.connect(t, "carol")

	startTestGroupCall(t, env, "bob", "carol")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)
	env.engine.AcceptGroupCall(ctx, "carol", "g1", testAnswer)

	env.engine.EndGroupCall(ctx, "alice", "g1")

	// everyone joined hears it, the ender included
	for _, conn := range []*fakeConn{alice, bob, carol} {
		data, ok := conn.last(EventGroupCallEnded)
		assert.True(t, ok)
		ended := data.(GroupCallEndedPayload)
		assert.Equal(t, "g1", ended.CallID)
		assert.Equal(t, "alice", ended.EndedBy)
		assert.NotEmpty(t, ended.FormattedDuration)
	}

	_, found := env.engine.store.GroupSnapshot("g1")
	assert.False(t, found)
	for _, userID := range []string{"alice", "bob", "carol"} {
		_, tagged := env.engine.store.State(userID)
		assert.False(t, tagged, userID)
	}
}

func TestEndCallDispatchesGroupCallID(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")

	startTestGroupCall(t, env, "bob")
	env.engine.AcceptGroupCall(ctx, "bob", "g1", testAnswer)

	env.engine.EndCall(ctx, "bob", "g1", "")

	_, found := env.engine.store.GroupSnapshot("g1")
	assert.False(t, found)
}
