package signaling

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/errors"
)

var (
	testOffer  = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	testAnswer = json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
)

func TestSendCallOfferDeliversToReceiver(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)

	data, ok := bob.last(EventReceiveCallOffer)
	assert.True(t, ok)
	offer := data.(ReceiveCallOfferPayload)
	assert.Equal(t, "call-offer", offer.Type)
	assert.Equal(t, "c1", offer.CallID)
	assert.Equal(t, "alice", offer.CallerID)
	assert.Equal(t, "Alice", offer.CallerName)
	assert.JSONEq(t, string(testOffer), string(offer.Offer))
	assert.False(t, offer.IsGroupCall)

	data, ok = alice.last(EventCallOfferSent)
	assert.True(t, ok)
	ack := data.(CallOfferSentPayload)
	assert.Equal(t, "c1", ack.CallID)
	assert.Equal(t, "bob", ack.ReceiverID)
	assert.Equal(t, constants.CallStatusRinging, ack.Status)

	state, _ := env.engine.store.State("alice")
	assert.Equal(t, constants.CallStateCalling, state)
	state, _ = env.engine.store.State("bob")
	assert.Equal(t, constants.CallStateRinging, state)

	assert.Len(t, env.history.starts, 1)
	assert.Equal(t, "c1", env.history.starts[0].CallID)
	assert.Equal(t, "one_to_one", env.history.starts[0].Kind)
}

func TestSendCallOfferBusyReceiver(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")
	carol := env.connect(t, "carol")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.SendCallOffer(ctx, "carol", "bob", "c2", testOffer)

	data, ok := carol.last(EventUserBusy)
	assert.True(t, ok)
	assert.Equal(t, "bob", data.(UserBusyPayload).UserID)

	// the losing offer left no record behind
	_, found := env.engine.store.CallSnapshot("c2")
	assert.False(t, found)
	state, _ := env.engine.store.State("carol")
	assert.Empty(t, state)
}

func TestSendCallOfferOfflineReceiver(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)

	data, ok := alice.last(EventUserOffline)
	assert.True(t, ok)
	assert.Equal(t, "bob", data.(UserOfflinePayload).UserID)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
	_, tagged := env.engine.store.State("alice")
	assert.False(t, tagged)

	// offline receivers get a push invite instead
	assert.Equal(t, 1, env.notifier.count())
}

func TestSendCallOfferToSelfRejected(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	env.engine.SendCallOffer(context.Background(), "alice", "alice", "c1", testOffer)

	data, ok := alice.last(EventCallError)
	assert.True(t, ok)
	assert.Equal(t, string(errors.ErrCodeInvalidInput), data.(CallErrorPayload).Code)
}

func TestAcceptCallRelaysAnswerToCaller(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)

	data, ok := alice.last(EventCallAccepted)
	assert.True(t, ok)
	accepted := data.(CallAcceptedPayload)
	assert.Equal(t, "c1", accepted.CallID)
	assert.Equal(t, "bob", accepted.ReceiverID)
	assert.JSONEq(t, string(testAnswer), string(accepted.Answer))
	assert.False(t, accepted.IsGroupCall)

	state, _ := env.engine.store.State("alice")
	assert.Equal(t, constants.CallStateInCall, state)
	state, _ = env.engine.store.State("bob")
	assert.Equal(t, constants.CallStateInCall, state)

	assert.Equal(t, constants.CallStatusAccepted, env.history.status("c1"))
}

func TestAcceptCallUnknownCallErrors(t *testing.T) {
	env := newTestEnv(0)

	bob := env.connect(t, "bob")
	env.engine.AcceptCall(context.Background(), "bob", "nope", testAnswer)

	data, ok := bob.last(EventCallError)
	assert.True(t, ok)
	assert.Equal(t, string(errors.ErrCodeCallNotFound), data.(CallErrorPayload).Code)
}

func TestAcceptCallWrongReceiverErrors(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")
	carol := env.connect(t, "carol")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "carol", "c1", testAnswer)

	data, ok := carol.last(EventCallError)
	assert.True(t, ok)
	assert.Equal(t, string(errors.ErrCodeCallNotFound), data.(CallErrorPayload).Code)

	// the real call is untouched
	call, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
	assert.Equal(t, constants.CallStatusRinging, call.Status)
}

func TestRejectCallNotifiesCallerAndCleansUp(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.RejectCall(ctx, "bob", "c1", "busy right now")

	data, ok := alice.last(EventCallRejected)
	assert.True(t, ok)
	rejected := data.(CallRejectedPayload)
	assert.Equal(t, "c1", rejected.CallID)
	assert.Equal(t, "bob", rejected.ReceiverID)
	assert.Equal(t, "busy right now", rejected.Reason)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
	_, tagged := env.engine.store.State("alice")
	assert.False(t, tagged)
	_, tagged = env.engine.store.State("bob")
	assert.False(t, tagged)

	assert.Equal(t, constants.CallStatusRejected, env.history.status("c1"))
}

func TestRejectUnknownCallIsNoOp(t *testing.T) {
	env := newTestEnv(0)

	bob := env.connect(t, "bob")
	env.engine.RejectCall(context.Background(), "bob", "nope", "")

	assert.Equal(t, 0, bob.count(EventCallError))
}

func TestCancelCallNotifiesReceiver(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.CancelCall(ctx, "alice", "c1")

	data, ok := bob.last(EventCallCancelled)
	assert.True(t, ok)
	cancelled := data.(CallCancelledPayload)
	assert.Equal(t, "c1", cancelled.CallID)
	assert.Equal(t, "alice", cancelled.CallerID)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
}

func TestCancelCallOnlyByCaller(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.CancelCall(ctx, "bob", "c1")

	_, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
	assert.Equal(t, 0, alice.count(EventCallCancelled))
}

func TestEndCallNotifiesOtherParty(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)
	env.engine.EndCall(ctx, "alice", "c1", "")

	data, ok := bob.last(EventCallEnded)
	assert.True(t, ok)
	ended := data.(CallEndedPayload)
	assert.Equal(t, "c1", ended.CallID)
	assert.Equal(t, "alice", ended.EndedBy)
	assert.NotEmpty(t, ended.FormattedDuration)

	// the ender gets no echo
	assert.Equal(t, 0, alice.count(EventCallEnded))

	_, tagged := env.engine.store.State("alice")
	assert.False(t, tagged)
	_, tagged = env.engine.store.State("bob")
	assert.False(t, tagged)
}

func TestEndCallByReceiverNotifiesCaller(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)
	env.engine.EndCall(ctx, "bob", "c1", "")

	data, ok := alice.last(EventCallEnded)
	assert.True(t, ok)
	assert.Equal(t, "bob", data.(CallEndedPayload).EndedBy)
}

func TestEndCallByNonParticipantIgnored(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")
	env.connect(t, "carol")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.EndCall(ctx, "carol", "c1", "")

	_, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
}

func TestReceiverFreeForNewCallAfterEnd(t *testing.T) {
	env := newTestEnv(0)
	ctx := context.Background()

	env.connect(t, "alice")
	bob := env.connect(t, "bob")
	env.connect(t, "carol")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)
	env.engine.EndCall(ctx, "alice", "c1", "")

	env.engine.SendCallOffer(ctx, "carol", "bob", "c2", testOffer)

	assert.Equal(t, 2, bob.count(EventReceiveCallOffer))
}
