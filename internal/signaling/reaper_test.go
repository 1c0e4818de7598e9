package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReapExpiredRingingCall(t *testing.T) {
	env := newTestEnv(time.Millisecond)
	ctx := context.Background()

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	time.Sleep(5 * time.Millisecond)

	env.engine.reapExpired(ctx)

	data, ok := bob.last(EventCallCancelled)
	assert.True(t, ok)
	cancelled := data.(CallCancelledPayload)
	assert.Equal(t, "c1", cancelled.CallID)
	assert.Equal(t, "Call timed out", cancelled.Reason)

	data, ok = alice.last(EventCallEnded)
	assert.True(t, ok)
	assert.Equal(t, "No answer", data.(CallEndedPayload).Reason)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.False(t, found)
	_, tagged := env.engine.store.State("bob")
	assert.False(t, tagged)

	assert.Equal(t, "timed_out", env.history.status("c1"))
	assert.Equal(t, 1, env.notifier.missedCount())
}

func TestReapSkipsAcceptedCalls(t *testing.T) {
	env := newTestEnv(time.Millisecond)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.AcceptCall(ctx, "bob", "c1", testAnswer)
	time.Sleep(5 * time.Millisecond)

	env.engine.reapExpired(ctx)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
}

func TestReapSkipsFreshRingingCalls(t *testing.T) {
	env := newTestEnv(time.Minute)
	ctx := context.Background()

	env.connect(t, "alice")
	env.connect(t, "bob")

	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)
	env.engine.reapExpired(ctx)

	_, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
}

func TestReaperDisabledWithZeroTimeout(t *testing.T) {
	env := newTestEnv(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// must not spawn anything or panic
	env.engine.StartReaper(ctx, time.Millisecond)

	env.connect(t, "alice")
	env.connect(t, "bob")
	env.engine.SendCallOffer(ctx, "alice", "bob", "c1", testOffer)

	time.Sleep(10 * time.Millisecond)
	_, found := env.engine.store.CallSnapshot("c1")
	assert.True(t, found)
}
