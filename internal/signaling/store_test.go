package signaling

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/errors"
)

func ringingCall(callID, callerID, receiverID string) *OneToOneCall {
	return &OneToOneCall{
		CallID:     callID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		StartTime:  time.Now(),
	}
}

func TestBeginCallSetsStateTags(t *testing.T) {
	store := NewStore()

	err := store.BeginCall(ringingCall("c1", "alice", "bob"))
	assert.NoError(t, err)

	state, _ := store.State("alice")
	assert.Equal(t, constants.CallStateCalling, state)
	state, _ = store.State("bob")
	assert.Equal(t, constants.CallStateRinging, state)
	assert.Equal(t, CallKindOneToOne, store.Lookup("c1"))
}

func TestBeginCallRejectsBusyReceiver(t *testing.T) {
	store := NewStore()

	assert.NoError(t, store.BeginCall(ringingCall("c1", "alice", "bob")))

	err := store.BeginCall(ringingCall("c2", "carol", "bob"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeUserBusy))

	// the failed offer must leave nothing behind
	assert.Equal(t, CallKindNone, store.Lookup("c2"))
	_, tagged := store.State("carol")
	assert.False(t, tagged)
}

func TestBeginCallConcurrentOffersOnlyOneWins(t *testing.T) {
	store := NewStore()

	const offers = 50
	var wg sync.WaitGroup
	results := make([]error, offers)
	for i := 0; i < offers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.BeginCall(ringingCall(fmt.Sprintf("c%d", i), fmt.Sprintf("caller%d", i), "bob"))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.True(t, errors.HasCode(err, errors.ErrCodeUserBusy))
		}
	}
	assert.Equal(t, 1, won)
}

func TestAcceptCallRequiresMatchingReceiver(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.BeginCall(ringingCall("c1", "alice", "bob")))

	_, err := store.AcceptCall("c1", "carol", testAnswer)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCallNotFound))

	call, err := store.AcceptCall("c1", "bob", testAnswer)
	assert.NoError(t, err)
	assert.Equal(t, constants.CallStatusAccepted, call.Status)
	assert.NotNil(t, call.AcceptedAt)
}

func TestTakeCallsInvolvingClearsEverything(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.BeginCall(ringingCall("c1", "alice", "bob")))
	assert.NoError(t, store.BeginCall(ringingCall("c2", "carol", "dave")))

	taken := store.TakeCallsInvolving("bob")
	assert.Len(t, taken, 1)
	assert.Equal(t, "c1", taken[0].CallID)

	assert.Equal(t, CallKindNone, store.Lookup("c1"))
	assert.Equal(t, CallKindOneToOne, store.Lookup("c2"))
	_, tagged := store.State("alice")
	assert.False(t, tagged)
}

func TestTakeExpiredRinging(t *testing.T) {
	store := NewStore()

	old := ringingCall("old", "alice", "bob")
	old.StartTime = time.Now().Add(-2 * time.Minute)
	assert.NoError(t, store.BeginCall(old))
	assert.NoError(t, store.BeginCall(ringingCall("fresh", "carol", "dave")))

	expired := store.TakeExpiredRinging(time.Minute)
	assert.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].CallID)
	assert.Equal(t, CallKindOneToOne, store.Lookup("fresh"))
}

func TestCreateGroupExcludesInitiatorFromInvitees(t *testing.T) {
	store := NewStore()

	group := &GroupCall{CallID: "g1", GroupID: "team", CallerID: "alice", CallerName: "Alice", StartTime: time.Now()}
	store.CreateGroup(group, []string{"alice", "bob", "carol", "bob", ""}, nil)

	snapshot, ok := store.GroupSnapshot("g1")
	assert.True(t, ok)
	assert.Len(t, snapshot.Participants, 3)
	assert.Equal(t, 1, snapshot.joinedCount())
	assert.Equal(t, CallKindGroup, store.Lookup("g1"))

	state, _ := store.State("alice")
	assert.Equal(t, constants.CallStateInGroupCall, state)
}

func TestJoinGroupNotInvited(t *testing.T) {
	store := NewStore()
	group := &GroupCall{CallID: "g1", CallerID: "alice", StartTime: time.Now()}
	store.CreateGroup(group, []string{"bob"}, nil)

	_, err := store.JoinGroup("g1", "dave", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotInvited))

	_, err = store.JoinGroup("missing", "bob", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCallNotFound))
}

func TestLeaveGroupRemovesParticipant(t *testing.T) {
	store := NewStore()
	group := &GroupCall{CallID: "g1", CallerID: "alice", StartTime: time.Now()}
	store.CreateGroup(group, []string{"bob"}, nil)
	_, err := store.JoinGroup("g1", "bob", nil)
	assert.NoError(t, err)

	snapshot, _, ok := store.LeaveGroup("g1", "bob")
	assert.True(t, ok)
	assert.Nil(t, snapshot.participant("bob"))
	assert.Equal(t, 1, snapshot.joinedCount())

	_, tagged := store.State("bob")
	assert.False(t, tagged)
}

func TestRemoveGroupClearsJoinedTags(t *testing.T) {
	store := NewStore()
	group := &GroupCall{CallID: "g1", CallerID: "alice", StartTime: time.Now()}
	store.CreateGroup(group, []string{"bob", "carol"}, nil)
	_, err := store.JoinGroup("g1", "bob", nil)
	assert.NoError(t, err)

	snapshot, ok := store.RemoveGroup("g1")
	assert.True(t, ok)
	assert.Equal(t, 2, snapshot.joinedCount())
	assert.Equal(t, CallKindNone, store.Lookup("g1"))

	for _, userID := range []string{"alice", "bob"} {
		_, tagged := store.State(userID)
		assert.False(t, tagged, userID)
	}
}

func TestGroupSnapshotIsDetached(t *testing.T) {
	store := NewStore()
	group := &GroupCall{CallID: "g1", CallerID: "alice", StartTime: time.Now()}
	store.CreateGroup(group, []string{"bob"}, nil)

	snapshot, _ := store.GroupSnapshot("g1")
	snapshot.Participants[0].HasJoined = false

	fresh, _ := store.GroupSnapshot("g1")
	assert.True(t, fresh.Participants[0].HasJoined)
}
