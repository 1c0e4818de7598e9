package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/errors"
)

// Store owns every live call record and per-user state tag. A single mutex
// guards all of it so each operation is one atomic critical section; in
// particular "check busy and mark ringing" can never interleave with a
// concurrent offer to the same receiver.
type Store struct {
	mu     sync.Mutex
	calls  map[string]*OneToOneCall
	groups map[string]*GroupCall
	states map[string]string
}

// NewStore creates an empty call state store
func NewStore() *Store {
	return &Store{
		calls:  make(map[string]*OneToOneCall),
		groups: make(map[string]*GroupCall),
		states: make(map[string]string),
	}
}

// State returns the call state tag for a user
func (s *Store) State(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	return state, ok
}

// SetState sets the call state tag for a user
func (s *Store) SetState(userID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state
}

// ClearState removes the call state tag for a user
func (s *Store) ClearState(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Lookup reports whether a call id names a one-to-one call, a group call,
// or nothing. This is the single dispatch point for the shared accept/end
// entry points.
func (s *Store) Lookup(callID string) CallKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[callID]; ok {
		return CallKindGroup
	}
	if _, ok := s.calls[callID]; ok {
		return CallKindOneToOne
	}
	return CallKindNone
}

// BeginCall atomically busy-checks the receiver and creates the ringing
// call record. Returns UserBusy if the receiver is already ringing or
// in a call; no state is mutated in that case.
func (s *Store) BeginCall(call *OneToOneCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[call.ReceiverID]; ok {
		if state == constants.CallStateRinging || state == constants.CallStateInCall {
			return errors.UserBusyError(call.ReceiverID)
		}
	}

	call.Status = constants.CallStatusRinging
	s.calls[call.CallID] = call
	s.states[call.CallerID] = constants.CallStateCalling
	s.states[call.ReceiverID] = constants.CallStateRinging
	return nil
}

// AcceptCall transitions a ringing call to accepted for the matching
// receiver and tags both participants in-call. Returns the updated record.
func (s *Store) AcceptCall(callID, receiverID string, answer json.RawMessage) (*OneToOneCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok || call.ReceiverID != receiverID {
		return nil, errors.CallNotFoundError()
	}

	now := time.Now()
	call.Status = constants.CallStatusAccepted
	call.Answer = answer
	call.AcceptedAt = &now

	s.states[call.CallerID] = constants.CallStateInCall
	s.states[call.ReceiverID] = constants.CallStateInCall

	snapshot := *call
	return &snapshot, nil
}

// RejectCall discards a call if the given user is its receiver.
// Not-found is a no-op, not an error.
func (s *Store) RejectCall(callID, receiverID string) (*OneToOneCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok || call.ReceiverID != receiverID {
		return nil, false
	}

	call.Status = constants.CallStatusRejected
	snapshot := *call
	s.removeCallLocked(callID)
	return &snapshot, true
}

// CancelCall discards a call if the given user is its caller
func (s *Store) CancelCall(callID, callerID string) (*OneToOneCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok || call.CallerID != callerID {
		return nil, false
	}

	snapshot := *call
	s.removeCallLocked(callID)
	return &snapshot, true
}

// EndCall discards a call if the given user participates in it and clears
// both participants' state tags
func (s *Store) EndCall(callID, userID string) (*OneToOneCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok || (call.CallerID != userID && call.ReceiverID != userID) {
		return nil, false
	}

	snapshot := *call
	s.removeCallLocked(callID)
	return &snapshot, true
}

// DropCall removes a call record unconditionally, clearing both tags.
// Used when the receiver turns out to be offline right after creation.
func (s *Store) DropCall(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCallLocked(callID)
}

// removeCallLocked removes the record and both participants' state tags.
// Caller must hold s.mu.
func (s *Store) removeCallLocked(callID string) {
	call, ok := s.calls[callID]
	if !ok {
		return
	}
	delete(s.calls, callID)
	delete(s.states, call.CallerID)
	delete(s.states, call.ReceiverID)
}

// CreateGroup registers a group call with the initiator already joined and
// every listed invitee (de-duplicated, initiator excluded) as invited.
// The initiator's state tag becomes in-group-call.
func (s *Store) CreateGroup(group *GroupCall, inviteeIDs []string, initiatorConn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	group.Status = constants.CallStatusActive
	group.Participants = []*GroupCallParticipant{
		{
			UserID:    group.CallerID,
			UserName:  group.CallerName,
			Conn:      initiatorConn,
			HasJoined: true,
			InvitedAt: now,
			JoinedAt:  &now,
		},
	}

	seen := map[string]bool{group.CallerID: true}
	for _, inviteeID := range inviteeIDs {
		if inviteeID == "" || seen[inviteeID] {
			continue
		}
		seen[inviteeID] = true
		group.Participants = append(group.Participants, &GroupCallParticipant{
			UserID:    inviteeID,
			UserName:  "User",
			HasJoined: false,
			InvitedAt: now,
		})
	}

	s.groups[group.CallID] = group
	s.states[group.CallerID] = constants.CallStateInGroupCall
}

// MarkInviteeRinging tags an invitee as ringing once their invitation has
// a live connection to go to
func (s *Store) MarkInviteeRinging(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = constants.CallStateRinging
}

// JoinGroup marks the invited participant joined, records their connection
// and tags them in-group-call. Returns a snapshot of the group after the
// mutation so notifications observe the joined state.
func (s *Store) JoinGroup(callID, userID string, conn Conn) (*GroupCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[callID]
	if !ok {
		return nil, errors.CallNotFoundError()
	}

	participant := group.participant(userID)
	if participant == nil {
		return nil, errors.NotInvitedError()
	}

	now := time.Now()
	participant.HasJoined = true
	participant.JoinedAt = &now
	participant.Conn = conn
	s.states[userID] = constants.CallStateInGroupCall

	return snapshotGroupLocked(group), nil
}

// RejectGroup clears the declining user's state tag. The participant record
// stays invited; declining never terminates the call for others.
func (s *Store) RejectGroup(callID, userID string) (*GroupCall, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[callID]
	if !ok {
		return nil, "", false
	}

	participant := group.participant(userID)
	if participant == nil {
		return nil, "", false
	}

	delete(s.states, userID)
	return snapshotGroupLocked(group), participant.UserName, true
}

// LeaveGroup removes the participant and clears their state tag. Returns
// the group snapshot after removal and the leaver's display name.
func (s *Store) LeaveGroup(callID, userID string) (*GroupCall, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[callID]
	if !ok {
		return nil, "", false
	}

	idx := -1
	for i, p := range group.Participants {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, "", false
	}

	leftName := group.Participants[idx].UserName
	group.Participants = append(group.Participants[:idx], group.Participants[idx+1:]...)
	delete(s.states, userID)

	return snapshotGroupLocked(group), leftName, true
}

// RemoveGroup discards the call record and clears every joined
// participant's state tag. Returns the final snapshot.
func (s *Store) RemoveGroup(callID string) (*GroupCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[callID]
	if !ok {
		return nil, false
	}
	delete(s.groups, callID)

	for _, p := range group.Participants {
		if p.HasJoined {
			delete(s.states, p.UserID)
		}
	}

	return snapshotGroupLocked(group), true
}

// TakeCallsInvolving removes and returns every one-to-one call where the
// user is caller or receiver, clearing the affected state tags
func (s *Store) TakeCallsInvolving(userID string) []*OneToOneCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var taken []*OneToOneCall
	for callID, call := range s.calls {
		if call.CallerID == userID || call.ReceiverID == userID {
			snapshot := *call
			taken = append(taken, &snapshot)
			s.removeCallLocked(callID)
		}
	}
	return taken
}

// GroupsInvolving returns the ids of every group call holding a participant
// record for the user, joined or invited
func (s *Store) GroupsInvolving(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var callIDs []string
	for callID, group := range s.groups {
		if group.participant(userID) != nil {
			callIDs = append(callIDs, callID)
		}
	}
	return callIDs
}

// TakeExpiredRinging removes and returns every one-to-one call still
// ringing after the given timeout, clearing the affected state tags
func (s *Store) TakeExpiredRinging(timeout time.Duration) []*OneToOneCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	var expired []*OneToOneCall
	for callID, call := range s.calls {
		if call.Status == constants.CallStatusRinging && call.StartTime.Before(cutoff) {
			snapshot := *call
			expired = append(expired, &snapshot)
			s.removeCallLocked(callID)
		}
	}
	return expired
}

// CallSnapshot returns a copy of a live one-to-one call
func (s *Store) CallSnapshot(callID string) (*OneToOneCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok {
		return nil, false
	}
	snapshot := *call
	return &snapshot, true
}

// GroupSnapshot returns a copy of a live group call and its participants
func (s *Store) GroupSnapshot(callID string) (*GroupCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[callID]
	if !ok {
		return nil, false
	}
	return snapshotGroupLocked(group), true
}

// ActiveCounts returns the number of live one-to-one and group calls
func (s *Store) ActiveCounts() (oneToOne, group int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls), len(s.groups)
}

// snapshotGroupLocked copies a group call and its participant records so
// callers can read them after the lock is released. Caller must hold s.mu.
func snapshotGroupLocked(group *GroupCall) *GroupCall {
	snapshot := *group
	snapshot.Participants = make([]*GroupCallParticipant, len(group.Participants))
	for i, p := range group.Participants {
		copied := *p
		snapshot.Participants[i] = &copied
	}
	return &snapshot
}
