package signaling

import (
	"context"
	"encoding/json"
	"time"
)

// Conn is the handle the core holds for a live client connection.
// Send queues an event without blocking; it reports false when the event
// was dropped because the peer's buffer is full or the connection is gone.
type Conn interface {
	Send(event string, data interface{}) bool
	Close()
}

// Call kinds as returned by Store.Lookup
type CallKind int

const (
	CallKindNone CallKind = iota
	CallKindOneToOne
	CallKindGroup
)

// OneToOneCall is a live one-to-one call record. Owned exclusively by the Store.
type OneToOneCall struct {
	CallID      string
	CallerID    string
	ReceiverID  string
	CallerName  string
	CallerPhoto string
	Offer       json.RawMessage
	Answer      json.RawMessage
	Status      string // ringing, accepted
	StartTime   time.Time
	AcceptedAt  *time.Time
}

// GroupCall is a live group call record. Owned exclusively by the Store.
type GroupCall struct {
	CallID       string
	GroupID      string
	CallerID     string
	CallerName   string
	CallerPhoto  string
	GroupName    string
	GroupPhoto   string
	Offer        json.RawMessage
	Participants []*GroupCallParticipant
	StartTime    time.Time
	Status       string // active
}

// GroupCallParticipant tracks one invitee of a group call. A participant
// starts invited and transitions to joined at most once per call.
type GroupCallParticipant struct {
	UserID    string
	UserName  string
	Conn      Conn
	HasJoined bool
	InvitedAt time.Time
	JoinedAt  *time.Time
}

// joinedCount returns the number of participants that have joined
func (g *GroupCall) joinedCount() int {
	n := 0
	for _, p := range g.Participants {
		if p.HasJoined {
			n++
		}
	}
	return n
}

// participant returns the record for userID, nil if not invited
func (g *GroupCall) participant(userID string) *GroupCallParticipant {
	for _, p := range g.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Directory resolves a user identity to display data for call offers
type Directory interface {
	Resolve(ctx context.Context, userID string) (displayName, photoURL string, err error)
}

// HistoryRecord describes a call for the history store
type HistoryRecord struct {
	CallID    string
	CallerID  string
	CalleeID  string // empty for group calls
	Kind      string // one_to_one, group
	StartedAt time.Time
}

// History persists call lifecycle records. All calls are best-effort from
// the engine's perspective; failures are logged and never fail signaling.
type History interface {
	RecordCallStart(ctx context.Context, rec HistoryRecord) error
	RecordCallStatus(ctx context.Context, callID, status string) error
	RecordCallDuration(ctx context.Context, callID string, seconds int) error
}

// EventLog appends signaling events to the call audit trail
type EventLog interface {
	Append(ctx context.Context, callID, userID, eventType string) error
}

// PresenceStore mirrors presence durably so other services can read it
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	TouchLastSeen(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// CallInvite describes an incoming call for push delivery
type CallInvite struct {
	CallID     string
	CallerID   string
	CallerName string
	CallKind   string // one_to_one, group
	CalleeIDs  []string
}

// Notifier pushes call notifications to devices without a live connection
type Notifier interface {
	CallInvite(ctx context.Context, invite CallInvite) error
	MissedCall(ctx context.Context, invite CallInvite) error
}
