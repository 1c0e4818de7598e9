package signaling

import (
	"encoding/json"
	"time"
)

// Outbound event names pushed to clients
const (
	EventUserOnlineStatus    = "UserOnlineStatus"
	EventReceiveCallOffer    = "ReceiveCallOffer"
	EventCallOfferSent       = "CallOfferSent"
	EventUserBusy            = "UserBusy"
	EventUserOffline         = "UserOffline"
	EventCallAccepted        = "CallAccepted"
	EventCallRejected        = "CallRejected"
	EventCallCancelled       = "CallCancelled"
	EventCallEnded           = "CallEnded"
	EventGroupCallStarted    = "GroupCallStarted"
	EventGroupCallJoined     = "GroupCallJoined"
	EventGroupCallUpdate     = "GroupCallUpdate"
	EventGroupCallEnded      = "GroupCallEnded"
	EventReceiveICECandidate = "ReceiveICECandidate"
	EventUserMediaStatus     = "UserMediaStatus"
	EventCallError           = "CallError"
)

// GroupCallUpdate update types
const (
	UpdateParticipantJoined   = "participantJoined"
	UpdateParticipantLeft     = "participantLeft"
	UpdateParticipantRejected = "participantRejected"
)

// UserOnlineStatusPayload is broadcast to every connection on presence changes
type UserOnlineStatusPayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ReceiveCallOfferPayload delivers an offer to a callee or group invitee
type ReceiveCallOfferPayload struct {
	Type        string          `json:"type"` // call-offer, group-call-offer
	CallID      string          `json:"callId"`
	CallerID    string          `json:"callerId"`
	CallerName  string          `json:"callerName"`
	CallerPhoto string          `json:"callerPhoto,omitempty"`
	GroupID     string          `json:"groupId,omitempty"`
	GroupName   string          `json:"groupName,omitempty"`
	GroupPhoto  string          `json:"groupPhoto,omitempty"`
	Offer       json.RawMessage `json:"offer"`
	Timestamp   time.Time       `json:"timestamp"`
	IsGroupCall bool            `json:"isGroupCall"`
}

// CallOfferSentPayload acknowledges a relayed offer to the caller
type CallOfferSentPayload struct {
	CallID     string `json:"callId"`
	ReceiverID string `json:"receiverId"`
	Status     string `json:"status"`
}

// UserBusyPayload reports a busy receiver to the caller
type UserBusyPayload struct {
	UserID string `json:"userId"`
}

// UserOfflinePayload reports an offline receiver to the caller
type UserOfflinePayload struct {
	UserID string `json:"userId"`
}

// CallAcceptedPayload relays an answer to the original caller
type CallAcceptedPayload struct {
	CallID        string          `json:"callId"`
	ReceiverID    string          `json:"receiverId,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
	Answer        json.RawMessage `json:"answer"`
	IsGroupCall   bool            `json:"isGroupCall"`
}

// CallRejectedPayload notifies the caller of a declined offer
type CallRejectedPayload struct {
	CallID     string `json:"callId"`
	Reason     string `json:"reason"`
	ReceiverID string `json:"receiverId"`
}

// CallCancelledPayload notifies the receiver of a withdrawn offer
type CallCancelledPayload struct {
	CallID   string `json:"callId"`
	CallerID string `json:"callerId"`
	Reason   string `json:"reason,omitempty"`
}

// CallEndedPayload notifies the other party that a one-to-one call ended
type CallEndedPayload struct {
	CallID            string  `json:"callId"`
	EndedBy           string  `json:"endedBy"`
	Duration          float64 `json:"duration"`
	FormattedDuration string  `json:"formattedDuration,omitempty"`
	Reason            string  `json:"reason"`
}

// GroupCallStartedPayload acknowledges group call creation to the initiator
type GroupCallStartedPayload struct {
	CallID           string `json:"callId"`
	GroupID          string `json:"groupId"`
	GroupName        string `json:"groupName"`
	ParticipantCount int    `json:"participantCount"`
	InvitedCount     int    `json:"invitedCount"`
}

// GroupCallJoinedPayload acknowledges a join to the joining participant
type GroupCallJoinedPayload struct {
	CallID           string `json:"callId"`
	GroupID          string `json:"groupId"`
	GroupName        string `json:"groupName"`
	ParticipantCount int    `json:"participantCount"`
}

// GroupCallUpdatePayload informs joined participants about membership changes
type GroupCallUpdatePayload struct {
	CallID           string `json:"callId"`
	UpdateType       string `json:"updateType"`
	ParticipantID    string `json:"participantId"`
	ParticipantName  string `json:"participantName,omitempty"`
	ParticipantCount int    `json:"participantCount,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// GroupCallEndedPayload notifies every joined participant of termination
type GroupCallEndedPayload struct {
	CallID            string  `json:"callId"`
	EndedBy           string  `json:"endedBy"`
	GroupID           string  `json:"groupId"`
	GroupName         string  `json:"groupName"`
	Duration          float64 `json:"duration"`
	FormattedDuration string  `json:"formattedDuration,omitempty"`
	Reason            string  `json:"reason"`
	ParticipantCount  int     `json:"participantCount"`
}

// ReceiveICECandidatePayload relays an ICE candidate
type ReceiveICECandidatePayload struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
	SenderID  string          `json:"senderId"`
}

// UserMediaStatusPayload relays a mute/camera change
type UserMediaStatusPayload struct {
	CallID    string `json:"callId"`
	UserID    string `json:"userId"`
	MediaType string `json:"mediaType"`
	Enabled   bool   `json:"enabled"`
}

// CallErrorPayload reports a failed operation to the caller only
type CallErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
