package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallRecord represents a persisted call history entry
// Maps to CockroachDB call_records table
type CallRecord struct {
	CallID    uuid.UUID  `json:"call_id" db:"call_id"`
	CallerID  uuid.UUID  `json:"caller_id" db:"caller_id"`
	CalleeID  *uuid.UUID `json:"callee_id,omitempty" db:"callee_id"` // nil for group calls
	Kind      string     `json:"kind" db:"kind"`                     // one_to_one, group
	Status    string     `json:"status" db:"status"`                 // ringing, accepted, rejected, active, ended
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Duration  int        `json:"duration,omitempty" db:"duration"` // in seconds
}

// CallEvent represents a single signaling event in a call's timeline
// Maps to Cassandra call_events table, partitioned by call and month bucket
type CallEvent struct {
	CallID    uuid.UUID `json:"call_id" cql:"call_id"`
	Bucket    string    `json:"bucket" cql:"bucket"` // YYYY-MM
	UserID    uuid.UUID `json:"user_id" cql:"user_id"`
	EventType string    `json:"event_type" cql:"event_type"` // offer_sent, accepted, rejected, cancelled, joined, left, ended, timed_out
	CreatedAt time.Time `json:"created_at" cql:"created_at"`
}

// CallEventBucket returns the month bucket for a timestamp
func CallEventBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}
