package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"callmesh-backend/internal/domain"
)

// CallEventRepository handles call event timelines in Cassandra
// Uses month bucketing so a long-lived call never grows one partition unbounded
type CallEventRepository struct {
	session *gocql.Session
}

// NewCallEventRepository creates a new CallEventRepository
func NewCallEventRepository(session *gocql.Session) *CallEventRepository {
	return &CallEventRepository{session: session}
}

// Append inserts a call event
func (r *CallEventRepository) Append(event *domain.CallEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Bucket == "" {
		event.Bucket = domain.CallEventBucket(event.CreatedAt)
	}

	query := `
		INSERT INTO call_events (
			call_id, bucket, created_at, user_id, event_type
		) VALUES (?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		event.CallID,
		event.Bucket,
		event.CreatedAt,
		event.UserID,
		event.EventType,
	).Exec()

	if err != nil {
		return fmt.Errorf("failed to append call event: %w", err)
	}

	return nil
}

// GetByCall retrieves events for a call within one month bucket, newest first
func (r *CallEventRepository) GetByCall(callID uuid.UUID, bucket string, limit int, pageState []byte) ([]*domain.CallEvent, []byte, error) {
	query := `
		SELECT call_id, bucket, created_at, user_id, event_type
		FROM call_events
		WHERE call_id = ? AND bucket = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, callID, bucket, limit).PageState(pageState).Iter()

	var events []*domain.CallEvent

	for {
		event := &domain.CallEvent{}
		if !iter.Scan(
			&event.CallID,
			&event.Bucket,
			&event.CreatedAt,
			&event.UserID,
			&event.EventType,
		) {
			break
		}
		events = append(events, event)
	}

	nextPageState := iter.PageState()

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch call events: %w", err)
	}

	return events, nextPageState, nil
}
