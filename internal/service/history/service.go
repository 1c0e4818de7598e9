package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"callmesh-backend/internal/domain"
	"callmesh-backend/internal/repository/cassandra"
	"callmesh-backend/internal/repository/cockroach"
	"callmesh-backend/internal/signaling"
)

// Service persists call lifecycle data: summary rows in CockroachDB and the
// fine-grained event timeline in Cassandra. The event log is optional; a
// nil repository turns Append into a no-op.
type Service struct {
	calls  *cockroach.CallHistoryRepository
	events *cassandra.CallEventRepository
}

// NewService creates a call history service. events may be nil.
func NewService(calls *cockroach.CallHistoryRepository, events *cassandra.CallEventRepository) *Service {
	return &Service{calls: calls, events: events}
}

// RecordCallStart inserts the summary row for a new call
func (s *Service) RecordCallStart(ctx context.Context, rec signaling.HistoryRecord) error {
	callID, err := uuid.Parse(rec.CallID)
	if err != nil {
		return fmt.Errorf("invalid call id: %w", err)
	}
	callerID, err := uuid.Parse(rec.CallerID)
	if err != nil {
		return fmt.Errorf("invalid caller id: %w", err)
	}

	record := &domain.CallRecord{
		CallID:    callID,
		CallerID:  callerID,
		Kind:      rec.Kind,
		Status:    "ringing",
		StartedAt: rec.StartedAt,
	}
	if rec.CalleeID != "" {
		calleeID, err := uuid.Parse(rec.CalleeID)
		if err != nil {
			return fmt.Errorf("invalid callee id: %w", err)
		}
		record.CalleeID = &calleeID
	}

	return s.calls.Create(ctx, record)
}

// RecordCallStatus updates the summary row status
func (s *Service) RecordCallStatus(ctx context.Context, callID, status string) error {
	id, err := uuid.Parse(callID)
	if err != nil {
		return fmt.Errorf("invalid call id: %w", err)
	}
	return s.calls.UpdateStatus(ctx, id, status)
}

// RecordCallDuration closes out the summary row with the final duration
func (s *Service) RecordCallDuration(ctx context.Context, callID string, seconds int) error {
	id, err := uuid.Parse(callID)
	if err != nil {
		return fmt.Errorf("invalid call id: %w", err)
	}
	return s.calls.End(ctx, id, seconds)
}

// Append adds one event to the call timeline
func (s *Service) Append(ctx context.Context, callID, userID, eventType string) error {
	if s.events == nil {
		return nil
	}

	id, err := uuid.Parse(callID)
	if err != nil {
		return fmt.Errorf("invalid call id: %w", err)
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	return s.events.Append(&domain.CallEvent{
		CallID:    id,
		UserID:    uid,
		EventType: eventType,
	})
}
