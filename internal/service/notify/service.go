package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"callmesh-backend/internal/signaling"
	"callmesh-backend/pkg/push"
)

// Service adapts the push notification stack to the signaling engine's
// Notifier contract, translating string identities to parsed ids.
type Service struct {
	push *push.Service
}

// NewService creates a notify service over the push stack
func NewService(pushService *push.Service) *Service {
	return &Service{push: pushService}
}

// CallInvite pushes an incoming-call notification to every callee device
func (s *Service) CallInvite(ctx context.Context, invite signaling.CallInvite) error {
	calleeIDs := make([]uuid.UUID, 0, len(invite.CalleeIDs))
	for _, calleeID := range invite.CalleeIDs {
		id, err := uuid.Parse(calleeID)
		if err != nil {
			return fmt.Errorf("invalid callee id %q: %w", calleeID, err)
		}
		calleeIDs = append(calleeIDs, id)
	}

	return s.push.SendCallInvite(ctx, &push.CallInvite{
		CallID:     invite.CallID,
		CallerID:   invite.CallerID,
		CallerName: invite.CallerName,
		CallKind:   invite.CallKind,
		Timestamp:  time.Now().Unix(),
	}, calleeIDs)
}

// MissedCall pushes a missed-call notification after an unanswered ring
func (s *Service) MissedCall(ctx context.Context, invite signaling.CallInvite) error {
	if len(invite.CalleeIDs) == 0 {
		return nil
	}
	calleeID, err := uuid.Parse(invite.CalleeIDs[0])
	if err != nil {
		return fmt.Errorf("invalid callee id %q: %w", invite.CalleeIDs[0], err)
	}

	return s.push.SendMissedCall(ctx, &push.CallInvite{
		CallID:     invite.CallID,
		CallerID:   invite.CallerID,
		CallerName: invite.CallerName,
		CallKind:   invite.CallKind,
		Timestamp:  time.Now().Unix(),
	}, calleeID)
}
