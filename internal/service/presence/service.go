package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callmesh-backend/internal/repository/cockroach"
	"callmesh-backend/internal/repository/redis"
	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/logger"
)

// Service mirrors the in-process presence registry into Redis so other
// services can read who is online, and keeps the durable user status column
// in sync. The user repository is optional.
type Service struct {
	presence *redis.PresenceRepository
	users    *cockroach.UserRepository
}

// NewService creates a presence mirror service. users may be nil.
func NewService(presenceRepo *redis.PresenceRepository, users *cockroach.UserRepository) *Service {
	return &Service{presence: presenceRepo, users: users}
}

// SetOnline marks a user online in Redis and in the users table
func (s *Service) SetOnline(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	if err := s.presence.SetUserOnline(ctx, id); err != nil {
		return err
	}
	s.persistStatus(ctx, id, constants.UserStatusOnline)
	return nil
}

// SetOffline marks a user offline and stamps last-seen
func (s *Service) SetOffline(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	if err := s.presence.SetUserOffline(ctx, id); err != nil {
		return err
	}
	s.persistStatus(ctx, id, constants.UserStatusOffline)
	return nil
}

// TouchLastSeen refreshes the presence TTL on a heartbeat
func (s *Service) TouchLastSeen(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	return s.presence.RefreshPresence(ctx, id)
}

// OnlineUsers returns the ids of users marked online in Redis
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := s.presence.GetOnlineUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(ids))
	for _, id := range ids {
		users = append(users, id.String())
	}
	return users, nil
}

// LastSeen returns when a user was last online, nil if unknown
func (s *Service) LastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	return s.presence.GetLastSeen(ctx, userID)
}

// persistStatus writes the status column, tolerating failures
func (s *Service) persistStatus(ctx context.Context, userID uuid.UUID, status string) {
	if s.users == nil {
		return
	}
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		logger.Warn("Failed to persist user status",
			zap.String("user_id", userID.String()),
			zap.String("status", status),
			zap.Error(err))
	}
}
