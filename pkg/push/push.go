package push

import (
	"context"
	"fmt"

	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal, low
	Sound    string            `json:"sound,omitempty"`
	Badge    *int              `json:"badge,omitempty"`
	Category string            `json:"category,omitempty"`
}

// CallInvite contains data for an incoming-call notification
type CallInvite struct {
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id"`
	CallerName string `json:"caller_name"`
	CallKind   string `json:"call_kind"` // one_to_one, group
	Timestamp  int64  `json:"timestamp"`
}

// TokenType represents the type of push notification token
type TokenType string

const (
	TokenTypeFCM  TokenType = "fcm"  // Firebase Cloud Messaging
	TokenTypeAPNs TokenType = "apns" // Apple Push Notification Service
)

// Token represents a push notification token for a user
type Token struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Token    string    `json:"token"`
	Type     TokenType `json:"type"`
	Platform string    `json:"platform,omitempty"` // ios, android
	Active   bool      `json:"active"`
}

// TokenRepository defines interface for storing and retrieving push tokens
type TokenRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	MarkInactive(ctx context.Context, tokenID uuid.UUID) error
}

// Service sends call-related push notifications
type Service struct {
	provider Provider
	repo     TokenRepository
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
	}
}

// SendCallInvite notifies callees about an incoming call so the app can
// surface it even when no signaling connection is open
func (s *Service) SendCallInvite(ctx context.Context, invite *CallInvite, calleeIDs []uuid.UUID) error {
	notification := &Notification{
		Title:    "Incoming Call",
		Body:     fmt.Sprintf("%s is calling you", invite.CallerName),
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":        "call_invite",
			"call_id":     invite.CallID,
			"caller_id":   invite.CallerID,
			"caller_name": invite.CallerName,
			"call_kind":   invite.CallKind,
			"timestamp":   fmt.Sprintf("%d", invite.Timestamp),
		},
	}

	allTokens := s.collectTokens(ctx, calleeIDs)
	if len(allTokens) == 0 {
		metrics.PushNotificationTotal.WithLabelValues("skipped").Inc()
		logger.Debug("No active push tokens found for callees",
			zap.String("call_id", invite.CallID),
			zap.Int("callee_count", len(calleeIDs)))
		return nil
	}

	result, err := s.provider.Send(ctx, notification, allTokens)
	if err != nil {
		metrics.PushNotificationTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to send call invite notification",
			zap.String("call_id", invite.CallID),
			zap.Int("token_count", len(allTokens)),
			zap.Error(err))
		return fmt.Errorf("failed to send call invite: %w", err)
	}

	metrics.PushNotificationTotal.WithLabelValues("ok").Inc()
	logger.Info("Call invite notification sent",
		zap.String("call_id", invite.CallID),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount))

	if len(result.InvalidTokens) > 0 {
		s.handleInvalidTokens(ctx, result.InvalidTokens)
	}

	return nil
}

// SendMissedCall notifies a callee about a call they did not answer
func (s *Service) SendMissedCall(ctx context.Context, invite *CallInvite, calleeID uuid.UUID) error {
	notification := &Notification{
		Title:    "Missed Call",
		Body:     fmt.Sprintf("You missed a call from %s", invite.CallerName),
		Priority: "normal",
		Sound:    "default",
		Data: map[string]string{
			"type":        "missed_call",
			"call_id":     invite.CallID,
			"caller_id":   invite.CallerID,
			"caller_name": invite.CallerName,
		},
	}

	allTokens := s.collectTokens(ctx, []uuid.UUID{calleeID})
	if len(allTokens) == 0 {
		metrics.PushNotificationTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	result, err := s.provider.Send(ctx, notification, allTokens)
	if err != nil {
		metrics.PushNotificationTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to send missed call notification",
			zap.String("call_id", invite.CallID),
			zap.Error(err))
		return err
	}

	metrics.PushNotificationTotal.WithLabelValues("ok").Inc()

	if len(result.InvalidTokens) > 0 {
		s.handleInvalidTokens(ctx, result.InvalidTokens)
	}

	return nil
}

// collectTokens gathers active token strings for the given users
func (s *Service) collectTokens(ctx context.Context, userIDs []uuid.UUID) []string {
	var all []string
	for _, userID := range userIDs {
		tokens, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			logger.Warn("Failed to get push tokens for user",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			continue
		}

		for _, token := range tokens {
			if token.Active {
				all = append(all, token.Token)
			}
		}
	}
	return all
}

// handleInvalidTokens marks invalid tokens as inactive
func (s *Service) handleInvalidTokens(ctx context.Context, invalidTokens []string) {
	for _, tokenStr := range invalidTokens {
		token, err := s.repo.GetByToken(ctx, tokenStr)
		if err == nil && token != nil {
			if err := s.repo.MarkInactive(ctx, token.ID); err != nil {
				logger.Warn("Failed to mark token as inactive",
					zap.String("token_id", token.ID.String()),
					zap.Error(err))
			}
		}
	}
}

// MockProvider is a mock implementation for development/testing
type MockProvider struct {
	NotificationsSent int
}

// Send implements Provider interface
func (m *MockProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.NotificationsSent++

	logger.Debug("MockProvider: Sending notification",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)))

	return &SendResult{
		SuccessCount: len(tokens),
	}, nil
}
