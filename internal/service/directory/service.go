package directory

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"callmesh-backend/internal/domain"
	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/logger"
)

// UserReader provides access to user profile rows
type UserReader interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Service resolves user identities to display profiles for call offers.
// Avatar object keys are exchanged for short-lived presigned MinIO URLs so
// clients never need storage credentials.
type Service struct {
	users  UserReader
	minio  *minio.Client
	bucket string
}

// NewService creates a new directory service. The MinIO client may be nil,
// in which case avatars are omitted.
func NewService(users UserReader, minioClient *minio.Client, bucket string) *Service {
	return &Service{
		users:  users,
		minio:  minioClient,
		bucket: bucket,
	}
}

// Resolve returns the display name and avatar URL for a user
func (s *Service) Resolve(ctx context.Context, userID string) (displayName string, photoURL string, err error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", "", fmt.Errorf("invalid user id: %w", err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve user: %w", err)
	}

	displayName = user.DisplayName
	if displayName == "" {
		displayName = user.Username
	}

	if s.minio != nil && user.AvatarKey != nil && *user.AvatarKey != "" {
		presigned, err := s.presignAvatar(ctx, *user.AvatarKey)
		if err != nil {
			logger.Warn("Failed to presign avatar URL",
				zap.String("user_id", userID),
				zap.Error(err))
		} else {
			photoURL = presigned
		}
	}

	return displayName, photoURL, nil
}

// presignAvatar builds a short-lived download URL for an avatar object
func (s *Service) presignAvatar(ctx context.Context, objectKey string) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", "inline")

	presignedURL, err := s.minio.PresignedGetObject(ctx, s.bucket, objectKey, constants.PhotoURLExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}

	return presignedURL.String(), nil
}

// ResolveResponse returns the full safe profile for HTTP responses
func (s *Service) ResolveResponse(ctx context.Context, userID uuid.UUID) (*domain.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var avatarURL *string
	if s.minio != nil && user.AvatarKey != nil && *user.AvatarKey != "" {
		presigned, err := s.presignAvatar(ctx, *user.AvatarKey)
		if err == nil {
			avatarURL = &presigned
		}
	}

	return user.ToResponse(avatarURL), nil
}
