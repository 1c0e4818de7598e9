package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user entity in the system
// Maps to CockroachDB users table
type User struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Email       string    `json:"email" db:"email"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	AvatarKey   *string   `json:"-" db:"avatar_key"` // MinIO object key, resolved to a presigned URL
	Status      string    `json:"status" db:"status"` // online, offline, busy
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserResponse is the safe user representation returned to clients
type UserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Status      string    `json:"status"`
}

// ToResponse converts User to UserResponse with a resolved avatar URL
func (u *User) ToResponse(avatarURL *string) *UserResponse {
	return &UserResponse{
		UserID:      u.UserID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   avatarURL,
		Status:      u.Status,
	}
}
