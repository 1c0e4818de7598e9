// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout is the deadline applied to each outbound WebSocket write
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Signaling constants
const (
	// DefaultRingTimeout is how long a one-to-one call may stay ringing before
	// the reaper cancels it. Zero disables reaping.
	DefaultRingTimeout = 60 * time.Second

	// ReapInterval is how often the ringing-call reaper scans the store
	ReapInterval = 10 * time.Second

	// ClientSendBuffer is the per-connection outbound event buffer size.
	// Events are dropped, never blocked on, when the buffer is full.
	ClientSendBuffer = 256

	// MaxSignalingConnections is the default cap on concurrent WebSocket connections
	MaxSignalingConnections = 1000
)

// Call status constants
const (
	// CallStatusRinging indicates a call is waiting to be answered
	CallStatusRinging = "ringing"

	// CallStatusAccepted indicates a one-to-one call has been answered
	CallStatusAccepted = "accepted"

	// CallStatusRejected indicates the receiver declined the call
	CallStatusRejected = "rejected"

	// CallStatusActive indicates a group call is in progress
	CallStatusActive = "active"

	// CallStatusEnded indicates a call has ended
	CallStatusEnded = "ended"
)

// Per-user call state tags
const (
	// CallStateCalling marks a user waiting for their outgoing offer to be answered
	CallStateCalling = "calling"

	// CallStateRinging marks a user with a pending incoming offer or invitation
	CallStateRinging = "ringing"

	// CallStateInCall marks a user in an accepted one-to-one call
	CallStateInCall = "in-call"

	// CallStateInGroupCall marks a user joined to a group call
	CallStateInGroupCall = "in-group-call"
)

// User status constants
const (
	// UserStatusOnline indicates a user currently holds a live connection
	UserStatusOnline = "online"

	// UserStatusOffline indicates a user has no live connection
	UserStatusOffline = "offline"
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Storage constants
const (
	// PhotoURLExpiry is the validity period for presigned profile photo URLs
	PhotoURLExpiry = 15 * time.Minute
)

// Push notification constants
const (
	// PushTokenExpiry is the retention period for a user's push token index
	PushTokenExpiry = 30 * 24 * time.Hour
)

// Pagination constants
const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 20

	// MaxPageSize is the maximum number of items per page
	MaxPageSize = 100
)
