package pushtoken

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callmesh-backend/internal/repository/redis"
	"callmesh-backend/pkg/push"
	"callmesh-backend/pkg/response"
)

// Handler manages device push token registration
type Handler struct {
	tokens *redis.PushTokenRepository
}

// NewHandler creates a new push token handler
func NewHandler(tokens *redis.PushTokenRepository) *Handler {
	return &Handler{tokens: tokens}
}

type registerTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=fcm apns"`
	Platform string `json:"platform" binding:"omitempty,oneof=ios android"`
}

// RegisterToken stores a device token for the authenticated user so call
// invites can reach the device when no signaling connection is open
// POST /v1/push/tokens
func (h *Handler) RegisterToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "token and type are required")
		return
	}

	token := &push.Token{
		ID:       uuid.New(),
		UserID:   userID,
		Token:    req.Token,
		Type:     push.TokenType(req.Type),
		Platform: req.Platform,
		Active:   true,
	}
	if err := h.tokens.Store(c.Request.Context(), token); err != nil {
		response.InternalError(c, "Failed to register push token")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"id": token.ID})
}

// DeleteToken removes a device token, typically on logout
// DELETE /v1/push/tokens/:token
func (h *Handler) DeleteToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	tokenStr := c.Param("token")
	existing, err := h.tokens.GetByToken(c.Request.Context(), tokenStr)
	if err != nil {
		response.InternalError(c, "Failed to look up push token")
		return
	}
	if existing == nil || existing.UserID != userID {
		response.NotFound(c, "Push token not found")
		return
	}

	if err := h.tokens.Delete(c.Request.Context(), tokenStr); err != nil {
		response.InternalError(c, "Failed to delete push token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	return userID, ok
}
