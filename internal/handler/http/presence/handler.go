package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callmesh-backend/internal/service/directory"
	"callmesh-backend/internal/service/presence"
	"callmesh-backend/internal/signaling"
	"callmesh-backend/pkg/response"
)

// Handler exposes presence over REST for clients without a live socket
type Handler struct {
	engine    *signaling.Engine
	presence  *presence.Service
	directory *directory.Service
}

// NewHandler creates a new presence handler. presenceService and
// directoryService may be nil.
func NewHandler(engine *signaling.Engine, presenceService *presence.Service, directoryService *directory.Service) *Handler {
	return &Handler{
		engine:    engine,
		presence:  presenceService,
		directory: directoryService,
	}
}

// GetOnlineUsers returns everyone currently connected to this node
// GET /v1/presence/online
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	users := h.engine.OnlineUsers()
	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// GetUserPresence returns one user's online state and last-seen timestamp
// GET /v1/presence/:id
func (h *Handler) GetUserPresence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid user id")
		return
	}

	result := gin.H{
		"user_id": userID.String(),
		"online":  h.engine.IsOnline(userID.String()),
	}

	if h.presence != nil {
		if lastSeen, err := h.presence.LastSeen(c.Request.Context(), userID); err == nil && lastSeen != nil {
			result["last_seen"] = lastSeen
		}
	}

	if h.directory != nil {
		if profile, err := h.directory.ResolveResponse(c.Request.Context(), userID); err == nil {
			result["user"] = profile
		}
	}

	response.Success(c, http.StatusOK, result)
}
