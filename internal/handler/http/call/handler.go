package call

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callmesh-backend/internal/repository/cassandra"
	"callmesh-backend/internal/repository/cockroach"
	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/response"
)

// Handler serves call history over REST
type Handler struct {
	history *cockroach.CallHistoryRepository
	events  *cassandra.CallEventRepository
}

// NewHandler creates a new call handler. events may be nil.
func NewHandler(history *cockroach.CallHistoryRepository, events *cassandra.CallEventRepository) *Handler {
	return &Handler{history: history, events: events}
}

// GetHistory returns the authenticated user's call records, newest first
// GET /v1/calls/history?limit=20&offset=0
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	limit := queryInt(c, "limit", constants.DefaultPageSize)
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	offset := queryInt(c, "offset", 0)

	records, err := h.history.GetUserCalls(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(c, "Failed to get call history")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls":  records,
		"limit":  limit,
		"offset": offset,
	})
}

// GetCall returns one call record the user participated in
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call id")
		return
	}

	record, err := h.history.GetByID(c.Request.Context(), callID)
	if err != nil {
		response.NotFound(c, "Call not found")
		return
	}
	if record.CallerID != userID && (record.CalleeID == nil || *record.CalleeID != userID) {
		response.NotFound(c, "Call not found")
		return
	}

	response.Success(c, http.StatusOK, record)
}

// GetCallEvents returns the event timeline of a call within one month bucket
// GET /v1/calls/:id/events?bucket=2026-08&limit=50&page_state=...
func (h *Handler) GetCallEvents(c *gin.Context) {
	if h.events == nil {
		response.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Call event timeline is not enabled")
		return
	}
	if _, ok := currentUserID(c); !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call id")
		return
	}

	bucket := c.Query("bucket")
	if bucket == "" {
		response.ValidationError(c, "bucket is required (YYYY-MM)")
		return
	}

	limit := queryInt(c, "limit", constants.DefaultPageSize)
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	var pageState []byte
	if encoded := c.Query("page_state"); encoded != "" {
		pageState, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			response.ValidationError(c, "Invalid page_state")
			return
		}
	}

	events, nextPageState, err := h.events.GetByCall(callID, bucket, limit, pageState)
	if err != nil {
		response.InternalError(c, "Failed to get call events")
		return
	}

	result := gin.H{"events": events}
	if len(nextPageState) > 0 {
		result["next_page_state"] = base64.StdEncoding.EncodeToString(nextPageState)
	}
	response.Success(c, http.StatusOK, result)
}

// currentUserID reads the auth middleware's user claim
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	return userID, ok
}

// queryInt parses a non-negative integer query parameter with a default
func queryInt(c *gin.Context, name string, fallback int) int {
	value := c.Query(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
