package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"callmesh-backend/internal/repository/redis"
	"callmesh-backend/internal/signaling"
	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/jwt"
	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// Client action names accepted over the signaling socket
const (
	ActionSendCallOffer    = "SendCallOffer"
	ActionAcceptCall       = "AcceptCall"
	ActionRejectCall       = "RejectCall"
	ActionCancelCall       = "CancelCall"
	ActionEndCall          = "EndCall"
	ActionStartGroupCall   = "StartGroupCall"
	ActionAcceptGroupCall  = "AcceptGroupCall"
	ActionLeaveGroupCall   = "LeaveGroupCall"
	ActionEndGroupCall     = "EndGroupCall"
	ActionSendICECandidate = "SendICECandidate"
	ActionSendMediaStatus  = "SendMediaStatus"
	ActionHeartbeat        = "Heartbeat"
)

// clientMessage is the inbound request envelope
type clientMessage struct {
	Action     string          `json:"action"`
	CallID     string          `json:"callId,omitempty"`
	ReceiverID string          `json:"receiverId,omitempty"`
	GroupID    string          `json:"groupId,omitempty"`
	GroupName  string          `json:"groupName,omitempty"`
	GroupPhoto string          `json:"groupPhoto,omitempty"`
	InviteeIDs []string        `json:"inviteeIds,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	Enabled    bool            `json:"enabled,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// serverMessage is the outbound event envelope
type serverMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// GetAllowedOrigins returns allowed WebSocket origins from environment or defaults
func GetAllowedOrigins() map[string]bool {
	allowedOrigins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8080": true,
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return allowedOrigins
}

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Reject empty origins - require explicit origin for security
			return false
		}

		allowedOrigins := GetAllowedOrigins()
		for allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// SignalingHandler owns the WebSocket boundary for call signaling: it
// authenticates connections, pumps frames, and feeds decoded actions into
// the engine.
type SignalingHandler struct {
	engine     *signaling.Engine
	jwtManager *jwt.JWTManager
	sessions   *redis.SessionRepository

	sendBuffer int

	// Semaphore for limiting concurrent connections
	maxConnections int
	semaphore      chan struct{}
}

// NewSignalingHandler creates the signaling WebSocket handler.
// sessions may be nil when cookie-based auth is not deployed.
func NewSignalingHandler(engine *signaling.Engine, jwtManager *jwt.JWTManager, sessions *redis.SessionRepository, maxConnections, sendBuffer int) *SignalingHandler {
	if maxConnections <= 0 {
		maxConnections = constants.MaxSignalingConnections
	}
	if sendBuffer <= 0 {
		sendBuffer = constants.ClientSendBuffer
	}
	return &SignalingHandler{
		engine:         engine,
		jwtManager:     jwtManager,
		sessions:       sessions,
		sendBuffer:     sendBuffer,
		maxConnections: maxConnections,
		semaphore:      make(chan struct{}, maxConnections),
	}
}

// signalingClient is one live WebSocket session. It satisfies the engine's
// Conn contract: Send never blocks, dropping events when the buffer fills.
type signalingClient struct {
	handler *SignalingHandler
	conn    *websocket.Conn
	userID  string

	send      chan serverMessage
	closeOnce sync.Once
	done      chan struct{}
}

// Send queues an event for delivery. Reports false when the session is
// closing or its buffer is full; the event is dropped, never blocked on.
func (c *signalingClient) Send(event string, data interface{}) bool {
	msg := serverMessage{Event: event, Data: data, Timestamp: time.Now()}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close asks the pumps to shut the session down. Safe to call repeatedly
// and from any goroutine.
func (c *signalingClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ServeWS upgrades the connection and runs the session until it drops
func (h *SignalingHandler) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case h.semaphore <- struct{}{}:
		defer func() {
			<-h.semaphore
		}()
	default:
		metrics.SignalingConnectionTotal.WithLabelValues("rejected").Inc()
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	userID, ok := h.resolveIdentity(c)
	if !ok {
		metrics.SignalingConnectionTotal.WithLabelValues("unauthorized").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := signalingUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	metrics.SignalingConnectionTotal.WithLabelValues("accepted").Inc()

	client := &signalingClient{
		handler: h,
		conn:    conn,
		userID:  userID,
		send:    make(chan serverMessage, h.sendBuffer),
		done:    make(chan struct{}),
	}

	h.engine.HandleConnect(c.Request.Context(), userID, client)

	go client.writePump()
	client.readPump()
}

// resolveIdentity finds the authenticated user behind the request. Three
// sources are accepted in order: the auth middleware's context claim, a
// `token` query parameter, and a session cookie resolved through Redis.
// Browsers cannot set Authorization headers on WebSocket upgrades, hence
// the fallbacks.
func (h *SignalingHandler) resolveIdentity(c *gin.Context) (string, bool) {
	if userIDVal, exists := c.Get("user_id"); exists {
		if userID, ok := userIDVal.(uuid.UUID); ok {
			return userID.String(), true
		}
	}

	if token := c.Query("token"); token != "" {
		claims, err := h.jwtManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Rejected WebSocket token", zap.Error(err))
			return "", false
		}
		return claims.UserID.String(), true
	}

	if h.sessions != nil {
		if sessionID, err := c.Cookie("session_id"); err == nil && sessionID != "" {
			session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
			if err != nil {
				logger.Debug("Rejected WebSocket session cookie", zap.Error(err))
				return "", false
			}
			return session.UserID.String(), true
		}
	}

	return "", false
}

// readPump reads client actions until the connection drops, then runs the
// disconnect teardown exactly once
func (c *signalingClient) readPump() {
	defer func() {
		c.teardown()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		c.handler.engine.Heartbeat(context.Background(), c.userID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.SignalingDisconnectionTotal.WithLabelValues("error").Inc()
				logger.Debug("WebSocket connection closed unexpectedly",
					zap.String("user_id", c.userID),
					zap.Error(err))
			} else {
				metrics.SignalingDisconnectionTotal.WithLabelValues("close").Inc()
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("Invalid message format from WebSocket",
				zap.String("user_id", c.userID),
				zap.Error(err))
			continue
		}

		c.dispatch(msg)
	}
}

// dispatch routes one decoded action into the engine. A panic in a handler
// must not take the whole connection down with it.
func (c *signalingClient) dispatch(msg clientMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic handling signaling action",
				zap.String("user_id", c.userID),
				zap.String("action", msg.Action),
				zap.Any("panic", r))
			c.Send(signaling.EventCallError, signaling.CallErrorPayload{
				Code:    "INTERNAL_ERROR",
				Message: "Internal server error",
			})
		}
	}()

	ctx := context.Background()
	engine := c.handler.engine

	switch msg.Action {
	case ActionSendCallOffer:
		engine.SendCallOffer(ctx, c.userID, msg.ReceiverID, msg.CallID, msg.Offer)
	case ActionAcceptCall:
		engine.AcceptCall(ctx, c.userID, msg.CallID, msg.Answer)
	case ActionRejectCall:
		engine.RejectCall(ctx, c.userID, msg.CallID, msg.Reason)
	case ActionCancelCall:
		engine.CancelCall(ctx, c.userID, msg.CallID)
	case ActionEndCall:
		engine.EndCall(ctx, c.userID, msg.CallID, msg.Reason)
	case ActionStartGroupCall:
		engine.StartGroupCall(ctx, c.userID, msg.CallID, msg.GroupID, msg.GroupName, msg.GroupPhoto, msg.InviteeIDs, msg.Offer)
	case ActionAcceptGroupCall:
		engine.AcceptGroupCall(ctx, c.userID, msg.CallID, msg.Answer)
	case ActionLeaveGroupCall:
		engine.LeaveGroupCall(ctx, c.userID, msg.CallID)
	case ActionEndGroupCall:
		engine.EndGroupCall(ctx, c.userID, msg.CallID)
	case ActionSendICECandidate:
		engine.SendICECandidate(ctx, c.userID, msg.CallID, msg.Candidate)
	case ActionSendMediaStatus:
		engine.SendMediaStatus(ctx, c.userID, msg.CallID, msg.MediaType, msg.Enabled)
	case ActionHeartbeat:
		engine.Heartbeat(ctx, c.userID)
	default:
		logger.Debug("Unknown signaling action",
			zap.String("user_id", c.userID),
			zap.String("action", msg.Action))
		c.Send(signaling.EventCallError, signaling.CallErrorPayload{
			Code:    "INVALID_INPUT",
			Message: "Unknown action: " + msg.Action,
		})
	}
}

// teardown runs the disconnect path. Each step is isolated so a failure in
// one cannot skip the rest.
func (c *signalingClient) teardown() {
	c.Close()

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic during disconnect teardown",
					zap.String("user_id", c.userID),
					zap.Any("panic", r))
			}
		}()
		c.handler.engine.HandleDisconnect(context.Background(), c.userID, c)
	}()
}

// writePump serializes all writes to the connection: queued events plus
// keepalive pings. Exits when the session closes or a write fails.
func (c *signalingClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug("WebSocket write failed",
					zap.String("user_id", c.userID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
