package signaling

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"callmesh-backend/pkg/errors"
	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// Engine coordinates call signaling across the presence registry and the
// call state store. It owns no sockets; session handlers feed it decoded
// client actions and it pushes events back through Conn handles.
//
// Collaborators (history, event log, presence mirror, push) are strictly
// best-effort: their failures are logged and counted but never change
// signaling outcomes.
type Engine struct {
	registry *Registry
	store    *Store

	directory Directory
	history   History
	events    EventLog
	presence  PresenceStore
	notifier  Notifier

	ringTimeout time.Duration
}

// EngineOptions carries the optional collaborators and tuning knobs
type EngineOptions struct {
	History     History
	EventLog    EventLog
	Presence    PresenceStore
	Notifier    Notifier
	RingTimeout time.Duration
}

// NewEngine creates a signaling engine. Directory is required; everything
// in opts may be nil/zero.
func NewEngine(directory Directory, opts EngineOptions) *Engine {
	return &Engine{
		registry:    NewRegistry(),
		store:       NewStore(),
		directory:   directory,
		history:     opts.History,
		events:      opts.EventLog,
		presence:    opts.Presence,
		notifier:    opts.Notifier,
		ringTimeout: opts.RingTimeout,
	}
}

// Registry exposes the presence registry for session handlers
func (e *Engine) Registry() *Registry {
	return e.registry
}

// OnlineUsers returns the ids of all users with a live connection
func (e *Engine) OnlineUsers() []string {
	return e.registry.Online()
}

// IsOnline reports whether a user holds a live connection
func (e *Engine) IsOnline(userID string) bool {
	return e.registry.IsOnline(userID)
}

// HandleConnect registers a new session. If the user already had a live
// connection the old handle is closed; its later teardown must not disturb
// the new session. Everyone is told the user came online.
func (e *Engine) HandleConnect(ctx context.Context, userID string, conn Conn) {
	prev := e.registry.Connect(userID, conn)
	if prev != nil {
		metrics.SignalingDisconnectionTotal.WithLabelValues("replaced").Inc()
		prev.Close()
	}

	metrics.SignalingConnectionsActive.Set(float64(e.registry.Count()))

	if e.presence != nil {
		if err := e.presence.SetOnline(ctx, userID); err != nil {
			logger.Warn("Failed to mirror online presence",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	e.broadcast(EventUserOnlineStatus, UserOnlineStatusPayload{
		UserID: userID,
		Online: true,
	})

	logger.Info("User connected to signaling",
		zap.String("user_id", userID),
		zap.Int("online_count", e.registry.Count()))
}

// HandleDisconnect tears down a session: every call the user was part of
// is reconciled, the registry entry is dropped (only if this handle still
// owns it), and everyone is told the user went offline.
func (e *Engine) HandleDisconnect(ctx context.Context, userID string, conn Conn) {
	if !e.registry.Disconnect(userID, conn) {
		// A newer session replaced this one; its calls and presence must
		// survive the old handle's teardown.
		return
	}
	metrics.SignalingConnectionsActive.Set(float64(e.registry.Count()))

	e.reconcileDisconnect(ctx, userID)

	if e.presence != nil {
		if err := e.presence.SetOffline(ctx, userID); err != nil {
			logger.Warn("Failed to mirror offline presence",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	e.broadcast(EventUserOnlineStatus, UserOnlineStatusPayload{
		UserID: userID,
		Online: false,
	})

	logger.Info("User disconnected from signaling",
		zap.String("user_id", userID),
		zap.Int("online_count", e.registry.Count()))
}

// Heartbeat refreshes liveness for a connected user
func (e *Engine) Heartbeat(ctx context.Context, userID string) {
	e.registry.Touch(userID)
	if e.presence != nil {
		if err := e.presence.TouchLastSeen(ctx, userID); err != nil {
			logger.Debug("Failed to refresh presence",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

// sendTo delivers an event to a user's live connection. Returns false when
// the user is offline or the event was dropped.
func (e *Engine) sendTo(userID, event string, data interface{}) bool {
	conn, ok := e.registry.Lookup(userID)
	if !ok {
		return false
	}
	if !conn.Send(event, data) {
		metrics.EventsDroppedTotal.WithLabelValues(event).Inc()
		return false
	}
	metrics.EventsSentTotal.WithLabelValues(event).Inc()
	return true
}

// broadcast fans an event out to every live connection
func (e *Engine) broadcast(event string, data interface{}) {
	e.registry.Broadcast(event, data)
	metrics.EventsSentTotal.WithLabelValues(event).Inc()
}

// sendError reports a failed operation back to the acting user only
func (e *Engine) sendError(userID string, err error) {
	appErr := errors.GetAppError(err)
	e.sendTo(userID, EventCallError, CallErrorPayload{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	})
}

// resolveCaller looks up display data, degrading to a placeholder so a
// directory outage never blocks call setup
func (e *Engine) resolveCaller(ctx context.Context, userID string) (name, photo string) {
	name, photo, err := e.directory.Resolve(ctx, userID)
	if err != nil {
		logger.Warn("Failed to resolve caller profile",
			zap.String("user_id", userID),
			zap.Error(err))
		return "User", ""
	}
	if name == "" {
		name = "User"
	}
	return name, photo
}

// recordCallStart writes the history row and the audit event for a new call
func (e *Engine) recordCallStart(ctx context.Context, rec HistoryRecord) {
	if e.history != nil {
		if err := e.history.RecordCallStart(ctx, rec); err != nil {
			metrics.HistoryWriteTotal.WithLabelValues("error").Inc()
			logger.Error("Failed to record call start",
				zap.String("call_id", rec.CallID),
				zap.Error(err))
		} else {
			metrics.HistoryWriteTotal.WithLabelValues("ok").Inc()
		}
	}
	e.appendEvent(ctx, rec.CallID, rec.CallerID, "call_started")
}

// recordCallStatus updates the history row status
func (e *Engine) recordCallStatus(ctx context.Context, callID, status string) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordCallStatus(ctx, callID, status); err != nil {
		metrics.HistoryWriteTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to record call status",
			zap.String("call_id", callID),
			zap.String("status", status),
			zap.Error(err))
		return
	}
	metrics.HistoryWriteTotal.WithLabelValues("ok").Inc()
}

// recordCallEnd closes out the history row with the final duration
func (e *Engine) recordCallEnd(ctx context.Context, callID string, seconds int) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordCallDuration(ctx, callID, seconds); err != nil {
		metrics.HistoryWriteTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to record call end",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}
	metrics.HistoryWriteTotal.WithLabelValues("ok").Inc()
}

// appendEvent adds a row to the call audit trail
func (e *Engine) appendEvent(ctx context.Context, callID, userID, eventType string) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ctx, callID, userID, eventType); err != nil {
		logger.Debug("Failed to append call event",
			zap.String("call_id", callID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// pushInvite notifies offline callees' devices about an incoming call
func (e *Engine) pushInvite(ctx context.Context, invite CallInvite) {
	if e.notifier == nil || len(invite.CalleeIDs) == 0 {
		return
	}
	if err := e.notifier.CallInvite(ctx, invite); err != nil {
		logger.Warn("Failed to push call invite",
			zap.String("call_id", invite.CallID),
			zap.Error(err))
	}
}

// pushMissedCall notifies a callee's devices about a call nobody answered
func (e *Engine) pushMissedCall(ctx context.Context, invite CallInvite) {
	if e.notifier == nil || len(invite.CalleeIDs) == 0 {
		return
	}
	if err := e.notifier.MissedCall(ctx, invite); err != nil {
		logger.Warn("Failed to push missed-call notification",
			zap.String("call_id", invite.CallID),
			zap.Error(err))
	}
}

// updateActiveCallGauges refreshes the active-call gauges from the store
func (e *Engine) updateActiveCallGauges() {
	oneToOne, group := e.store.ActiveCounts()
	metrics.CallsActive.WithLabelValues("one_to_one").Set(float64(oneToOne))
	metrics.CallsActive.WithLabelValues("group").Set(float64(group))
}

// formatCallDuration renders a duration for call-ended notifications
func formatCallDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%d sec", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%d min %d sec", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%d hr %d min", seconds/3600, (seconds%3600)/60)
}
