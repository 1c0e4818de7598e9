package signaling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// reconcileDisconnect drives every call involving a dropped user to a
// consistent state: one-to-one calls end with a disconnect reason, group
// calls lose the participant (auto-ending when too few remain).
func (e *Engine) reconcileDisconnect(ctx context.Context, userID string) {
	for _, call := range e.store.TakeCallsInvolving(userID) {
		duration := time.Since(call.StartTime)

		otherID := call.ReceiverID
		if userID == call.ReceiverID {
			otherID = call.CallerID
		}
		e.sendTo(otherID, EventCallEnded, CallEndedPayload{
			CallID:            call.CallID,
			EndedBy:           userID,
			Duration:          duration.Seconds(),
			FormattedDuration: formatCallDuration(duration),
			Reason:            "User disconnected",
		})

		metrics.CallDurationSeconds.WithLabelValues("one_to_one").Observe(duration.Seconds())
		e.recordCallEnd(ctx, call.CallID, int(duration.Seconds()))
		e.appendEvent(ctx, call.CallID, userID, "call_dropped")

		logger.Info("Call ended by disconnect",
			zap.String("call_id", call.CallID),
			zap.String("user_id", userID))
	}

	for _, callID := range e.store.GroupsInvolving(userID) {
		e.LeaveGroupCall(ctx, userID, callID)
	}

	e.store.ClearState(userID)
	e.updateActiveCallGauges()
}
