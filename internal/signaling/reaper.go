package signaling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// StartReaper launches the background task that expires calls left ringing
// past the configured timeout. A zero timeout disables reaping entirely.
// The goroutine exits when ctx is cancelled.
func (e *Engine) StartReaper(ctx context.Context, interval time.Duration) {
	if e.ringTimeout <= 0 {
		logger.Info("Ringing-call reaper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("Ringing-call reaper started",
			zap.Duration("ring_timeout", e.ringTimeout),
			zap.Duration("interval", interval))

		for {
			select {
			case <-ctx.Done():
				logger.Info("Ringing-call reaper stopped")
				return
			case <-ticker.C:
				e.reapExpired(ctx)
			}
		}
	}()
}

// reapExpired cancels every one-to-one call that has been ringing longer
// than the timeout. The receiver sees the offer withdrawn; the caller
// learns nobody answered.
func (e *Engine) reapExpired(ctx context.Context) {
	expired := e.store.TakeExpiredRinging(e.ringTimeout)
	if len(expired) == 0 {
		return
	}
	e.updateActiveCallGauges()

	for _, call := range expired {
		metrics.CallsReapedTotal.Inc()

		e.sendTo(call.ReceiverID, EventCallCancelled, CallCancelledPayload{
			CallID:   call.CallID,
			CallerID: call.CallerID,
			Reason:   "Call timed out",
		})
		e.sendTo(call.CallerID, EventCallEnded, CallEndedPayload{
			CallID:            call.CallID,
			EndedBy:           call.ReceiverID,
			Duration:          0,
			FormattedDuration: formatCallDuration(0),
			Reason:            "No answer",
		})

		e.recordCallStatus(ctx, call.CallID, "timed_out")
		e.appendEvent(ctx, call.CallID, call.CallerID, "call_timed_out")
		e.pushMissedCall(ctx, CallInvite{
			CallID:     call.CallID,
			CallerID:   call.CallerID,
			CallerName: call.CallerName,
			CallKind:   "one_to_one",
			CalleeIDs:  []string{call.ReceiverID},
		})

		logger.Info("Ringing call reaped",
			zap.String("call_id", call.CallID),
			zap.String("caller_id", call.CallerID),
			zap.String("receiver_id", call.ReceiverID))
	}
}
