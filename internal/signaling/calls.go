package signaling

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"callmesh-backend/pkg/constants"
	"callmesh-backend/pkg/errors"
	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// SendCallOffer places a one-to-one call. The busy check and the ringing
// record creation happen in one atomic store operation; a busy or offline
// receiver is reported to the caller and leaves no state behind.
func (e *Engine) SendCallOffer(ctx context.Context, callerID, receiverID, callID string, offer json.RawMessage) {
	if callID == "" || receiverID == "" {
		e.sendError(callerID, errors.InvalidInputError("callId and receiverId are required"))
		return
	}
	if receiverID == callerID {
		e.sendError(callerID, errors.InvalidInputError("Cannot call yourself"))
		return
	}

	callerName, callerPhoto := e.resolveCaller(ctx, callerID)

	call := &OneToOneCall{
		CallID:      callID,
		CallerID:    callerID,
		ReceiverID:  receiverID,
		CallerName:  callerName,
		CallerPhoto: callerPhoto,
		Offer:       offer,
		StartTime:   time.Now(),
	}

	if err := e.store.BeginCall(call); err != nil {
		metrics.CallOffersTotal.WithLabelValues("busy").Inc()
		e.sendTo(callerID, EventUserBusy, UserBusyPayload{UserID: receiverID})
		return
	}

	delivered := e.sendTo(receiverID, EventReceiveCallOffer, ReceiveCallOfferPayload{
		Type:        "call-offer",
		CallID:      callID,
		CallerID:    callerID,
		CallerName:  callerName,
		CallerPhoto: callerPhoto,
		Offer:       offer,
		Timestamp:   call.StartTime,
		IsGroupCall: false,
	})
	if !delivered {
		e.store.DropCall(callID)
		metrics.CallOffersTotal.WithLabelValues("offline").Inc()
		e.sendTo(callerID, EventUserOffline, UserOfflinePayload{UserID: receiverID})

		e.pushInvite(ctx, CallInvite{
			CallID:     callID,
			CallerID:   callerID,
			CallerName: callerName,
			CallKind:   "one_to_one",
			CalleeIDs:  []string{receiverID},
		})
		return
	}

	metrics.CallOffersTotal.WithLabelValues("sent").Inc()
	e.updateActiveCallGauges()

	e.sendTo(callerID, EventCallOfferSent, CallOfferSentPayload{
		CallID:     callID,
		ReceiverID: receiverID,
		Status:     constants.CallStatusRinging,
	})

	e.recordCallStart(ctx, HistoryRecord{
		CallID:    callID,
		CallerID:  callerID,
		CalleeID:  receiverID,
		Kind:      "one_to_one",
		StartedAt: call.StartTime,
	})

	logger.Info("Call offer sent",
		zap.String("call_id", callID),
		zap.String("caller_id", callerID),
		zap.String("receiver_id", receiverID))
}

// AcceptCall answers an incoming call. Group call ids are delegated to the
// group join path so clients can answer either kind through one action.
func (e *Engine) AcceptCall(ctx context.Context, userID, callID string, answer json.RawMessage) {
	switch e.store.Lookup(callID) {
	case CallKindGroup:
		e.AcceptGroupCall(ctx, userID, callID, answer)
		return
	case CallKindNone:
		e.sendError(userID, errors.CallNotFoundError())
		return
	}

	call, err := e.store.AcceptCall(callID, userID, answer)
	if err != nil {
		e.sendError(userID, err)
		return
	}

	e.sendTo(call.CallerID, EventCallAccepted, CallAcceptedPayload{
		CallID:      callID,
		ReceiverID:  userID,
		Answer:      answer,
		IsGroupCall: false,
	})

	e.recordCallStatus(ctx, callID, constants.CallStatusAccepted)
	e.appendEvent(ctx, callID, userID, "call_accepted")

	logger.Info("Call accepted",
		zap.String("call_id", callID),
		zap.String("receiver_id", userID))
}

// RejectCall declines an incoming one-to-one call. For a group call the
// decline only clears the decliner's state and informs the host. Unknown
// call ids are a silent no-op; the caller may have cancelled concurrently.
func (e *Engine) RejectCall(ctx context.Context, userID, callID, reason string) {
	if e.store.Lookup(callID) == CallKindGroup {
		e.rejectGroupCall(ctx, userID, callID, reason)
		return
	}

	call, ok := e.store.RejectCall(callID, userID)
	if !ok {
		return
	}
	e.updateActiveCallGauges()

	if reason == "" {
		reason = "Call declined"
	}
	e.sendTo(call.CallerID, EventCallRejected, CallRejectedPayload{
		CallID:     callID,
		Reason:     reason,
		ReceiverID: userID,
	})

	e.recordCallStatus(ctx, callID, constants.CallStatusRejected)
	e.appendEvent(ctx, callID, userID, "call_rejected")

	logger.Info("Call rejected",
		zap.String("call_id", callID),
		zap.String("receiver_id", userID))
}

// CancelCall withdraws an outgoing offer before it is answered. Only the
// caller may cancel; anyone else's attempt is ignored.
func (e *Engine) CancelCall(ctx context.Context, userID, callID string) {
	call, ok := e.store.CancelCall(callID, userID)
	if !ok {
		return
	}
	e.updateActiveCallGauges()

	e.sendTo(call.ReceiverID, EventCallCancelled, CallCancelledPayload{
		CallID:   callID,
		CallerID: userID,
	})

	e.recordCallStatus(ctx, callID, "cancelled")
	e.appendEvent(ctx, callID, userID, "call_cancelled")

	logger.Info("Call cancelled",
		zap.String("call_id", callID),
		zap.String("caller_id", userID))
}

// EndCall hangs up a one-to-one call. Either participant may end it; the
// other party is told who ended it and how long it ran.
func (e *Engine) EndCall(ctx context.Context, userID, callID, reason string) {
	if e.store.Lookup(callID) == CallKindGroup {
		e.EndGroupCall(ctx, userID, callID)
		return
	}

	call, ok := e.store.EndCall(callID, userID)
	if !ok {
		return
	}
	e.updateActiveCallGauges()

	duration := time.Since(call.StartTime)
	if reason == "" {
		reason = "Call ended"
	}

	otherID := call.ReceiverID
	if userID == call.ReceiverID {
		otherID = call.CallerID
	}
	e.sendTo(otherID, EventCallEnded, CallEndedPayload{
		CallID:            callID,
		EndedBy:           userID,
		Duration:          duration.Seconds(),
		FormattedDuration: formatCallDuration(duration),
		Reason:            reason,
	})

	metrics.CallDurationSeconds.WithLabelValues("one_to_one").Observe(duration.Seconds())
	e.recordCallEnd(ctx, callID, int(duration.Seconds()))
	e.appendEvent(ctx, callID, userID, "call_ended")

	logger.Info("Call ended",
		zap.String("call_id", callID),
		zap.String("ended_by", userID),
		zap.Duration("duration", duration))
}
