package signaling

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"callmesh-backend/pkg/errors"
	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/metrics"
)

// StartGroupCall creates a group call with the initiator already joined and
// invites every listed member. Online invitees get the offer immediately
// and start ringing; offline invitees get a push notification instead.
func (e *Engine) StartGroupCall(ctx context.Context, initiatorID, callID, groupID, groupName, groupPhoto string, inviteeIDs []string, offer json.RawMessage) {
	if callID == "" || groupID == "" {
		e.sendError(initiatorID, errors.InvalidInputError("callId and groupId are required"))
		return
	}

	callerName, callerPhoto := e.resolveCaller(ctx, initiatorID)
	initiatorConn, _ := e.registry.Lookup(initiatorID)

	group := &GroupCall{
		CallID:      callID,
		GroupID:     groupID,
		CallerID:    initiatorID,
		CallerName:  callerName,
		CallerPhoto: callerPhoto,
		GroupName:   groupName,
		GroupPhoto:  groupPhoto,
		Offer:       offer,
		StartTime:   time.Now(),
	}
	e.store.CreateGroup(group, inviteeIDs, initiatorConn)
	e.updateActiveCallGauges()

	offerPayload := ReceiveCallOfferPayload{
		Type:        "group-call-offer",
		CallID:      callID,
		CallerID:    initiatorID,
		CallerName:  callerName,
		CallerPhoto: callerPhoto,
		GroupID:     groupID,
		GroupName:   groupName,
		GroupPhoto:  groupPhoto,
		Offer:       offer,
		Timestamp:   group.StartTime,
		IsGroupCall: true,
	}

	// invited counts delivered invitations only; the ack reports it next to
	// the total participant-record count so the initiator sees K of N reached
	var offline []string
	invited := 0
	for _, p := range group.Participants {
		if p.UserID == initiatorID {
			continue
		}
		if e.registry.IsOnline(p.UserID) {
			e.store.MarkInviteeRinging(p.UserID)
			if e.sendTo(p.UserID, EventReceiveCallOffer, offerPayload) {
				invited++
				metrics.GroupCallInvitesTotal.WithLabelValues("delivered").Inc()
				continue
			}
			e.store.ClearState(p.UserID)
		}
		metrics.GroupCallInvitesTotal.WithLabelValues("offline").Inc()
		offline = append(offline, p.UserID)
	}

	e.sendTo(initiatorID, EventGroupCallStarted, GroupCallStartedPayload{
		CallID:           callID,
		GroupID:          groupID,
		GroupName:        groupName,
		ParticipantCount: len(group.Participants),
		InvitedCount:     invited,
	})

	e.recordCallStart(ctx, HistoryRecord{
		CallID:    callID,
		CallerID:  initiatorID,
		Kind:      "group",
		StartedAt: group.StartTime,
	})

	if len(offline) > 0 {
		e.pushInvite(ctx, CallInvite{
			CallID:     callID,
			CallerID:   initiatorID,
			CallerName: callerName,
			CallKind:   "group",
			CalleeIDs:  offline,
		})
	}

	logger.Info("Group call started",
		zap.String("call_id", callID),
		zap.String("group_id", groupID),
		zap.String("initiator_id", initiatorID),
		zap.Int("delivered", invited),
		zap.Int("participants", len(group.Participants)))
}

// AcceptGroupCall joins an invited participant. Media flows in a star
// around the initiator, so the answer goes to the initiator only; the
// other joined participants just learn about the membership change.
func (e *Engine) AcceptGroupCall(ctx context.Context, userID, callID string, answer json.RawMessage) {
	conn, _ := e.registry.Lookup(userID)
	group, err := e.store.JoinGroup(callID, userID, conn)
	if err != nil {
		e.sendError(userID, err)
		return
	}

	joinerName, _ := e.resolveCaller(ctx, userID)

	update := GroupCallUpdatePayload{
		CallID:           callID,
		UpdateType:       UpdateParticipantJoined,
		ParticipantID:    userID,
		ParticipantName:  joinerName,
		ParticipantCount: group.joinedCount(),
	}
	for _, p := range group.Participants {
		if p.HasJoined && p.UserID != userID {
			e.sendTo(p.UserID, EventGroupCallUpdate, update)
		}
	}

	if userID != group.CallerID {
		e.sendTo(group.CallerID, EventCallAccepted, CallAcceptedPayload{
			CallID:        callID,
			ParticipantID: userID,
			Answer:        answer,
			IsGroupCall:   true,
		})
	}

	e.sendTo(userID, EventGroupCallJoined, GroupCallJoinedPayload{
		CallID:           callID,
		GroupID:          group.GroupID,
		GroupName:        group.GroupName,
		ParticipantCount: group.joinedCount(),
	})

	e.appendEvent(ctx, callID, userID, "group_call_joined")

	logger.Info("Group call joined",
		zap.String("call_id", callID),
		zap.String("user_id", userID),
		zap.Int("joined", group.joinedCount()))
}

// rejectGroupCall handles a decline of a group invitation. The decliner's
// ringing state is cleared and the host is informed; the call itself is
// untouched and the invitation stays open.
func (e *Engine) rejectGroupCall(ctx context.Context, userID, callID, reason string) {
	group, declinerName, ok := e.store.RejectGroup(callID, userID)
	if !ok {
		return
	}

	if reason == "" {
		reason = "Invitation declined"
	}
	e.sendTo(group.CallerID, EventGroupCallUpdate, GroupCallUpdatePayload{
		CallID:          callID,
		UpdateType:      UpdateParticipantRejected,
		ParticipantID:   userID,
		ParticipantName: declinerName,
		Reason:          reason,
	})

	e.appendEvent(ctx, callID, userID, "group_call_rejected")

	logger.Info("Group call invitation declined",
		zap.String("call_id", callID),
		zap.String("user_id", userID))
}

// LeaveGroupCall removes a joined participant. When at most one joined
// participant would remain the whole call is ended instead of lingering.
func (e *Engine) LeaveGroupCall(ctx context.Context, userID, callID string) {
	group, leftName, ok := e.store.LeaveGroup(callID, userID)
	if !ok {
		return
	}

	update := GroupCallUpdatePayload{
		CallID:           callID,
		UpdateType:       UpdateParticipantLeft,
		ParticipantID:    userID,
		ParticipantName:  leftName,
		ParticipantCount: group.joinedCount(),
	}
	for _, p := range group.Participants {
		if p.HasJoined {
			e.sendTo(p.UserID, EventGroupCallUpdate, update)
		}
	}

	e.appendEvent(ctx, callID, userID, "group_call_left")

	logger.Info("Group call left",
		zap.String("call_id", callID),
		zap.String("user_id", userID),
		zap.Int("remaining", group.joinedCount()))

	if group.joinedCount() <= 1 {
		e.finishGroupCall(ctx, userID, callID, "Not enough participants")
	}
}

// EndGroupCall terminates a group call for everyone
func (e *Engine) EndGroupCall(ctx context.Context, userID, callID string) {
	e.finishGroupCall(ctx, userID, callID, "Call ended")
}

// finishGroupCall removes the call atomically and notifies every joined
// participant, the one who ended it included, so all clients learn the
// final duration and count. Safe to call twice; the second call finds
// nothing. On the auto-end-from-leave path the leaver is already out of
// the participant list and gets no event.
func (e *Engine) finishGroupCall(ctx context.Context, endedBy, callID, reason string) {
	group, ok := e.store.RemoveGroup(callID)
	if !ok {
		return
	}
	e.updateActiveCallGauges()

	duration := time.Since(group.StartTime)
	ended := GroupCallEndedPayload{
		CallID:            callID,
		EndedBy:           endedBy,
		GroupID:           group.GroupID,
		GroupName:         group.GroupName,
		Duration:          duration.Seconds(),
		FormattedDuration: formatCallDuration(duration),
		Reason:            reason,
		ParticipantCount:  group.joinedCount(),
	}
	for _, p := range group.Participants {
		if p.HasJoined {
			e.sendTo(p.UserID, EventGroupCallEnded, ended)
		}
	}

	metrics.CallDurationSeconds.WithLabelValues("group").Observe(duration.Seconds())
	e.recordCallEnd(ctx, callID, int(duration.Seconds()))
	e.appendEvent(ctx, callID, endedBy, "group_call_ended")

	logger.Info("Group call ended",
		zap.String("call_id", callID),
		zap.String("ended_by", endedBy),
		zap.Duration("duration", duration))
}
