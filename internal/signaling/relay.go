package signaling

import (
	"context"
	"encoding/json"

	"callmesh-backend/pkg/metrics"
)

// SendICECandidate relays an ICE candidate within a live call. In a group
// call media is negotiated in a star around the initiator, so candidates
// always go to the initiator. Offline or unknown targets drop silently;
// candidates are ephemeral and the peer retransmits.
func (e *Engine) SendICECandidate(ctx context.Context, senderID, callID string, candidate json.RawMessage) {
	targetID, ok := e.relayTarget(senderID, callID)
	if !ok {
		metrics.RelayDroppedTotal.WithLabelValues("ice_candidate").Inc()
		return
	}

	delivered := e.sendTo(targetID, EventReceiveICECandidate, ReceiveICECandidatePayload{
		CallID:    callID,
		Candidate: candidate,
		SenderID:  senderID,
	})
	if !delivered {
		metrics.RelayDroppedTotal.WithLabelValues("ice_candidate").Inc()
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("ice_candidate").Inc()
}

// SendMediaStatus relays a mute/camera change. In a group call every other
// joined participant hears about it; in a one-to-one call only the peer.
func (e *Engine) SendMediaStatus(ctx context.Context, senderID, callID, mediaType string, enabled bool) {
	payload := UserMediaStatusPayload{
		CallID:    callID,
		UserID:    senderID,
		MediaType: mediaType,
		Enabled:   enabled,
	}

	if group, ok := e.store.GroupSnapshot(callID); ok {
		// same membership rule as the ICE path: outsiders cannot inject
		if group.participant(senderID) == nil {
			metrics.RelayDroppedTotal.WithLabelValues("media_status").Inc()
			return
		}
		delivered := false
		for _, p := range group.Participants {
			if p.HasJoined && p.UserID != senderID {
				if e.sendTo(p.UserID, EventUserMediaStatus, payload) {
					delivered = true
				}
			}
		}
		if delivered {
			metrics.RelayMessagesTotal.WithLabelValues("media_status").Inc()
		} else {
			metrics.RelayDroppedTotal.WithLabelValues("media_status").Inc()
		}
		return
	}

	targetID, ok := e.relayTarget(senderID, callID)
	if !ok {
		metrics.RelayDroppedTotal.WithLabelValues("media_status").Inc()
		return
	}
	if e.sendTo(targetID, EventUserMediaStatus, payload) {
		metrics.RelayMessagesTotal.WithLabelValues("media_status").Inc()
	} else {
		metrics.RelayDroppedTotal.WithLabelValues("media_status").Inc()
	}
}

// relayTarget resolves who a relayed message from senderID should reach.
// Returns false when the call is unknown or the sender is not part of it.
func (e *Engine) relayTarget(senderID, callID string) (string, bool) {
	if group, ok := e.store.GroupSnapshot(callID); ok {
		if group.participant(senderID) == nil {
			return "", false
		}
		if senderID == group.CallerID {
			return "", false
		}
		return group.CallerID, true
	}

	call, ok := e.store.CallSnapshot(callID)
	if !ok {
		return "", false
	}
	switch senderID {
	case call.CallerID:
		return call.ReceiverID, true
	case call.ReceiverID:
		return call.CallerID, true
	default:
		return "", false
	}
}
