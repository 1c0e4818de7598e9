package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signaling metrics for monitoring presence, call lifecycle, and relay delivery
var (
	// WebSocket connection metrics
	SignalingConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_connections_active",
		Help: "Current number of active signaling WebSocket connections",
	})

	SignalingConnectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_connection_total",
		Help: "Total number of signaling WebSocket connections",
	}, []string{"status"}) // "accepted", "unauthorized", "rejected"

	SignalingDisconnectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_disconnection_total",
		Help: "Total number of signaling WebSocket disconnections",
	}, []string{"reason"}) // "close", "error", "replaced"

	// Call lifecycle metrics
	CallOffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_call_offers_total",
		Help: "Total number of one-to-one call offers",
	}, []string{"result"}) // "sent", "busy", "offline", "error"

	CallsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signaling_calls_active",
		Help: "Current number of active calls by kind",
	}, []string{"kind"}) // "one_to_one", "group"

	CallDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signaling_call_duration_seconds",
		Help:    "Duration of completed calls",
		Buckets: []float64{5, 15, 30, 60, 180, 600, 1800, 3600, 7200},
	}, []string{"kind"})

	GroupCallInvitesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_group_call_invites_total",
		Help: "Total number of group call invitations",
	}, []string{"result"}) // "delivered", "offline"

	CallsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_calls_reaped_total",
		Help: "Total number of ringing calls expired by the reaper",
	})

	// Relay metrics
	RelayMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_relay_messages_total",
		Help: "Total number of relayed signaling messages",
	}, []string{"type"}) // "ice_candidate", "media_status"

	RelayDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_relay_dropped_total",
		Help: "Total number of relay messages dropped because the target was offline",
	}, []string{"type"})

	// Event delivery metrics
	EventsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_events_sent_total",
		Help: "Total number of events pushed to clients",
	}, []string{"event"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_events_dropped_total",
		Help: "Total number of events dropped due to a full client buffer",
	}, []string{"event"})

	// Collaborator metrics
	HistoryWriteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_history_write_total",
		Help: "Total number of call-history writes",
	}, []string{"status"}) // "ok", "error"

	PushNotificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_push_notification_total",
		Help: "Total number of call-invite push notifications",
	}, []string{"status"}) // "ok", "error", "skipped"
)
