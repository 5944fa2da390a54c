package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Currently open socket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Users with at least one open connection",
		},
	)

	AuthRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_auth_rejections_total",
			Help: "Connections refused at handshake",
		},
	)

	RateLimitCloses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_closes_total",
			Help: "Connections closed for event flooding",
		},
	)

	// Delivery metrics
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_persisted_total",
			Help: "Messages accepted by the message store",
		},
	)

	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_delivered_total",
			Help: "Message copies delivered to recipient connections",
		},
	)

	DeliveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_errors_total",
			Help: "Send-message failures by reason",
		},
		[]string{"reason"}, // "recipient_not_found", "persistence", "validation"
	)

	TypingEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_typing_events_total",
			Help: "Typing indicators multicast",
		},
	)
)
