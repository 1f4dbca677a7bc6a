package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livesync_ws_connected_clients",
		Help: "Number of open websocket connections.",
	})

	chatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livesync_chat_messages_total",
		Help: "Chat messages accepted and broadcast.",
	})

	notificationsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livesync_notifications_pushed_total",
		Help: "Notification events delivered to a live connection.",
	})

	rejectedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livesync_ws_rejected_events_total",
		Help: "Inbound websocket events rejected, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(connectedClients)
	prometheus.MustRegister(chatMessages)
	prometheus.MustRegister(notificationsPushed)
	prometheus.MustRegister(rejectedEvents)
}
