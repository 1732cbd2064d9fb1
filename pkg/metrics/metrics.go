package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolgate_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// NotificationEvents counts workflow events by kind (created|responded|read).
	NotificationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolgate_notification_events_total",
			Help: "Total number of notification workflow events",
		},
		[]string{"event"},
	)

	// PushDeliveries counts push channel outcomes (sent|no_device_token|disabled|failed).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolgate_push_deliveries_total",
			Help: "Total number of push notification delivery attempts",
		},
		[]string{"result"},
	)

	// RealtimeSessions tracks currently connected realtime sessions.
	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schoolgate_realtime_sessions",
			Help: "Number of connected realtime sessions",
		},
	)

	// NotificationsPurged counts records removed by the retention job.
	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schoolgate_notifications_purged_total",
			Help: "Total number of notifications removed by retention cleanup",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schoolgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
