package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siduri_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TrackReports counts watch-progress reports by outcome (tracked|ignored|error).
	TrackReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siduri_track_reports_total",
			Help: "Total number of watch-progress reports",
		},
		[]string{"outcome"},
	)

	// NotificationsSent counts threshold notifications by channel and result (success|failure).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siduri_notifications_sent_total",
			Help: "Total number of threshold notifications dispatched",
		},
		[]string{"channel", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siduri_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
