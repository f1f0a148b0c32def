package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestTotal counts HTTP requests by method, route template and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamsync_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	MembershipsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamsync_memberships_submitted_total",
			Help: "Join requests created",
		},
	)
	MembershipDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_membership_decisions_total",
			Help: "Owner decisions on join requests",
		},
		[]string{"status"},
	)
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_notifications_created_total",
			Help: "Notifications written, by type",
		},
		[]string{"type"},
	)
	// NotificationFailures counts swallowed notification writes after a committed change.
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_notification_failures_total",
			Help: "Notification writes that failed and were skipped",
		},
		[]string{"type"},
	)
	ProjectsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamsync_projects_created_total",
			Help: "Projects created",
		},
	)
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamsync_sse_clients",
			Help: "Connected notification stream clients",
		},
	)
	CleanupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_cleanup_deleted_total",
			Help: "Rows removed by the retention job",
		},
		[]string{"table"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
