// Package telemetry provides application-level observability for the
// inspection backend.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<SIS_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router, so it is
// never subject to the API's auth or rate-limit middleware.
//
// HTTP metrics use c.FullPath() (route template such as /v1/inspections/:id)
// rather than the raw URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method and route template.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Authorization engine metrics.
var (
	// AuthzDecisionsTotal counts capability-check outcomes at the middleware
	// boundary, by action and decision ("allowed"/"denied").
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Capability check decisions, by action and outcome.",
		},
		[]string{"action", "decision"},
	)

	// ScopeResolutionsTotal counts visibility scope resolutions by resource
	// type and scope shape (unrestricted, organization, collaboration, empty).
	ScopeResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_scope_resolutions_total",
			Help: "Visibility scope resolutions, by resource type and resulting scope shape.",
		},
		[]string{"resource", "outcome"},
	)

	// RecordAccessChecksTotal counts single-record authorization checks.
	RecordAccessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_record_access_checks_total",
			Help: "Single-record access checks, by outcome.",
		},
		[]string{"outcome"},
	)

	// HierarchyCacheLookups counts hierarchy index cache hits and misses.
	HierarchyCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_hierarchy_cache_lookups_total",
			Help: "Organization hierarchy cache lookups, by result (hit/miss).",
		},
		[]string{"result"},
	)

	// BootstrapPromotionsTotal counts persisted promotions of the bootstrap
	// identity to system admin. More than one over a process lifetime is
	// normal only if the role was manually downgraded in between.
	BootstrapPromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_bootstrap_promotions_total",
			Help: "Times the bootstrap identity was promoted to system admin in the database.",
		},
	)
)

// Background job metrics.
var (
	OverdueActionItemsNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_overdue_action_items_notified_total",
			Help: "Overdue action items for which a notification was emitted.",
		},
	)
)

// Database pool metrics.
var (
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use.",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections.",
		},
	)
)

// StartDBPoolCollector polls db.Stats() every interval and exports the pool
// gauges until stop is closed. Run it with safego.Go from main.
func StartDBPoolCollector(db *sql.DB, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			DBConnectionsInUse.Set(float64(stats.InUse))
			DBConnectionsIdle.Set(float64(stats.Idle))
		case <-stop:
			slog.Debug("db pool collector stopped")
			return
		}
	}
}
