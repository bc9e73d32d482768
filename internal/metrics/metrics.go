package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SyncRuns         prometheus.Counter
	UsersSynced      prometheus.Counter
	UsersSkipped     prometheus.Counter
	UsersErrored     prometheus.Counter
	EventsFetched    prometheus.Counter
	ArtifactsCreated prometheus.Counter
	ArtifactsUpdated prometheus.Counter
	JobsProcessed    prometheus.Counter
	JobsFailed       prometheus.Counter
	UserSyncDuration prometheus.Histogram
	PendingJobs      prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SyncRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_runs_total",
			Help: "Total number of orchestrated sync runs",
		}),
		UsersSynced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_users_synced_total",
			Help: "Total number of users synced successfully",
		}),
		UsersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_users_skipped_total",
			Help: "Total number of users skipped for unusable integrations",
		}),
		UsersErrored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_users_errored_total",
			Help: "Total number of per-user sync failures",
		}),
		EventsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_events_fetched_total",
			Help: "Total number of calendar events fetched from the provider",
		}),
		ArtifactsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_artifacts_created_total",
			Help: "Total number of meeting artifacts created",
		}),
		ArtifactsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_artifacts_updated_total",
			Help: "Total number of meeting artifacts updated in place",
		}),
		JobsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_contact_jobs_processed_total",
			Help: "Total number of contact sync jobs completed",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calendar_sync_contact_jobs_failed_total",
			Help: "Total number of contact sync jobs that failed",
		}),
		UserSyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "calendar_sync_user_duration_seconds",
			Help:    "Time spent syncing a single user",
			Buckets: prometheus.DefBuckets,
		}),
		PendingJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "calendar_sync_contact_jobs_pending",
			Help: "Number of contact sync jobs waiting in the queue",
		}),
	}
}
