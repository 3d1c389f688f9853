// Package metrics holds the service's Prometheus collectors. They register
// on the default registry and are exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_jobs_submitted_total",
		Help: "The total number of submitted jobs",
	}, []string{"priority"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_jobs_finished_total",
		Help: "Jobs that reached a terminal status",
	}, []string{"status", "error_type"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blog_job_stage_duration_seconds",
		Help:    "Duration of pipeline stage calls.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage"})

	Rewrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_job_rewrites_total",
		Help: "Drafts sent back for a rewrite",
	})

	CleanupDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_jobs_cleanup_deleted_total",
		Help: "Job records removed by cleanup",
	}, []string{"strategy"})

	QueueRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_jobs_requeued_total",
		Help: "Claimed job ids returned to the queue by the reaper",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
