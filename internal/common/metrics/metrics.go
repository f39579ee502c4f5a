// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	DraftRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_requests_total",
			Help: "Draft requests by terminal state",
		},
		[]string{"outcome"},
	)

	DraftFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_fallbacks_total",
			Help: "Fallback drafts by reason",
		},
		[]string{"reason"},
	)

	DraftConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draft_confidence_score",
			Help:    "Confidence score of produced drafts",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1},
		},
	)

	DraftStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draft_stage_duration_seconds",
			Help:    "Duration of each draft pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	InputScreenings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_screenings_total",
			Help: "Screened inputs by risk level",
		},
		[]string{"risk_level"},
	)

	RetrievalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_failures_total",
			Help: "Retrieval failures that degraded to an empty context",
		},
		[]string{"stage"},
	)

	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_lookups_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)
)
