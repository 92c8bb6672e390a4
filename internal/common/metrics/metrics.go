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
)

// Asset ID generation
var (
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetid_rows_processed_total",
			Help: "Rows processed by the generation engine, by outcome",
		},
		[]string{"status"},
	)

	AbbreviationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetid_abbreviation_lookups_total",
			Help: "Equipment code resolutions, by source",
		},
		[]string{"source"},
	)

	CodeCollisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetid_code_collisions_total",
			Help: "Codes that needed a numeric suffix, by level",
		},
		[]string{"level"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetid_generation_duration_seconds",
			Help:    "Duration of a generation run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
