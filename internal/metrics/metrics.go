// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemoteJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfumevisual_remote_jobs_total",
			Help: "Remote prediction jobs by model and outcome.",
		},
		[]string{"model", "outcome"}, // succeeded, failed, timeout, rejected
	)
	RemoteJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perfumevisual_remote_job_duration_seconds",
		Help:    "Wall time from submission to terminal state.",
		Buckets: prometheus.ExponentialBuckets(2, 2, 9), // 2s .. 512s
	}, []string{"model"})
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfumevisual_rate_limited_total",
		Help: "Submissions answered with 429.",
	}, []string{"model"})
	StageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfumevisual_stage_fallbacks_total",
		Help: "Non-critical stages that fell back to the previous artifact.",
	}, []string{"stage"})
	DownloadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfumevisual_download_retries_total",
		Help: "Artifact download attempts that were retried.",
	})
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfumevisual_pipeline_runs_total",
		Help: "Pipeline invocations by entry point and outcome.",
	}, []string{"pipeline", "outcome"})
	PipelinesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfumevisual_pipelines_in_flight",
		Help: "Pipeline runs currently holding a concurrency slot.",
	})
	TelegramPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfumevisual_telegram_publish_total",
		Help: "Telegram publish calls by media type and outcome.",
	}, []string{"media", "outcome"})
	ImageSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfumevisual_image_search_total",
		Help: "Product photo searches by outcome.",
	}, []string{"outcome"})
)
