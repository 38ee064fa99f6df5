package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_tasks_created_total",
		Help: "Total number of download tasks accepted",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_tasks_completed_total",
		Help: "Total number of tasks completed",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_tasks_failed_total",
		Help: "Total number of tasks failed",
	})

	RequestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_downloader_requests_rejected_total",
		Help: "Requests rejected before a task was created, by reason",
	}, []string{"reason"})

	ExtractionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_extractions_failed_total",
		Help: "Total number of yt-dlp runs that failed",
	})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_downloader_extraction_duration_seconds",
		Help:    "yt-dlp run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_downloader_conversion_duration_seconds",
		Help:    "ffmpeg conversion duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ConversionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_conversions_failed_total",
		Help: "Total number of ffmpeg runs that failed",
	})

	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_upload_bytes_total",
		Help: "Total bytes uploaded to remote storage",
	})

	Shares = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_downloader_shares_total",
		Help: "Public share links resolved, by outcome (reused or created)",
	}, []string{"outcome"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_downloader_deliveries_total",
		Help: "Deliverables handed off, by target",
	}, []string{"target"})

	ProgressNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_progress_notifications_total",
		Help: "Progress updates emitted by the throttler",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "media_downloader_queue_depth",
		Help: "Download jobs waiting for a worker",
	})
)
