package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubetuner_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubetuner_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Upload Metrics
	VideoUploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubetuner_video_uploads_total",
			Help: "Total number of stored video uploads",
		},
	)

	VideoUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubetuner_video_upload_size_bytes",
			Help:    "Size of uploaded videos in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 12), // 1MB to 2GB
		},
	)

	UploadsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubetuner_uploads_rejected_total",
			Help: "Total number of rejected uploads",
		},
		[]string{"reason"}, // validation, duplicate
	)

	// Subtitle Metrics
	SubtitleParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubetuner_subtitle_parses_total",
			Help: "Total number of subtitle parse attempts",
		},
		[]string{"kind", "result"},
	)

	// Checkpoint Metrics
	CheckpointFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tubetuner_checkpoint_flushes_total",
			Help: "Total number of persisted playback position checkpoints",
		},
	)
)
