package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_cleaner_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_cleaner_http_panics_total",
			Help: "Total number of recovered handler panics",
		},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_uploads_total",
			Help: "Total number of upload attempts by outcome",
		},
		[]string{"outcome"}, // accepted, no_file, too_large, invalid_mime, storage_error
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_cleaner_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KiB .. 1GiB
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_transcoder_jobs_total",
			Help: "Total number of transcoding jobs by terminal state",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_cleaner_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)

	TranscoderJobsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_transcoder_jobs_waiting",
			Help: "Number of jobs waiting for a concurrency slot",
		},
	)
)

// Delivery metrics
var (
	DeliveredBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_cleaner_delivered_bytes_total",
			Help: "Total bytes streamed back to clients",
		},
	)

	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_delivery_failures_total",
			Help: "Total number of failed artifact deliveries",
		},
		[]string{"reason"}, // client_gone, write_timeout, io_error
	)
)

// Scratch storage metrics
var (
	ScratchFilesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_scratch_files_created_total",
			Help: "Total number of scratch files created",
		},
		[]string{"role"},
	)

	ScratchFilesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_scratch_files_deleted_total",
			Help: "Total number of scratch files deleted",
		},
		[]string{"role"},
	)

	ScratchDeleteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_cleaner_scratch_delete_errors_total",
			Help: "Total number of scratch deletions that failed",
		},
	)

	ScratchFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_cleaner_scratch_files",
			Help: "Number of files currently held in a scratch directory",
		},
		[]string{"role"},
	)

	ScratchBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_cleaner_scratch_bytes",
			Help: "Bytes currently held in a scratch directory",
		},
		[]string{"role"},
	)

	ScratchFreeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_cleaner_scratch_free_bytes",
			Help: "Free bytes on the filesystem backing a scratch directory",
		},
		[]string{"role"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operations retried after a transient error",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_cleaner_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if not set)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_go_memory_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	SystemMemAvailableBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_system_memory_available_bytes",
			Help: "MemAvailable reported by the kernel in bytes",
		},
	)

	SystemSwapTotalBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_system_swap_total_bytes",
			Help: "SwapTotal reported by the kernel in bytes",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_memory_pressure",
			Help: "Whether new jobs are refused due to low memory (1 = refusing, 0 = accepting)",
		},
	)

	MemoryRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_cleaner_memory_rejections_total",
			Help: "Total number of requests refused due to memory pressure",
		},
	)

	SwapProvisioned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_cleaner_swap_provisioned",
			Help: "Whether startup swap provisioning succeeded (1 = yes, 0 = no or skipped)",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_cleaner_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
