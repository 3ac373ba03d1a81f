// Package metrics provides Prometheus instrumentation for the video cleaner.
//
// All metrics are registered on the default registry through promauto and
// are prefixed with "video_cleaner_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter by method, route template, and status
//   - HTTPRequestDuration: Histogram by method and route template
//   - HTTPRequestsInFlight: Gauge of requests being served
//   - HTTPPanicsTotal: Counter of recovered handler panics
//
// ## Pipeline Metrics
//   - UploadsTotal: Counter by outcome (accepted, no_file, too_large, invalid_mime, storage_error)
//   - UploadBytes: Histogram of accepted upload sizes
//   - TranscoderJobsTotal: Counter by terminal state (succeeded, failed, killed, timed_out, canceled)
//   - TranscoderJobDuration: Histogram of job wall time
//   - TranscoderJobsInProgress, TranscoderJobsWaiting: Gauges
//   - DeliveredBytesTotal, DeliveryFailuresTotal: delivery of the artifact
//
// ## Scratch Storage Metrics
//   - ScratchFilesCreated, ScratchFilesDeleted: Counters by role (input, output)
//   - ScratchFiles, ScratchBytes, ScratchFreeBytes: Gauges updated by [Collector]
//
// ## Memory Metrics
//   - GoMemLimit, GoMemAllocBytes: Go runtime
//   - SystemMemAvailableBytes, SystemSwapTotalBytes: kernel counters
//   - MemoryPressure, MemoryRejectionsTotal: admission control
//   - SwapProvisioned: result of the startup swap attempt
//
// Mount promhttp.Handler() on the metrics port to expose them.
//
// Example PromQL for the OOM rate:
//
//	sum(rate(video_cleaner_transcoder_jobs_total{status="killed"}[1h]))
//	  / sum(rate(video_cleaner_transcoder_jobs_total[1h]))
package metrics
