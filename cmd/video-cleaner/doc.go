// Package main provides the entry point for the Video Cleaner service.
//
// Video Cleaner accepts a single video upload over HTTP, re-encodes it with
// ffmpeg (scaled down to at most 1280x720, with a fixed margin cropped from
// the right and bottom edges), and returns the result as a clean.mp4
// attachment. Uploads and outputs live only in scratch directories and are
// deleted on every path through a request.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT or the cgroup limit
//  2. Configuration Loading: Reads environment variables (and .env) and
//     resolves the scratch directories
//  3. Swap Provisioning: Creates a swap file when SWAP_ENABLED is set and
//     the host has none (failures are logged, never fatal)
//  4. Component Initialization:
//     - Scratch Store: Creates both directories, checks write access and
//       purges leftovers from a previous run
//     - Transcoder: Checks that ffmpeg can be executed
//     - Memory Monitor: Rejects uploads while available memory is critical
//     - Metrics Collector: Samples scratch and memory gauges
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, aborts jobs and purges
//     scratch space
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 3000):
//     - POST /process-video: multipart upload in the "video" field
//     - /health, /healthz, /livez, /readyz: probes
//     - /version: build information and the ffmpeg argument template
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Environment Variables
//
// See [video-cleaner/internal/startup] for the full list. The most common:
//
//   - PORT: Main HTTP server port (default: 3000)
//   - DEPLOY_MODE: local or railway (railway also detected from RAILWAY_ENVIRONMENT)
//   - MAX_UPLOAD_BYTES: Upload limit (default: 50MiB)
//   - TRANSCODE_TIMEOUT: Per-job limit (default: 10m, 0 disables)
//   - MAX_CONCURRENT_JOBS: ffmpeg process cap (default: unlimited, "auto" for one per CPU)
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg from PATH)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//
// # Graceful Shutdown
//
// The application handles SIGINT and SIGTERM signals gracefully:
//
//  1. Abort running ffmpeg processes; their requests answer 503
//  2. Shutdown main HTTP server (30s timeout)
//  3. Shutdown metrics server (if running)
//  4. Stop metrics collector and memory monitor
//  5. Purge both scratch directories
//
// # Build
//
//	go build -ldflags "-X video-cleaner/internal/startup.Version=1.0.0" -o video-cleaner ./cmd/video-cleaner
//
// ffmpeg must be installed on the host.
//
// # Related Packages
//
//   - [video-cleaner/internal/handlers]: HTTP request handlers
//   - [video-cleaner/internal/upload]: Multipart upload intake
//   - [video-cleaner/internal/transcoder]: ffmpeg job supervision
//   - [video-cleaner/internal/scratch]: Scratch file naming and cleanup
//   - [video-cleaner/internal/streaming]: Attachment delivery
//   - [video-cleaner/internal/memory]: Memory limits, pressure and swap
//   - [video-cleaner/internal/startup]: Configuration and initialization
package main
