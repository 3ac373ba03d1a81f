// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig];
// a .env file in the working directory is read first by the server binary.
//
//   - PORT: HTTP server port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - DEPLOY_MODE: local or railway (default: railway when RAILWAY_ENVIRONMENT is set)
//   - UPLOAD_DIR: Scratch directory for uploads (default: ./uploads, /tmp/uploads on railway)
//   - OUTPUT_DIR: Scratch directory for outputs (default: ./outputs, /tmp/outputs on railway)
//   - MAX_UPLOAD_BYTES: Upload size limit, bytes or "50MiB" (default: 50MiB)
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg from PATH)
//   - TRANSCODE_TIMEOUT: Per-job limit, Go duration or seconds; 0 disables (default: 10m)
//   - MAX_CONCURRENT_JOBS: ffmpeg processes at once, a number or "auto"; 0 is unlimited (default: 0)
//   - SWAP_ENABLED: Try to provision a swap file at startup (default: true on railway)
//   - SWAP_FILE, SWAP_SIZE: Swap file location and size (default: /tmp/video-cleaner.swap, 1GiB)
//   - CORS_ALLOWED_ORIGINS: Comma-separated origins or "*" (default: *)
//   - MEMORY_CRITICAL_AVAILABLE: Refuse jobs below this MemAvailable; 0 disables (default: 64MiB)
//   - LOG_LEVEL, DEBUG: Logging level
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Invalid values are reported as errors wrapping [ErrInvalidConfig] rather
// than silently replaced.
//
// # Directory Setup
//
// [LoadConfig] resolves both scratch directories to absolute paths. The
// scratch store creates them and checks write access; [LogScratchDirs]
// reports the result. Either failing is fatal.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X video-cleaner/internal/startup.Version=1.2.0 \
//	    -X video-cleaner/internal/startup.Commit=$(git rev-parse --short HEAD)"
package startup
