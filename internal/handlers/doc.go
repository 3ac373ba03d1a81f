// Package handlers provides the HTTP handlers of the video cleaning service.
//
// It includes handlers for:
//   - POST /process-video: upload, transcode and download in one request
//   - Health, liveness and readiness probes
//   - Version and build information
//   - Prometheus metrics
//
// A failed request always gets a JSON [ErrorResponse] with a stable code:
//
//	400 NO_FILE_PROVIDED, FILE_TOO_LARGE, INVALID_MIME_TYPE
//	500 VIDEO_PROCESSING_FAILED, PROCESSING_TIMEOUT, UPLOAD_FAILED
//	503 SERVER_BUSY (with Retry-After)
//	507 RESOURCE_EXCEEDED
//
// Once streaming of the result has started no second response is written;
// a broken delivery is only logged.
package handlers
