package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// ErrArtifactUnavailable means the file to deliver could not be opened.
// Nothing has been written to the response when it is returned.
var ErrArtifactUnavailable = errors.New("artifact unavailable")

// ContentDisposition formats an attachment header for filename.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// ServeAttachment streams the file at path as a download named filename.
// An empty contentType falls back to application/octet-stream.
//
// Errors other than ErrArtifactUnavailable are returned after the headers
// were committed; the caller must not write another response.
func ServeAttachment(ctx context.Context, w http.ResponseWriter, path, filename, contentType string, config TimeoutWriterConfig) (int64, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the scratch store, not the client
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close artifact %s: %v", path, err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Content-Disposition", ContentDisposition(filename))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	written, err := io.Copy(tw, f)
	metrics.DeliveredBytesTotal.Add(float64(written))

	_, duration := tw.Stats()
	if err != nil {
		metrics.DeliveryFailuresTotal.WithLabelValues(FailureReason(err)).Inc()
		return written, fmt.Errorf("delivery stopped after %d of %d bytes: %w", written, info.Size(), err)
	}

	logging.Debug("Delivered %s: %d bytes in %v", filename, written, duration)
	return written, nil
}

// FailureReason buckets a delivery error for metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrClientGone):
		return "client_gone"
	case errors.Is(err, ErrWriteTimeout):
		return "write_timeout"
	default:
		return "io_error"
	}
}

// TrackedWriter records whether a response has been committed, so a
// handler can avoid writing a second response after streaming failed.
type TrackedWriter struct {
	http.ResponseWriter
	status    int
	committed bool
}

// Track wraps w.
func Track(w http.ResponseWriter) *TrackedWriter {
	return &TrackedWriter{ResponseWriter: w}
}

func (t *TrackedWriter) WriteHeader(code int) {
	if t.committed {
		return
	}
	t.committed = true
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *TrackedWriter) Write(p []byte) (int, error) {
	if !t.committed {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(p)
}

// Flush implements http.Flusher when the underlying writer does.
func (t *TrackedWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		if !t.committed {
			t.committed = true
			t.status = http.StatusOK
		}
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (t *TrackedWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

// Committed reports whether the status line has been sent.
func (t *TrackedWriter) Committed() bool {
	return t.committed
}

// Status returns the committed status code, or 0.
func (t *TrackedWriter) Status() int {
	return t.status
}
