package handlers

import (
	"errors"
	"net/http"
	"time"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
	"video-cleaner/internal/scratch"
	"video-cleaner/internal/streaming"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
)

// defaultRetryAfter is suggested when no memory monitor is configured.
const defaultRetryAfter = 5 * time.Second

// ProcessVideo receives one video, runs the cleaning profile on it and
// streams the result back as clean.mp4. Both scratch files are removed
// before the handler returns, whatever the outcome.
// POST /process-video
func (h *Handlers) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	tw := streaming.Track(w)

	if h.monitor != nil && h.monitor.IsPaused() {
		metrics.MemoryRejectionsTotal.Inc()
		logging.Warn("Refusing upload: memory pressure")
		writeBusy(tw, h.monitor.RetryAfter(), "The server is low on memory. Please retry shortly.")
		return
	}

	up, err := h.receiver.Receive(tw, r)
	if err != nil {
		h.respondUploadError(tw, r, err)
		return
	}

	var output scratch.File
	defer func() { h.cleanup(up.File, output) }()

	output, err = h.store.ReserveOutput()
	if err != nil {
		logging.Error("Failed to reserve output for %s: %v", up.File.Name, err)
		writeJSON(tw, nil, http.StatusInternalServerError, ErrorResponse{
			Error:   CodeUploadFailed,
			Details: "The upload could not be stored. Please try again.",
		})
		return
	}

	logging.Info("Processing %s (%d bytes, %s)", up.File.Name, up.Size, up.DetectedType)

	job := h.transcoder.NewJob(up.File, output)
	result := h.transcoder.Run(r.Context(), job)

	switch result.State {
	case transcoder.StateSucceeded:
		h.deliver(tw, r, job, result)
	case transcoder.StateCanceled:
		if r.Context().Err() != nil {
			logging.Info("Job %s canceled: client disconnected", job.ID)
			return
		}
		writeBusy(tw, h.retryAfter(), "The server is shutting down. Please retry.")
	default:
		status, body := h.jobErrorResponse(result.Err)
		writeJSON(tw, nil, status, body)
	}
}

func (h *Handlers) respondUploadError(tw *streaming.TrackedWriter, r *http.Request, err error) {
	if !upload.IsValidation(err) && r.Context().Err() != nil {
		logging.Info("Upload aborted by client: %v", err)
		return
	}

	status, body := h.uploadErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logging.Error("Upload failed: %v", err)
	} else {
		logging.Debug("Upload rejected: %v", err)
	}

	if tw.Committed() {
		return
	}
	writeJSON(tw, nil, status, body)
}

func (h *Handlers) deliver(tw *streaming.TrackedWriter, r *http.Request, job *transcoder.Job, result transcoder.Result) {
	n, err := streaming.ServeAttachment(r.Context(), tw, result.Output.Path, OutputFilename, outputContentType, h.stream)
	switch {
	case err == nil:
		logging.Info("Delivered %s for job %s: %d bytes", OutputFilename, job.ID, n)
	case errors.Is(err, streaming.ErrArtifactUnavailable) && !tw.Committed():
		logging.Error("Job %s succeeded but its output is unreadable: %v", job.ID, err)
		writeJSON(tw, nil, http.StatusInternalServerError, ErrorResponse{
			Error:   CodeProcessingFailed,
			Details: "The video could not be processed.",
		})
	default:
		logging.Warn("Delivery failed for job %s after %d bytes: %v", job.ID, n, err)
	}
}

// cleanup deletes the scratch files of one request. Failures are logged
// only.
func (h *Handlers) cleanup(files ...scratch.File) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := h.store.Delete(f.Path); err != nil {
			logging.Warn("Cleanup failed for %s: %v", f.Path, err)
		}
	}
}

func (h *Handlers) retryAfter() time.Duration {
	if h.monitor != nil {
		return h.monitor.RetryAfter()
	}
	return defaultRetryAfter
}
