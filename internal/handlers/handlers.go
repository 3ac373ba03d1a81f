package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/memory"
	"video-cleaner/internal/scratch"
	"video-cleaner/internal/streaming"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
)

// OutputFilename is the download name of every cleaned video.
const OutputFilename = "clean.mp4"

// outputContentType is sent explicitly; the mime table is platform dependent.
const outputContentType = "video/mp4"

// Handlers serves the upload pipeline and the health endpoints.
type Handlers struct {
	store      *scratch.Store
	receiver   *upload.Receiver
	transcoder *transcoder.Transcoder
	monitor    *memory.Monitor
	stream     streaming.TimeoutWriterConfig
	startTime  time.Time
}

// New wires the pipeline components. monitor may be nil to disable memory
// backpressure.
func New(store *scratch.Store, rc *upload.Receiver, trans *transcoder.Transcoder, monitor *memory.Monitor) *Handlers {
	return &Handlers{
		store:      store,
		receiver:   rc,
		transcoder: trans,
		monitor:    monitor,
		stream:     streaming.DefaultTimeoutWriterConfig(),
		startTime:  time.Now(),
	}
}

// writeJSON sends v with status. Probe and error bodies are never cached.
// HEAD requests get the headers only.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r != nil && r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}
