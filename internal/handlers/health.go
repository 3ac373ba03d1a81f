package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-cleaner/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// ScratchUsage reports one scratch directory in the health response.
type ScratchUsage struct {
	Role      string `json:"role"`
	Files     int    `json:"files"`
	Bytes     int64  `json:"bytes"`
	FreeBytes uint64 `json:"freeBytes,omitempty"`
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string   `json:"status"`
	Ready   bool     `json:"ready"`
	Version string   `json:"version"`
	Uptime  string   `json:"uptime"`
	Issues  []string `json:"issues,omitempty"`

	// Pipeline info
	FFmpegAvailable  bool           `json:"ffmpegAvailable"`
	ActiveJobs       int            `json:"activeJobs"`
	MaxConcurrent    int            `json:"maxConcurrentJobs"`
	MemoryPressure   bool           `json:"memoryPressure"`
	MemoryAvailable  uint64         `json:"memoryAvailableBytes,omitempty"`
	Scratch          []ScratchUsage `json:"scratch"`
	TranscodeTimeout string         `json:"transcodeTimeout"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// readiness lists everything that stops the service from processing
// uploads right now, and whether ffmpeg in particular is usable.
func (h *Handlers) readiness() (issues []string, ffmpegOK bool) {
	if err := h.store.Writable(); err != nil {
		issues = append(issues, "scratch: "+err.Error())
	}
	err := h.transcoder.Available()
	if err != nil {
		issues = append(issues, "ffmpeg: "+err.Error())
	}
	return issues, err == nil
}

// HealthCheck reports pipeline and scratch state. It answers 503 while the
// service is not ready so load balancers can act on the status alone.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	issues, ffmpegOK := h.readiness()

	response := HealthResponse{
		Status:           statusHealthy,
		Ready:            len(issues) == 0,
		Version:          startup.Version,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		Issues:           issues,
		FFmpegAvailable:  ffmpegOK,
		ActiveJobs:       h.transcoder.ActiveJobs(),
		MaxConcurrent:    h.transcoder.MaxConcurrent(),
		TranscodeTimeout: "none",
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}
	if t := h.transcoder.Timeout(); t > 0 {
		response.TranscodeTimeout = t.String()
	}

	if h.monitor != nil {
		response.MemoryPressure = h.monitor.IsPaused()
		if s, ok := h.monitor.Latest(); ok {
			response.MemoryAvailable = s.AvailableBytes
		}
	}

	for _, u := range h.store.Usage() {
		response.Scratch = append(response.Scratch, ScratchUsage{
			Role:      string(u.Role),
			Files:     u.Files,
			Bytes:     u.Bytes,
			FreeBytes: u.FreeBytes,
		})
	}

	status := http.StatusOK
	if !response.Ready {
		response.Status = statusDegraded
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, response)
}

// LivenessCheck answers 200 while the process is serving requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when scratch space is writable and ffmpeg
// can be found. Memory pressure does not make the service unready; it is
// answered per request with 503.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if issues, _ := h.readiness(); len(issues) > 0 {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"issues": issues,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
