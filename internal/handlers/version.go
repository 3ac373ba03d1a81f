package handlers

import (
	"net/http"

	"video-cleaner/internal/startup"
)

// VersionResponse is the build information plus the active ffmpeg profile.
type VersionResponse struct {
	startup.BuildInfo
	FFmpegArgs []string `json:"ffmpegArgs"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		BuildInfo:  startup.GetBuildInfo(),
		FFmpegArgs: h.transcoder.Profile().Args("<input>", "<output>"),
	})
}
