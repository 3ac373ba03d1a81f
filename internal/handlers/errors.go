package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"video-cleaner/internal/memory"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
)

// Error codes returned in the "error" field.
const (
	CodeNoFileProvided   = "NO_FILE_PROVIDED"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidMimeType  = "INVALID_MIME_TYPE"
	CodeProcessingFailed = "VIDEO_PROCESSING_FAILED"
	CodeTimeout          = "PROCESSING_TIMEOUT"
	CodeUploadFailed     = "UPLOAD_FAILED"
	CodeServerBusy       = "SERVER_BUSY"
	CodeResourceExceeded = "RESOURCE_EXCEEDED"
)

// ErrorResponse is the JSON body of every failed request. Client errors
// carry Message, server errors carry Details. Neither ever contains ffmpeg
// output.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// uploadErrorResponse maps a Receive error to its status and body.
func (h *Handlers) uploadErrorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusBadRequest, ErrorResponse{
			Error:   CodeFileTooLarge,
			Message: fmt.Sprintf("The video exceeds the %s upload limit.", memory.FormatBytes(uint64(max(h.receiver.MaxBytes(), 0)))),
		}
	case errors.Is(err, upload.ErrInvalidMimeType):
		return http.StatusBadRequest, ErrorResponse{
			Error:   CodeInvalidMimeType,
			Message: "Only video files are accepted.",
		}
	case errors.Is(err, upload.ErrNoFileProvided):
		return http.StatusBadRequest, ErrorResponse{
			Error:   CodeNoFileProvided,
			Message: fmt.Sprintf("No video uploaded. Send the file in the %q form field.", upload.DefaultFieldName),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   CodeUploadFailed,
			Details: "The upload could not be stored. Please try again.",
		}
	}
}

// jobErrorResponse maps the error of a failed, killed or timed out job.
func (h *Handlers) jobErrorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, transcoder.ErrResourceExceeded):
		return http.StatusInsufficientStorage, ErrorResponse{
			Error:   CodeResourceExceeded,
			Details: "The server ran out of memory processing this video. Try a smaller or lower-resolution file.",
		}
	case errors.Is(err, transcoder.ErrTimedOut):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   CodeTimeout,
			Details: fmt.Sprintf("Processing took longer than %s and was stopped.", h.transcoder.Timeout()),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   CodeProcessingFailed,
			Details: "The video could not be processed.",
		}
	}
}

// writeBusy answers 503 with a Retry-After hint.
func writeBusy(w http.ResponseWriter, retryAfter time.Duration, details string) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	writeJSON(w, nil, http.StatusServiceUnavailable, ErrorResponse{
		Error:   CodeServerBusy,
		Details: details,
	})
}
