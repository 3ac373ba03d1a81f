package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"video-cleaner/internal/startup"
	"video-cleaner/internal/transcoder"
	"video-cleaner/internal/upload"
)

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		ffmpegPath string
		wantStatus int
		wantBody   string
	}{
		{"ready", "", http.StatusOK, statusHealthy},
		{"ffmpeg missing", "/nonexistent/ffmpeg", http.StatusServiceUnavailable, statusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.ffmpegPath
			if path == "" {
				path = writeFakeFFmpeg(t, scriptSuccess)
			}
			env := newTestEnv(t, envOptions{ffmpegPath: path, timeout: time.Minute})

			w := httptest.NewRecorder()
			env.h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
			if resp.Version != startup.Version {
				t.Errorf("Version = %q", resp.Version)
			}
			if len(resp.Scratch) != 2 {
				t.Errorf("Scratch = %+v, want both directories", resp.Scratch)
			}
			if resp.TranscodeTimeout != "1m0s" {
				t.Errorf("TranscodeTimeout = %q", resp.TranscodeTimeout)
			}
			if tt.wantStatus != http.StatusOK && len(resp.Issues) == 0 {
				t.Error("a degraded response should list its issues")
			}
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{ffmpegPath: "/nonexistent/ffmpeg"})

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := httptest.NewRecorder()
		env.h.LivenessCheck(w, httptest.NewRequest(method, "/livez", http.NoBody))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", method, w.Code)
		}
		if method == http.MethodHead && w.Body.Len() != 0 {
			t.Error("HEAD should have no body")
		}
		if method == http.MethodGet && !strings.Contains(w.Body.String(), "alive") {
			t.Errorf("GET body = %q", w.Body.String())
		}
	}
}

func TestReadinessCheck(t *testing.T) {
	ready := newTestEnv(t, envOptions{ffmpegPath: writeFakeFFmpeg(t, scriptSuccess)})
	w := httptest.NewRecorder()
	ready.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	notReady := newTestEnv(t, envOptions{ffmpegPath: "/nonexistent/ffmpeg"})
	w = httptest.NewRecorder()
	notReady.h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ffmpeg") {
		t.Errorf("body %q should name the missing dependency", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, envOptions{ffmpegPath: "ffmpeg"})

	w := httptest.NewRecorder()
	env.h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp VersionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != startup.Version || resp.GoVersion == "" {
		t.Errorf("build info = %+v", resp.BuildInfo)
	}
	args := strings.Join(resp.FFmpegArgs, " ")
	if !strings.Contains(args, "crop=in_w-200:in_h-100:0:0") || !strings.Contains(args, "+faststart") {
		t.Errorf("profile args = %q", args)
	}
}

func TestMetricsHandler(t *testing.T) {
	env := newTestEnv(t, envOptions{ffmpegPath: "ffmpeg"})

	w := httptest.NewRecorder()
	env.h.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "video_cleaner_") {
		t.Error("expected video_cleaner_ metrics in the exposition")
	}
}

func TestUploadErrorResponse(t *testing.T) {
	env := newTestEnv(t, envOptions{ffmpegPath: "ffmpeg", maxBytes: 10 << 20})

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{upload.ErrNoFileProvided, http.StatusBadRequest, CodeNoFileProvided},
		{fmt.Errorf("wrapped: %w", upload.ErrFileTooLarge), http.StatusBadRequest, CodeFileTooLarge},
		{upload.ErrInvalidMimeType, http.StatusBadRequest, CodeInvalidMimeType},
		{upload.ErrStorage, http.StatusInternalServerError, CodeUploadFailed},
		{upload.ErrReadFailed, http.StatusInternalServerError, CodeUploadFailed},
	}
	for _, tt := range tests {
		status, body := env.h.uploadErrorResponse(tt.err)
		if status != tt.wantStatus || body.Error != tt.wantCode {
			t.Errorf("uploadErrorResponse(%v) = %d %q, want %d %q", tt.err, status, body.Error, tt.wantStatus, tt.wantCode)
		}
		if status == http.StatusBadRequest && (body.Message == "" || body.Details != "") {
			t.Errorf("%q: client errors carry message only: %+v", tt.wantCode, body)
		}
		if status >= http.StatusInternalServerError && (body.Details == "" || body.Message != "") {
			t.Errorf("%q: server errors carry details only: %+v", tt.wantCode, body)
		}
	}
}

func TestJobErrorResponse(t *testing.T) {
	env := newTestEnv(t, envOptions{ffmpegPath: "ffmpeg", timeout: 90 * time.Second})

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&transcoder.JobError{Kind: transcoder.KindResourceExceeded, ExitCode: 137}, http.StatusInsufficientStorage, CodeResourceExceeded},
		{&transcoder.JobError{Kind: transcoder.KindTimedOut}, http.StatusInternalServerError, CodeTimeout},
		{&transcoder.JobError{Kind: transcoder.KindEncodeFailure, ExitCode: 1, Stderr: "secret"}, http.StatusInternalServerError, CodeProcessingFailed},
		{&transcoder.JobError{Kind: transcoder.KindSpawnFailure, Err: errors.New("exec: not found")}, http.StatusInternalServerError, CodeProcessingFailed},
	}
	for _, tt := range tests {
		status, body := env.h.jobErrorResponse(tt.err)
		if status != tt.wantStatus || body.Error != tt.wantCode {
			t.Errorf("jobErrorResponse(%v) = %d %q, want %d %q", tt.err, status, body.Error, tt.wantStatus, tt.wantCode)
		}
		if strings.Contains(body.Details, "secret") || strings.Contains(body.Details, "exec:") {
			t.Errorf("details leak internals: %q", body.Details)
		}
	}

	_, body := env.h.jobErrorResponse(&transcoder.JobError{Kind: transcoder.KindTimedOut})
	if !strings.Contains(body.Details, "1m30s") {
		t.Errorf("timeout details %q should name the limit", body.Details)
	}
}
