// Package filesystem provides scratch filesystem operations with retry logic
// for transient errors
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for scratch volumes
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Stubbed in tests.
var (
	removeFile = os.Remove
	statFile   = os.Stat
	sleep      = time.Sleep
)

// IsTransient reports whether err is worth retrying: a stale NFS handle, a
// busy file (a process that was just killed may still hold it), or an
// interrupted or temporarily unavailable system call.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.ESTALE, syscall.EBUSY, syscall.EINTR, syscall.EAGAIN:
		return true
	}
	return false
}

// RemoveWithRetry removes path, retrying transient errors with exponential
// backoff. A missing file is reported as fs.ErrNotExist without retrying.
func RemoveWithRetry(path string, config RetryConfig) error {
	return withRetry("remove", path, config, func() error {
		return removeFile(path)
	})
}

// StatWithRetry performs os.Stat with retry logic for transient errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var err error
		info, err = statFile(path)
		return err
	})
	return info, err
}

func withRetry(op, path string, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Filesystem %s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetrySuccess.WithLabelValues(op).Inc()
			}
			return nil
		}

		lastErr = err

		// Only retry on transient errors
		if errors.Is(err, fs.ErrNotExist) || !IsTransient(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			metrics.FilesystemRetryAttempts.WithLabelValues(op).Inc()
			logging.Debug("Filesystem %s transient error for %s, retrying in %v (attempt %d/%d): %v",
				op, path, backoff, attempt+1, config.MaxRetries, err)
			sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Filesystem %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues(op).Inc()
	return lastErr
}
