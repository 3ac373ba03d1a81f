/*
Package filesystem provides filesystem operations with automatic retry logic
for transient errors on scratch volumes.

# Purpose

Scratch files must be removed on every path through a request. On network
volumes a removal can fail with ESTALE, and a file that belonged to an ffmpeg
process that was just killed can briefly report EBUSY. This package wraps
os.Remove and os.Stat so those failures are retried before being reported.

# Usage

	err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
	    logging.Warn("cleanup failed: %v", err)
	}

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

ESTALE, EBUSY, EINTR and EAGAIN trigger retries. A missing file and every
other error fail immediately. Retries, recoveries and exhausted retries are
counted in the video_cleaner_filesystem_retry_* metrics.
*/
package filesystem
