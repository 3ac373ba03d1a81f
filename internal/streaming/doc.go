/*
Package streaming delivers files to HTTP clients with timeout protection.

# Overview

Slow or disconnected clients can hold server resources indefinitely while a
large response is streamed. TimeoutWriter wraps an http.ResponseWriter so
that stalled connections are detected and the copy is abandoned, letting the
handler run its cleanup.

# Key Features

  - Per-write timeouts bounded by WriteTimeout, enforced with connection
    write deadlines when the ResponseWriter supports them
  - Idle detection when no data flows for IdleTimeout
  - Large writes split into ChunkSize pieces and flushed
  - Client disconnect detection through the request context
  - Optional progress callback, once per MiB

# Delivering an Artifact

ServeAttachment sets Content-Type, Content-Length and a Content-Disposition
attachment header, then copies the file through a TimeoutWriter:

	tw := streaming.Track(w)
	n, err := streaming.ServeAttachment(r.Context(), tw, path, "clean.mp4", "video/mp4",
		streaming.DefaultTimeoutWriterConfig())
	switch {
	case errors.Is(err, streaming.ErrArtifactUnavailable):
		// nothing written yet, respond with an error
	case err != nil:
		// headers already sent; log only
	}

TrackedWriter records whether a response has been committed so callers
never write a second status line after streaming started.

# Error Handling

	ErrWriteTimeout        a write or the idle gap exceeded its bound
	ErrClientGone          the request context was canceled
	ErrStreamCanceled      the writer was closed or MaxDuration elapsed
	ErrArtifactUnavailable the file could not be opened (nothing written)

FailureReason maps these to the reason label of the delivery failure metric.

# Thread Safety

Writes are serialized internally. When the connection supports write
deadlines (http.ResponseController), each write runs on the caller's
goroutine and nothing touches the ResponseWriter after Write returns.
Otherwise a timed-out write is abandoned and may still be pending, so the
writer refuses further writes and reports the original error. Close clears
any deadline it set.
*/
package streaming
