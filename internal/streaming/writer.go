package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"video-cleaner/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout means a single write, or the gap between writes,
	// exceeded its bound. The client is reading too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the stream
	// completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled means the writer was closed or hit MaxDuration.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout is the maximum time to wait for a single write operation
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes
	IdleTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
	// OnProgress is called after each MiB boundary is crossed
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns the configuration used for artifact delivery.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxDuration:  0,
		ChunkSize:    256 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with timeout protection
type TimeoutWriter struct {
	w       http.ResponseWriter
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelCauseFunc
	config  TimeoutWriterConfig
	flusher http.Flusher

	// rc is set when the connection supports write deadlines. Writes then
	// run on the calling goroutine and are bounded by the deadline.
	rc         *http.ResponseController
	deadlineMu sync.Mutex
	released   bool
	stopAfter  func() bool

	// writeMu serializes writes to the underlying ResponseWriter.
	writeMu sync.Mutex

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
	// failed is set once a write timed out. Without write deadlines the
	// abandoned write may still be in flight, so no further writes are issued.
	failed error
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancelCause(ctx)

	now := time.Now()
	tw := &TimeoutWriter{
		w:         w,
		parent:    ctx,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}

	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err == nil {
		tw.rc = rc
		// Cancellation interrupts a blocked write by expiring its deadline.
		tw.stopAfter = context.AfterFunc(writerCtx, func() {
			tw.setDeadline(time.Now())
		})
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.writeMu.Lock()
	defer tw.writeMu.Unlock()

	tw.mu.Lock()
	closed, failed := tw.closed, tw.failed
	tw.mu.Unlock()
	if failed != nil {
		return 0, failed
	}
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctxError(); err != nil {
		return 0, err
	}

	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		tw.cancel(ErrStreamCanceled)
		return 0, ErrStreamCanceled
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeWithTimeout(p)
}

func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := tw.ctxError(); err != nil {
			return total, err
		}

		size := min(tw.config.ChunkSize, len(p))
		n, err := tw.writeWithTimeout(p[:size])
		total += n
		if err != nil {
			return total, err
		}
		p = p[size:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return total, nil
}

func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	if tw.rc != nil {
		return tw.writeWithDeadline(p)
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	var timeout <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case result := <-resultCh:
		if result.err != nil {
			return result.n, result.err
		}
		tw.recordWrite(result.n)
		return result.n, nil

	case <-timeout:
		tw.fail(ErrWriteTimeout)
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		err := tw.ctxError()
		tw.fail(err)
		return 0, err
	}
}

// writeWithDeadline writes p synchronously under a per-write deadline, so
// nothing touches the ResponseWriter once Write has returned.
func (tw *TimeoutWriter) writeWithDeadline(p []byte) (int, error) {
	var deadline time.Time
	if tw.config.WriteTimeout > 0 {
		deadline = time.Now().Add(tw.config.WriteTimeout)
	}
	tw.setDeadline(deadline)

	n, err := tw.w.Write(p)
	if err != nil {
		if ctxErr := tw.ctxError(); ctxErr != nil {
			tw.fail(ctxErr)
			return n, ctxErr
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			tw.fail(ErrWriteTimeout)
			return n, ErrWriteTimeout
		}
		return n, err
	}
	tw.recordWrite(n)
	return n, nil
}

// setDeadline applies a write deadline unless Close has released the
// connection.
func (tw *TimeoutWriter) setDeadline(t time.Time) {
	tw.deadlineMu.Lock()
	defer tw.deadlineMu.Unlock()
	if tw.released {
		return
	}
	if err := tw.rc.SetWriteDeadline(t); err != nil {
		logging.Debug("Failed to set write deadline: %v", err)
	}
}

func (tw *TimeoutWriter) recordWrite(n int) {
	tw.mu.Lock()
	before := tw.bytesWritten
	tw.lastWrite = time.Now()
	tw.bytesWritten += int64(n)
	after := tw.bytesWritten
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && after>>20 != before>>20 {
		tw.config.OnProgress(after, time.Since(tw.startTime))
	}
}

func (tw *TimeoutWriter) fail(err error) {
	tw.mu.Lock()
	if tw.failed == nil {
		tw.failed = err
	}
	tw.mu.Unlock()
	tw.cancel(err)
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel(ErrWriteTimeout)
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// ctxError maps the writer's context state to a sentinel error, or nil
// while the stream is live. A canceled parent means the client went away.
func (tw *TimeoutWriter) ctxError() error {
	if tw.ctx.Err() == nil {
		return nil
	}
	if tw.parent.Err() != nil {
		return ErrClientGone
	}
	cause := context.Cause(tw.ctx)
	if errors.Is(cause, ErrWriteTimeout) {
		return ErrWriteTimeout
	}
	return ErrStreamCanceled
}

// Close stops the idle checker and clears any write deadline left on the
// connection. Later writes fail with ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return nil
	}
	tw.closed = true
	tw.mu.Unlock()

	if tw.rc != nil {
		tw.stopAfter()
		tw.deadlineMu.Lock()
		tw.released = true
		err := tw.rc.SetWriteDeadline(time.Time{})
		tw.deadlineMu.Unlock()
		if err != nil {
			logging.Debug("Failed to clear write deadline: %v", err)
		}
	}
	tw.cancel(ErrStreamCanceled)
	return nil
}

// Stats returns streaming statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}
