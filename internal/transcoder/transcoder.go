package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
	"video-cleaner/internal/scratch"
)

const (
	// DefaultFFmpegPath is resolved through PATH.
	DefaultFFmpegPath = "ffmpeg"

	// DefaultTimeout bounds a single job. Zero disables the bound.
	DefaultTimeout = 10 * time.Minute
)

// Options configures a Transcoder.
type Options struct {
	FFmpegPath string
	Profile    Profile
	Timeout    time.Duration

	// MaxConcurrent caps simultaneous ffmpeg processes. Zero means unlimited.
	MaxConcurrent int
}

// Transcoder runs transcoding jobs and tracks the live ones so they can be
// killed on shutdown.
type Transcoder struct {
	ffmpegPath string
	profile    Profile
	timeout    time.Duration
	sem        *semaphore.Weighted
	maxJobs    int

	jobsMu sync.Mutex
	jobs   map[string]*Job
	closed bool

	// shutdown is closed by Cleanup and releases jobs waiting for a slot.
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New creates a Transcoder. A zero Profile selects DefaultProfile.
func New(opts Options) *Transcoder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = DefaultFFmpegPath
	}
	if opts.Profile.isZero() {
		opts.Profile = DefaultProfile()
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}

	t := &Transcoder{
		ffmpegPath: opts.FFmpegPath,
		profile:    opts.Profile,
		timeout:    opts.Timeout,
		jobs:       make(map[string]*Job),
		shutdown:   make(chan struct{}),
	}
	if opts.MaxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
		t.maxJobs = opts.MaxConcurrent
	}
	return t
}

// FFmpegPath returns the configured binary.
func (t *Transcoder) FFmpegPath() string { return t.ffmpegPath }

// Profile returns the encoding profile.
func (t *Transcoder) Profile() Profile { return t.profile }

// Timeout returns the per-job bound, zero when unbounded.
func (t *Transcoder) Timeout() time.Duration { return t.timeout }

// MaxConcurrent returns the concurrency cap, zero when unlimited.
func (t *Transcoder) MaxConcurrent() int { return t.maxJobs }

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() error {
	if _, err := exec.LookPath(t.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

// NewJob creates a pending job converting input into output.
func (t *Transcoder) NewJob(input, output scratch.File) *Job {
	return newJob(t.ffmpegPath, t.profile, t.timeout, input, output)
}

// Run starts job and waits for it to reach a terminal state. When a
// concurrency cap is set, Run first waits for a free slot; if ctx ends
// while waiting the job is canceled without spawning. After Cleanup every
// job is canceled without spawning.
func (t *Transcoder) Run(ctx context.Context, job *Job) Result {
	if t.sem != nil {
		if err := t.acquire(ctx); err != nil {
			_ = job.cancelPending(err)
			return job.Wait()
		}
		defer t.sem.Release(1)
	}

	if !t.register(job) {
		_ = job.cancelPending(errShuttingDown)
		return job.Wait()
	}
	defer t.unregister(job)

	if err := job.Start(ctx); err != nil {
		logging.Debug("Job %s did not start: %v", job.ID, err)
	}
	return job.Wait()
}

// acquire waits for a concurrency slot until ctx ends or Cleanup runs.
func (t *Transcoder) acquire(ctx context.Context) error {
	metrics.TranscoderJobsWaiting.Inc()
	defer metrics.TranscoderJobsWaiting.Dec()

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-t.shutdown:
			cancel(errShuttingDown)
		case <-waitCtx.Done():
		}
	}()

	if err := t.sem.Acquire(waitCtx, 1); err != nil {
		return context.Cause(waitCtx)
	}
	return nil
}

// register records a live job. It refuses once Cleanup has run.
func (t *Transcoder) register(job *Job) bool {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()
	if t.closed {
		return false
	}
	t.jobs[job.ID] = job
	return true
}

func (t *Transcoder) unregister(job *Job) {
	t.jobsMu.Lock()
	delete(t.jobs, job.ID)
	t.jobsMu.Unlock()
}

// ActiveJobs returns the number of registered jobs.
func (t *Transcoder) ActiveJobs() int {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()
	return len(t.jobs)
}

// Cleanup kills every running job and closes the transcoder: jobs still
// waiting for a slot, and jobs submitted later, are canceled before ffmpeg
// is spawned. Their handlers observe the canceled state and remove the
// scratch files.
func (t *Transcoder) Cleanup() {
	t.jobsMu.Lock()
	t.closed = true
	jobs := make([]*Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	t.jobsMu.Unlock()

	t.shutdownOnce.Do(func() { close(t.shutdown) })

	for _, job := range jobs {
		logging.Info("Stopping transcoding job %s for: %s", job.ID, job.Input.Name)
		job.Abort()
	}
}
