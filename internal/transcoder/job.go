package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-cleaner/internal/filesystem"
	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
	"video-cleaner/internal/scratch"
)

// State is a job's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateKilled
	StateTimedOut
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateKilled:
		return "killed"
	case StateTimedOut:
		return "timed_out"
	case StateCanceled:
		return "canceled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

var transitions = map[State][]State{
	StatePending: {StateRunning, StateFailed, StateCanceled},
	StateRunning: {StateSucceeded, StateFailed, StateKilled, StateTimedOut, StateCanceled},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var errShuttingDown = errors.New("server shutting down")

// waitDelay bounds how long Wait blocks on stderr after the process exits.
const waitDelay = 5 * time.Second

// OOM markers ffmpeg and libc print when an allocation fails.
var oomMarkers = []string{"cannot allocate memory", "out of memory"}

type stopReason int

const (
	stopNone stopReason = iota
	stopTimeout
	stopCanceled
	stopShutdown
)

// Result is the outcome of a terminal job.
type Result struct {
	State      State
	Err        error
	ExitCode   int
	Duration   time.Duration
	Output     scratch.File
	OutputSize int64
}

// Job is a single ffmpeg invocation turning Input into Output.
type Job struct {
	ID      string
	Input   scratch.File
	Output  scratch.File
	Profile Profile

	ffmpegPath string
	timeout    time.Duration

	mu        sync.Mutex
	state     State
	started   bool
	cmdline   string
	startedAt time.Time
	result    Result

	stderr    *tailBuffer
	done      chan struct{}
	abort     chan struct{}
	abortOnce sync.Once
}

func newJob(ffmpegPath string, profile Profile, timeout time.Duration, input, output scratch.File) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Input:      input,
		Output:     output,
		Profile:    profile,
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		state:      StatePending,
		stderr:     newTailBuffer(stderrTailBytes),
		done:       make(chan struct{}),
		abort:      make(chan struct{}),
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// CommandLine returns the resolved command once the job has started.
func (j *Job) CommandLine() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cmdline
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job is terminal and returns its result.
func (j *Job) Wait() Result {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Abort stops the job during shutdown. It is safe to call at any time and
// more than once.
func (j *Job) Abort() {
	j.abortOnce.Do(func() { close(j.abort) })
}

func (j *Job) aborted() bool {
	select {
	case <-j.abort:
		return true
	default:
		return false
	}
}

// Start spawns ffmpeg and moves the job to running. The process is
// supervised until it exits, the timeout elapses, ctx ends, or Abort is
// called. A spawn failure moves the job straight to failed.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.started || j.state != StatePending {
		state := j.state
		j.mu.Unlock()
		return fmt.Errorf("%w: cannot start a %s job", ErrInvalidTransition, state)
	}
	j.started = true
	j.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return j.cancelPending(context.Cause(ctx))
	}
	if j.aborted() {
		return j.cancelPending(errShuttingDown)
	}

	args := j.Profile.Args(j.Input.Path, j.Output.Path)
	cmd := exec.Command(j.ffmpegPath, args...)
	cmd.Stderr = j.stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		jobErr := &JobError{Kind: KindSpawnFailure, ExitCode: -1, Err: err}
		j.finish(StateFailed, jobErr, -1)
		return jobErr
	}

	cmdline := j.ffmpegPath + " " + strings.Join(args, " ")

	j.mu.Lock()
	j.cmdline = cmdline
	j.startedAt = time.Now()
	j.state = StateRunning
	j.mu.Unlock()

	metrics.TranscoderJobsInProgress.Inc()
	logging.Info("Job %s spawned ffmpeg (pid %d): %s", j.ID, cmd.Process.Pid, cmdline)

	go j.supervise(ctx, cmd)
	return nil
}

// cancelPending ends a job that never spawned.
func (j *Job) cancelPending(cause error) error {
	jobErr := &JobError{Kind: KindCanceled, ExitCode: -1, Err: cause}
	j.finish(StateCanceled, jobErr, -1)
	return jobErr
}

func (j *Job) supervise(ctx context.Context, cmd *exec.Cmd) {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var timeout <-chan time.Time
	if j.timeout > 0 {
		timer := time.NewTimer(j.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	reason := stopNone
	var waitErr error
	select {
	case waitErr = <-exited:
	case <-timeout:
		reason = stopTimeout
	case <-ctx.Done():
		reason = stopCanceled
	case <-j.abort:
		reason = stopShutdown
	}

	if reason != stopNone {
		logging.Warn("Job %s: killing ffmpeg process group (%s)", j.ID, reasonText(reason))
		killProcessGroup(cmd)
		waitErr = <-exited
	}

	metrics.TranscoderJobsInProgress.Dec()
	j.complete(ctx, cmd, waitErr, reason)
}

func reasonText(r stopReason) string {
	switch r {
	case stopTimeout:
		return "timeout"
	case stopCanceled:
		return "request canceled"
	case stopShutdown:
		return "shutdown"
	}
	return "exited"
}

func (j *Job) complete(ctx context.Context, cmd *exec.Cmd, waitErr error, reason stopReason) {
	exitCode := -1
	signal := ""
	sigkill := false
	if ps := cmd.ProcessState; ps != nil {
		exitCode = ps.ExitCode()
		signal, sigkill = terminationSignal(ps)
	}
	stderr := j.stderr.String()

	newErr := func(kind Kind, err error) *JobError {
		return &JobError{Kind: kind, ExitCode: exitCode, Signal: signal, Stderr: stderr, Err: err}
	}

	switch reason {
	case stopTimeout:
		j.finish(StateTimedOut, newErr(KindTimedOut, fmt.Errorf("exceeded %s", j.timeout)), exitCode)
		return
	case stopCanceled:
		j.finish(StateCanceled, newErr(KindCanceled, context.Cause(ctx)), exitCode)
		return
	case stopShutdown:
		j.finish(StateCanceled, newErr(KindCanceled, errShuttingDown), exitCode)
		return
	}

	exitedCleanly := waitErr == nil || (errors.Is(waitErr, exec.ErrWaitDelay) && exitCode == 0)
	if exitedCleanly {
		size, err := outputSize(j.Output.Path)
		if err != nil {
			j.finish(StateFailed, newErr(KindEncodeFailure, err), exitCode)
			return
		}
		j.mu.Lock()
		j.result.OutputSize = size
		j.mu.Unlock()
		j.finish(StateSucceeded, nil, exitCode)
		return
	}

	if outOfMemory(exitCode, sigkill, stderr) {
		j.finish(StateKilled, newErr(KindResourceExceeded, waitErr), exitCode)
		return
	}
	j.finish(StateFailed, newErr(KindEncodeFailure, waitErr), exitCode)
}

func outputSize(path string) (int64, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return 0, errors.New("output is empty")
	}
	return info.Size(), nil
}

// outOfMemory reports whether the process was taken down by memory
// exhaustion: a SIGKILL nobody in this process sent (the kernel OOM
// killer), the shell convention 137 = 128+SIGKILL, or an allocation
// failure reported by ffmpeg itself.
func outOfMemory(exitCode int, sigkill bool, stderr string) bool {
	if sigkill || exitCode == 137 {
		return true
	}
	lower := strings.ToLower(stderr)
	for _, marker := range oomMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (j *Job) finish(state State, jobErr *JobError, exitCode int) {
	j.mu.Lock()
	if !canTransition(j.state, state) {
		from := j.state
		j.mu.Unlock()
		logging.Error("Job %s: %v: %s -> %s", j.ID, ErrInvalidTransition, from, state)
		return
	}

	j.state = state
	j.result.State = state
	j.result.ExitCode = exitCode
	j.result.Output = j.Output
	if jobErr != nil {
		j.result.Err = jobErr
	}
	if !j.startedAt.IsZero() {
		j.result.Duration = time.Since(j.startedAt)
	}
	result := j.result
	j.mu.Unlock()

	metrics.TranscoderJobsTotal.WithLabelValues(state.String()).Inc()
	if !j.startedAt.IsZero() {
		metrics.TranscoderJobDuration.Observe(result.Duration.Seconds())
	}
	j.logResult(result, jobErr)

	close(j.done)
}

func (j *Job) logResult(result Result, jobErr *JobError) {
	switch result.State {
	case StateSucceeded:
		logging.Info("Job %s succeeded in %v (%d bytes)", j.ID, result.Duration.Round(time.Millisecond), result.OutputSize)
		return
	case StateCanceled:
		logging.Info("Job %s canceled: %v", j.ID, jobErr)
		return
	}

	if jobErr.Kind == KindSpawnFailure {
		logging.Critical("Job %s: %v", j.ID, jobErr)
	} else {
		logging.Error("Job %s %s: %v", j.ID, result.State, jobErr)
	}
	if jobErr.Stderr != "" {
		if lost := j.stderr.Truncated(); lost > 0 {
			logging.Error("FFmpeg stderr (first %d bytes dropped):\n%s", lost, jobErr.Stderr)
		} else {
			logging.Error("FFmpeg stderr:\n%s", jobErr.Stderr)
		}
	}
}
