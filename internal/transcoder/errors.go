package transcoder

import (
	"errors"
	"fmt"
)

// Kind classifies why a job did not succeed.
type Kind int

const (
	KindSpawnFailure Kind = iota + 1
	KindEncodeFailure
	KindResourceExceeded
	KindTimedOut
	KindCanceled
)

// Sentinel errors, one per Kind. A *JobError matches its Kind's sentinel
// with errors.Is.
var (
	ErrSpawnFailure     = errors.New("failed to start ffmpeg")
	ErrEncodeFailure    = errors.New("ffmpeg failed to encode the video")
	ErrResourceExceeded = errors.New("ffmpeg ran out of memory")
	ErrTimedOut         = errors.New("transcoding timed out")
	ErrCanceled         = errors.New("transcoding canceled")

	ErrInvalidTransition = errors.New("invalid job state transition")
)

func (k Kind) sentinel() error {
	switch k {
	case KindSpawnFailure:
		return ErrSpawnFailure
	case KindEncodeFailure:
		return ErrEncodeFailure
	case KindResourceExceeded:
		return ErrResourceExceeded
	case KindTimedOut:
		return ErrTimedOut
	case KindCanceled:
		return ErrCanceled
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindSpawnFailure:
		return "spawn_failure"
	case KindEncodeFailure:
		return "encode_failure"
	case KindResourceExceeded:
		return "resource_exceeded"
	case KindTimedOut:
		return "timed_out"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// JobError describes a failed job. Stderr holds the tail of ffmpeg's
// diagnostics and is meant for server logs only.
type JobError struct {
	Kind     Kind
	ExitCode int
	Signal   string
	Stderr   string
	Err      error
}

func (e *JobError) Error() string {
	msg := e.Kind.sentinel().Error()
	switch {
	case e.Signal != "":
		msg = fmt.Sprintf("%s (signal %s)", msg, e.Signal)
	case e.ExitCode > 0:
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for the error's Kind.
func (e *JobError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *JobError) Unwrap() error {
	return e.Err
}
