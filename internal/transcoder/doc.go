// Package transcoder runs ffmpeg with a fixed low-memory profile.
//
// Each upload becomes one Job with an explicit lifecycle:
//
//	pending -> running -> succeeded | failed | killed | timed_out | canceled
//
// Failures carry a Kind and match one of the sentinel errors
// (ErrSpawnFailure, ErrEncodeFailure, ErrResourceExceeded, ErrTimedOut,
// ErrCanceled) through errors.Is. A job is killed when the process dies
// from a SIGKILL the transcoder did not send, exits with 137, or reports an
// allocation failure.
//
// On Unix ffmpeg runs in its own process group, and timeouts, client
// disconnects and shutdown kill the whole group. Only the last 64 KiB of
// stderr are kept, for server logs.
//
// ffmpeg must be installed and reachable through PATH or an explicit path.
package transcoder
