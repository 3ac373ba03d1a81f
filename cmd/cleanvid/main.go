package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/memory"
	"video-cleaner/internal/scratch"
	"video-cleaner/internal/transcoder"
)

const (
	// Default name of the cleaned file when no output path is given
	defaultOutput = "clean.mp4"
	// How often the elapsed time is redrawn on a terminal
	progressInterval = time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// Keep transcoder logs quiet unless asked for
	if os.Getenv("LOG_LEVEL") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, stopping ffmpeg...")
		cancel()
	}()

	interactive := term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // file descriptors fit in int

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, interactive)
	cancel()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, interactive bool) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	trans := transcoder.New(transcoder.Options{
		FFmpegPath: os.Getenv("FFMPEG_PATH"),
		Timeout:    timeoutFromEnv(stderr),
	})

	switch args[0] {
	case "process":
		if len(args) < 2 || len(args) > 3 {
			fmt.Fprintln(stderr, "Usage: cleanvid process <input> [output]")
			return 2
		}
		output := defaultOutput
		if len(args) == 3 {
			output = args[2]
		}
		if err := processFile(ctx, trans, args[1], output, stdout, stderr, interactive); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case "profile":
		fmt.Fprintf(stdout, "%s %s\n", trans.FFmpegPath(), strings.Join(trans.Profile().Args("<input>", "<output>"), " "))
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(args[0])
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand; only [a-zA-Z0-9_-] characters pass through
		printUsage(stderr)
		return 1
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Video Cleaner command line")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: cleanvid <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  process <input> [output]  - Clean a local video (default output: %s)\n", defaultOutput)
	fmt.Fprintln(w, "  profile                   - Print the ffmpeg command used")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  FFMPEG_PATH        - ffmpeg binary (default: ffmpeg from PATH)")
	fmt.Fprintln(w, "  TRANSCODE_TIMEOUT  - Per-file limit such as 10m (default: none)")
}

// timeoutFromEnv reads TRANSCODE_TIMEOUT. Invalid values are reported and
// ignored.
func timeoutFromEnv(stderr io.Writer) time.Duration {
	value := os.Getenv("TRANSCODE_TIMEOUT")
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		fmt.Fprintf(stderr, "Warning: ignoring invalid TRANSCODE_TIMEOUT %q\n", value)
		return 0
	}
	return d
}

// processFile copies input into a private scratch store, transcodes it and
// moves the result to output. The scratch store is removed on every path.
func processFile(ctx context.Context, trans *transcoder.Transcoder, input, output string, stdout, stderr io.Writer, interactive bool) (err error) {
	src, err := os.Open(input) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	root, err := os.MkdirTemp("", "cleanvid-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(root); rmErr != nil && err == nil {
			err = fmt.Errorf("remove scratch directory: %w", rmErr)
		}
	}()

	store, err := scratch.New(filepath.Join(root, "in"), filepath.Join(root, "out"))
	if err != nil {
		return err
	}

	dst, in, err := store.CreateInput(filepath.Base(input))
	if err != nil {
		return err
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("copy input: %w", err)
	}

	out, err := store.ReserveOutput()
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "Cleaning %s (%s)\n", filepath.Base(input), memory.FormatBytes(uint64(size))) //nolint:gosec // size is non-negative

	result := runWithProgress(ctx, trans, trans.NewJob(in, out), stderr, interactive)
	if result.State != transcoder.StateSucceeded {
		return describeFailure(result)
	}

	if err := moveFile(out.Path, output); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(stdout, "%s (%s, %s)\n", output, memory.FormatBytes(uint64(result.OutputSize)), result.Duration.Round(time.Millisecond)) //nolint:gosec // size is non-negative
	return nil
}

// runWithProgress runs the job, redrawing the elapsed time on a terminal.
func runWithProgress(ctx context.Context, trans *transcoder.Transcoder, job *transcoder.Job, stderr io.Writer, interactive bool) transcoder.Result {
	done := make(chan transcoder.Result, 1)
	go func() {
		done <- trans.Run(ctx, job)
	}()

	if !interactive {
		return <-done
	}

	start := time.Now()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case result := <-done:
			fmt.Fprint(stderr, "\r\033[K")
			return result
		case <-ticker.C:
			fmt.Fprintf(stderr, "\r\033[KEncoding... %s", time.Since(start).Round(time.Second))
		}
	}
}

// describeFailure turns a failed result into an operator-facing error. The
// ffmpeg diagnostics are included here since the operator owns the input.
func describeFailure(result transcoder.Result) error {
	var jobErr *transcoder.JobError
	switch {
	case errors.Is(result.Err, transcoder.ErrResourceExceeded):
		return fmt.Errorf("ffmpeg ran out of memory; try a smaller or lower-resolution file: %w", result.Err)
	case errors.Is(result.Err, transcoder.ErrCanceled):
		return fmt.Errorf("interrupted: %w", result.Err)
	case errors.As(result.Err, &jobErr) && jobErr.Stderr != "":
		return fmt.Errorf("%w\n%s", result.Err, jobErr.Stderr)
	case result.Err != nil:
		return result.Err
	default:
		return fmt.Errorf("transcode ended in state %s", result.State)
	}
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) //nolint:gosec // src is a scratch path
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // path comes from the operator
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
