package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"video-cleaner/internal/metrics"
)

// stubRemove replaces removeFile with a function returning errs in order,
// then nil. Sleeps are recorded instead of taken.
func stubRemove(t *testing.T, errs ...error) (calls *int, sleeps *[]time.Duration) {
	t.Helper()
	var n int
	var slept []time.Duration

	origRemove, origSleep := removeFile, sleep
	removeFile = func(string) error {
		n++
		if n <= len(errs) {
			return errs[n-1]
		}
		return nil
	}
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() {
		removeFile = origRemove
		sleep = origSleep
	})
	return &n, &slept
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"EBUSY", syscall.EBUSY, true},
		{"EINTR", syscall.EINTR, true},
		{"EAGAIN", syscall.EAGAIN, true},
		{"wrapped EBUSY", &fs.PathError{Op: "remove", Path: "/x", Err: syscall.EBUSY}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"EACCES", syscall.EACCES, false},
		{"generic error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoveWithRetryRealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second remove error = %v, want ErrNotExist", err)
	}
}

func TestRemoveWithRetryRecovers(t *testing.T) {
	before := testutil.ToFloat64(metrics.FilesystemRetrySuccess.WithLabelValues("remove"))
	calls, sleeps := stubRemove(t,
		&fs.PathError{Op: "remove", Path: "/x", Err: syscall.EBUSY},
		&fs.PathError{Op: "remove", Path: "/x", Err: syscall.ESTALE},
	)

	if err := RemoveWithRetry("/x", DefaultRetryConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if *calls != 3 {
		t.Errorf("calls = %d, want 3", *calls)
	}
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if fmt.Sprint(*sleeps) != fmt.Sprint(want) {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
	if got := testutil.ToFloat64(metrics.FilesystemRetrySuccess.WithLabelValues("remove")); got != before+1 {
		t.Errorf("retry success counter = %v, want %v", got, before+1)
	}
}

func TestRemoveWithRetryExhausted(t *testing.T) {
	busy := &fs.PathError{Op: "remove", Path: "/x", Err: syscall.EBUSY}
	calls, sleeps := stubRemove(t, busy, busy, busy, busy, busy)

	config := RetryConfig{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 150 * time.Millisecond}
	err := RemoveWithRetry("/x", config)
	if !errors.Is(err, syscall.EBUSY) {
		t.Fatalf("error = %v, want EBUSY", err)
	}
	if *calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", *calls)
	}
	want := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond}
	if fmt.Sprint(*sleeps) != fmt.Sprint(want) {
		t.Errorf("sleeps = %v, want capped backoff %v", *sleeps, want)
	}
}

func TestRemoveWithRetryPermanentError(t *testing.T) {
	calls, sleeps := stubRemove(t, &fs.PathError{Op: "remove", Path: "/x", Err: syscall.EACCES})

	if err := RemoveWithRetry("/x", DefaultRetryConfig()); !errors.Is(err, syscall.EACCES) {
		t.Fatalf("error = %v, want EACCES", err)
	}
	if *calls != 1 || len(*sleeps) != 0 {
		t.Errorf("permanent errors must not be retried: calls = %d, sleeps = %v", *calls, *sleeps)
	}
}

func TestStatWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.mp4")
	if err := os.WriteFile(path, []byte("clean"), 0o600); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}

	if _, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not exist", err)
	}
}

func BenchmarkRemoveWithRetry(b *testing.B) {
	dir := b.TempDir()
	config := DefaultRetryConfig()

	for i := 0; i < b.N; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d", i))
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			b.Fatal(err)
		}
		if err := RemoveWithRetry(path, config); err != nil {
			b.Fatal(err)
		}
	}
}
