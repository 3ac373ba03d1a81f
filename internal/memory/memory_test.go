package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"testing"
	"time"
)

type fakeReader struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (f *fakeReader) ReadMemory() (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stats, f.err
}

func (f *fakeReader) setAvailable(b uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.AvailableBytes = b
}

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	orig := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(orig) })
}

// stubCgroup points cgroup detection at a file holding content, or at a
// missing file when content is empty.
func stubCgroup(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.max")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	orig := cgroupLimitFiles
	cgroupLimitFiles = []string{path}
	t.Cleanup(func() { cgroupLimitFiles = orig })
}

func TestConfigureFromEnvNone(t *testing.T) {
	restoreMemoryLimit(t)
	stubCgroup(t, "")
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected not configured")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want none", result.Source)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantLimit int64
		wantRatio float64
	}{
		{"bytes default ratio", "1073741824", "", 512 << 20, 0.5},
		{"unit suffix", "1GiB", "", 512 << 20, 0.5},
		{"custom ratio", "1000000000", "0.75", 750000000, 0.75},
		{"ratio out of range", "1000000000", "1.5", 500000000, 0.5},
		{"ratio unparsable", "1000000000", "half", 500000000, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()
			if !result.Configured {
				t.Fatal("expected configured")
			}
			if result.Source != SourceMemoryLimit {
				t.Errorf("Source = %q", result.Source)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			if got := debug.SetMemoryLimit(-1); got != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", got, tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	restoreMemoryLimit(t)
	stubCgroup(t, "1073741824\n")
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("expected not configured for invalid MEMORY_LIMIT")
	}
}

func TestConfigureFromEnvGoMemLimitWins(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "256MiB")
	t.Setenv("MEMORY_LIMIT", "1GiB")

	debug.SetMemoryLimit(256 << 20)
	result := ConfigureFromEnv()
	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", result.Source)
	}
	if result.GoMemLimit != 256<<20 {
		t.Errorf("GoMemLimit = %d", result.GoMemLimit)
	}
}

func TestConfigureFromCgroup(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		configured bool
		wantLimit  int64
	}{
		{"v2 limit", "1073741824\n", true, 512 << 20},
		{"v2 unlimited", "max\n", false, 0},
		{"v1 unlimited", "9223372036854771712\n", false, 0},
		{"garbage", "lots\n", false, 0},
		{"missing file", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			stubCgroup(t, tt.content)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", "")
			t.Setenv("MEMORY_RATIO", "")

			result := ConfigureFromEnv()
			if result.Configured != tt.configured {
				t.Fatalf("Configured = %v, want %v", result.Configured, tt.configured)
			}
			if !tt.configured {
				return
			}
			if result.Source != SourceCgroup {
				t.Errorf("Source = %q, want %q", result.Source, SourceCgroup)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
		})
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"52428800", 52428800, false},
		{"50MiB", 50 << 20, false},
		{"1 GiB", 1 << 30, false},
		{"2G", 2000000000, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBytes(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1 << 20, "1.0 MiB"},
		{3 << 29, "1.5 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewMonitorDefaults(t *testing.T) {
	m := NewMonitor(Config{CriticalAvailableBytes: 10}, &fakeReader{})
	if m.config.CheckInterval != DefaultConfig().CheckInterval {
		t.Errorf("CheckInterval = %v", m.config.CheckInterval)
	}
	if m.config.RecoverAvailableBytes != 20 {
		t.Errorf("RecoverAvailableBytes = %d, want 20", m.config.RecoverAvailableBytes)
	}
	if !m.Enabled() {
		t.Error("expected enabled")
	}
}

func TestMonitorDisabled(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		reader Reader
	}{
		{"nil reader", DefaultConfig(), nil},
		{"zero threshold", Config{}, &fakeReader{stats: Stats{AvailableBytes: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.config, tt.reader)
			if m.Enabled() {
				t.Error("expected disabled")
			}
			m.Start()
			defer m.Stop()
			if m.IsPaused() {
				t.Error("disabled monitor must never pause")
			}
		})
	}
}

func TestMonitorHysteresis(t *testing.T) {
	reader := &fakeReader{stats: Stats{AvailableBytes: 500}}
	m := NewMonitor(Config{
		CriticalAvailableBytes: 100,
		RecoverAvailableBytes:  200,
		CheckInterval:          time.Hour,
	}, reader)

	steps := []struct {
		available  uint64
		wantPaused bool
	}{
		{500, false},
		{99, true},
		{150, true}, // between thresholds, stays paused
		{200, false},
		{150, false}, // between thresholds, stays running
		{100, false},
		{50, true},
	}

	for i, step := range steps {
		reader.setAvailable(step.available)
		m.checkMemory()
		if got := m.IsPaused(); got != step.wantPaused {
			t.Errorf("step %d (available %d): paused = %v, want %v", i, step.available, got, step.wantPaused)
		}
	}
}

func TestMonitorReadError(t *testing.T) {
	reader := &fakeReader{stats: Stats{AvailableBytes: 10}}
	m := NewMonitor(Config{CriticalAvailableBytes: 100, CheckInterval: time.Hour}, reader)

	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("expected paused")
	}

	reader.mu.Lock()
	reader.err = errors.New("boom")
	reader.mu.Unlock()

	m.checkMemory()
	if !m.IsPaused() {
		t.Error("a failed sample must not change state")
	}
}

func TestMonitorStartSamplesImmediately(t *testing.T) {
	reader := &fakeReader{stats: Stats{AvailableBytes: 1 << 30, SwapTotalBytes: 4096}}
	m := NewMonitor(Config{CriticalAvailableBytes: 1, CheckInterval: time.Hour}, reader)
	m.Start()
	m.Stop()
	m.Stop()

	avail, swap, ok := m.SystemMemory()
	if !ok {
		t.Fatal("expected a sample after Start")
	}
	if avail != 1<<30 || swap != 4096 {
		t.Errorf("SystemMemory = %d, %d", avail, swap)
	}
}

func TestMonitorLatestBeforeSample(t *testing.T) {
	m := NewMonitor(DefaultConfig(), &fakeReader{})
	if _, ok := m.Latest(); ok {
		t.Error("expected no sample before Start")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{2 * time.Second, 4 * time.Second},
		{100 * time.Millisecond, 2 * time.Second},
		{5 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		m := NewMonitor(Config{CheckInterval: tt.interval}, nil)
		if got := m.RetryAfter(); got != tt.want {
			t.Errorf("RetryAfter(%v) = %v, want %v", tt.interval, got, tt.want)
		}
	}
}

func stubRunCommand(t *testing.T, fn func(name string, args ...string) ([]byte, error)) *[]string {
	t.Helper()
	var calls []string
	orig := runCommand
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name)
		return fn(name, args...)
	}
	t.Cleanup(func() { runCommand = orig })
	return &calls
}

func TestProvisionSwapSkipped(t *testing.T) {
	calls := stubRunCommand(t, func(string, ...string) ([]byte, error) { return nil, nil })

	tests := []struct {
		name   string
		cfg    SwapConfig
		reader Reader
	}{
		{"no path", SwapConfig{Size: 1 << 20}, nil},
		{"zero size", SwapConfig{Path: filepath.Join(t.TempDir(), "swap")}, nil},
		{"swap present", SwapConfig{Path: filepath.Join(t.TempDir(), "swap"), Size: 1 << 20},
			&fakeReader{stats: Stats{SwapTotalBytes: 1 << 30}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProvisionSwap(context.Background(), tt.cfg, tt.reader)
			if result.Enabled || result.Err != nil {
				t.Errorf("unexpected result %+v", result)
			}
			if result.Skipped == "" {
				t.Error("expected skip reason")
			}
		})
	}
	if len(*calls) != 0 {
		t.Errorf("no commands expected, got %v", *calls)
	}
}

func TestProvisionSwapCommandFailureIsNonFatal(t *testing.T) {
	stubRunCommand(t, func(name string, _ ...string) ([]byte, error) {
		if name == "swapon" {
			return []byte("operation not permitted"), errors.New("exit status 255")
		}
		return nil, nil
	})

	path := filepath.Join(t.TempDir(), "swap")
	result := ProvisionSwap(context.Background(), SwapConfig{Path: path, Size: 1 << 20}, &fakeReader{})
	if result.Enabled {
		t.Fatal("expected not enabled")
	}
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if m, _ := filepath.Glob(path); len(m) != 0 {
		t.Error("swap file should be removed after failure")
	}
}

func TestProvisionSwapSuccess(t *testing.T) {
	calls := stubRunCommand(t, func(string, ...string) ([]byte, error) { return nil, nil })

	path := filepath.Join(t.TempDir(), "swap")
	result := ProvisionSwap(context.Background(), SwapConfig{Path: path, Size: 1 << 20}, &fakeReader{})
	if errors.Is(result.Err, ErrSwapUnsupported) {
		t.Skip("swap files not supported on this platform")
	}
	if result.Err != nil {
		// Some filesystems (tmpfs on older kernels) reject fallocate.
		t.Skipf("allocation not supported here: %v", result.Err)
	}
	if !result.Enabled {
		t.Fatal("expected enabled")
	}
	if len(*calls) != 2 || (*calls)[0] != "mkswap" || (*calls)[1] != "swapon" {
		t.Errorf("calls = %v, want [mkswap swapon]", *calls)
	}
}
