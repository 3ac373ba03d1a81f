package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// Stats is a snapshot of kernel memory counters.
type Stats struct {
	TotalBytes     uint64
	AvailableBytes uint64
	SwapTotalBytes uint64
	SwapFreeBytes  uint64
}

// Reader samples system memory.
type Reader interface {
	ReadMemory() (Stats, error)
}

// ErrUnavailable is returned when the platform exposes no memory counters.
var ErrUnavailable = errors.New("system memory counters unavailable")

// ProcReader reads /proc/meminfo.
type ProcReader struct {
	fs procfs.FS
}

// NewProcReader opens the default procfs mount.
func NewProcReader() (*ProcReader, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &ProcReader{fs: fs}, nil
}

// ReadMemory implements Reader. procfs reports kB.
func (p *ProcReader) ReadMemory() (Stats, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read meminfo: %w", err)
	}
	if mi.MemAvailable == nil {
		return Stats{}, fmt.Errorf("%w: MemAvailable missing", ErrUnavailable)
	}
	kb := func(v *uint64) uint64 {
		if v == nil {
			return 0
		}
		return *v * 1024
	}
	return Stats{
		TotalBytes:     kb(mi.MemTotal),
		AvailableBytes: kb(mi.MemAvailable),
		SwapTotalBytes: kb(mi.SwapTotal),
		SwapFreeBytes:  kb(mi.SwapFree),
	}, nil
}

// Config holds memory pressure configuration
type Config struct {
	// CriticalAvailableBytes pauses admission when MemAvailable drops below it.
	CriticalAvailableBytes uint64

	// RecoverAvailableBytes resumes admission once MemAvailable is back
	// above it. Zero means twice the critical value.
	RecoverAvailableBytes uint64

	// CheckInterval is how often to sample memory
	CheckInterval time.Duration
}

// DefaultConfig returns the defaults for a small container.
func DefaultConfig() Config {
	return Config{
		CriticalAvailableBytes: 64 << 20,
		CheckInterval:          2 * time.Second,
	}
}

// Monitor samples system memory and tells the HTTP layer when to refuse
// new jobs.
type Monitor struct {
	config   Config
	reader   Reader
	stopChan chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	latest   Stats
	sampled  bool
	isPaused bool
}

// NewMonitor creates a monitor. A nil reader or a zero critical threshold
// disables backpressure.
func NewMonitor(config Config, reader Reader) *Monitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	if config.RecoverAvailableBytes == 0 {
		config.RecoverAvailableBytes = config.CriticalAvailableBytes * 2
	}

	switch {
	case reader == nil:
		logging.Warn("Memory monitor: system memory counters unavailable, backpressure disabled")
	case config.CriticalAvailableBytes == 0:
		logging.Info("Memory monitor: critical threshold is 0, backpressure disabled")
	default:
		logging.Info("Memory monitor: refusing jobs below %s available, resuming above %s",
			FormatBytes(config.CriticalAvailableBytes), FormatBytes(config.RecoverAvailableBytes))
	}

	return &Monitor{
		config:   config,
		reader:   reader,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether the monitor can ever refuse work.
func (m *Monitor) Enabled() bool {
	return m.reader != nil && m.config.CriticalAvailableBytes > 0
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if m.reader == nil {
		return
	}
	m.checkMemory()
	go m.monitorLoop()
}

// Stop stops the memory monitor. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	stats, err := m.reader.ReadMemory()
	if err != nil {
		logging.Debug("Memory monitor: %v", err)
		return
	}

	m.mu.Lock()
	m.latest = stats
	m.sampled = true
	wasPaused := m.isPaused

	if m.config.CriticalAvailableBytes > 0 {
		switch {
		case !m.isPaused && stats.AvailableBytes < m.config.CriticalAvailableBytes:
			m.isPaused = true
		case m.isPaused && stats.AvailableBytes >= m.config.RecoverAvailableBytes:
			m.isPaused = false
		}
	}
	paused := m.isPaused
	m.mu.Unlock()

	if paused != wasPaused {
		avail := FormatBytes(stats.AvailableBytes)
		if paused {
			logging.Warn("Memory critical (%s available), refusing new jobs", avail)
			metrics.MemoryPressure.Set(1)
		} else {
			logging.Info("Memory recovered (%s available), accepting jobs", avail)
			metrics.MemoryPressure.Set(0)
		}
	}
}

// IsPaused returns true if new jobs should be refused
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// RetryAfter is the delay suggested to refused clients, in whole seconds.
func (m *Monitor) RetryAfter() time.Duration {
	d := m.config.CheckInterval.Round(time.Second)
	if d < time.Second {
		d = time.Second
	}
	return d * 2
}

// Latest returns the last sample and whether one has been taken.
func (m *Monitor) Latest() (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.sampled
}

// SystemMemory implements metrics.SystemMemoryProvider.
func (m *Monitor) SystemMemory() (availableBytes, swapTotalBytes uint64, ok bool) {
	s, ok := m.Latest()
	return s.AvailableBytes, s.SwapTotalBytes, ok
}
