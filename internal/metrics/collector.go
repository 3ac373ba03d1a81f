package metrics

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"video-cleaner/internal/logging"
)

// ScratchStats describes one scratch directory at collection time.
type ScratchStats struct {
	Role      string
	Files     int
	Bytes     int64
	FreeBytes uint64
}

// ScratchStatsProvider reports the current contents of the scratch directories.
type ScratchStatsProvider interface {
	ScratchStats() []ScratchStats
}

// SystemMemoryProvider reports kernel memory counters. ok is false when the
// platform does not expose them.
type SystemMemoryProvider interface {
	SystemMemory() (availableBytes, swapTotalBytes uint64, ok bool)
}

// Collector periodically collects and updates gauge metrics
type Collector struct {
	scratch  ScratchStatsProvider
	memory   SystemMemoryProvider
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector. Either provider may be nil.
func NewCollector(scratch ScratchStatsProvider, memory SystemMemoryProvider, interval time.Duration) *Collector {
	return &Collector{
		scratch:  scratch,
		memory:   memory,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectRuntimeMemory()

	if c.memory != nil {
		if available, swapTotal, ok := c.memory.SystemMemory(); ok {
			SystemMemAvailableBytes.Set(float64(available))
			SystemSwapTotalBytes.Set(float64(swapTotal))
		}
	}

	if c.scratch == nil {
		return
	}

	for _, s := range c.scratch.ScratchStats() {
		ScratchFiles.WithLabelValues(s.Role).Set(float64(s.Files))
		ScratchBytes.WithLabelValues(s.Role).Set(float64(s.Bytes))
		ScratchFreeBytes.WithLabelValues(s.Role).Set(float64(s.FreeBytes))

		logging.Debug("Scratch %s: files=%d, bytes=%d, free=%d", s.Role, s.Files, s.Bytes, s.FreeBytes)
	}
}

func (c *Collector) collectRuntimeMemory() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	GoMemAllocBytes.Set(float64(stats.Alloc))

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		GoMemLimit.Set(float64(limit))
	} else {
		GoMemLimit.Set(0)
	}
}
