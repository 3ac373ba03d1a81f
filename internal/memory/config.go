package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

const (
	// DefaultMemoryRatio is the share of container memory given to the Go
	// heap. ffmpeg runs out of process and needs the larger part.
	DefaultMemoryRatio = 0.5
)

// Sources of the configured limit, reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceCgroup      = "cgroup"
	SourceNone        = "none"
)

// cgroupLimitFiles are read in order when MEMORY_LIMIT is unset: cgroup v2
// first, then v1. Stubbed in tests.
var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// cgroupUnlimited is the smallest value treated as "no limit". cgroup v1
// reports unlimited as a page-aligned value close to MaxInt64.
const cgroupUnlimited = 1 << 60

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set
	Configured bool

	// Source is one of the Source constants
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not known)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets the Go soft memory limit from the container limit.
// Call this early in main() before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: If set, this takes precedence (standard Go env var)
//   - MEMORY_LIMIT: Container memory limit, in bytes or with a unit ("512MiB").
//     When unset the cgroup limit is used if one is in force.
//   - MEMORY_RATIO: Share of the container limit for the Go heap (default: 0.5)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: SourceNone}
	defer func() { metrics.GoMemLimit.Set(float64(result.GoMemLimit)) }()

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = SourceGoMemLimit
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	limit, source := containerLimit()
	if limit <= 0 {
		return result
	}
	result.ContainerLimit = limit

	ratio := ratioFromEnv()
	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = source
	result.GoMemLimit = goMemLimit
	result.Ratio = ratio

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s limit from %s)",
		FormatBytes(uint64(goMemLimit)),
		ratio*100,
		FormatBytes(uint64(limit)),
		source,
	)

	return result
}

// containerLimit returns the memory limit from MEMORY_LIMIT or, when that
// is unset, from the cgroup. An unparsable MEMORY_LIMIT disables both.
func containerLimit() (int64, string) {
	if value := os.Getenv("MEMORY_LIMIT"); value != "" {
		limit, err := ParseBytes(value)
		if err != nil || limit <= 0 {
			logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", value, err)
			return 0, SourceNone
		}
		return limit, SourceMemoryLimit
	}

	for _, path := range cgroupLimitFiles {
		data, err := os.ReadFile(path) //nolint:gosec // fixed kernel paths
		if err != nil {
			continue
		}
		value := strings.TrimSpace(string(data))
		if value == "max" {
			break
		}
		limit, err := strconv.ParseInt(value, 10, 64)
		if err != nil || limit <= 0 || limit >= cgroupUnlimited {
			break
		}
		return limit, SourceCgroup
	}

	logging.Debug("No container memory limit found, GOMEMLIMIT will not be configured automatically")
	return 0, SourceNone
}

func ratioFromEnv() float64 {
	value := os.Getenv("MEMORY_RATIO")
	if value == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", value, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if ratio <= 0 || ratio > 1.0 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", value, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// ParseBytes parses a size such as "52428800", "50MiB" or "2G".
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(n), nil
}

// FormatBytes renders b with binary units, e.g. "1.5 GiB".
func FormatBytes(b uint64) string {
	return humanize.IBytes(b)
}
