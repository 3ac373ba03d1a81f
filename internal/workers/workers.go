package workers

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Auto is the MAX_CONCURRENT_JOBS value that sizes the job limit from the
// CPUs available to the container.
const Auto = "auto"

// Count returns multiplier workers per CPU available to the process, at
// least one and at most limit (0 for no cap). GOMAXPROCS follows the
// container CPU quota, unlike runtime.NumCPU.
func Count(multiplier float64, limit int) int {
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns one worker per CPU, capped at limit.
// Each ffmpeg job runs single-threaded, so this is the job limit for "auto".
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ParseLimit interprets a concurrency setting:
//
//	""      0, unlimited
//	"0"     0, unlimited
//	"auto"  ForCPU(limit)
//	"N"     N, capped at limit when limit > 0
//
// Negative or non-numeric values are an error.
func ParseLimit(value string, limit int) (int, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "0":
		return 0, nil
	case Auto:
		return ForCPU(limit), nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid concurrency %q: want a number or %q", value, Auto)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid concurrency %q: must not be negative", value)
	}
	if limit > 0 && n > limit {
		return limit, nil
	}
	return n, nil
}
