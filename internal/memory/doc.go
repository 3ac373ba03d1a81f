// Package memory keeps the service alive on small containers.
//
// # Overview
//
// Transcoding runs in ffmpeg child processes, so most of the container's
// memory belongs to processes the Go runtime cannot see. The package does
// three things about that:
//
//   - [ConfigureFromEnv] sets GOMEMLIMIT from the container limit, leaving
//     the larger share to ffmpeg.
//   - [Monitor] samples MemAvailable from /proc/meminfo and reports when new
//     jobs should be refused with 503.
//   - [ProvisionSwap] makes one best-effort attempt at creating a swap file
//     at startup on hosts that have none.
//
// # Environment Variables
//
//   - GOMEMLIMIT: standard Go variable. Takes precedence when set.
//   - MEMORY_LIMIT: container memory limit, in bytes or with a unit
//     ("512MiB"). When unset, the cgroup limit (memory.max, or
//     memory.limit_in_bytes on cgroup v1) is used if one is in force.
//   - MEMORY_RATIO: share of the container limit given to the Go heap,
//     between 0.0 and 1.0. Default 0.5.
//
// # Backpressure
//
// The monitor pauses once MemAvailable falls below the critical threshold
// and resumes only after it climbs back above the recover threshold (twice
// the critical value by default), so admission does not flap around a single
// value:
//
//	mon := memory.NewMonitor(memory.DefaultConfig(), reader)
//	mon.Start()
//	defer mon.Stop()
//
//	if mon.IsPaused() {
//	    w.Header().Set("Retry-After", strconv.Itoa(int(mon.RetryAfter().Seconds())))
//	    // 503
//	}
//
// # Swap
//
// Swap provisioning requires root and Linux. Every failure is logged and
// ignored; the service runs the same without swap.
package memory
