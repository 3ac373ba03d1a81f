package memory

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// SwapConfig describes the swap file created at startup.
type SwapConfig struct {
	Path string
	Size uint64
}

// DefaultSwapConfig returns a 1 GiB swap file under /tmp.
func DefaultSwapConfig() SwapConfig {
	return SwapConfig{
		Path: "/tmp/video-cleaner.swap",
		Size: 1 << 30,
	}
}

// SwapResult reports what ProvisionSwap did.
type SwapResult struct {
	// Enabled is true when a swap file was created and activated.
	Enabled bool
	// Skipped explains why nothing was attempted, if so.
	Skipped string
	// Err is the first failure, if any. It is informational only.
	Err error
}

// ErrSwapUnsupported is returned on platforms without swap files.
var ErrSwapUnsupported = errors.New("swap provisioning is not supported on this platform")

// swapCommandTimeout bounds mkswap and swapon.
const swapCommandTimeout = 30 * time.Second

// runCommand executes an external tool and returns its combined output.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, swapCommandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ProvisionSwap makes one best-effort attempt to create and enable a swap
// file. It never fails startup: every problem is logged and returned in
// SwapResult.Err. Nothing is done when the system already has swap.
func ProvisionSwap(ctx context.Context, cfg SwapConfig, reader Reader) SwapResult {
	result := provisionSwap(ctx, cfg, reader)

	switch {
	case result.Enabled:
		metrics.SwapProvisioned.Set(1)
		logging.Info("Swap enabled: %s (%s)", cfg.Path, FormatBytes(cfg.Size))
	case result.Skipped != "":
		metrics.SwapProvisioned.Set(0)
		logging.Info("Swap provisioning skipped: %s", result.Skipped)
	default:
		metrics.SwapProvisioned.Set(0)
		logging.Warn("Swap provisioning failed, continuing without swap: %v", result.Err)
	}
	return result
}

func provisionSwap(ctx context.Context, cfg SwapConfig, reader Reader) SwapResult {
	if cfg.Path == "" || cfg.Size == 0 {
		return SwapResult{Skipped: "no swap file configured"}
	}

	if reader != nil {
		if stats, err := reader.ReadMemory(); err == nil && stats.SwapTotalBytes > 0 {
			return SwapResult{Skipped: fmt.Sprintf("%s of swap already active", FormatBytes(stats.SwapTotalBytes))}
		}
	}

	if err := allocateSwapFile(cfg.Path, cfg.Size); err != nil {
		return SwapResult{Err: err}
	}

	if out, err := runCommand(ctx, "mkswap", cfg.Path); err != nil {
		removeSwapFile(cfg.Path)
		return SwapResult{Err: fmt.Errorf("mkswap: %w: %s", err, out)}
	}
	if out, err := runCommand(ctx, "swapon", cfg.Path); err != nil {
		removeSwapFile(cfg.Path)
		return SwapResult{Err: fmt.Errorf("swapon: %w: %s", err, out)}
	}

	return SwapResult{Enabled: true}
}
