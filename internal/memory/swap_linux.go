//go:build linux

package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"video-cleaner/internal/logging"
)

// allocateSwapFile creates path with size bytes of real, non-sparse blocks,
// as swapon refuses files with holes.
func allocateSwapFile(path string, size uint64) error {
	if size > uint64(1<<62) {
		return fmt.Errorf("swap size %d too large", size)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("swap file %s already exists", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create swap file: %w", err)
	}

	if err := unix.Fallocate(int(f.Fd()), 0, 0, int64(size)); err != nil { //nolint:gosec // bounded above
		_ = f.Close()
		removeSwapFile(path)
		return fmt.Errorf("failed to allocate %s for swap: %w", FormatBytes(size), err)
	}

	if err := f.Close(); err != nil {
		removeSwapFile(path)
		return fmt.Errorf("failed to close swap file: %w", err)
	}
	return nil
}

func removeSwapFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("failed to remove swap file %s: %v", path, err)
	}
}
