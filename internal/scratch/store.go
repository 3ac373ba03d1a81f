package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-cleaner/internal/filesystem"
	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// Role identifies which scratch directory a file lives in.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

// OutputSuffix is the fixed name tail of every transcoded artifact.
const OutputSuffix = "clean.mp4"

// fileMode keeps scratch files private to the service user.
const fileMode = 0o600

// createAttempts bounds retries when a reserved name turns out to exist.
const createAttempts = 3

var (
	// ErrOutsideStore is returned when asked to delete a path that is not
	// directly inside one of the scratch directories.
	ErrOutsideStore = errors.New("path is outside the scratch directories")
)

// File is a reserved scratch file owned by exactly one request.
type File struct {
	Role Role
	Name string
	Path string
}

// Usage is a point-in-time view of one scratch directory.
type Usage struct {
	Role      Role
	Dir       string
	Files     int
	Bytes     int64
	FreeBytes uint64
}

// Store manages the inbound and outbound scratch directories.
type Store struct {
	inputDir  string
	outputDir string
	now       func() time.Time
	retry     filesystem.RetryConfig
}

// New resolves both directories to absolute paths, creates them if needed
// and verifies they are writable.
func New(inputDir, outputDir string) (*Store, error) {
	if inputDir == "" || outputDir == "" {
		return nil, errors.New("scratch directories must not be empty")
	}

	in, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	for _, dir := range []string{in, out} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
		}
		if err := checkWritable(dir); err != nil {
			return nil, err
		}
	}

	return &Store{
		inputDir:  in,
		outputDir: out,
		now:       time.Now,
		retry:     filesystem.DefaultRetryConfig(),
	}, nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("scratch directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		logging.Warn("failed to close write test file %s: %v", name, err)
	}
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}

// InputDir returns the absolute inbound directory.
func (s *Store) InputDir() string { return s.inputDir }

// OutputDir returns the absolute outbound directory.
func (s *Store) OutputDir() string { return s.outputDir }

// Writable reports whether both directories currently accept new files.
func (s *Store) Writable() error {
	for _, dir := range []string{s.inputDir, s.outputDir} {
		if err := checkWritable(dir); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) dir(role Role) string {
	if role == RoleOutput {
		return s.outputDir
	}
	return s.inputDir
}

func (s *Store) uniqueName(suffix string) string {
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + uuid.NewString() + "-" + suffix
}

// ReserveInputPath returns a fresh, unused inbound name derived from the
// client's original file name.
func (s *Store) ReserveInputPath(originalName string) File {
	name := s.uniqueName(SanitizeFilename(originalName))
	return File{Role: RoleInput, Name: name, Path: filepath.Join(s.inputDir, name)}
}

// ReservePath returns a fresh name in the directory for role. Outputs are
// always named after OutputSuffix.
func (s *Store) ReservePath(role Role) File {
	if role == RoleOutput {
		name := s.uniqueName(OutputSuffix)
		return File{Role: RoleOutput, Name: name, Path: filepath.Join(s.outputDir, name)}
	}
	return s.ReserveInputPath("")
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
}

// CreateInput reserves an inbound name and creates the file exclusively.
// The caller owns the returned handle and must close it.
func (s *Store) CreateInput(originalName string) (*os.File, File, error) {
	var lastErr error
	for range createAttempts {
		file := s.ReserveInputPath(originalName)
		f, err := createExclusive(file.Path)
		if err == nil {
			metrics.ScratchFilesCreated.WithLabelValues(string(RoleInput)).Inc()
			return f, file, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return nil, File{}, fmt.Errorf("failed to create input file: %w", lastErr)
}

// ReserveOutput claims an outbound name by creating an empty placeholder,
// so no other request can ever be handed the same artifact path.
func (s *Store) ReserveOutput() (File, error) {
	var lastErr error
	for range createAttempts {
		file := s.ReservePath(RoleOutput)
		f, err := createExclusive(file.Path)
		if err == nil {
			if cerr := f.Close(); cerr != nil {
				logging.Warn("failed to close output placeholder %s: %v", file.Path, cerr)
			}
			metrics.ScratchFilesCreated.WithLabelValues(string(RoleOutput)).Inc()
			return file, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return File{}, fmt.Errorf("failed to reserve output file: %w", lastErr)
}

func (s *Store) roleOf(path string) (Role, bool) {
	switch filepath.Dir(path) {
	case s.inputDir:
		return RoleInput, true
	case s.outputDir:
		return RoleOutput, true
	}
	return "", false
}

// Delete removes a scratch file. A file that is already gone is not an
// error, so Delete may be called any number of times for the same path.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}

	clean := filepath.Clean(path)
	role, ok := s.roleOf(clean)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}

	if err := filesystem.RemoveWithRetry(clean, s.retry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		metrics.ScratchDeleteErrors.Inc()
		return fmt.Errorf("failed to delete scratch file: %w", err)
	}

	metrics.ScratchFilesDeleted.WithLabelValues(string(role)).Inc()
	logging.Debug("Deleted scratch file %s", clean)
	return nil
}

// Purge removes every leftover entry from both directories and returns the
// number of bytes freed. It is run at startup and shutdown.
func (s *Store) Purge() (int64, error) {
	var freed int64
	var errs []error

	for _, role := range []Role{RoleInput, RoleOutput} {
		n, err := purgeDir(s.dir(role))
		freed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if freed > 0 {
		logging.Info("Purged scratch directories: freed %d bytes", freed)
	}
	return freed, errors.Join(errs...)
}

func purgeDir(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read scratch directory %s: %w", dir, err)
	}

	var freed int64
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logging.Warn("failed to get info for %s: %v", path, err)
			continue
		}

		if entry.IsDir() {
			size, _ := dirSize(path)
			if err := os.RemoveAll(path); err != nil {
				logging.Warn("failed to remove directory %s: %v", path, err)
				continue
			}
			freed += size
			continue
		}

		if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
			logging.Warn("failed to remove file %s: %v", path, err)
			continue
		}
		freed += info.Size()
	}
	return freed, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

// Usage reports file counts, bytes held and free space for both directories.
func (s *Store) Usage() []Usage {
	usage := make([]Usage, 0, 2)
	for _, role := range []Role{RoleInput, RoleOutput} {
		dir := s.dir(role)
		u := Usage{Role: role, Dir: dir}

		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Debug("failed to read scratch directory %s: %v", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			u.Files++
			u.Bytes += info.Size()
		}

		if free, ok := freeBytes(dir); ok {
			u.FreeBytes = free
		}
		usage = append(usage, u)
	}
	return usage
}

// ScratchStats adapts Usage for the metrics collector.
func (s *Store) ScratchStats() []metrics.ScratchStats {
	usage := s.Usage()
	stats := make([]metrics.ScratchStats, 0, len(usage))
	for _, u := range usage {
		stats = append(stats, metrics.ScratchStats{
			Role:      string(u.Role),
			Files:     u.Files,
			Bytes:     u.Bytes,
			FreeBytes: u.FreeBytes,
		})
	}
	return stats
}
