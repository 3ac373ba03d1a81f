package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "a", "b", "uploads")
	out := filepath.Join(root, "c", "outputs")

	s, err := New(in, out)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, dir := range []string{s.InputDir(), s.OutputDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) error = %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
		if !filepath.IsAbs(dir) {
			t.Errorf("%s is not absolute", dir)
		}
	}

	// Existing directories are fine.
	if _, err := New(in, out); err != nil {
		t.Errorf("New() on existing directories error = %v", err)
	}
}

func TestNewRejectsEmptyDirectory(t *testing.T) {
	if _, err := New("", t.TempDir()); err == nil {
		t.Error("expected error for empty input directory")
	}
}

func TestNewRejectsFileAsDirectory(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(blocker, filepath.Join(root, "out")); err == nil {
		t.Error("expected error when input path is a regular file")
	}
}

func TestReserveInputPathNaming(t *testing.T) {
	s := newTestStore(t)

	f := s.ReserveInputPath("../my clip.mp4")
	if f.Role != RoleInput {
		t.Errorf("Role = %q, want %q", f.Role, RoleInput)
	}
	if filepath.Dir(f.Path) != s.InputDir() {
		t.Errorf("Path %s not in input dir %s", f.Path, s.InputDir())
	}
	if !strings.HasSuffix(f.Name, "-my_clip.mp4") {
		t.Errorf("Name = %q, want sanitized suffix", f.Name)
	}

	parts := strings.SplitN(f.Name, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		t.Fatalf("Name = %q, want timestamp prefix", f.Name)
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			t.Errorf("timestamp prefix %q is not numeric", parts[0])
			break
		}
	}
}

func TestReservePathOutput(t *testing.T) {
	s := newTestStore(t)

	f := s.ReservePath(RoleOutput)
	if f.Role != RoleOutput {
		t.Errorf("Role = %q, want %q", f.Role, RoleOutput)
	}
	if filepath.Dir(f.Path) != s.OutputDir() {
		t.Errorf("Path %s not in output dir", f.Path)
	}
	if !strings.HasSuffix(f.Name, "-"+OutputSuffix) {
		t.Errorf("Name = %q, want suffix %q", f.Name, OutputSuffix)
	}
}

func TestCreateInput(t *testing.T) {
	s := newTestStore(t)

	f, file, err := s.CreateInput("clip.mp4")
	if err != nil {
		t.Fatalf("CreateInput() error = %v", err)
	}
	if _, err := f.WriteString("data"); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	info, err := os.Stat(file.Path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("mode = %v, want no group/other access", perm)
	}
}

func TestConcurrentIdenticalNamesAreDistinct(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	paths := make(chan string, n)
	errs := make(chan error, n)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, file, err := s.CreateInput("same.mp4")
			if err != nil {
				errs <- err
				return
			}
			_ = f.Close()
			paths <- file.Path
		}()
	}
	wg.Wait()
	close(paths)
	close(errs)

	for err := range errs {
		t.Errorf("CreateInput() error = %v", err)
	}

	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Errorf("duplicate path %s", p)
		}
		seen[p] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct paths, want %d", len(seen), n)
	}
}

func TestReserveOutputCreatesPlaceholder(t *testing.T) {
	s := newTestStore(t)

	a, err := s.ReserveOutput()
	if err != nil {
		t.Fatalf("ReserveOutput() error = %v", err)
	}
	b, err := s.ReserveOutput()
	if err != nil {
		t.Fatalf("ReserveOutput() error = %v", err)
	}
	if a.Path == b.Path {
		t.Fatal("two reservations returned the same path")
	}

	info, err := os.Stat(a.Path)
	if err != nil {
		t.Fatalf("placeholder missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("placeholder size = %d, want 0", info.Size())
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	f, file, err := s.CreateInput("clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	for i := range 3 {
		if err := s.Delete(file.Path); err != nil {
			t.Errorf("Delete() call %d error = %v", i+1, err)
		}
	}

	if _, err := os.Stat(file.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still exists after Delete: %v", err)
	}
}

func TestDeleteNeverCreated(t *testing.T) {
	s := newTestStore(t)

	reserved := s.ReservePath(RoleOutput)
	if err := s.Delete(reserved.Path); err != nil {
		t.Errorf("Delete() of unreserved file error = %v", err)
	}
	if err := s.Delete(""); err != nil {
		t.Errorf("Delete(\"\") error = %v", err)
	}
}

func TestDeleteOutsideStore(t *testing.T) {
	s := newTestStore(t)

	outside := filepath.Join(t.TempDir(), "victim.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := s.Delete(outside)
	if !errors.Is(err, ErrOutsideStore) {
		t.Errorf("Delete() error = %v, want ErrOutsideStore", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the store was removed: %v", err)
	}

	traversal := filepath.Join(s.InputDir(), "..", "victim.txt")
	if err := s.Delete(traversal); !errors.Is(err, ErrOutsideStore) {
		t.Errorf("Delete(traversal) error = %v, want ErrOutsideStore", err)
	}
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"a.mp4", "b.mp4"} {
		if err := os.WriteFile(filepath.Join(s.InputDir(), name), []byte("12345"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.OutputDir(), "c-clean.mp4"), []byte("123"), 0o600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(s.OutputDir(), "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "d"), []byte("12"), 0o600); err != nil {
		t.Fatal(err)
	}

	freed, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if freed != 15 {
		t.Errorf("freed = %d, want 15", freed)
	}

	if got := dirEntries(t, s.InputDir()); len(got) != 0 {
		t.Errorf("input dir not empty: %v", got)
	}
	if got := dirEntries(t, s.OutputDir()); len(got) != 0 {
		t.Errorf("output dir not empty: %v", got)
	}
}

func TestPurgeEmpty(t *testing.T) {
	s := newTestStore(t)

	freed, err := s.Purge()
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if freed != 0 {
		t.Errorf("freed = %d, want 0", freed)
	}
}

func TestUsage(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(filepath.Join(s.InputDir(), "a"), make([]byte, 10), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.InputDir(), "b"), make([]byte, 20), 0o600); err != nil {
		t.Fatal(err)
	}

	usage := s.Usage()
	if len(usage) != 2 {
		t.Fatalf("len(Usage()) = %d, want 2", len(usage))
	}

	in := usage[0]
	if in.Role != RoleInput || in.Files != 2 || in.Bytes != 30 {
		t.Errorf("input usage = %+v, want 2 files / 30 bytes", in)
	}
	out := usage[1]
	if out.Role != RoleOutput || out.Files != 0 {
		t.Errorf("output usage = %+v, want 0 files", out)
	}

	stats := s.ScratchStats()
	if len(stats) != 2 || stats[0].Role != "input" || stats[0].Files != 2 {
		t.Errorf("ScratchStats() = %+v", stats)
	}
}

func TestWritable(t *testing.T) {
	s := newTestStore(t)
	if err := s.Writable(); err != nil {
		t.Errorf("Writable() error = %v", err)
	}

	if err := os.RemoveAll(s.OutputDir()); err != nil {
		t.Fatal(err)
	}
	if err := s.Writable(); err == nil {
		t.Error("expected Writable() to fail once the output directory is gone")
	}
}
