package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// lockedFS makes Remove on one path fail until it has been tried lockedFor
// times, the way a just-killed process keeps its image open for a while.
type lockedFS struct {
	path      string
	lockedFor int
	removes   int
}

func (l *lockedFS) remove(name string) error {
	if name == l.path {
		l.removes++
		if l.removes <= l.lockedFor {
			return &os.PathError{Op: "remove", Path: name, Err: syscall.EBUSY}
		}
	}
	return os.Remove(name)
}

func writeBinaries(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "finmgr")
	newPath := filepath.Join(dir, "update_temp")

	if err := os.WriteFile(oldPath, []byte("old version"), 0755); err != nil {
		t.Fatalf("Failed to create old binary: %v", err)
	}
	if err := os.WriteFile(newPath, []byte("new version"), 0755); err != nil {
		t.Fatalf("Failed to create new binary: %v", err)
	}
	return oldPath, newPath
}

func newTestSwapper(kills *int) *Swapper {
	s := NewSwapper(func() { *kills++ })
	s.Delay = time.Second
	s.Sleep = func(time.Duration) {}
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestSwap_Success(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	var kills int
	result, err := newTestSwapper(&kills).Swap(context.Background(), oldPath, newPath)
	if err != nil {
		t.Fatalf("Swap() error = %v", err)
	}

	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if kills != 0 {
		t.Errorf("re-kill issued %d times on a clean swap", kills)
	}
	if got := readFile(t, oldPath); got != "new version" {
		t.Errorf("target content = %q, want new version", got)
	}
	if _, err := os.Stat(newPath); !os.IsNotExist(err) {
		t.Error("temp file should be gone after swap")
	}

	info, err := os.Stat(oldPath)
	if err != nil {
		t.Fatalf("Failed to stat binary: %v", err)
	}
	if info.Mode().Perm()&0111 == 0 {
		t.Error("Binary should be executable")
	}
}

func TestSwap_TargetMissing(t *testing.T) {
	oldPath, newPath := writeBinaries(t)
	if err := os.Remove(oldPath); err != nil {
		t.Fatal(err)
	}

	var kills int
	if _, err := newTestSwapper(&kills).Swap(context.Background(), oldPath, newPath); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if got := readFile(t, oldPath); got != "new version" {
		t.Errorf("target content = %q, want new version", got)
	}
}

func TestSwap_LockedThenReleased(t *testing.T) {
	for _, k := range []int{1, 3, DefaultMaxRetries - 1} {
		oldPath, newPath := writeBinaries(t)

		var (
			kills    int
			attempts []int
			sleeps   []time.Duration
		)
		fs := &lockedFS{path: oldPath, lockedFor: k}
		s := newTestSwapper(&kills)
		s.Remove = fs.remove
		s.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
		s.OnAttempt = func(n int, err error) {
			attempts = append(attempts, n)
			if !errors.Is(err, syscall.EBUSY) {
				t.Errorf("attempt %d error = %v, want EBUSY", n, err)
			}
		}

		result, err := s.Swap(context.Background(), oldPath, newPath)
		if err != nil {
			t.Fatalf("k=%d: Swap() error = %v", k, err)
		}
		if result.Attempts != k+1 {
			t.Errorf("k=%d: Attempts = %d, want %d", k, result.Attempts, k+1)
		}
		if kills != k {
			t.Errorf("k=%d: kills = %d, want %d", k, kills, k)
		}
		if len(sleeps) != k {
			t.Errorf("k=%d: slept %d times, want %d", k, len(sleeps), k)
		}
		for _, d := range sleeps {
			if d != time.Second {
				t.Errorf("k=%d: slept %v, want the configured delay", k, d)
			}
		}
		if len(attempts) != k || attempts[len(attempts)-1] != k {
			t.Errorf("k=%d: OnAttempt saw %v", k, attempts)
		}
		if got := readFile(t, oldPath); got != "new version" {
			t.Errorf("k=%d: target content = %q", k, got)
		}
	}
}

func TestSwap_AlwaysLocked(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	var kills int
	fs := &lockedFS{path: oldPath, lockedFor: 1 << 30}
	s := newTestSwapper(&kills)
	s.Remove = fs.remove

	result, err := s.Swap(context.Background(), oldPath, newPath)
	if !errors.Is(err, ErrSwap) {
		t.Fatalf("expected ErrSwap, got %v", err)
	}

	var se *SwapError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SwapError, got %T", err)
	}
	if se.Attempts != DefaultMaxRetries || result.Attempts != DefaultMaxRetries {
		t.Errorf("Attempts = %d/%d, want %d", se.Attempts, result.Attempts, DefaultMaxRetries)
	}
	if se.Stranded {
		t.Error("Stranded should be false when the original is untouched")
	}
	if kills != DefaultMaxRetries-1 {
		t.Errorf("kills = %d, want %d", kills, DefaultMaxRetries-1)
	}

	// Neither file may be lost.
	if got := readFile(t, oldPath); got != "old version" {
		t.Errorf("original content = %q", got)
	}
	if got := readFile(t, newPath); got != "new version" {
		t.Errorf("download content = %q", got)
	}
}

func TestSwap_RenameFailsAfterDelete(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	var kills int
	s := newTestSwapper(&kills)
	s.MaxRetries = 3
	s.Rename = func(string, string) error {
		return &os.LinkError{Op: "rename", Old: newPath, New: oldPath, Err: syscall.EACCES}
	}

	_, err := s.Swap(context.Background(), oldPath, newPath)

	var se *SwapError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SwapError, got %v", err)
	}
	if !se.Stranded {
		t.Error("Stranded should be set when only the new binary remains")
	}
	if se.NewPath != newPath {
		t.Errorf("NewPath = %s, want %s", se.NewPath, newPath)
	}
	if got := readFile(t, newPath); got != "new version" {
		t.Errorf("download content = %q", got)
	}
}

func TestSwap_RenameRecoversOnRetry(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	var kills, renames int
	s := newTestSwapper(&kills)
	s.Rename = func(from, to string) error {
		renames++
		if renames == 1 {
			return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EACCES}
		}
		return os.Rename(from, to)
	}

	result, err := s.Swap(context.Background(), oldPath, newPath)
	if err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	if got := readFile(t, oldPath); got != "new version" {
		t.Errorf("target content = %q", got)
	}
}

func TestSwap_SecondRunIsNoOp(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	var kills int
	s := newTestSwapper(&kills)
	if _, err := s.Swap(context.Background(), oldPath, newPath); err != nil {
		t.Fatalf("first Swap() error = %v", err)
	}

	result, err := s.Swap(context.Background(), oldPath, newPath)
	if !errors.Is(err, ErrAlreadySwapped) {
		t.Fatalf("second Swap() error = %v, want ErrAlreadySwapped", err)
	}
	if !result.AlreadyApplied {
		t.Error("AlreadyApplied should be set")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if kills != 0 {
		t.Errorf("kills = %d, want 0", kills)
	}
	if got := readFile(t, oldPath); got != "new version" {
		t.Errorf("target content = %q", got)
	}
}

func TestSwap_BothMissing(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "finmgr")
	newPath := filepath.Join(dir, "update_temp")

	var kills int
	s := newTestSwapper(&kills)
	s.MaxRetries = 2

	_, err := s.Swap(context.Background(), oldPath, newPath)
	var se *SwapError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SwapError, got %v", err)
	}
	if se.Stranded {
		t.Error("nothing to recover when both files are missing")
	}
}

func TestSwap_ContextCanceled(t *testing.T) {
	oldPath, newPath := writeBinaries(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var kills int
	_, err := newTestSwapper(&kills).Swap(ctx, oldPath, newPath)
	if !errors.Is(err, ErrSwap) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected ErrSwap wrapping context.Canceled, got %v", err)
	}
	if got := readFile(t, oldPath); got != "old version" {
		t.Errorf("original content = %q", got)
	}
}

func TestNewSwapperDefaults(t *testing.T) {
	s := NewSwapper(nil)
	if s.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", s.MaxRetries, DefaultMaxRetries)
	}
	if s.Delay != DefaultRetryDelay {
		t.Errorf("Delay = %v, want %v", s.Delay, DefaultRetryDelay)
	}

	var zero Swapper
	zero.defaults()
	if zero.MaxRetries != DefaultMaxRetries || zero.Remove == nil || zero.Rename == nil || zero.Stat == nil || zero.Sleep == nil {
		t.Error("defaults() left zero-value fields unset")
	}
}
