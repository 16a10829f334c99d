package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"
)

const (
	// DefaultMaxRetries bounds the swap loop.
	DefaultMaxRetries = 10
	// DefaultRetryDelay is the pause between swap attempts.
	DefaultRetryDelay = time.Second
)

// SwapResult describes how a swap ended.
type SwapResult struct {
	Attempts int
	// AlreadyApplied is set when a previous run had already moved the new
	// binary into place.
	AlreadyApplied bool
}

type swapState int

const (
	stateAttempt swapState = iota
	stateSuccess
	stateFailed
)

// Swapper replaces the installed executable with a downloaded one, retrying
// while the old file is still held open by a dying process.
//
// Every side effect is a field so the loop can run without sleeping or
// touching the filesystem.
type Swapper struct {
	MaxRetries int
	Delay      time.Duration

	Kill   func()
	Sleep  func(time.Duration)
	Remove func(string) error
	Rename func(oldpath, newpath string) error
	Stat   func(string) (os.FileInfo, error)

	// OnAttempt is called after each failed attempt with the attempt number
	// (1-based) and its error.
	OnAttempt func(attempt int, err error)
}

// NewSwapper returns a Swapper bound to the real filesystem.
func NewSwapper(kill func()) *Swapper {
	return &Swapper{
		MaxRetries: DefaultMaxRetries,
		Delay:      DefaultRetryDelay,
		Kill:       kill,
		Sleep:      time.Sleep,
		Remove:     os.Remove,
		Rename:     os.Rename,
		Stat:       os.Stat,
	}
}

// Swap moves newPath over oldPath.
//
// Each attempt deletes oldPath (already gone is fine) and renames newPath
// into its place. A failed attempt re-kills the host, sleeps and tries
// again until MaxRetries attempts have failed, at which point a *SwapError
// is returned. The loop can be re-run after a crash: when newPath is gone
// and oldPath exists the swap already happened and ErrAlreadySwapped is
// returned with AlreadyApplied set.
func (s *Swapper) Swap(ctx context.Context, oldPath, newPath string) (SwapResult, error) {
	s.defaults()

	var (
		result  SwapResult
		lastErr error
	)

	state := stateAttempt
	for state == stateAttempt {
		if err := ctx.Err(); err != nil {
			lastErr = err
			state = stateFailed
			break
		}

		result.Attempts++
		done, err := s.attempt(oldPath, newPath)
		switch {
		case errors.Is(err, ErrAlreadySwapped):
			result.AlreadyApplied = true
			return result, err
		case err == nil && done:
			state = stateSuccess
			continue
		}

		lastErr = err
		if s.OnAttempt != nil {
			s.OnAttempt(result.Attempts, err)
		}
		if result.Attempts >= s.MaxRetries {
			state = stateFailed
			break
		}

		if s.Kill != nil {
			s.Kill()
		}
		s.Sleep(s.Delay)
	}

	if state == stateFailed {
		return result, &SwapError{
			Attempts: result.Attempts,
			Err:      lastErr,
			Stranded: s.stranded(oldPath, newPath),
			NewPath:  newPath,
		}
	}

	if runtime.GOOS != "windows" {
		// Best effort: the download was created executable already.
		_ = os.Chmod(oldPath, 0755)
	}
	return result, nil
}

// attempt performs one delete-then-rename step.
func (s *Swapper) attempt(oldPath, newPath string) (bool, error) {
	if _, err := s.Stat(newPath); err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("stat %s: %w", newPath, err)
		}
		if _, oldErr := s.Stat(oldPath); oldErr == nil {
			return false, ErrAlreadySwapped
		}
		return false, fmt.Errorf("new binary %s is missing", newPath)
	}

	if err := s.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove %s: %w", oldPath, err)
	}

	if err := s.Rename(newPath, oldPath); err != nil {
		return false, fmt.Errorf("rename %s: %w", newPath, err)
	}
	return true, nil
}

// stranded reports the one recoverable half-done state: the old binary is
// gone and the new one still waits at its temp path.
func (s *Swapper) stranded(oldPath, newPath string) bool {
	_, oldErr := s.Stat(oldPath)
	_, newErr := s.Stat(newPath)
	return os.IsNotExist(oldErr) && newErr == nil
}

func (s *Swapper) defaults() {
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.Sleep == nil {
		s.Sleep = time.Sleep
	}
	if s.Remove == nil {
		s.Remove = os.Remove
	}
	if s.Rename == nil {
		s.Rename = os.Rename
	}
	if s.Stat == nil {
		s.Stat = os.Stat
	}
}
