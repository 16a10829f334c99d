// Package host holds the host side of the update flow: the delayed startup
// check, staging and starting the updater, and removing what a previous
// update left behind.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/finmgr/finmgr/internal/update"
)

// DefaultCheckDelay lets the host finish starting before the feed is
// queried.
const DefaultCheckDelay = 2 * time.Second

// ResultFunc receives the outcome of a scheduled check. It runs on the
// timer goroutine.
type ResultFunc func(info *update.UpdateInfo, err error)

// Scheduler runs one update check in the background after a delay.
type Scheduler struct {
	Delay    time.Duration
	Checker  update.Checker
	OnResult ResultFunc

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates a scheduler that reports to onResult.
func NewScheduler(checker update.Checker, delay time.Duration, onResult ResultFunc) *Scheduler {
	return &Scheduler{
		Delay:    delay,
		Checker:  checker,
		OnResult: onResult,
		done:     make(chan struct{}),
	}
}

// Start arms the timer and returns immediately. Calling Start again has no
// effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.timer = time.AfterFunc(s.Delay, func() {
		defer close(s.done)

		info, err := s.Checker.CheckForUpdate(ctx)
		if ctx.Err() != nil {
			return
		}
		if s.OnResult != nil {
			s.OnResult(info, err)
		}
	})
}

// Stop cancels a pending or running check. OnResult is not called after
// Stop returns unless it was already running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.cancel == nil {
		return
	}
	s.cancel()
	if s.timer.Stop() {
		// The callback never ran, so nobody else closes done.
		close(s.done)
	}
	s.cancel = nil
}

// Done is closed once the check has finished or was stopped before it ran.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
