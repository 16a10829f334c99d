// Package progress renders updater pipeline progress, either as a terminal
// UI with a progress bar or as plain lines for logs and pipes.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/finmgr/finmgr/internal/types"
	"github.com/finmgr/finmgr/internal/update"
)

// Surface is an update.Observer that can be shut down once the pipeline
// is done. Finish keeps the final status visible for linger.
type Surface interface {
	update.Observer
	Finish(linger time.Duration)
}

// Plain writes one line per status change and coarse percentage lines
// while downloading. It is safe for concurrent use.
type Plain struct {
	mu       sync.Mutex
	w        io.Writer
	phase    types.Phase
	lastStep int
}

// NewPlain creates a Plain surface writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w, lastStep: -1}
}

// Status prints the message when it differs from the previous one.
func (p *Plain) Status(phase types.Phase, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if phase != p.phase {
		p.lastStep = -1
	}
	p.phase = phase
	_, _ = fmt.Fprintln(p.w, message)
}

// Progress prints every 10% step once.
func (p *Plain) Progress(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != types.PhaseDownloading {
		return
	}
	step := int(clamp(fraction) * 10)
	if step <= p.lastStep {
		return
	}
	p.lastStep = step
	_, _ = fmt.Fprintf(p.w, "  %3d%%\n", step*10)
}

// Finish waits out linger so a user watching the console can read the
// final line.
func (p *Plain) Finish(linger time.Duration) {
	if linger > 0 {
		time.Sleep(linger)
	}
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
