package update

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/types"
)

// DefaultSettleDelay is how long Terminate waits after the kill request so
// the OS can release the executable's file handle.
const DefaultSettleDelay = 2 * time.Second

// runFunc runs a command and returns its exit code. A non-nil error means
// the command could not be started at all.
type runFunc func(ctx context.Context, name string, args ...string) (int, error)

// Terminator kills processes by executable file name using the platform's
// own tooling (taskkill on Windows, pkill elsewhere).
type Terminator struct {
	Settle time.Duration
	Sleep  func(time.Duration)

	run    runFunc
	logger *zap.Logger
}

// NewTerminator creates a Terminator with the default settle delay.
func NewTerminator(logger *zap.Logger) *Terminator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminator{
		Settle: DefaultSettleDelay,
		Sleep:  time.Sleep,
		run:    runCommand,
		logger: logger,
	}
}

// Kill issues a forceful kill for every process named name. No matching
// process is not a failure; anything else is logged and dropped.
func (t *Terminator) Kill(ctx context.Context, name string) {
	bin, args, noMatch := killCommand(name)

	code, err := t.run(ctx, bin, args...)
	switch {
	case err != nil:
		t.logger.Warn("kill request failed",
			zap.Stringer("outcome", types.OutcomeKillFailed),
			zap.String("process", name),
			zap.Error(err))
	case code == 0:
		t.logger.Info("kill request sent", zap.String("process", name))
	case code == noMatch:
		t.logger.Debug("no running process", zap.String("process", name))
	default:
		t.logger.Warn("kill request failed",
			zap.Stringer("outcome", types.OutcomeKillFailed),
			zap.String("process", name),
			zap.Int("exit_code", code))
	}
}

// Terminate kills name and then waits out the settle delay.
func (t *Terminator) Terminate(ctx context.Context, name string) {
	t.Kill(ctx, name)
	if t.Settle > 0 && t.Sleep != nil {
		t.Sleep(t.Settle)
	}
}

func runCommand(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
