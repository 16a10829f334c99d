package update

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/types"
)

// StartDetached starts path as a process that outlives the caller and
// inherits none of its stdio. The working directory is the directory that
// holds path.
func StartDetached(path string, args ...string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &LaunchError{Path: path, Err: err}
	}

	cmd := detachedCommand(abs, args...)
	cmd.Dir = filepath.Dir(abs)

	if err := cmd.Start(); err != nil {
		return &LaunchError{Path: abs, Err: err}
	}
	// Nobody waits for the child.
	_ = cmd.Process.Release()
	return nil
}

// Launcher finishes an updater run: it removes what the host left behind to
// start us, removes the updater binary itself, and exits.
type Launcher struct {
	// SelfPath is the running updater binary. Empty skips self-deletion.
	SelfPath string

	Remove     func(string) error
	RemoveSelf func(string) error
	Exit       func(code int)

	logger *zap.Logger
}

// NewLauncher returns a Launcher that deletes selfPath and calls os.Exit.
func NewLauncher(selfPath string, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		SelfPath:   selfPath,
		Remove:     os.Remove,
		RemoveSelf: removeSelf,
		Exit:       os.Exit,
		logger:     logger,
	}
}

// CleanupSelf removes launcher artifacts and the updater binary. Failures
// are logged and skipped.
func (l *Launcher) CleanupSelf(artifacts []string) {
	for _, path := range artifacts {
		if path == "" {
			continue
		}
		if err := l.Remove(path); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("could not remove launcher artifact",
				zap.Stringer("outcome", types.OutcomeCleanupFailed),
				zap.String("path", path),
				zap.Error(err))
		}
	}

	if l.SelfPath == "" {
		return
	}
	if err := l.RemoveSelf(l.SelfPath); err != nil {
		l.logger.Warn("could not schedule updater removal",
			zap.Stringer("outcome", types.OutcomeCleanupFailed),
			zap.String("path", l.SelfPath),
			zap.Error(err))
	}
}

// Finish cleans up and exits with code. Exit is expected not to return.
func (l *Launcher) Finish(artifacts []string, code int) {
	l.CleanupSelf(artifacts)
	l.logger.Info("Exiting.", zap.Int("exit_code", code))
	_ = l.logger.Sync()
	l.Exit(code)
}
