package host

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/types"
	"github.com/finmgr/finmgr/internal/update"
)

// StaleFiles lists what an earlier update may have left in dir.
func StaleFiles(dir string, p update.Platform) []string {
	return []string{
		filepath.Join(dir, p.Executable(update.UpdaterToolName)),
		filepath.Join(dir, update.TempBaseName+p.ExecutableExt()),
		filepath.Join(dir, LauncherBaseName+".bat"),
		filepath.Join(dir, LauncherBaseName+".sh"),
	}
}

// CleanupStale removes leftovers of earlier updates from dir and returns
// the paths it removed. A file still in use is skipped; the next start
// tries again.
func CleanupStale(dir string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}

	var removed []string
	for _, path := range StaleFiles(dir, update.Detect()) {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
			logger.Debug("removed update leftover", zap.String("path", path))
		case os.IsNotExist(err):
		default:
			logger.Debug("update leftover still in use",
				zap.Stringer("outcome", types.OutcomeCleanupFailed),
				zap.String("path", path),
				zap.Error(err))
		}
	}
	return removed
}
