package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/config"
	"github.com/finmgr/finmgr/internal/logging"
	"github.com/finmgr/finmgr/internal/update"
)

// Build information, set by Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func setBuildInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

// consoleLogger returns the stderr logger for host commands. --verbose and
// --quiet override the configured level.
func consoleLogger(w io.Writer, cfg *config.Updatefile) *zap.Logger {
	level := cfg.Log.Level
	switch {
	case quiet:
		level = "error"
	case verbose:
		level = "debug"
	}
	return logging.NewConsole(w, level)
}

// newChecker builds the feed client described by cfg.
func newChecker(cfg *config.Updatefile, logger *zap.Logger) *update.GitHubChecker {
	feed := cfg.Feed

	checker := update.NewGitHubChecker(buildVersion, feed.Owner, feed.Repo).
		WithTimeout(feed.Timeout.Std()).
		WithAssetSuffix(feed.AssetSuffix).
		WithChecksumAsset(feed.ChecksumAsset).
		WithLogger(logger)

	switch {
	case feed.URL != "":
		checker = checker.WithEndpoint(feed.URL)
	case feed.BaseURL != "" && feed.BaseURL != update.DefaultAPIBaseURL:
		checker = checker.WithEndpoint(update.ReleasesEndpoint(feed.BaseURL, feed.Owner, feed.Repo))
	}

	token := feed.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token != "" {
		checker = checker.WithToken(token)
	}

	return checker
}

// hostExecutable returns the installed host binary: the configured path,
// else the running executable with symlinks resolved.
func hostExecutable(cfg *config.Updatefile) (string, error) {
	if cfg.Host.Executable != "" {
		return filepath.Abs(cfg.Host.Executable)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get current binary path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve binary path: %w", err)
	}
	return exe, nil
}

// updaterSource returns the updater binary shipped with the host.
func updaterSource(cfg *config.Updatefile, hostPath string) string {
	if cfg.Host.UpdaterPath != "" {
		return cfg.Host.UpdaterPath
	}
	return filepath.Join(filepath.Dir(hostPath), update.Detect().Executable(update.UpdaterName))
}
