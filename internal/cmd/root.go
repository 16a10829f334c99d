// Package cmd implements the finmgr and finmgr-updater command lines.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/config"
	"github.com/finmgr/finmgr/internal/host"
	"github.com/finmgr/finmgr/internal/interactive"
	"github.com/finmgr/finmgr/internal/output"
	"github.com/finmgr/finmgr/internal/types"
	"github.com/finmgr/finmgr/internal/update"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
	assumeYes    bool
)

// Execute runs the host command line.
func Execute(version, commit, date string) error {
	setBuildInfo(version, commit, date)

	rootCmd := &cobra.Command{
		Use:   "finmgr",
		Short: "Personal finance manager",
		Long: `finmgr is a personal finance manager.

On start it checks the release feed in the background and offers to install
a newer version. Updates are applied by finmgr-updater after finmgr exits.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartup(cmd.Context(), os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr(), interactive.IsTerminal())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to Updatefile")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Install an available update without asking")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newInitCmd())

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}

// runStartup is what the host does when it starts: clear leftovers of the
// last update, then check for a newer release after a short delay.
func runStartup(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, isTTY bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := consoleLogger(stderr, cfg)
	defer func() { _ = logger.Sync() }()

	hostPath, err := hostExecutable(cfg)
	if err != nil {
		return err
	}
	for _, path := range host.CleanupStale(filepath.Dir(hostPath), logger) {
		logger.Info("Removed update leftover", zap.String("path", path))
	}

	if !quiet {
		_, _ = fmt.Fprintf(stdout, "finmgr %s\n", buildVersion)
	}

	result := make(chan checkResult, 1)
	scheduler := host.NewScheduler(newChecker(cfg, logger), cfg.Host.CheckDelay.Std(), func(info *update.UpdateInfo, err error) {
		result <- checkResult{info: info, err: err}
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var res checkResult
	select {
	case res = <-result:
	case <-ctx.Done():
		return nil
	}

	if res.err != nil {
		logger.Debug("update check skipped",
			zap.Stringer("outcome", types.OutcomeFeedUnavailable),
			zap.Error(res.err))
		return nil
	}

	handoff := host.NewHandoff(hostPath, updaterSource(cfg, hostPath), logger)
	return offerUpdate(res.info, stdin, stdout, handoff, isTTY)
}

type checkResult struct {
	info *update.UpdateInfo
	err  error
}

// offerUpdate asks about an available update and hands off to the updater
// when accepted. Without a terminal the update is only announced unless
// --yes was given.
func offerUpdate(info *update.UpdateInfo, stdin io.Reader, stdout io.Writer, handoff *host.Handoff, isTTY bool) error {
	if info == nil || !info.Available || info.Release == nil {
		return nil
	}

	if !assumeYes {
		if !isTTY {
			_, _ = fmt.Fprintf(stdout, "Update %s available. Run 'finmgr update --yes' to install.\n", info.Release.Tag)
			return nil
		}
		if !interactive.NewPrompterWithIO(stdin, stdout).ConfirmUpdate(info) {
			return nil
		}
	}

	_, _ = fmt.Fprintf(stdout, "Starting updater for %s...\n", info.Release.Tag)
	if err := handoff.LaunchAndExit(info); err != nil {
		return fmt.Errorf("failed to start update: %w", err)
	}
	return nil
}

// loadConfig resolves the Updatefile, falling back to built-in defaults.
func loadConfig(path string) (*config.Updatefile, error) {
	cfg, _, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
