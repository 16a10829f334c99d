package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/finmgr/finmgr/internal/host"
	"github.com/finmgr/finmgr/internal/interactive"
	"github.com/finmgr/finmgr/internal/output"
	"github.com/finmgr/finmgr/internal/update"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check for a newer release",
		Long: `Query the release feed once and report whether a newer finmgr is available.

Examples:
  finmgr check            # Human-readable summary
  finmgr check -o json    # Machine-readable result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := consoleLogger(cmd.ErrOrStderr(), cfg)
			defer func() { _ = logger.Sync() }()

			return runCheck(cmd.Context(), cmd.OutOrStdout(), outputFormat, newChecker(cfg, logger))
		},
	}
}

// runCheck prints the result of one feed query. A feed failure still prints
// the "up to date" result and is returned as an error.
func runCheck(ctx context.Context, stdout io.Writer, format string, checker update.Checker) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info, checkErr := checker.CheckForUpdate(ctx)
	if info == nil {
		info = &update.UpdateInfo{CurrentVersion: update.NormalizeVersion(buildVersion)}
	}

	if err := output.NewWriter(stdout, f).Write(info); err != nil {
		return err
	}
	if checkErr != nil {
		return fmt.Errorf("update check failed: %w", checkErr)
	}
	return nil
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Download and install the latest release",
		Long: `Check the release feed and, when a newer release exists, start
finmgr-updater and exit. The updater replaces this executable and starts
the new version.

Examples:
  finmgr update        # Ask before installing
  finmgr update --yes  # Install without asking`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := consoleLogger(cmd.ErrOrStderr(), cfg)
			defer func() { _ = logger.Sync() }()

			hostPath, err := hostExecutable(cfg)
			if err != nil {
				return err
			}
			handoff := host.NewHandoff(hostPath, updaterSource(cfg, hostPath), logger)

			return runUpdate(cmd.Context(), os.Stdin, cmd.OutOrStdout(), newChecker(cfg, logger), handoff, interactive.IsTerminal())
		},
	}
}

// runUpdate checks once and offers the result. Unlike startup, a feed
// failure is reported.
func runUpdate(ctx context.Context, stdin io.Reader, stdout io.Writer, checker update.Checker, handoff *host.Handoff, isTTY bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := checker.CheckForUpdate(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Current version: %s\n", info.CurrentVersion)
	if !info.Available {
		_, _ = fmt.Fprintln(stdout, "Already running latest version")
		return nil
	}

	return offerUpdate(info, stdin, stdout, handoff, isTTY)
}
