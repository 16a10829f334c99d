package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/config"
	"github.com/finmgr/finmgr/internal/interactive"
	"github.com/finmgr/finmgr/internal/logging"
	"github.com/finmgr/finmgr/internal/progress"
	"github.com/finmgr/finmgr/internal/types"
	"github.com/finmgr/finmgr/internal/update"
)

const (
	defaultInvocationVersion = "Unknown"
	// failureLinger keeps a failure message on screen before the updater
	// exits.
	failureLinger = 3 * time.Second
)

type updaterOptions struct {
	configPath   string
	logDir       string
	expectedSize int64
	checksumURL  string
	assetName    string
	launchers    []string
	maxRetries   int
	retryDelay   time.Duration
	noUI         bool
}

// updaterEnv is the process around an updater run.
type updaterEnv struct {
	stdout   io.Writer
	stderr   io.Writer
	selfPath string
	terminal bool
	linger   time.Duration

	// Optional overrides; nil uses the real implementation.
	killer update.Killer
	launch func(path string) error
	sleep  func(time.Duration)
	exit   func(code int)
}

// invocation is the positional part of the updater command line.
type invocation struct {
	downloadURL string
	version     string
	targetPath  string
}

// ExecuteUpdater runs the updater command line. On a normal run it does
// not return: the process exits with the pipeline's exit code.
func ExecuteUpdater(version string) error {
	self, err := os.Executable()
	if err == nil {
		if resolved, rerr := filepath.EvalSymlinks(self); rerr == nil {
			self = resolved
		}
	}

	env := &updaterEnv{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		selfPath: self,
		terminal: interactive.IsTerminalWriter(os.Stdout),
		linger:   failureLinger,
		exit:     os.Exit,
	}
	return newUpdaterCmd(version, env).Execute()
}

func newUpdaterCmd(version string, env *updaterEnv) *cobra.Command {
	opts := &updaterOptions{}

	cmd := &cobra.Command{
		Use:   "finmgr-updater [download_url] [version] [target_path]",
		Short: "Replace the finmgr executable with a new release",
		Long: `finmgr-updater is started by finmgr after it has decided to update.

It closes any running finmgr, downloads the release to a temp file next to
the target, swaps it into place (retrying while the old file is locked),
starts the new finmgr and deletes itself.

Missing arguments default to an empty URL (the run fails), version
"Unknown" and finmgr next to the updater.`,
		Version:      version,
		Args:         cobra.MaximumNArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdater(cmd.Context(), args, opts, env)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to Updatefile")
	flags.StringVar(&opts.logDir, "log-dir", "", "Directory for run logs (default updater_logs next to the updater)")
	flags.Int64Var(&opts.expectedSize, "expected-size", 0, "Expected download size in bytes, 0 if unknown")
	flags.StringVar(&opts.checksumURL, "checksum-url", "", "URL of a sha256 checksum list for the download")
	flags.StringVar(&opts.assetName, "asset-name", "", "Release asset name to look up in the checksum list")
	flags.StringArrayVar(&opts.launchers, "launcher", nil, "File written by finmgr to start the updater, removed on exit (repeatable)")
	flags.IntVar(&opts.maxRetries, "max-retries", 0, "Swap attempts before giving up (default from config, 10)")
	flags.DurationVar(&opts.retryDelay, "retry-delay", 0, "Delay between swap attempts (default from config, 1s)")
	flags.BoolVar(&opts.noUI, "no-ui", false, "Print plain status lines instead of the progress window")

	return cmd
}

// resolveInvocation applies the positional defaults.
func resolveInvocation(args []string, selfPath string) invocation {
	inv := invocation{
		version:    defaultInvocationVersion,
		targetPath: filepath.Join(filepath.Dir(selfPath), update.Detect().Executable(update.HostName)),
	}
	if len(args) > 0 {
		inv.downloadURL = args[0]
	}
	if len(args) > 1 && args[1] != "" {
		inv.version = args[1]
	}
	if len(args) > 2 && args[2] != "" {
		inv.targetPath = args[2]
	}
	return inv
}

func runUpdater(ctx context.Context, args []string, opts *updaterOptions, env *updaterEnv) error {
	if ctx == nil {
		ctx = context.Background()
	}
	inv := resolveInvocation(args, env.selfPath)

	cfg, cfgPath, cfgErr := config.Resolve(opts.configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}
	applyUpdaterFlags(cfg, opts)

	logDir := opts.logDir
	if logDir == "" {
		logDir = cfg.Log.Dir
	}
	if logDir == "" {
		logDir = filepath.Join(filepath.Dir(env.selfPath), logging.DefaultDir)
	}

	runLog, logErr := logging.NewRunLogger(logging.RunOptions{Dir: logDir, Level: cfg.Log.Level})
	log := runLog.Logger
	if logErr != nil {
		log = logging.NewConsole(env.stderr, cfg.Log.Level)
		log.Warn("update log unavailable",
			zap.Stringer("outcome", types.OutcomeLogUnavailable),
			zap.Error(logErr))
	}

	log.Info(fmt.Sprintf("Updater Started. Args: %s %s %s", inv.downloadURL, inv.version, inv.targetPath))
	if cfgErr != nil {
		log.Warn("Updatefile ignored, using defaults", zap.String("path", cfgPath), zap.Error(cfgErr))
	} else if cfgPath != "" {
		log.Debug("Updatefile loaded", zap.String("path", cfgPath))
	}
	pruneLogs(log, logDir, cfg.Log.Keep)

	job := update.NewUpdateJob(inv.downloadURL, inv.version, inv.targetPath)
	job.ExpectedSize = opts.expectedSize
	job.ChecksumURL = opts.checksumURL
	job.AssetName = opts.assetName
	job.LauncherArtifacts = opts.launchers

	surface := newSurface(env, opts, inv.version, job.ExpectedSize)
	pipeline := newPipeline(cfg, env, surface, log)

	done := make(chan update.Outcome, 1)
	go func() {
		done <- pipeline.Run(ctx, job)
	}()
	outcome := <-done

	linger := time.Duration(0)
	if !outcome.OK() {
		linger = env.linger
	}
	surface.Finish(linger)

	selfPath := env.selfPath
	if !update.IsStagedTool(selfPath) {
		log.Debug("keeping updater binary", zap.String("path", selfPath))
		selfPath = ""
	}
	launcher := update.NewLauncher(selfPath, log)
	launcher.Exit = func(code int) {
		_ = runLog.Close()
		env.exit(code)
	}
	launcher.Finish(job.LauncherArtifacts, outcome.ExitCode)
	return nil
}

// applyUpdaterFlags lets explicit flags win over the Updatefile.
func applyUpdaterFlags(cfg *config.Updatefile, opts *updaterOptions) {
	if opts.maxRetries > 0 {
		cfg.Swap.MaxRetries = opts.maxRetries
	}
	if opts.retryDelay > 0 {
		cfg.Swap.RetryDelay = config.Duration(opts.retryDelay)
	}
}

func pruneLogs(log *zap.Logger, dir string, keep int) {
	if keep <= 0 {
		return
	}
	result, err := logging.Prune(dir, keep)
	if err != nil {
		log.Debug("log pruning failed", zap.Error(err))
		return
	}
	if len(result.Deleted) > 0 {
		log.Debug("old update logs removed", zap.Int("count", len(result.Deleted)))
	}
}

func newSurface(env *updaterEnv, opts *updaterOptions, version string, expectedSize int64) progress.Surface {
	if env.terminal && !opts.noUI {
		return progress.NewTUI(env.stdout, version, expectedSize)
	}
	return progress.NewPlain(env.stdout)
}

func newPipeline(cfg *config.Updatefile, env *updaterEnv, observer update.Observer, log *zap.Logger) *update.Pipeline {
	killer := env.killer
	if killer == nil {
		terminator := update.NewTerminator(log)
		terminator.Settle = cfg.Swap.SettleDelay.Std()
		killer = terminator
	}

	swapper := update.NewSwapper(nil)
	swapper.MaxRetries = cfg.Swap.MaxRetries
	swapper.Delay = cfg.Swap.RetryDelay.Std()
	if env.sleep != nil {
		swapper.Sleep = env.sleep
	}

	downloader := update.NewHTTPDownloader().
		WithTimeout(cfg.Download.Timeout.Std()).
		WithSizeSlack(cfg.Download.SizeSlack)

	return &update.Pipeline{
		Killer:       killer,
		Downloader:   downloader,
		Swapper:      swapper,
		Launch:       env.launch,
		Observer:     observer,
		Logger:       log,
		RestartDelay: update.DefaultRestartDelay,
		Sleep:        env.sleep,
	}
}
