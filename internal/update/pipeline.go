package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/types"
)

// Exit codes of the updater process.
const (
	ExitOK            = 0
	ExitFailed        = 1
	ExitSwapExhausted = 2
)

// DefaultRestartDelay keeps "Done! Restarting..." on screen before the new
// host starts.
const DefaultRestartDelay = 2 * time.Second

// User-facing status lines.
const (
	msgClosing      = "Closing application..."
	msgDownloading  = "Downloading..."
	msgVerifying    = "Verifying..."
	msgInstalling   = "Installing..."
	msgRestarting   = "Done! Restarting..."
	msgDownloadFail = "Download Failed"
	msgCorrupt      = "Download corrupted. Please try again."
	msgLocked       = "File locked. Please restart your computer."
)

// Outcome is the terminal result of a pipeline run.
type Outcome struct {
	Phase    types.Phase
	Message  string
	ExitCode int
	Err      error
	Swap     SwapResult
}

// OK reports whether the run ended with the new binary in place.
func (o Outcome) OK() bool { return o.ExitCode == ExitOK }

// NewUpdateJob builds the job for replacing targetPath with the binary at
// downloadURL. The download lands next to the target so the final rename
// never crosses filesystems.
func NewUpdateJob(downloadURL, version, targetPath string) *UpdateJob {
	return &UpdateJob{
		ID:          ksuid.New().String(),
		TargetPath:  targetPath,
		TempPath:    TempPathFor(targetPath),
		Version:     version,
		DownloadURL: downloadURL,
	}
}

// TempPathFor returns the download destination used for targetPath.
func TempPathFor(targetPath string) string {
	return filepath.Join(filepath.Dir(targetPath), TempBaseName+Detect().ExecutableExt())
}

// Pipeline runs the updater stages in order: close the host, download,
// verify, swap and relaunch. It never touches a UI; all progress goes
// through Observer.
type Pipeline struct {
	Killer     Killer
	Downloader Downloader
	Swapper    *Swapper
	Launch     func(path string) error
	Observer   Observer
	Logger     *zap.Logger

	RestartDelay time.Duration
	Sleep        func(time.Duration)
}

// Run executes job and reports how it ended. Run does not exit the process.
func (p *Pipeline) Run(ctx context.Context, job *UpdateJob) Outcome {
	p.defaults()
	log := p.Logger.With(zap.String("job", job.ID))

	log.Info("Update started",
		zap.String("version", job.Version),
		zap.String("target", job.TargetPath))

	if job.DownloadURL == "" {
		return p.fail(log, types.PhaseDownloading, msgDownloadFail, ExitFailed,
			&DownloadError{URL: job.DownloadURL, Err: errors.New("no download URL")})
	}

	hostName := filepath.Base(job.TargetPath)

	// Closing
	p.Observer.Status(types.PhaseClosing, msgClosing)
	log.Info(fmt.Sprintf("Killing %s...", hostName))
	p.Killer.Terminate(ctx, hostName)

	// Downloading
	p.Observer.Status(types.PhaseDownloading, msgDownloading)
	p.Observer.Progress(0)
	log.Info(fmt.Sprintf("Downloading from %s", job.DownloadURL))

	n, err := p.Downloader.Download(ctx, job.DownloadURL, job.TempPath, job.ExpectedSize, func(f float64) {
		p.Observer.Progress(f)
	})
	job.DownloadedBytes = n
	if err != nil {
		if errors.Is(err, ErrIntegrity) {
			return p.fail(log, types.PhaseDownloading, msgCorrupt, ExitFailed, err)
		}
		return p.fail(log, types.PhaseDownloading, msgDownloadFail, ExitFailed, err)
	}
	log.Info("Download complete.", zap.Int64("bytes", n))

	// Verifying
	if job.ChecksumURL != "" {
		p.Observer.Status(types.PhaseVerifying, msgVerifying)
		if err := p.Downloader.VerifyChecksum(ctx, job.TempPath, job.AssetName, job.ChecksumURL); err != nil {
			_ = os.Remove(job.TempPath)
			return p.fail(log, types.PhaseVerifying, msgCorrupt, ExitFailed, err)
		}
		log.Info("Checksum verified.")
	}

	// Installing
	p.Observer.Status(types.PhaseInstalling, msgInstalling)
	log.Info("Swapping files...")

	swapper := *p.Swapper
	if swapper.Kill == nil {
		swapper.Kill = func() { p.Killer.Kill(ctx, hostName) }
	}
	swapper.OnAttempt = func(attempt int, err error) {
		log.Warn(fmt.Sprintf("Retry %d: %v", attempt, err))
		if attempt < swapper.MaxRetries {
			p.Observer.Status(types.PhaseInstalling, fmt.Sprintf("Retrying install (%d/%d)...", attempt, swapper.MaxRetries))
		}
	}

	result, err := swapper.Swap(ctx, job.TargetPath, job.TempPath)
	switch {
	case errors.Is(err, ErrAlreadySwapped):
		log.Info("New binary already in place",
			zap.Stringer("outcome", types.OutcomeAlreadySwapped))
	case err != nil:
		var se *SwapError
		if errors.As(err, &se) && se.Stranded {
			log.Error("Old binary removed but new binary could not be moved",
				zap.String("recover_from", se.NewPath))
		}
		log.Error("Critical Swap Failure.")
		out := p.fail(log, types.PhaseInstalling, msgLocked, ExitSwapExhausted, err)
		out.Swap = result
		return out
	}

	// Restarting
	p.Observer.Progress(1)
	p.Observer.Status(types.PhaseRestarting, msgRestarting)
	log.Info("Restarting Main App...")
	if p.RestartDelay > 0 {
		p.Sleep(p.RestartDelay)
	}

	if err := p.Launch(job.TargetPath); err != nil {
		log.Error("Launch Error",
			zap.Stringer("outcome", types.OutcomeLaunchFailed),
			zap.Error(err))
	}

	p.Observer.Status(types.PhaseDone, msgRestarting)
	return Outcome{
		Phase:    types.PhaseDone,
		Message:  msgRestarting,
		ExitCode: ExitOK,
		Swap:     result,
	}
}

func (p *Pipeline) fail(log *zap.Logger, phase types.Phase, message string, code int, err error) Outcome {
	log.Error(fmt.Sprintf("%s failed", phase.Title()),
		zap.Stringer("phase", phase),
		zap.Error(err))
	p.Observer.Status(types.PhaseFailed, message)
	return Outcome{
		Phase:    phase,
		Message:  message,
		ExitCode: code,
		Err:      err,
	}
}

func (p *Pipeline) defaults() {
	if p.Observer == nil {
		p.Observer = NopObserver{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Killer == nil {
		p.Killer = NewTerminator(p.Logger)
	}
	if p.Downloader == nil {
		p.Downloader = NewHTTPDownloader()
	}
	if p.Swapper == nil {
		p.Swapper = NewSwapper(nil)
	}
	if p.Launch == nil {
		p.Launch = func(path string) error { return StartDetached(path) }
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
}
