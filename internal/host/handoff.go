package host

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/update"
)

const (
	// LauncherBaseName is the base name of the script that starts the
	// updater after the host has exited.
	LauncherBaseName = "finmgr-update-launcher"
	// DefaultLauncherDelay is how long the launcher script waits so the host
	// can exit first.
	DefaultLauncherDelay = time.Second
)

// ErrNoRelease is returned when Launch is called without an installable
// release.
var ErrNoRelease = errors.New("no installable release")

// Handoff stages the updater next to the host and starts it through a
// launcher script. After a successful Launch the host is expected to exit.
type Handoff struct {
	// HostPath is the installed host executable the updater replaces.
	HostPath string
	// UpdaterSource is the updater binary shipped with the host.
	UpdaterSource string
	// Delay is written into the launcher script.
	Delay time.Duration

	Platform update.Platform
	Start    func(path string, args ...string) error
	Exit     func(code int)

	logger *zap.Logger
}

// NewHandoff creates a Handoff for the current platform.
func NewHandoff(hostPath, updaterSource string, logger *zap.Logger) *Handoff {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handoff{
		HostPath:      hostPath,
		UpdaterSource: updaterSource,
		Delay:         DefaultLauncherDelay,
		Platform:      update.Detect(),
		Start:         update.StartDetached,
		Exit:          os.Exit,
		logger:        logger,
	}
}

// ToolPath is where the updater copy is staged.
func (h *Handoff) ToolPath() string {
	return filepath.Join(filepath.Dir(h.HostPath), h.Platform.Executable(update.UpdaterToolName))
}

// ScriptPath is where the launcher script is written.
func (h *Handoff) ScriptPath() string {
	ext := ".sh"
	if h.Platform.OS == "windows" {
		ext = ".bat"
	}
	return filepath.Join(filepath.Dir(h.HostPath), LauncherBaseName+ext)
}

// Stage copies the updater to ToolPath. Running the copy leaves the
// shipped updater free to be replaced by a later release.
func (h *Handoff) Stage() (string, error) {
	dst := h.ToolPath()

	src, err := os.Open(h.UpdaterSource)
	if err != nil {
		return "", fmt.Errorf("failed to open updater: %w", err)
	}
	defer func() { _ = src.Close() }()

	_ = os.Remove(dst)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create updater copy: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to copy updater: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to copy updater: %w", err)
	}

	return dst, nil
}

// UpdaterArgs returns the updater command line for release: the three
// positional arguments followed by the optional flags.
func (h *Handoff) UpdaterArgs(release *update.ReleaseInfo, script string) []string {
	args := []string{release.DownloadURL, release.Tag, h.HostPath}
	if release.ExpectedSize > 0 {
		args = append(args, "--expected-size", strconv.FormatInt(release.ExpectedSize, 10))
	}
	if release.ChecksumURL != "" {
		args = append(args, "--checksum-url", release.ChecksumURL)
	}
	if release.AssetName != "" {
		args = append(args, "--asset-name", release.AssetName)
	}
	if script != "" {
		args = append(args, "--launcher", script)
	}
	return args
}

// Launch stages the updater, writes the launcher script and starts it.
func (h *Handoff) Launch(info *update.UpdateInfo) error {
	if info == nil || info.Release == nil || info.Release.DownloadURL == "" {
		return ErrNoRelease
	}

	tool, err := h.Stage()
	if err != nil {
		return err
	}

	script := h.ScriptPath()
	content := h.renderScript(tool, h.UpdaterArgs(info.Release, script))
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		return fmt.Errorf("failed to write launcher: %w", err)
	}

	name, args := h.scriptCommand(script)
	if err := h.Start(name, args...); err != nil {
		_ = os.Remove(script)
		return fmt.Errorf("failed to start updater: %w", err)
	}

	h.logger.Info("updater started",
		zap.String("version", info.Release.Tag),
		zap.String("launcher", script))
	return nil
}

// LaunchAndExit starts the updater and exits the host. It only returns on
// failure.
func (h *Handoff) LaunchAndExit(info *update.UpdateInfo) error {
	if err := h.Launch(info); err != nil {
		return err
	}
	_ = h.logger.Sync()
	h.Exit(0)
	return nil
}

func (h *Handoff) renderScript(tool string, args []string) string {
	seconds := int(h.Delay.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	var b strings.Builder
	if h.Platform.OS == "windows" {
		b.WriteString("@echo off\r\n")
		// timeout needs a console, which a detached cmd.exe does not have.
		fmt.Fprintf(&b, "ping 127.0.0.1 -n %d > NUL\r\n", seconds+1)
		b.WriteString(`start "" ` + batchQuote(tool))
		for _, arg := range args {
			b.WriteString(" " + batchQuote(arg))
		}
		b.WriteString("\r\n")
		b.WriteString(`del "%~f0"` + "\r\n")
		return b.String()
	}

	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "sleep %d\n", seconds)
	b.WriteString(shellQuote(tool))
	for _, arg := range args {
		b.WriteString(" " + shellQuote(arg))
	}
	b.WriteString(" </dev/null >/dev/null 2>&1 &\n")
	b.WriteString(`rm -f -- "$0"` + "\n")
	return b.String()
}

func (h *Handoff) scriptCommand(script string) (string, []string) {
	if h.Platform.OS == "windows" {
		comspec := os.Getenv("ComSpec")
		if comspec == "" {
			comspec = `C:\Windows\System32\cmd.exe`
		}
		return comspec, []string{"/C", script}
	}
	return "/bin/sh", []string{script}
}

// batchQuote quotes s for a .bat line. Percent signs are doubled so URL
// escapes survive variable expansion.
func batchQuote(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "%", "%%")
	return `"` + s + `"`
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
