package update

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/finmgr/finmgr/internal/output"
	"github.com/finmgr/finmgr/internal/types"
)

// ReleaseInfo describes the newest published release.
// It is built from the feed response and never persisted.
type ReleaseInfo struct {
	Tag          string `json:"tag" yaml:"tag"`                                       // Raw tag, e.g. "v1.2.0"
	DownloadURL  string `json:"download_url" yaml:"download_url"`                     // Direct URL of the platform binary
	ExpectedSize int64  `json:"expected_size,omitempty" yaml:"expected_size,omitempty"` // 0 when the feed did not say
	AssetName    string `json:"asset_name" yaml:"asset_name"`
	ChecksumURL  string `json:"checksum_url,omitempty" yaml:"checksum_url,omitempty"`
	ReleaseURL   string `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	Notes        string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// UpdateInfo describes whether an update is available
type UpdateInfo struct {
	Available      bool         `json:"available" yaml:"available"`
	CurrentVersion string       `json:"current_version" yaml:"current_version"`
	LatestVersion  string       `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	Release        *ReleaseInfo `json:"release,omitempty" yaml:"release,omitempty"`
}

// String is the headline of `finmgr check`.
func (i *UpdateInfo) String() string {
	if !i.Available {
		return fmt.Sprintf("finmgr %s is up to date", i.CurrentVersion)
	}
	return fmt.Sprintf("finmgr %s available (current %s)", i.LatestVersion, i.CurrentVersion)
}

// Details lists the offered release under the headline.
func (i *UpdateInfo) Details() []output.Field {
	if !i.Available || i.Release == nil {
		return nil
	}
	r := i.Release
	size := ""
	if r.ExpectedSize > 0 {
		size = humanize.Bytes(uint64(r.ExpectedSize))
	}
	return []output.Field{
		{Label: "tag", Value: r.Tag},
		{Label: "asset", Value: r.AssetName},
		{Label: "size", Value: size},
		{Label: "url", Value: r.DownloadURL},
		{Label: "checksums", Value: r.ChecksumURL},
		{Label: "release", Value: r.ReleaseURL},
	}
}

// UpdateJob is the state of one update run. It is created when an update is
// accepted and threaded through every pipeline stage; nothing outlives the
// updater process except the log file.
type UpdateJob struct {
	ID                string
	TargetPath        string // Installed host executable that gets replaced
	TempPath          string // Download destination, same directory as TargetPath
	Version           string
	DownloadURL       string
	AssetName         string // Release asset name, used for the checksum lookup
	ChecksumURL       string
	ExpectedSize      int64
	DownloadedBytes   int64
	LauncherArtifacts []string // Files written by the host to start us
}

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (windows, darwin, linux)
	Arch string // Architecture (amd64, arm64)
}

// Checker checks for available updates
type Checker interface {
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)
}

// ProgressFunc receives the completed fraction of a download in [0,1].
type ProgressFunc func(fraction float64)

// Downloader downloads and verifies binaries
type Downloader interface {
	Download(ctx context.Context, url, dst string, expectedSize int64, onProgress ProgressFunc) (int64, error)
	VerifyChecksum(ctx context.Context, file, name, checksumURL string) error
}

// Killer force-terminates processes by executable name.
type Killer interface {
	// Kill issues the kill request and returns immediately.
	Kill(ctx context.Context, name string)
	// Terminate kills and then waits for the OS to release file handles.
	Terminate(ctx context.Context, name string)
}

// Observer receives pipeline progress. Implementations must be safe for use
// from the pipeline goroutine while a UI goroutine renders.
type Observer interface {
	Status(phase types.Phase, message string)
	Progress(fraction float64)
}

// NopObserver discards all updates.
type NopObserver struct{}

func (NopObserver) Status(types.Phase, string) {}
func (NopObserver) Progress(float64)           {}
