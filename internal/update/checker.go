package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finmgr/finmgr/internal/types"
)

const (
	// DefaultFeedTimeout bounds the whole feed request. The check runs during
	// host startup and must give up quickly.
	DefaultFeedTimeout = 5 * time.Second
	// DefaultAPIBaseURL is the GitHub REST API root.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultChecksumAsset is the release asset holding sha256 sums.
	DefaultChecksumAsset = "checksums.txt"

	userAgent = "finmgr-updater"
)

// GitHubChecker checks for updates via the GitHub releases API
type GitHubChecker struct {
	currentVersion string
	githubToken    string // Optional, for rate limiting
	endpoint       string // Full URL of the latest-release document
	assetSuffix    string // Asset name suffix selecting the platform binary
	checksumAsset  string
	client         *http.Client
	logger         *zap.Logger
}

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	} `json:"assets"`
}

// ReleasesEndpoint builds the latest-release URL for a repository.
func ReleasesEndpoint(baseURL, owner, repo string) string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", baseURL, owner, repo)
}

// NewGitHubChecker creates a new GitHub checker
func NewGitHubChecker(currentVersion, owner, repo string) *GitHubChecker {
	return &GitHubChecker{
		currentVersion: currentVersion,
		endpoint:       ReleasesEndpoint(DefaultAPIBaseURL, owner, repo),
		assetSuffix:    Detect().AssetSuffix(),
		checksumAsset:  DefaultChecksumAsset,
		client: &http.Client{
			Timeout: DefaultFeedTimeout,
		},
		logger: zap.NewNop(),
	}
}

// WithToken sets an optional GitHub token for authentication
func (c *GitHubChecker) WithToken(token string) *GitHubChecker {
	c.githubToken = token
	return c
}

// WithEndpoint replaces the feed URL, e.g. for a self-hosted mirror.
func (c *GitHubChecker) WithEndpoint(url string) *GitHubChecker {
	if url != "" {
		c.endpoint = url
	}
	return c
}

// WithTimeout sets the request timeout.
func (c *GitHubChecker) WithTimeout(d time.Duration) *GitHubChecker {
	if d > 0 {
		c.client.Timeout = d
	}
	return c
}

// WithAssetSuffix sets the suffix used to pick the platform binary.
func (c *GitHubChecker) WithAssetSuffix(suffix string) *GitHubChecker {
	if suffix != "" {
		c.assetSuffix = suffix
	}
	return c
}

// WithChecksumAsset sets the name of the checksum list asset.
func (c *GitHubChecker) WithChecksumAsset(name string) *GitHubChecker {
	c.checksumAsset = name
	return c
}

// WithLogger attaches a logger for the swallowed feed outcomes.
func (c *GitHubChecker) WithLogger(logger *zap.Logger) *GitHubChecker {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// CheckForUpdate checks if an update is available.
// Feed failures are returned as *FeedError so callers can log them, but
// callers must treat any error as "no update".
func (c *GitHubChecker) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	info := &UpdateInfo{
		CurrentVersion: NormalizeVersion(c.currentVersion),
	}

	release, err := c.FetchLatestRelease(ctx)
	if err != nil {
		return info, err
	}
	if release == nil {
		return info, nil
	}

	info.LatestVersion = NormalizeVersion(release.Tag)
	info.Release = release

	cmp, err := CompareVersions(c.currentVersion, release.Tag)
	if err != nil {
		c.logger.Warn("version comparison failed, not offering update",
			zap.Stringer("outcome", types.OutcomeVersionUnparsable),
			zap.String("current", c.currentVersion),
			zap.String("latest", release.Tag),
			zap.Error(err))
		return info, nil
	}

	info.Available = cmp == Newer
	return info, nil
}

// LatestRelease is FetchLatestRelease with every failure folded into nil.
func (c *GitHubChecker) LatestRelease(ctx context.Context) *ReleaseInfo {
	release, err := c.FetchLatestRelease(ctx)
	if err != nil {
		c.logger.Info("update check skipped",
			zap.Stringer("outcome", types.OutcomeFeedUnavailable),
			zap.Error(err))
		return nil
	}
	return release
}

// FetchLatestRelease queries the feed once. It returns (nil, nil) when the
// release has no artifact for this platform.
func (c *GitHubChecker) FetchLatestRelease(ctx context.Context) (*ReleaseInfo, error) {
	release, err := c.getLatestRelease(ctx)
	if err != nil {
		return nil, err
	}

	info := c.selectAssets(release)
	if info == nil {
		c.logger.Info("release has no installable asset",
			zap.Stringer("outcome", types.OutcomeNoMatchingAsset),
			zap.String("tag", release.TagName),
			zap.String("suffix", c.assetSuffix))
	}
	return info, nil
}

// getLatestRelease fetches the latest release document
func (c *GitHubChecker) getLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &FeedError{URL: c.endpoint, Err: err}
	}

	// Set headers
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if c.githubToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.githubToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FeedError{URL: c.endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedError{URL: c.endpoint, StatusCode: resp.StatusCode}
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, &FeedError{URL: c.endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if release.TagName == "" {
		return nil, &FeedError{URL: c.endpoint, Err: fmt.Errorf("response has no tag_name")}
	}

	return &release, nil
}

// selectAssets picks the first platform binary and the checksum list.
func (c *GitHubChecker) selectAssets(release *GitHubRelease) *ReleaseInfo {
	var info *ReleaseInfo
	var checksumURL string

	for _, asset := range release.Assets {
		if info == nil && asset.BrowserDownloadURL != "" && MatchesAsset(asset.Name, c.assetSuffix) {
			info = &ReleaseInfo{
				Tag:          release.TagName,
				DownloadURL:  asset.BrowserDownloadURL,
				ExpectedSize: asset.Size,
				AssetName:    asset.Name,
				ReleaseURL:   release.HTMLURL,
				Notes:        release.Body,
			}
		}
		if c.checksumAsset != "" && asset.Name == c.checksumAsset {
			checksumURL = asset.BrowserDownloadURL
		}
	}

	if info != nil {
		info.ChecksumURL = checksumURL
	}
	return info
}
