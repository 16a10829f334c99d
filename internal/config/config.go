// Package config handles Updatefile parsing and location resolution.
//
// An Updatefile is optional. Every setting has a default, and a file only
// needs the keys it changes:
//
//	feed:
//	  owner: finmgr
//	  repo: finmgr
//	  token: ${GITHUB_TOKEN:-}
//	swap:
//	  max_retries: 15
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvUpdatefile names the environment variable that points at an Updatefile.
const EnvUpdatefile = "FINMGR_UPDATEFILE"

// ErrNotFound is returned by FindUpdatefile when no file exists in any of
// the standard locations.
var ErrNotFound = errors.New("no Updatefile found in standard locations")

// Duration is a time.Duration written as a Go duration string ("5s", "1m30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. JSON and TOML decode
// through it.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q", string(text))
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"5s\"", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

// FeedConfig locates the release feed.
type FeedConfig struct {
	URL           string   `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"` // Full endpoint; overrides base_url/owner/repo
	BaseURL       string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	Owner         string   `yaml:"owner" toml:"owner" json:"owner"`
	Repo          string   `yaml:"repo" toml:"repo" json:"repo"`
	Token         string   `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`
	Timeout       Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	AssetSuffix   string   `yaml:"asset_suffix,omitempty" toml:"asset_suffix,omitempty" json:"asset_suffix,omitempty"` // Empty: platform default
	ChecksumAsset string   `yaml:"checksum_asset" toml:"checksum_asset" json:"checksum_asset"`
}

// DownloadConfig tunes the download engine.
type DownloadConfig struct {
	Timeout   Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	SizeSlack int64    `yaml:"size_slack" toml:"size_slack" json:"size_slack"`
}

// SwapConfig tunes host termination and the swap retry loop.
type SwapConfig struct {
	MaxRetries  int      `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	RetryDelay  Duration `yaml:"retry_delay" toml:"retry_delay" json:"retry_delay"`
	SettleDelay Duration `yaml:"settle_delay" toml:"settle_delay" json:"settle_delay"`
}

// HostConfig covers the host side of the handoff.
type HostConfig struct {
	CheckDelay Duration `yaml:"check_delay" toml:"check_delay" json:"check_delay"`
	// Executable is the installed host binary. Empty means the running one.
	Executable string `yaml:"executable,omitempty" toml:"executable,omitempty" json:"executable,omitempty"`
	// UpdaterPath is the updater binary shipped with the host. Empty means
	// finmgr-updater next to the host.
	UpdaterPath string `yaml:"updater_path,omitempty" toml:"updater_path,omitempty" json:"updater_path,omitempty"`
}

// LogConfig controls the updater's per-run log files.
type LogConfig struct {
	Dir   string `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"` // Empty: updater_logs next to the updater
	Level string `yaml:"level" toml:"level" json:"level"`
	Keep  int    `yaml:"keep" toml:"keep" json:"keep"` // Run logs retained; 0 keeps all
}

// Updatefile represents the parsed configuration file.
type Updatefile struct {
	Feed     FeedConfig     `yaml:"feed" toml:"feed" json:"feed"`
	Download DownloadConfig `yaml:"download" toml:"download" json:"download"`
	Swap     SwapConfig     `yaml:"swap" toml:"swap" json:"swap"`
	Host     HostConfig     `yaml:"host" toml:"host" json:"host"`
	Log      LogConfig      `yaml:"log" toml:"log" json:"log"`
}

// Default returns the built-in configuration.
func Default() *Updatefile {
	return &Updatefile{
		Feed: FeedConfig{
			BaseURL:       "https://api.github.com",
			Owner:         "finmgr",
			Repo:          "finmgr",
			Timeout:       Duration(5 * time.Second),
			ChecksumAsset: "checksums.txt",
		},
		Download: DownloadConfig{
			Timeout:   Duration(30 * time.Second),
			SizeSlack: 1024,
		},
		Swap: SwapConfig{
			MaxRetries:  10,
			RetryDelay:  Duration(time.Second),
			SettleDelay: Duration(2 * time.Second),
		},
		Host: HostConfig{
			CheckDelay: Duration(2 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
			Keep:  20,
		},
	}
}

// fileNames are the accepted Updatefile names, in lookup order.
var fileNames = []string{
	"Updatefile",
	"Updatefile.yaml",
	"Updatefile.yml",
	"Updatefile.toml",
	"Updatefile.json",
	".Updatefile",
	".Updatefile.yaml",
	".Updatefile.yml",
	".Updatefile.toml",
	".Updatefile.json",
}

// SearchPaths returns the directories searched for an Updatefile, in order:
// the directory of the running executable, $XDG_CONFIG_HOME/finmgr, then
// ~/.finmgr.
func SearchPaths() []string {
	var dirs []string

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	home, err := os.UserHomeDir()
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" && err == nil {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "finmgr"))
	}
	if err == nil {
		dirs = append(dirs, filepath.Join(home, ".finmgr"))
	}

	return dirs
}

// FindUpdatefile searches for an Updatefile in the standard locations.
// An explicit path must exist. Otherwise $FINMGR_UPDATEFILE is tried, then
// SearchPaths. ErrNotFound means defaults apply.
func FindUpdatefile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Updatefile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvUpdatefile); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	return findIn(SearchPaths())
}

func findIn(dirs []string) (string, error) {
	for _, dir := range dirs {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", ErrNotFound
}

// Load reads and parses an Updatefile, applying it over the defaults.
func Load(path string) (*Updatefile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Updatefile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	updatefile, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := Validate(updatefile); err != nil {
		return nil, err
	}

	return updatefile, nil
}

// Resolve finds and loads the Updatefile, falling back to Default when none
// exists. The returned path is empty when defaults are used.
func Resolve(explicitPath string) (*Updatefile, string, error) {
	path, err := FindUpdatefile(explicitPath)
	if errors.Is(err, ErrNotFound) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}

	updatefile, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return updatefile, path, nil
}
