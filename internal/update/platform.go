package update

import (
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// HostName is the base name of the host executable.
	HostName = "finmgr"
	// UpdaterName is the base name of the packaged updater executable.
	UpdaterName = "finmgr-updater"
	// UpdaterToolName is the base name of the updater copy the host stages
	// before handing off. It differs from UpdaterName so killing the host by
	// name never matches it.
	UpdaterToolName = "finmgr-updater-tool"
	// TempBaseName is the base name of the download temp file.
	TempBaseName = "update_temp"
)

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// ExecutableExt returns the executable file extension, including the dot.
func (p Platform) ExecutableExt() string {
	if p.OS == "windows" {
		return ".exe"
	}
	return ""
}

// Executable appends the platform extension to a base name.
func (p Platform) Executable(base string) string {
	return base + p.ExecutableExt()
}

// IsStagedTool reports whether path is the updater copy a host staged
// before handing off. Only that copy may delete itself; the shipped
// updater must survive for the next update.
func IsStagedTool(path string) bool {
	if path == "" {
		return false
	}
	return strings.EqualFold(filepath.Base(path), Detect().Executable(UpdaterToolName))
}

// AssetSuffix returns the default suffix a release asset must end with to
// be installable here. Windows releases are matched by extension alone.
func (p Platform) AssetSuffix() string {
	if p.OS == "windows" {
		return ".exe"
	}
	return "-" + p.OS + "-" + p.Arch
}

// MatchesAsset reports whether an asset name ends with suffix, ignoring case.
func MatchesAsset(name, suffix string) bool {
	if suffix == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}
