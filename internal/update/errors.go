package update

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrParse           = errors.New("invalid version")
	ErrFeedUnavailable = errors.New("release feed unavailable")
	ErrDownload        = errors.New("download failed")
	ErrIntegrity       = errors.New("integrity check failed")
	ErrSwap            = errors.New("swap failed")
	ErrLaunch          = errors.New("launch failed")

	// ErrAlreadySwapped is returned by Swap when the new binary is no longer
	// at its temp path but the target exists: a previous run finished the swap.
	ErrAlreadySwapped = errors.New("new binary already in place")
)

// ParseError reports a version string that is not dotted-numeric.
type ParseError struct {
	Input     string
	Component string
}

func (e *ParseError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("invalid version %q", e.Input)
	}
	return fmt.Sprintf("invalid version %q: component %q is not a non-negative integer", e.Input, e.Component)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// FeedError reports why the release feed produced no usable answer.
type FeedError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FeedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("release feed %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("release feed %s: %v", e.URL, e.Err)
}

func (e *FeedError) Unwrap() error         { return e.Err }
func (e *FeedError) Is(target error) bool { return target == ErrFeedUnavailable }

// DownloadError is a transport, status or local file failure while downloading.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: HTTP error %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error         { return e.Err }
func (e *DownloadError) Is(target error) bool { return target == ErrDownload }

// IntegrityError reports a downloaded file that does not match what the
// release advertised. The file has already been removed when this is returned.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
	Reason   string // "size" or "checksum"
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s mismatch for %s: expected %s, got %s", e.Reason, e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// SwapError is returned when the retry budget is exhausted.
type SwapError struct {
	Attempts int
	Err      error // last attempt's failure
	// Stranded is set when the old binary is already gone and the new one is
	// still at its temp path. Renaming it by hand completes the update.
	Stranded bool
	NewPath  string
}

func (e *SwapError) Error() string {
	msg := fmt.Sprintf("swap failed after %d attempts: %v", e.Attempts, e.Err)
	if e.Stranded {
		msg += fmt.Sprintf(" (new binary left at %s)", e.NewPath)
	}
	return msg
}

func (e *SwapError) Unwrap() error         { return e.Err }
func (e *SwapError) Is(target error) bool { return target == ErrSwap }

// LaunchError reports that the updated host could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error         { return e.Err }
func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }
