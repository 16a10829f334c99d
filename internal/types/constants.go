// Package types provides typed constants shared by the update pipeline, its
// progress surfaces and the command layer.
//
// Phases and outcomes are plain strings so they read naturally in log files
// and in the JSON/YAML output of `finmgr check`.
package types

import (
	"fmt"
	"strings"
)

// Phase is a stage of the updater pipeline as shown to the user.
type Phase string

const (
	// PhaseClosing terminates the running host application.
	PhaseClosing Phase = "closing"
	// PhaseDownloading streams the new binary to the temp file.
	PhaseDownloading Phase = "downloading"
	// PhaseVerifying checks the downloaded file against its published checksum.
	PhaseVerifying Phase = "verifying"
	// PhaseInstalling swaps the new binary into place.
	PhaseInstalling Phase = "installing"
	// PhaseRestarting launches the updated host.
	PhaseRestarting Phase = "restarting"
	// PhaseDone is the terminal success phase.
	PhaseDone Phase = "done"
	// PhaseFailed is the terminal failure phase.
	PhaseFailed Phase = "failed"
)

// AllPhases returns every phase in pipeline order.
func AllPhases() []Phase {
	return []Phase{
		PhaseClosing,
		PhaseDownloading,
		PhaseVerifying,
		PhaseInstalling,
		PhaseRestarting,
		PhaseDone,
		PhaseFailed,
	}
}

// Validate checks if the Phase is a valid value.
func (p Phase) Validate() error {
	for _, known := range AllPhases() {
		if p == known {
			return nil
		}
	}
	if p == "" {
		return fmt.Errorf("phase is required")
	}
	return fmt.Errorf("invalid phase '%s'", p)
}

// String returns the string representation of the Phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if no further phase follows.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Title returns the phase name capitalized for display.
func (p Phase) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// ParsePhase parses a string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Outcome names a failure that is recovered locally instead of propagated.
// Every swallowed error in the update path is logged under one of these.
type Outcome string

const (
	// OutcomeFeedUnavailable: the release feed could not be reached or parsed.
	OutcomeFeedUnavailable Outcome = "feed_unavailable"
	// OutcomeVersionUnparsable: a version string did not parse; no update is offered.
	OutcomeVersionUnparsable Outcome = "version_unparsable"
	// OutcomeNoMatchingAsset: the release carries no artifact for this platform.
	OutcomeNoMatchingAsset Outcome = "no_matching_asset"
	// OutcomeKillFailed: the kill command failed for a reason other than "not running".
	OutcomeKillFailed Outcome = "kill_failed"
	// OutcomeLogUnavailable: the per-run log file could not be opened.
	OutcomeLogUnavailable Outcome = "log_unavailable"
	// OutcomeLaunchFailed: the updated host could not be started.
	OutcomeLaunchFailed Outcome = "launch_failed"
	// OutcomeCleanupFailed: a launcher artifact or the updater itself could not be removed.
	OutcomeCleanupFailed Outcome = "cleanup_failed"
	// OutcomeAlreadySwapped: the swap found the new binary already in place.
	OutcomeAlreadySwapped Outcome = "already_swapped"
)

// AllOutcomes returns every named outcome.
func AllOutcomes() []Outcome {
	return []Outcome{
		OutcomeFeedUnavailable,
		OutcomeVersionUnparsable,
		OutcomeNoMatchingAsset,
		OutcomeKillFailed,
		OutcomeLogUnavailable,
		OutcomeLaunchFailed,
		OutcomeCleanupFailed,
		OutcomeAlreadySwapped,
	}
}

// Validate checks if the Outcome is a valid value.
func (o Outcome) Validate() error {
	for _, known := range AllOutcomes() {
		if o == known {
			return nil
		}
	}
	if o == "" {
		return fmt.Errorf("outcome is required")
	}
	return fmt.Errorf("invalid outcome '%s'", o)
}

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}
