// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/finmgr/finmgr/internal/update"
)

// maxNoteLines bounds how much of the release notes is echoed before the
// question.
const maxNoteLines = 8

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes Response = iota // Go ahead
	ResponseNo                  // Decline
	ResponseEOF                 // Input closed before an answer
)

// Prompter asks yes/no questions on a line-oriented terminal.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsTerminalWriter checks if f is attached to a terminal.
func IsTerminalWriter(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// prompt displays a question and reads the response. Anything other than
// yes counts as no.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n] ")

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return ResponseEOF
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes":
		return ResponseYes
	case "n", "no", "":
		return ResponseNo
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(format string, args ...interface{}) bool {
	return p.prompt(format, args...) == ResponseYes
}

// ConfirmUpdate describes an available release and asks whether to install it.
func (p *Prompter) ConfirmUpdate(info *update.UpdateInfo) bool {
	if info == nil || !info.Available || info.Release == nil {
		return false
	}

	_, _ = fmt.Fprintf(p.out, "Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
	if info.Release.AssetName != "" {
		size := ""
		if info.Release.ExpectedSize > 0 {
			size = fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Release.ExpectedSize)))
		}
		_, _ = fmt.Fprintf(p.out, "  %s%s\n", info.Release.AssetName, size)
	}
	if notes := summarizeNotes(info.Release.Notes, maxNoteLines); notes != "" {
		_, _ = fmt.Fprintf(p.out, "\n%s\n\n", notes)
	}

	return p.Confirm("Install update %s?", info.Release.Tag)
}

// summarizeNotes keeps the first n non-empty lines of release notes.
func summarizeNotes(notes string, n int) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(notes, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(kept) == n {
			kept = append(kept, "  ...")
			break
		}
		kept = append(kept, "  "+line)
	}
	return strings.Join(kept, "\n")
}
