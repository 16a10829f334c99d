// Package output renders command results as text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the accepted format names for flag help.
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
}

// Writer handles output in the specified format.
type Writer struct {
	format Format
	w      io.Writer
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, w: w}
}

// Format returns the writer's format.
func (w *Writer) Format() Format { return w.format }

// Field is one labelled line of text output.
type Field struct {
	Label string
	Value string
}

// Detailer adds labelled lines under a value's text headline.
type Detailer interface {
	Details() []Field
}

// Write outputs v in the configured format. Text output is a headline,
// taken from v's String method when it has one, followed by v's Details.
func (w *Writer) Write(v interface{}) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return w.writeText(v)
	}
}

func (w *Writer) writeText(v interface{}) error {
	var b strings.Builder
	if s, ok := v.(fmt.Stringer); ok {
		b.WriteString(s.String())
	} else {
		fmt.Fprintf(&b, "%+v", v)
	}
	b.WriteString("\n")

	if d, ok := v.(Detailer); ok {
		writeFields(&b, d.Details())
	}

	_, err := io.WriteString(w.w, b.String())
	return err
}

// writeFields aligns values after the longest label. Empty values are
// skipped.
func writeFields(b *strings.Builder, fields []Field) {
	width := 0
	for _, f := range fields {
		if f.Value != "" && len(f.Label)+1 > width {
			width = len(f.Label) + 1
		}
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(b, "  %-*s %s\n", width, f.Label+":", f.Value)
	}
}

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s (want one of %s)", s, strings.Join(Formats(), ", "))
	}
}
