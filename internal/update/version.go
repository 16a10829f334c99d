package update

import (
	"strconv"
	"strings"
	"unicode"
)

// Comparison describes the latest version relative to the current one.
type Comparison int

const (
	Older Comparison = -1
	Same  Comparison = 0
	Newer Comparison = 1
)

func (c Comparison) String() string {
	switch c {
	case Older:
		return "older"
	case Same:
		return "same"
	case Newer:
		return "newer"
	default:
		return "unknown"
	}
}

// Version is a dotted numeric version. Components has no fixed length;
// "1.2" and "1.2.0" compare equal.
type Version struct {
	Components []int
}

// ParseVersion parses a dotted numeric version string.
// Leading non-digit characters are stripped first, so "v1.2.0" and
// "release-1.2.0" both parse as 1.2.0.
func ParseVersion(s string) (*Version, error) {
	trimmed := NormalizeVersion(s)
	if trimmed == "" {
		return nil, &ParseError{Input: s}
	}

	parts := strings.Split(trimmed, ".")
	components := make([]int, 0, len(parts))
	for _, part := range parts {
		if part == "" || !isDigits(part) {
			return nil, &ParseError{Input: s, Component: part}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &ParseError{Input: s, Component: part}
		}
		components = append(components, n)
	}

	return &Version{Components: components}, nil
}

// String returns the string representation
func (v *Version) String() string {
	parts := make([]string, len(v.Components))
	for i, c := range v.Components {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}

// Compare compares two versions
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
func (v *Version) Compare(other *Version) int {
	n := len(v.Components)
	if len(other.Components) > n {
		n = len(other.Components)
	}

	for i := 0; i < n; i++ {
		a, b := v.component(i), other.component(i)
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}

	return 0
}

// component returns the i-th component, treating missing ones as zero.
func (v *Version) component(i int) int {
	if i < len(v.Components) {
		return v.Components[i]
	}
	return 0
}

// CompareVersions reports where latest stands relative to current.
// Either string failing to parse returns a *ParseError.
func CompareVersions(current, latest string) (Comparison, error) {
	cur, err := ParseVersion(current)
	if err != nil {
		return Same, err
	}

	lat, err := ParseVersion(latest)
	if err != nil {
		return Same, err
	}

	return Comparison(lat.Compare(cur)), nil
}

// IsUpdateAvailable reports whether latest is strictly newer than current.
// Unparsable input never offers an update.
func IsUpdateAvailable(current, latest string) bool {
	cmp, err := CompareVersions(current, latest)
	if err != nil {
		return false
	}
	return cmp == Newer
}

// NormalizeVersion strips surrounding space and any leading non-digit prefix.
func NormalizeVersion(s string) string {
	return strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool {
		return !unicode.IsDigit(r)
	})
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
