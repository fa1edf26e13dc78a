// Package semver provides the version string handling used by release
// contracts: vX.Y.Z parsing, bumping, and hot-fix patch calculation.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// Version is a parsed semantic version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a version string with or without the "v" prefix.
func Parse(s string) (Version, error) {
	m := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q: want vMAJOR.MINOR.PATCH", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// Valid reports whether s parses as a version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Normalize returns the canonical "v"-prefixed form of s,
// or s unchanged when it does not parse.
func Normalize(s string) string {
	v, err := Parse(s)
	if err != nil {
		return s
	}
	return v.String()
}

// String renders the canonical "v"-prefixed form.
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 ordering v against o.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return sign(v.Major - o.Major)
	}
	if v.Minor != o.Minor {
		return sign(v.Minor - o.Minor)
	}
	return sign(v.Patch - o.Patch)
}

// SameMinorLine reports whether o shares v's major.minor line.
func (v Version) SameMinorLine(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

// Bump returns a copy of v with the given level incremented and lower
// levels reset. Level is one of "major", "minor", "patch".
func (v Version) Bump(level string) Version {
	switch level {
	case "major":
		return Version{Major: v.Major + 1}
	case "minor":
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// NextPatch computes the hot-fix version for base, given every version
// already claimed: one past the highest patch on base's minor line.
func NextPatch(base Version, existing []Version) Version {
	next := base.Bump("patch")
	for _, e := range existing {
		if !base.SameMinorLine(e) {
			continue
		}
		if e.Patch >= next.Patch {
			next = Version{Major: base.Major, Minor: base.Minor, Patch: e.Patch + 1}
		}
	}
	return next
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
