// SPDX-License-Identifier: MPL-2.0

// Package pyversion parses, compares, and partially matches interpreter
// version strings such as "3.12", "3.12.4", or "3.13.0rc1".
//
// Ordering only considers the numeric (major, minor, patch) triplet.
// Pre-release suffixes are parsed and preserved but do not participate in
// Compare; see Latest for how exact-triplet ties are broken.
package pyversion

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?(?:([a-zA-Z]+)(\d*))?$`)

type (
	// Prerelease is an optional suffix such as "rc1" or "a2".
	Prerelease struct {
		Tag string
		Num int
	}

	// Version is a parsed interpreter version.
	Version struct {
		Major int
		Minor int
		Patch int
		Pre   *Prerelease

		// partial is set when the source string had only major.minor.
		partial bool
	}

	// InvalidVersionError is returned when a version string cannot be parsed.
	// It wraps ErrInvalidVersion for errors.Is() compatibility.
	InvalidVersionError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Value == "" {
		return "invalid version: empty string"
	}
	return fmt.Sprintf("invalid version %q (expected MAJOR.MINOR[.PATCH][suffix])", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Parse parses s into a Version. Two-component inputs parse with Patch=0 and
// are flagged as partial.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	m := versionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, &InvalidVersionError{Value: s}
	}

	// Empty groups stay zero; anything else must fit in an int.
	var nums [4]int
	for i, group := range []string{m[1], m[2], m[3], m[5]} {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: s}
		}
		nums[i] = n
	}

	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2], partial: m[3] == ""}
	if m[4] != "" {
		v.Pre = &Prerelease{Tag: strings.ToLower(m[4]), Num: nums[3]}
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NormalizePartial parses s and reports whether it was a partial
// (major.minor) request. The returned Version always carries Patch=0 for
// partial inputs.
func NormalizePartial(s string) (Version, bool, error) {
	v, err := Parse(s)
	if err != nil {
		return Version{}, false, err
	}
	return v, v.partial, nil
}

// Normalize returns the canonical three-component form of s.
// Normalize(Normalize(s)) == Normalize(s) for every valid s.
func Normalize(s string) (string, error) {
	v, err := Parse(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// IsPartial reports whether the version was parsed from a major.minor string.
func (v Version) IsPartial() bool { return v.partial }

// IsPrerelease reports whether the version carries a pre-release suffix.
func (v Version) IsPrerelease() bool { return v.Pre != nil }

// String returns the normalized form, always with three numeric components.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != nil {
		s += v.Pre.Tag
		if v.Pre.Num > 0 {
			s += strconv.Itoa(v.Pre.Num)
		}
	}
	return s
}

// Short returns "major.minor".
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compact returns the version with dots stripped, e.g. "3.12.4" -> "3124".
// Release titles sometimes spell versions this way.
func (v Version) Compact() string {
	if v.partial {
		return fmt.Sprintf("%d%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d%d%d", v.Major, v.Minor, v.Patch)
}

// Request returns the string a caller would use to ask for this version:
// "major.minor" for partial versions, the normalized form otherwise.
func (v Version) Request() string {
	if v.partial {
		return v.Short()
	}
	return v.String()
}

// Equal reports whether a and b share the same numeric triplet.
func (v Version) Equal(o Version) bool { return Compare(v, o) == 0 }

// semverTag renders only the numeric triplet so semver ordering ignores
// pre-release suffixes.
func (v Version) semverTag() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions lexicographically on (major, minor, patch) and
// returns -1, 0, or 1.
func Compare(a, b Version) int {
	return semver.Compare(a.semverTag(), b.semverTag())
}

// MatchesPartial reports whether full belongs to the major.minor series of partial.
func MatchesPartial(full, partial Version) bool {
	return full.Major == partial.Major && full.Minor == partial.Minor
}

// Matches reports whether candidate satisfies request: a partial request
// matches on major.minor, a full request on the numeric triplet.
func Matches(candidate, request Version) bool {
	if request.partial {
		return MatchesPartial(candidate, request)
	}
	return Compare(candidate, request) == 0
}

// Latest returns the greatest candidate matching request (latest patch wins
// for partial requests). Ties on the numeric triplet prefer a final release
// over a pre-release.
func Latest(candidates []Version, request Version) (Version, bool) {
	var (
		best  Version
		found bool
	)
	for _, c := range candidates {
		if !Matches(c, request) {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		switch cmp := Compare(c, best); {
		case cmp > 0:
			best = c
		case cmp == 0 && best.IsPrerelease() && !c.IsPrerelease():
			best = c
		}
	}
	return best, found
}
