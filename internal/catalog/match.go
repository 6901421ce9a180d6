// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/pyrt-dev/pyrt/internal/archive"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

// BuildDateUnknown is recorded when a release tag carries no date.
const BuildDateUnknown = "unknown"

var (
	buildDatePattern    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{8}`)
	assetVersionPattern = regexp.MustCompile(`(?:^|[^a-z])c?python-(\d+\.\d+\.\d+(?:[a-z]+\d*)?)`)
)

// NormalizeBuildDate strips dashes so "2024-07-26" and "20240726" compare equal.
func NormalizeBuildDate(date string) string {
	return strings.ReplaceAll(strings.TrimSpace(date), "-", "")
}

// ExtractBuildDate finds a YYYYMMDD or YYYY-MM-DD date in a release tag and
// returns it as YYYYMMDD.
func ExtractBuildDate(tag string) (string, bool) {
	m := buildDatePattern.FindString(tag)
	if m == "" {
		return "", false
	}
	return NormalizeBuildDate(m), true
}

// MatchRelease reports whether r can provide v for the platform triple. The
// tag or display name must mention the version (dotted or with dots
// stripped) or one of its assets must match it; when buildDate is set, the
// tag or name must also carry that date in either form.
func MatchRelease(r Release, v pyversion.Version, buildDate, triple string) bool {
	text := strings.ToLower(r.TagName + "\n" + r.Name)

	if buildDate != "" && !strings.Contains(strings.ReplaceAll(text, "-", ""), NormalizeBuildDate(buildDate)) {
		return false
	}

	if containsVersion(text, v.String()) || containsVersion(strings.ReplaceAll(text, ".", ""), v.Compact()) {
		return true
	}
	return slices.ContainsFunc(r.Assets, func(a Asset) bool {
		return MatchAsset(a.Name, v, triple)
	})
}

// MatchAsset reports whether an asset name provides version v for triple.
func MatchAsset(name string, v pyversion.Version, triple string) bool {
	lower := strings.ToLower(name)
	if !strings.Contains(lower, strings.ToLower(triple)) {
		return false
	}
	ver := v.String()
	return containsVersion(lower, "cpython-"+ver) || containsVersion(lower, "python-"+ver)
}

// Classify sorts an asset name into install-only or full. Names without a
// recognized archive extension (checksums, signatures) are neither.
func Classify(name string) (installOnly, full bool) {
	lower := strings.ToLower(name)
	if !archive.IsArchiveName(lower) {
		return false, false
	}
	hasInstall := strings.Contains(lower, "install")
	hasFull := strings.Contains(lower, "full")
	return hasInstall && !hasFull, hasFull || !hasInstall
}

// AssetVersion extracts the interpreter version embedded in an asset name.
func AssetVersion(name string) (pyversion.Version, bool) {
	m := assetVersionPattern.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return pyversion.Version{}, false
	}
	v, err := pyversion.Parse(m[1])
	if err != nil {
		return pyversion.Version{}, false
	}
	return v, true
}

// SortNewestFirst orders releases by publish time, newest first.
func SortNewestFirst(releases []Release) {
	slices.SortStableFunc(releases, func(a, b Release) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}

// SelectAsset applies the selection policy to releases ordered newest
// first. The first matching release that has any install-only asset wins
// with its most recently updated install-only asset. Otherwise the most
// recently updated full asset across all matching releases is chosen.
func SelectAsset(releases []Release, v pyversion.Version, buildDate, triple string) (Release, Asset, bool, bool) {
	var (
		fullRelease Release
		fullAsset   Asset
		haveFull    bool
	)

	for _, r := range releases {
		if !MatchRelease(r, v, buildDate, triple) {
			continue
		}

		var (
			best     Asset
			haveBest bool
		)
		for _, a := range r.Assets {
			if !MatchAsset(a.Name, v, triple) {
				continue
			}
			installOnly, full := Classify(a.Name)
			switch {
			case installOnly:
				if !haveBest || a.UpdatedAt.After(best.UpdatedAt) {
					best, haveBest = a, true
				}
			case full:
				if !haveFull || a.UpdatedAt.After(fullAsset.UpdatedAt) {
					fullRelease, fullAsset, haveFull = r, a, true
				}
			}
		}
		if haveBest {
			return r, best, true, true
		}
	}

	return fullRelease, fullAsset, false, haveFull
}

// containsVersion reports whether s contains token at a version boundary,
// so "3.12.1" does not match inside "3.12.19", "3.12.1rc2" or "13.12.1".
func containsVersion(s, token string) bool {
	for start := 0; start <= len(s)-len(token); {
		idx := strings.Index(s[start:], token)
		if idx < 0 {
			return false
		}
		pos := start + idx
		end := pos + len(token)
		leading := pos == 0 || !isDigit(s[pos-1])
		trailing := end == len(s) || !isDigit(s[end]) && !isLetter(s[end])
		if leading && trailing {
			return true
		}
		start = pos + 1
	}
	return false
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

func isLetter(b byte) bool { return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' }

// compareAvailable orders by version descending, then build date descending.
func compareAvailable(a, b Available) int {
	if c := pyversion.Compare(b.Version, a.Version); c != 0 {
		return c
	}
	return cmp.Compare(b.BuildDate, a.BuildDate)
}
