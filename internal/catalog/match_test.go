// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"testing"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

func TestMatchAsset(t *testing.T) {
	t.Parallel()

	v := pyversion.MustParse("3.12.1")
	tests := []struct {
		name string
		want bool
	}{
		{"cpython-3.12.1+20240107-x86_64-unknown-linux-gnu-install_only.tar.gz", true},
		{"CPython-3.12.1+20240107-X86_64-Unknown-Linux-GNU-install_only.tar.gz", true},
		{"python-3.12.1-x86_64-unknown-linux-gnu.tar.gz", true},
		{"cpython-3.12.19+20240107-x86_64-unknown-linux-gnu-install_only.tar.gz", false},
		{"cpython-3.12.1rc1+20231107-x86_64-unknown-linux-gnu-install_only.tar.gz", false},
		{"cpython-3.12.1+20240107-aarch64-apple-darwin-install_only.tar.gz", false},
		{"cpython-3.12.1+20240107-x86_64_v3-unknown-linux-gnu-install_only.tar.gz", false},
	}

	for _, tt := range tests {
		if got := MatchAsset(tt.name, v, linuxTriple); got != tt.want {
			t.Errorf("MatchAsset(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatchRelease(t *testing.T) {
	t.Parallel()

	v := pyversion.MustParse("3.12.4")
	tests := []struct {
		name      string
		release   Release
		buildDate string
		want      bool
	}{
		{"version in tag", Release{TagName: "v3.12.4"}, "", true},
		{"compact version in name", Release{TagName: "x", Name: "Python 3124 build"}, "", true},
		{"version only in assets", Release{TagName: "20240726", Assets: []Asset{{Name: "cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-install_only.tar.gz"}}}, "", true},
		{"date-only tag widened by matching asset", Release{TagName: "20240726", Name: "20240726", Assets: []Asset{{Name: "cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-pgo+lto-full.tar.zst"}}}, "20240726", true},
		{"date-only tag with asset for another platform", Release{TagName: "20240726", Assets: []Asset{{Name: "cpython-3.12.4+20240726-aarch64-apple-darwin-install_only.tar.gz"}}}, "", false},
		{"date-only tag with asset for another version", Release{TagName: "20240726", Assets: []Asset{{Name: "cpython-3.12.3+20240726-x86_64-unknown-linux-gnu-install_only.tar.gz"}}}, "", false},
		{"dashed date matches compact tag", Release{TagName: "20240726", Name: "3.12.4"}, "2024-07-26", true},
		{"compact date matches dashed name", Release{TagName: "3.12.4", Name: "build 2024-07-26"}, "20240726", true},
		{"date mismatch", Release{TagName: "20240726", Name: "3.12.4"}, "20240701", false},
		{"other version", Release{TagName: "v3.12.40"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MatchRelease(tt.release, v, tt.buildDate, linuxTriple); got != tt.want {
				t.Errorf("MatchRelease = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		installOnly bool
		full        bool
	}{
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-install_only.tar.gz", true, false},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-install_only_stripped.tar.gz", true, false},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-pgo+lto-full.tar.zst", false, true},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-install-full.tar.zst", false, true},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu.tar.gz", false, true},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-install_only.tar.gz.sha256", false, false},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-pgo+lto-full.tar.zst.sha256", false, false},
		{"cpython-3.12.4-x86_64-unknown-linux-gnu-full.txt", false, false},
		{"SHA256SUMS", false, false},
	}

	for _, tt := range tests {
		installOnly, full := Classify(tt.name)
		if installOnly != tt.installOnly || full != tt.full {
			t.Errorf("Classify(%q) = (%v, %v), want (%v, %v)", tt.name, installOnly, full, tt.installOnly, tt.full)
		}
	}
}

func TestExtractBuildDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
		ok   bool
	}{
		{"20240726", "20240726", true},
		{"release-2024-07-26", "20240726", true},
		{"v3.12.4", "", false},
		{"latest", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractBuildDate(tt.tag)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractBuildDate(%q) = %q, %v; want %q, %v", tt.tag, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSelectAsset_PrefersInstallOnlyFromNewestRelease(t *testing.T) {
	t.Parallel()

	v := pyversion.MustParse("3.12.4")
	releases := []Release{
		{
			TagName: "20240801", PublishedAt: day(31),
			Assets: []Asset{
				asset("cpython-3.12.4+20240801-x86_64-unknown-linux-gnu-pgo+lto-full.tar.zst", day(40)),
			},
		},
		{
			TagName: "20240726", PublishedAt: day(25),
			Assets: []Asset{
				asset("cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-install_only.tar.gz", day(25)),
				asset("cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-install_only_stripped.tar.gz", day(27)),
				asset("cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-pgo+lto-full.tar.zst", day(30)),
			},
		},
		{
			TagName: "20240701", PublishedAt: day(0),
			Assets: []Asset{
				asset("cpython-3.12.4+20240701-x86_64-unknown-linux-gnu-install_only.tar.gz", day(50)),
			},
		},
	}

	for range 5 {
		rel, a, installOnly, ok := SelectAsset(releases, v, "", linuxTriple)
		if !ok || !installOnly {
			t.Fatalf("SelectAsset ok=%v installOnly=%v", ok, installOnly)
		}
		if rel.TagName != "20240726" {
			t.Errorf("release = %s, want the newest release with an install-only asset", rel.TagName)
		}
		if a.Name != "cpython-3.12.4+20240726-x86_64-unknown-linux-gnu-install_only_stripped.tar.gz" {
			t.Errorf("asset = %s, want the most recently updated install-only asset", a.Name)
		}
	}
}

func TestSelectAsset_FallsBackToNewestFull(t *testing.T) {
	t.Parallel()

	v := pyversion.MustParse("3.12.4")
	releases := []Release{
		{TagName: "20240801", PublishedAt: day(31), Assets: []Asset{
			asset("cpython-3.12.4+20240801-x86_64-unknown-linux-gnu-debug-full.tar.zst", day(31)),
		}},
		{TagName: "20240701", PublishedAt: day(0), Assets: []Asset{
			asset("cpython-3.12.4+20240701-x86_64-unknown-linux-gnu-pgo-full.tar.zst", day(45)),
		}},
	}

	rel, a, installOnly, ok := SelectAsset(releases, v, "", linuxTriple)
	if !ok || installOnly {
		t.Fatalf("SelectAsset ok=%v installOnly=%v", ok, installOnly)
	}
	if rel.TagName != "20240701" || a.UpdatedAt != day(45) {
		t.Errorf("selected %s from %s, want the most recently updated full asset", a.Name, rel.TagName)
	}
}

func TestSelectAsset_NoMatch(t *testing.T) {
	t.Parallel()

	if _, _, _, ok := SelectAsset(fixtureReleases(), pyversion.MustParse("2.7.18"), "", linuxTriple); ok {
		t.Error("SelectAsset matched a version that was never published")
	}
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	rs := []Release{{TagName: "a", PublishedAt: day(1)}, {TagName: "b", PublishedAt: day(9)}, {TagName: "c", PublishedAt: day(5)}}
	SortNewestFirst(rs)
	if rs[0].TagName != "b" || rs[1].TagName != "c" || rs[2].TagName != "a" {
		t.Errorf("order = %s %s %s", rs[0].TagName, rs[1].TagName, rs[2].TagName)
	}
}
