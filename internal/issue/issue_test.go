// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	all := Values()
	if len(all) != int(ConfigLoadFailedId) {
		t.Fatalf("len(Values()) = %d, want %d", len(all), ConfigLoadFailedId)
	}
	for i, is := range all {
		if is.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d", i, is.Id())
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no content", is.Id())
		}
		if Get(is.Id()) != is {
			t.Errorf("Get(%d) mismatch", is.Id())
		}
	}
	if Get(0) != nil {
		t.Error("Get(0) should be nil")
	}
}

func TestExtLinks_ReturnsCopy(t *testing.T) {
	t.Parallel()

	links := Get(RateLimitedId).ExtLinks()
	if len(links) == 0 {
		t.Fatal("rate limit issue has no links")
	}
	links[0] = "mutated"
	if Get(RateLimitedId).ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() exposed internal slice")
	}
}

func TestRender_AppendsLinks(t *testing.T) {
	original := render
	defer func() { render = original }()
	render = func(in, _ string) (string, error) { return in, nil }

	out, err := Get(NoMatchingAssetId).Render("")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "## See also") || !strings.Contains(out, "python-build-standalone") {
		t.Errorf("Render() = %q", out)
	}

	out, err = Get(VerificationFailedId).Render("")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if strings.Contains(out, "See also") {
		t.Errorf("Render() without links added a See also section:\n%s", out)
	}
}

func TestRender_Glamour(t *testing.T) {
	t.Parallel()

	for _, is := range Values() {
		out, err := is.Render("notty")
		if err != nil {
			t.Errorf("issue %d: Render() error: %v", is.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("issue %d rendered empty", is.Id())
		}
	}
}
