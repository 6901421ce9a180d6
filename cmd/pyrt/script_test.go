// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/pyrt-dev/pyrt/internal/testutil"
	"github.com/pyrt-dev/pyrt/pkg/platform"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"pyrt": Execute,
	})
}

type (
	scriptAsset struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		URL       string    `json:"browser_download_url"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	scriptRelease struct {
		ID          int64         `json:"id"`
		TagName     string        `json:"tag_name"`
		PublishedAt time.Time     `json:"published_at"`
		Assets      []scriptAsset `json:"assets"`
	}
)

// newReleaseServer serves two releases built for the host platform.
func newReleaseServer(t *testing.T, triple string) *httptest.Server {
	t.Helper()

	files := make(map[string][]byte)
	var releases []scriptRelease

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(releases)
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		for _, rel := range releases {
			if rel.TagName == r.PathValue("tag") {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(rel)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /download/{name}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	publish := func(tag string, published time.Time, versions ...string) {
		rel := scriptRelease{ID: int64(len(releases) + 1), TagName: tag, PublishedAt: published}
		for _, v := range versions {
			name := "cpython-" + v + "+" + tag + "-" + triple + "-install_only.zip"
			files[name] = testutil.ZipBytes(t, testutil.FakePythonEntries("python", v))
			rel.Assets = append(rel.Assets, scriptAsset{
				ID:        int64(len(files)),
				Name:      name,
				URL:       srv.URL + "/download/" + name,
				UpdatedAt: published,
			})
		}
		releases = append(releases, rel)
	}
	publish("20240726", time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC), "3.12.4", "3.11.9")
	publish("20240415", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), "3.12.3")
	return srv
}

// TestScripts runs the command-line scripts in testdata/script against a
// local release server.
func TestScripts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreters are POSIX sh scripts")
	}
	host, err := platform.Host()
	if err != nil {
		t.Skipf("host platform not supported: %v", err)
	}
	srv := newReleaseServer(t, host.TargetTriple)

	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "script"),
		Setup: func(env *testscript.Env) error {
			env.Setenv("HOME", filepath.Join(env.WorkDir, "home"))
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, "config"))
			env.Setenv("PYRT_ROOT_DIR", filepath.Join(env.WorkDir, "runtimes"))
			env.Setenv("PYRT_RELEASE_SOURCE_API_URL", srv.URL)
			env.Setenv("PYRT_RETRY_DELAY", "1ms")
			env.Setenv("NO_COLOR", "1")
			return nil
		},
	})
}
