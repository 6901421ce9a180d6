// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pyrt-dev/pyrt/internal/acquire"
	"github.com/pyrt-dev/pyrt/internal/config"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/internal/testutil"
	"github.com/pyrt-dev/pyrt/pkg/platform"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

const triple = "x86_64-unknown-linux-gnu"

type (
	wireAsset struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		URL       string    `json:"browser_download_url"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	wireRelease struct {
		ID          int64       `json:"id"`
		TagName     string      `json:"tag_name"`
		PublishedAt time.Time   `json:"published_at"`
		Assets      []wireAsset `json:"assets"`
	}

	// fakeReleases serves two releases and their zip assets.
	fakeReleases struct {
		srv       *httptest.Server
		files     map[string][]byte
		releases  []wireRelease
		apiCalls  atomic.Int32
		downloads atomic.Int32
	}
)

func assetName(version, date string) string {
	return "cpython-" + version + "+" + date + "-" + triple + "-install_only.zip"
}

func newFakeReleases(t *testing.T) *fakeReleases {
	t.Helper()
	fr := &fakeReleases{files: make(map[string][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases", func(w http.ResponseWriter, r *http.Request) {
		fr.apiCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fr.releases)
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		fr.apiCalls.Add(1)
		for _, rel := range fr.releases {
			if rel.TagName == r.PathValue("tag") {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(rel)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /download/{name}", func(w http.ResponseWriter, r *http.Request) {
		fr.downloads.Add(1)
		body, ok := fr.files[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	fr.srv = httptest.NewServer(mux)
	t.Cleanup(fr.srv.Close)

	fr.publish(t, "20240726", time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC), "3.12.4", "3.11.9")
	fr.publish(t, "20240415", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), "3.12.3")
	return fr
}

func (fr *fakeReleases) publish(t *testing.T, tag string, published time.Time, versions ...string) {
	t.Helper()
	rel := wireRelease{ID: int64(len(fr.releases) + 1), TagName: tag, PublishedAt: published}
	for _, v := range versions {
		name := assetName(v, tag)
		fr.files[name] = testutil.ZipBytes(t, testutil.FakePythonEntries("python", v))
		rel.Assets = append(rel.Assets, wireAsset{
			ID:        int64(len(fr.files)),
			Name:      name,
			URL:       fr.srv.URL + "/download/" + name,
			UpdatedAt: published,
		})
	}
	fr.releases = append(fr.releases, rel)
}

func testConfig(t *testing.T, fr *fakeReleases) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RootDir = types.FilesystemPath(t.TempDir())
	cfg.ReleaseSource.APIURL = fr.srv.URL
	cfg.RetryDelay = time.Millisecond
	cfg.CacheTTL = time.Minute
	cfg.DefaultIndexURL = "https://pypi.example.test/simple"
	return cfg
}

func openTest(t *testing.T, cfg config.Config, opts ...Option) *Manager {
	t.Helper()
	d, err := platform.DescriptorFor(platform.Linux, "amd64", platform.LibcGNU)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Open(cfg, append([]Option{WithPlatform(d), WithSmokeTestTimeout(5 * time.Second)}, opts...)...)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.RootDir = types.FilesystemPath(t.TempDir())
	cfg.RetryAttempts = 0

	_, err := Open(cfg)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("Open() error = %v, want ErrInvalidConfig", err)
	}
}

func TestOpen_RejectsBadProxy(t *testing.T) {
	t.Parallel()

	fr := newFakeReleases(t)
	cfg := testConfig(t, fr)
	cfg.ProxyURL = "http://"

	if _, err := Open(cfg); err == nil {
		t.Fatal("Open() with a hostless proxy URL succeeded")
	}
}

func TestGetOrInstall(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	var states atomic.Int32
	m := openTest(t, testConfig(t, fr), WithProgress(func(p acquire.Progress) {
		if p.State == acquire.StateDone {
			states.Add(1)
		}
	}))
	ctx := context.Background()

	inst, err := m.GetOrInstall(ctx, "3.12", "")
	if err != nil {
		t.Fatalf("GetOrInstall() error: %v", err)
	}
	if inst.Key() != "3.12.4@20240726" {
		t.Errorf("Key() = %s, want 3.12.4@20240726", inst.Key())
	}
	if err := inst.VerifyLayout(); err != nil {
		t.Errorf("VerifyLayout() error: %v", err)
	}
	if states.Load() != 1 {
		t.Errorf("done events = %d, want 1", states.Load())
	}

	res, err := inst.ExecuteInline(ctx, "print(1)")
	if err != nil {
		t.Fatalf("ExecuteInline() error: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "print(1)" {
		t.Errorf("stdout = %q", res.Stdout)
	}

	downloads := fr.downloads.Load()
	again, err := m.GetOrInstall(ctx, "3.12.4", "2024-07-26")
	if err != nil {
		t.Fatalf("second GetOrInstall() error: %v", err)
	}
	if again.Dir() != inst.Dir() {
		t.Errorf("second call returned %s, want %s", again.Dir(), inst.Dir())
	}
	if fr.downloads.Load() != downloads {
		t.Error("installed instance was downloaded again")
	}
}

func TestGetOrInstall_PinnedBuild(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))

	inst, err := m.GetOrInstall(context.Background(), "3.12", "20240415")
	if err != nil {
		t.Fatalf("GetOrInstall() error: %v", err)
	}
	if inst.Record.Version != "3.12.3" || inst.Record.WasLatestBuild {
		t.Errorf("record = %+v, want 3.12.3 not marked latest", inst.Record)
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	cfg := testConfig(t, fr)
	cfg.DefaultVersion = "3.11"
	m := openTest(t, cfg)

	inst, err := m.Default(context.Background())
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if inst.Record.Version != "3.11.9" {
		t.Errorf("Default() version = %s, want 3.11.9", inst.Record.Version)
	}
}

func TestFindListRemove(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))
	ctx := context.Background()

	for _, v := range []string{"3.12", "3.11"} {
		if _, err := m.GetOrInstall(ctx, v, ""); err != nil {
			t.Fatalf("GetOrInstall(%s) error: %v", v, err)
		}
	}

	calls := fr.apiCalls.Load()
	inst, err := m.FindInstance("3.11", "")
	if err != nil {
		t.Fatalf("FindInstance() error: %v", err)
	}
	if inst.Record.Version != "3.11.9" {
		t.Errorf("FindInstance() version = %s", inst.Record.Version)
	}
	if fr.apiCalls.Load() != calls {
		t.Error("FindInstance() queried the release index")
	}

	list, err := m.ListInstances()
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, i := range list {
		keys = append(keys, i.Key())
	}
	if want := []string{"3.12.4@20240726", "3.11.9@20240726"}; !slices.Equal(keys, want) {
		t.Errorf("ListInstances() = %v, want %v", keys, want)
	}

	if err := m.RemoveInstance("3.11", ""); err != nil {
		t.Fatalf("RemoveInstance() error: %v", err)
	}
	if _, err := m.FindInstance("3.11", ""); !errors.Is(err, store.ErrInstanceNotFound) {
		t.Errorf("FindInstance() after removal error = %v, want ErrInstanceNotFound", err)
	}
	if err := m.RemoveInstance("3.11", ""); !errors.Is(err, store.ErrInstanceNotFound) {
		t.Errorf("second RemoveInstance() error = %v, want ErrInstanceNotFound", err)
	}
	if err := m.RemoveInstance("three", ""); !errors.Is(err, pyversion.ErrInvalidVersion) {
		t.Errorf("RemoveInstance(three) error = %v, want ErrInvalidVersion", err)
	}
}

func TestListAvailableVersions(t *testing.T) {
	t.Parallel()

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))
	ctx := context.Background()

	all, err := m.ListAvailableVersions(ctx, "")
	if err != nil {
		t.Fatalf("ListAvailableVersions() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d versions, want 3: %v", len(all), all)
	}
	if all[0].Version.String() != "3.12.4" {
		t.Errorf("newest = %s, want 3.12.4", all[0].Version)
	}

	only311, err := m.ListAvailableVersions(ctx, "3.11")
	if err != nil {
		t.Fatal(err)
	}
	if len(only311) != 1 || only311[0].BuildDate != "20240726" {
		t.Errorf("filtered = %v, want one 3.11 build from 20240726", only311)
	}
	if got := fr.apiCalls.Load(); got != 1 {
		t.Errorf("API calls = %d, want 1 with caching enabled", got)
	}

	if _, err := m.ListAvailableVersions(ctx, "3.x"); !errors.Is(err, pyversion.ErrInvalidVersion) {
		t.Errorf("bad filter error = %v, want ErrInvalidVersion", err)
	}
}

func TestInstance_Packages(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))
	ctx := context.Background()

	inst, err := m.GetOrInstall(ctx, "3.12", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := inst.InstallPackage(ctx, "requests"); err != nil {
		t.Fatalf("InstallPackage() error: %v", err)
	}
	results := inst.InstallPackages(ctx, []string{"rich", "fail-me"}, true)
	if results["rich"] != nil || results["fail-me"] == nil {
		t.Errorf("InstallPackages() = %v, want only fail-me to fail", results)
	}
	if err := inst.UninstallPackage(ctx, "requests"); err != nil {
		t.Fatalf("UninstallPackage() error: %v", err)
	}

	pkgs, err := inst.ListPackages(ctx)
	if err != nil {
		t.Fatalf("ListPackages() error: %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "rich" {
		t.Errorf("ListPackages() = %v, want [rich]", pkgs)
	}
}

func TestInstance_Environments(t *testing.T) {
	t.Parallel()
	testutil.SkipIfWindows(t)

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))
	ctx := context.Background()

	inst, err := m.GetOrInstall(ctx, "3.12", "")
	if err != nil {
		t.Fatal(err)
	}
	env, err := inst.Environments().GetOrCreate(ctx, "dev", false)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if err := inst.Packages(env.Interpreter).Install(ctx, "flask"); err != nil {
		t.Fatalf("Install() into environment error: %v", err)
	}

	envPkgs, err := inst.Packages(env.Interpreter).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(envPkgs) != 1 || envPkgs[0].Name != "flask" {
		t.Errorf("environment packages = %v, want [flask]", envPkgs)
	}
	basePkgs, err := inst.ListPackages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(basePkgs) != 0 {
		t.Errorf("instance packages = %v, want none", basePkgs)
	}

	found, err := m.FindInstance("3.12", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := found.Record.Environment("dev"); !ok {
		t.Error("environment not recorded in instance metadata")
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	fr := newFakeReleases(t)
	m := openTest(t, testConfig(t, fr))

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	if _, err := m.GetOrInstall(context.Background(), "3.12", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("GetOrInstall() after Close error = %v, want ErrClosed", err)
	}
	if _, err := m.ListInstances(); !errors.Is(err, ErrClosed) {
		t.Errorf("ListInstances() after Close error = %v, want ErrClosed", err)
	}
	if _, err := m.ListAvailableVersions(context.Background(), ""); !errors.Is(err, ErrClosed) {
		t.Errorf("ListAvailableVersions() after Close error = %v, want ErrClosed", err)
	}
}
