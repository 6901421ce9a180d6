// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/internal/issue"
	"github.com/pyrt-dev/pyrt/internal/testutil"
)

func loadFrom(t *testing.T, content string) (Config, error) {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), []byte(content), 0o644)
	}
	return NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error: %v", err)
	}
	if cfg.RetryAttempts != 3 || cfg.RetryDelay != time.Second || !cfg.UseExponentialBackoff {
		t.Errorf("retry defaults = %d, %s, %v", cfg.RetryAttempts, cfg.RetryDelay, cfg.UseExponentialBackoff)
	}
	if cfg.ReleaseSource.Owner != catalog.DefaultOwner || cfg.ReleaseSource.Repo != catalog.DefaultRepo {
		t.Errorf("release source = %+v", cfg.ReleaseSource)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := loadFrom(t, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadFrom(t, `
root_dir: "/opt/pyrt"
default_version: "3.11"
retry_attempts: 5
retry_delay: "250ms"
use_exponential_backoff: false
cache_ttl: "1h"
proxy_url: "http://proxy.internal:3128"
release_source: {
	owner: "acme"
}
ui: color_scheme: "dark"
`)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := DefaultConfig()
	want.RootDir = "/opt/pyrt"
	want.DefaultVersion = "3.11"
	want.RetryAttempts = 5
	want.RetryDelay = 250 * time.Millisecond
	want.UseExponentialBackoff = false
	want.CacheTTL = time.Hour
	want.ProxyURL = "http://proxy.internal:3128"
	want.ReleaseSource.Owner = "acme"
	want.UI.ColorScheme = ColorSchemeDark
	if cfg != want {
		t.Errorf("Load() =\n%+v\nwant\n%+v", cfg, want)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad version", `default_version: "latest"`, "default_version"},
		{"attempts out of range", `retry_attempts: 0`, "retry_attempts"},
		{"bad duration", `retry_delay: "soon"`, "retry_delay"},
		{"unknown field", `container_engine: "docker"`, "container_engine"},
		{"bad color scheme", `ui: color_scheme: "pink"`, "color_scheme"},
		{"syntax", `root_dir: [`, "config.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadFrom(t, tt.content)
			if err == nil {
				t.Fatal("Load() succeeded")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Help != issue.ConfigLoadFailedId {
				t.Errorf("Load() error = %v, want ActionableError with config help", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoad_ExplicitFileAndPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, path, []byte(`default_version: "3.13"`), 0o644)

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultVersion != "3.13" || p.Path() != path {
		t.Errorf("Load() = %s from %q", cfg.DefaultVersion, p.Path())
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PYRT_RETRY_ATTEMPTS", "7")
	t.Setenv("PYRT_GITHUB_TOKEN", "ghp_secret")
	t.Setenv("PYRT_UI_VERBOSE", "true")
	t.Setenv("PYRT_RELEASE_SOURCE_REPO", "mirror")
	t.Setenv("PYRT_DEFAULT_TIMEOUT", "45s")

	cfg, err := loadFrom(t, `retry_attempts: 2`)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RetryAttempts != 7 || cfg.GitHubToken != "ghp_secret" || !cfg.UI.Verbose ||
		cfg.ReleaseSource.Repo != "mirror" || cfg.DefaultTimeout != 45*time.Second {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_EnvironmentIsValidated(t *testing.T) {
	t.Setenv("PYRT_RETRY_ATTEMPTS", "99")

	_, err := loadFrom(t, "")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	var ice *InvalidConfigError
	if !errors.As(err, &ice) || len(ice.FieldErrors) != 1 {
		t.Fatalf("errors.As() = %+v", ice)
	}
	if !strings.Contains(ice.FieldErrors[0].Error(), "retry_attempts must be at most 10") {
		t.Errorf("field error = %v", ice.FieldErrors[0])
	}
}

func TestValidate_CollectsAllFields(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DefaultVersion = "x"
	cfg.ProxyURL = "not a url"
	cfg.ReleaseSource.APIURL = ""
	cfg.RetryDelay = -time.Second

	err := cfg.Validate()
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(ice.FieldErrors) != 4 {
		t.Errorf("FieldErrors = %v", ice.FieldErrors)
	}
	for _, want := range []string{"default_version", "proxy_url", "release_source.api_url", "retry_delay"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RootDir = "/srv/pyrt"
	cfg.DefaultTimeout = 90 * time.Second
	cfg.DefaultIndexURL = "https://pypi.internal/simple"
	cfg.UI.Verbose = true

	dir := t.TempDir()
	if _, err := Save(dir, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir, SkipWorkingDir: true})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip =\n%+v\nwant\n%+v", got, cfg)
	}
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Redacted().GitHubToken != "" {
		t.Error("empty token should stay empty")
	}
	cfg.GitHubToken = "ghp_secret"
	if r := cfg.Redacted(); r.GitHubToken == "ghp_secret" || cfg.GitHubToken != "ghp_secret" {
		t.Errorf("Redacted() = %q, original = %q", r.GitHubToken, cfg.GitHubToken)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}
