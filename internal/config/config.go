// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/pyrt-dev/pyrt/internal/issue"
	"github.com/pyrt-dev/pyrt/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "pyrt"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override (PYRT_RETRY_ATTEMPTS, ...).
	EnvPrefix = "PYRT"

	maxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// Dir returns the platform configuration directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (or
// ~/.config) elsewhere.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

func load(ctx context.Context, opts LoadOptions) (Config, string, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return Config{}, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return Config{}, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the documented schema").
				WithHelp(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Fix the listed fields in the file or the PYRT_* environment").
			WithHelp(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return cfg, path, nil
}

// resolvePath picks the file to load; "" means defaults only.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'pyrt config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		d, err := Dir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	name := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(dir, name); fileExists(p) {
		return p, nil
	}
	if !opts.SkipWorkingDir && fileExists(name) {
		return name, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("root_dir", string(d.RootDir))
	v.SetDefault("default_version", d.DefaultVersion)
	v.SetDefault("default_index_url", d.DefaultIndexURL)
	v.SetDefault("proxy_url", d.ProxyURL)
	v.SetDefault("default_timeout", d.DefaultTimeout)
	v.SetDefault("retry_attempts", d.RetryAttempts)
	v.SetDefault("retry_delay", d.RetryDelay)
	v.SetDefault("use_exponential_backoff", d.UseExponentialBackoff)
	v.SetDefault("github_token", d.GitHubToken)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("release_source.owner", d.ReleaseSource.Owner)
	v.SetDefault("release_source.repo", d.ReleaseSource.Repo)
	v.SetDefault("release_source.api_url", d.ReleaseSource.APIURL)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
}

// loadCUEIntoViper validates the file at path against #Config and merges
// its values into v. Fields are optional, so the file is checked with
// Concrete(false) and exported as JSON for Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxFileSize)
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(configSchema)
	if schema.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schema.Err())
	}

	user := cctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return formatCUEError(user.Err(), path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return formatCUEError(err, path)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError prefixes each CUE error with its dotted field path.
func formatCUEError(err error, path string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.Join(cueerrors.Path(e), ".")
		msg := e.Error()
		if field != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes cfg as dir/config.cue, creating dir when needed.
func Save(dir string, cfg Config) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config.cue document. An empty token is
// omitted.
func GenerateCUE(cfg Config) string {
	var b strings.Builder
	b.WriteString("// pyrt configuration\n\n")
	fmt.Fprintf(&b, "root_dir: %q\n", cfg.RootDir)
	fmt.Fprintf(&b, "default_version: %q\n", cfg.DefaultVersion)
	if cfg.DefaultIndexURL != "" {
		fmt.Fprintf(&b, "default_index_url: %q\n", cfg.DefaultIndexURL)
	}
	if cfg.ProxyURL != "" {
		fmt.Fprintf(&b, "proxy_url: %q\n", cfg.ProxyURL)
	}
	fmt.Fprintf(&b, "default_timeout: %q\n", cfg.DefaultTimeout.String())
	fmt.Fprintf(&b, "retry_attempts: %d\n", cfg.RetryAttempts)
	fmt.Fprintf(&b, "retry_delay: %q\n", cfg.RetryDelay.String())
	fmt.Fprintf(&b, "use_exponential_backoff: %v\n", cfg.UseExponentialBackoff)
	if cfg.GitHubToken != "" {
		fmt.Fprintf(&b, "github_token: %q\n", cfg.GitHubToken)
	}
	fmt.Fprintf(&b, "cache_ttl: %q\n", cfg.CacheTTL.String())

	b.WriteString("\nrelease_source: {\n")
	fmt.Fprintf(&b, "\towner: %q\n", cfg.ReleaseSource.Owner)
	fmt.Fprintf(&b, "\trepo: %q\n", cfg.ReleaseSource.Repo)
	fmt.Fprintf(&b, "\tapi_url: %q\n", cfg.ReleaseSource.APIURL)
	b.WriteString("}\n")

	b.WriteString("\nui: {\n")
	fmt.Fprintf(&b, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&b, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	b.WriteString("}\n")
	return b.String()
}
