// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// Config is the manager configuration. It is passed by value; the
	// zero value is not usable, start from DefaultConfig.
	Config struct {
		// RootDir holds one directory per installed instance.
		RootDir types.FilesystemPath `json:"root_dir" mapstructure:"root_dir" validate:"required"`
		// DefaultVersion is used when a caller asks for no particular version.
		DefaultVersion string `json:"default_version" mapstructure:"default_version" validate:"required,pyversion"`
		// DefaultIndexURL is passed to the package installer as --index-url when set.
		DefaultIndexURL string `json:"default_index_url" mapstructure:"default_index_url" validate:"omitempty,url"`
		// ProxyURL routes catalog requests and downloads through an HTTP proxy.
		ProxyURL string `json:"proxy_url" mapstructure:"proxy_url" validate:"omitempty,url"`
		// DefaultTimeout bounds interpreter calls that set no timeout; zero disables it.
		DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout" validate:"gte=0"`
		// RetryAttempts is the number of download attempts.
		RetryAttempts int `json:"retry_attempts" mapstructure:"retry_attempts" validate:"min=1,max=10"`
		// RetryDelay is the wait before the first retry.
		RetryDelay time.Duration `json:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`
		// UseExponentialBackoff doubles RetryDelay after each failed attempt.
		UseExponentialBackoff bool `json:"use_exponential_backoff" mapstructure:"use_exponential_backoff"`
		// GitHubToken authenticates catalog requests.
		GitHubToken string `json:"github_token" mapstructure:"github_token"`
		// CacheTTL is how long release listings are reused; zero disables caching.
		CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" validate:"gte=0"`
		// ReleaseSource names the repository publishing distributions.
		ReleaseSource ReleaseSource `json:"release_source" mapstructure:"release_source"`
		// UI configures the command-line interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ReleaseSource locates the release catalog.
	ReleaseSource struct {
		Owner  string `json:"owner" mapstructure:"owner" validate:"required"`
		Repo   string `json:"repo" mapstructure:"repo" validate:"required"`
		APIURL string `json:"api_url" mapstructure:"api_url" validate:"required,url"`
	}

	// UIConfig configures the command-line interface.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" validate:"oneof=auto dark light"`
	}

	// InvalidConfigError collects every field that failed validation.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		RootDir:               "~/.pyrt/runtimes",
		DefaultVersion:        "3.12",
		DefaultTimeout:        0,
		RetryAttempts:         3,
		RetryDelay:            time.Second,
		UseExponentialBackoff: true,
		CacheTTL:              10 * time.Minute,
		ReleaseSource: ReleaseSource{
			Owner:  catalog.DefaultOwner,
			Repo:   catalog.DefaultRepo,
			APIURL: catalog.DefaultAPIURL,
		},
		UI: UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.GitHubToken != "" {
		c.GitHubToken = "********"
	}
	return c
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
