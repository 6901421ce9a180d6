// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyrt-dev/pyrt/internal/config"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

// newConfigCommand creates the `pyrt config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pyrt configuration",
		Long: `Manage pyrt configuration.

Configuration is stored in:
  - Linux: ~/.config/pyrt/config.cue
  - macOS: ~/Library/Application Support/pyrt/config.cue
  - Windows: %APPDATA%\pyrt\config.cue

Every key can be overridden with a PYRT_* environment variable, for
example PYRT_DEFAULT_VERSION=3.11 or PYRT_RELEASE_SOURCE_API_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.showConfig()
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return app.fail("locate configuration directory", "", err)
			}
			_, _ = fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			_, _ = fmt.Fprintf(app.stdout, "Config file: %s\n", configFile(dir))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg.Redacted()))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return app.fail("locate configuration directory", "", err)
			}
			if _, err := os.Stat(configFile(dir)); err == nil && !force {
				return app.fail("create configuration", configFile(dir), errors.New("configuration file already exists; use --force to overwrite"))
			}
			path, err := config.Save(dir, config.DefaultConfig())
			if err != nil {
				return app.fail("create configuration", dir, err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Example: `  pyrt config set default_version 3.11
  pyrt config set retry_delay 2s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.setConfigValue(cmd.Context(), args[0], args[1])
		},
	})

	return cfgCmd
}

func configFile(dir string) string {
	return filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
}

func (a *App) showConfig() {
	cfg := a.cfg.Redacted()
	key := CmdStyle.Render
	value := SuccessStyle.Render

	_, _ = fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	_, _ = fmt.Fprintln(a.stdout)
	if path := a.Config.Path(); path != "" {
		_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", key("Config file"), path)
	} else {
		_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	_, _ = fmt.Fprintln(a.stdout)

	rows := []struct{ k, v string }{
		{"root_dir", cfg.RootDir.String()},
		{"default_version", cfg.DefaultVersion},
		{"default_index_url", cfg.DefaultIndexURL},
		{"proxy_url", cfg.ProxyURL},
		{"default_timeout", cfg.DefaultTimeout.String()},
		{"retry_attempts", strconv.Itoa(cfg.RetryAttempts)},
		{"retry_delay", cfg.RetryDelay.String()},
		{"use_exponential_backoff", strconv.FormatBool(cfg.UseExponentialBackoff)},
		{"github_token", cfg.GitHubToken},
		{"cache_ttl", cfg.CacheTTL.String()},
	}
	for _, r := range rows {
		v := SubtitleStyle.Render("(not set)")
		if r.v != "" {
			v = value(r.v)
		}
		_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", key(r.k), v)
	}

	_, _ = fmt.Fprintln(a.stdout)
	_, _ = fmt.Fprintf(a.stdout, "%s:\n", key("release_source"))
	_, _ = fmt.Fprintf(a.stdout, "  owner: %s\n", value(cfg.ReleaseSource.Owner))
	_, _ = fmt.Fprintf(a.stdout, "  repo: %s\n", value(cfg.ReleaseSource.Repo))
	_, _ = fmt.Fprintf(a.stdout, "  api_url: %s\n", value(cfg.ReleaseSource.APIURL))

	_, _ = fmt.Fprintln(a.stdout)
	_, _ = fmt.Fprintf(a.stdout, "%s:\n", key("ui"))
	_, _ = fmt.Fprintf(a.stdout, "  color_scheme: %s\n", value(string(cfg.UI.ColorScheme)))
	_, _ = fmt.Fprintf(a.stdout, "  verbose: %s\n", value(strconv.FormatBool(cfg.UI.Verbose)))
}

// setConfigValue rewrites the configuration file with key set to value.
// The result is validated before anything is written.
func (a *App) setConfigValue(ctx context.Context, key, value string) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{})
	if err != nil {
		return a.fail("load configuration", "", err)
	}
	if err := applyConfigValue(&cfg, key, value); err != nil {
		return a.fail("set "+key, value, err)
	}
	if err := cfg.Validate(); err != nil {
		return a.fail("set "+key, value, err)
	}

	dir, err := config.Dir()
	if err != nil {
		return a.fail("locate configuration directory", "", err)
	}
	path, err := config.Save(dir, cfg)
	if err != nil {
		return a.fail("write configuration", dir, err)
	}
	_, _ = fmt.Fprintf(a.stdout, "%s %s = %s (%s)\n", SuccessStyle.Render("✓"), CmdStyle.Render(key), value, path)
	return nil
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch key {
	case "root_dir":
		cfg.RootDir = types.FilesystemPath(value)
	case "default_version":
		cfg.DefaultVersion = value
	case "default_index_url":
		cfg.DefaultIndexURL = value
	case "proxy_url":
		cfg.ProxyURL = value
	case "default_timeout":
		cfg.DefaultTimeout, err = time.ParseDuration(value)
	case "retry_attempts":
		cfg.RetryAttempts, err = strconv.Atoi(value)
	case "retry_delay":
		cfg.RetryDelay, err = time.ParseDuration(value)
	case "use_exponential_backoff":
		cfg.UseExponentialBackoff, err = strconv.ParseBool(value)
	case "github_token":
		cfg.GitHubToken = value
	case "cache_ttl":
		cfg.CacheTTL, err = time.ParseDuration(value)
	case "release_source.owner":
		cfg.ReleaseSource.Owner = value
	case "release_source.repo":
		cfg.ReleaseSource.Repo = value
	case "release_source.api_url":
		cfg.ReleaseSource.APIURL = value
	case "ui.verbose":
		cfg.UI.Verbose, err = strconv.ParseBool(value)
	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
