// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/pyrt-dev/pyrt/internal/config"
	"github.com/pyrt-dev/pyrt/internal/manager"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

type (
	// App wires CLI services and shared state. All Cobra handlers receive an
	// App and reach the configuration and managers through it.
	App struct {
		Config config.Provider
		Open   OpenFunc
		stdin  *os.File
		stdout io.Writer
		stderr io.Writer

		// Populated by the root command before any subcommand runs.
		cfg     config.Config
		verbose bool
		logger  *log.Logger
	}

	// OpenFunc opens a manager from a configuration snapshot.
	OpenFunc func(cfg config.Config, opts ...manager.Option) (*manager.Manager, error)

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Open   OpenFunc
		Stdin  *os.File
		Stdout io.Writer
		Stderr io.Writer
	}

	// globalFlags are the persistent flags of the root command.
	globalFlags struct {
		verbose    bool
		configFile string
		rootDir    string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Open == nil {
		deps.Open = manager.Open
	}
	return &App{
		Config: deps.Config,
		Open:   deps.Open,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		cfg:    config.DefaultConfig(),
		logger: log.New(io.Discard),
	}
}

// init loads the configuration and builds the logger. Flags win over
// configuration values.
func (a *App) init(ctx context.Context, flags *globalFlags) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configFile})
	if err != nil {
		return err
	}
	if flags.rootDir != "" {
		cfg.RootDir = types.FilesystemPath(flags.rootDir)
	}
	a.cfg = cfg
	a.verbose = flags.verbose || cfg.UI.Verbose

	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
	return nil
}

// openManager opens a manager for one command invocation. Progress is
// reported on stderr.
func (a *App) openManager() (*manager.Manager, error) {
	progress := newProgressPrinter(a.stderr, a.logger)
	return a.Open(a.cfg,
		manager.WithLogger(a.logger),
		manager.WithProgress(progress.report),
	)
}
