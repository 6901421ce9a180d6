// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "pyrt",
		Short: "Install and run standalone Python runtimes",
		Long: TitleStyle.Render("pyrt") + SubtitleStyle.Render(" - standalone Python runtimes on demand") + `

pyrt downloads relocatable CPython builds from a GitHub release catalog,
installs them side by side and runs them without touching the system
Python. Each runtime can hold named virtual environments.

` + SubtitleStyle.Render("Examples:") + `
  pyrt install 3.12          Install the newest 3.12 build
  pyrt run -- -c 'print(1)'  Run the default (or pinned) runtime
  pyrt venv create dev       Create a virtual environment
  pyrt pin 3.11              Pin this project to Python 3.11`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.init(cmd.Context(), flags); err != nil {
				return app.fail("load configuration", flags.configFile, err)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.configFile, "config", "", "config file (default is <user config dir>/pyrt/config.cue)")
	pf.StringVar(&flags.rootDir, "root-dir", "", "directory holding installed runtimes (overrides root_dir)")

	root.AddCommand(
		newInstallCommand(app),
		newListCommand(app),
		newAvailableCommand(app),
		newRemoveCommand(app),
		newPruneCommand(app),
		newRunCommand(app),
		newExecCommand(app),
		newReplCommand(app),
		newVenvCommand(app),
		newPackagesCommand(app),
		newPinCommand(app),
		newConfigCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting status.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code.ForProcessExit())
		}
		os.Exit(1)
	}
}
