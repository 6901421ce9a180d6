// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/internal/pin"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

func newPinCommand(app *App) *cobra.Command {
	var (
		buildDate string
		venvName  string
		show      bool
	)
	cmd := &cobra.Command{
		Use:   "pin [version]",
		Short: "Pin the Python version of the current directory",
		Long: `Write a pyrt.toml pin file in the current directory. Commands run in this
directory or below it use the pinned version unless --python is given.

Without arguments (or with --show) the pin in effect is printed.`,
		Example: `  pyrt pin 3.12
  pyrt pin 3.11.9 --build-date 20240726 --venv dev`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return app.fail("pin version", ".", err)
			}
			if show || len(args) == 0 {
				p, err := pin.Find(wd)
				if err != nil {
					if errors.Is(err, pin.ErrNotFound) {
						_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No pin in effect; using default_version "+app.cfg.DefaultVersion+"."))
						return nil
					}
					return app.fail("read pin file", wd, err)
				}
				_, _ = fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render(p.Python), describePin(p))
				return nil
			}

			if _, err := pyversion.Parse(args[0]); err != nil {
				return app.fail("pin version", args[0], err)
			}
			p := pin.Pin{
				Python:    args[0],
				BuildDate: catalog.NormalizeBuildDate(buildDate),
				Venv:      venvName,
			}
			path, err := pin.Write(wd, p)
			if err != nil {
				return app.fail("write pin file", wd, err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s pinned Python %s in %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(p.Python), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&buildDate, "build-date", "", "pin the build published on this date")
	cmd.Flags().StringVar(&venvName, "venv", "", "pin a virtual environment of the runtime")
	cmd.Flags().BoolVar(&show, "show", false, "print the pin in effect")
	return cmd
}

func describePin(p *pin.Pin) string {
	s := "from " + p.Path
	if p.BuildDate != "" {
		s += ", build " + p.BuildDate
	}
	if p.Venv != "" {
		s += ", environment " + p.Venv
	}
	return SubtitleStyle.Render(s)
}
