// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyrt-dev/pyrt/internal/pip"
)

func newPackagesCommand(app *App) *cobra.Command {
	pkgCmd := &cobra.Command{
		Use:     "pkg",
		Aliases: []string{"packages"},
		Short:   "Manage packages of a runtime or environment",
		Long: `Install, uninstall and list packages with the pip of a runtime.

With --venv the packages of that environment are managed instead; the
environment is created when missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	pkgCmd.AddCommand(
		newPackagesInstallCommand(app),
		newPackagesUninstallCommand(app),
		newPackagesListCommand(app),
	)
	return pkgCmd
}

// packageTarget opens the pip client of the runtime or environment that
// sel names. The returned function closes the manager.
func (a *App) packageTarget(ctx context.Context, sel *selection) (*pip.Client, string, func(), error) {
	m, err := a.openManager()
	if err != nil {
		return nil, "", nil, a.fail("open runtime store", a.cfg.RootDir.String(), err)
	}
	closeFn := func() { _ = m.Close() }

	inst, venvName, err := a.resolveInstance(ctx, m, sel)
	if err != nil {
		closeFn()
		return nil, "", nil, a.fail("prepare Python "+orDefault(sel.python, a.cfg.DefaultVersion), m.Platform().TargetTriple, err)
	}
	label := "Python " + inst.Record.Version
	if venvName == "" {
		return inst.Packages(inst), label, closeFn, nil
	}
	env, err := inst.Environments().GetOrCreate(ctx, venvName, false)
	if err != nil {
		closeFn()
		return nil, "", nil, a.fail("prepare environment "+venvName, inst.Environments().Dir(), err)
	}
	return inst.Packages(env.Interpreter), label + " (" + venvName + ")", closeFn, nil
}

func newPackagesInstallCommand(app *App) *cobra.Command {
	var (
		sel      selection
		parallel bool
	)
	cmd := &cobra.Command{
		Use:   "install <requirement>...",
		Short: "Install packages",
		Example: `  pyrt pkg install requests 'rich>=13'
  pyrt pkg install --venv dev --parallel flask httpx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, label, closeFn, err := app.packageTarget(ctx, &sel)
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 1 {
				if err := client.Install(ctx, args[0]); err != nil {
					return app.fail("install "+args[0]+" into "+label, "", err)
				}
				_, _ = fmt.Fprintf(app.stdout, "%s installed %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
				return nil
			}

			results := client.InstallMany(ctx, args, parallel)
			failed := 0
			for _, req := range args {
				if err := results[req]; err != nil {
					failed++
					_, _ = fmt.Fprintf(app.stderr, "%s %s: %v\n", ErrorStyle.Render("✗"), req, err)
					continue
				}
				_, _ = fmt.Fprintf(app.stdout, "%s installed %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(req))
			}
			if failed > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d requirements failed to install", failed, len(args))}
			}
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run one pip process per requirement concurrently")
	return cmd
}

func newPackagesUninstallCommand(app *App) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:     "uninstall <name>",
		Aliases: []string{"remove"},
		Short:   "Uninstall a package",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, label, closeFn, err := app.packageTarget(ctx, &sel)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := client.Uninstall(ctx, args[0]); err != nil {
				return app.fail("uninstall "+args[0]+" from "+label, "", err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s uninstalled %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
			return nil
		},
	}
	sel.bind(cmd)
	return cmd
}

func newPackagesListCommand(app *App) *cobra.Command {
	var (
		sel    selection
		freeze bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed packages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, label, closeFn, err := app.packageTarget(ctx, &sel)
			if err != nil {
				return err
			}
			defer closeFn()

			if freeze {
				reqs, err := client.Freeze(ctx)
				if err != nil {
					return app.fail("freeze packages of "+label, "", err)
				}
				for _, r := range reqs {
					_, _ = fmt.Fprintln(app.stdout, r)
				}
				return nil
			}

			pkgs, err := client.List(ctx)
			if err != nil {
				return app.fail("list packages of "+label, "", err)
			}
			if len(pkgs) == 0 {
				_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No packages installed in "+label+"."))
				return nil
			}
			t := newTable("PACKAGE", "VERSION")
			for _, p := range pkgs {
				t.Row(p.Name, p.Version)
			}
			_, _ = fmt.Fprintln(app.stdout, t.Render())
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().BoolVar(&freeze, "freeze", false, "print requirement specifiers instead of a table")
	return cmd
}
