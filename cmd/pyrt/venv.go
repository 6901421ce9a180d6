// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVenvCommand(app *App) *cobra.Command {
	venvCmd := &cobra.Command{
		Use:   "venv",
		Short: "Manage virtual environments of a runtime",
		Long: `Manage named virtual environments.

Environments live in the venvs/ directory of the runtime they were created
from and are recorded in its metadata. Use --python to pick the runtime;
otherwise the pinned or default version is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	venvCmd.AddCommand(
		newVenvCreateCommand(app),
		newVenvDeleteCommand(app),
		newVenvListCommand(app),
		newVenvRegisterCommand(app),
	)
	return venvCmd
}

func newVenvCreateCommand(app *App) *cobra.Command {
	var (
		sel      selection
		recreate bool
		from     string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			inst, _, err := app.resolveInstance(ctx, m, &sel)
			if err != nil {
				return app.fail("prepare Python "+orDefault(sel.python, app.cfg.DefaultVersion), m.Platform().TargetTriple, err)
			}
			envs := inst.Environments()
			if from != "" {
				env, err := envs.Clone(ctx, from, name)
				if err != nil {
					return app.fail("clone environment "+from+" into "+name, envs.Dir(), err)
				}
				_, _ = fmt.Fprintf(app.stdout, "%s cloned %s into %s at %s\n",
					SuccessStyle.Render("✓"), CmdStyle.Render(from), CmdStyle.Render(name), env.Dir)
				return nil
			}

			env, err := envs.GetOrCreate(ctx, name, recreate)
			if err != nil {
				return app.fail("create environment "+name, envs.Dir(), err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s environment %s (Python %s) at %s\n",
				SuccessStyle.Render("✓"), CmdStyle.Render(name), inst.Record.Version, env.Dir)
			return nil
		},
	}
	sel.bindRuntime(cmd)
	cmd.Flags().BoolVar(&recreate, "recreate", false, "delete and recreate the environment if it exists")
	cmd.Flags().StringVar(&from, "from", "", "copy the installed packages of this environment")
	return cmd
}

func newVenvDeleteCommand(app *App) *cobra.Command {
	var (
		sel      selection
		parallel bool
	)
	cmd := &cobra.Command{
		Use:     "delete <name>...",
		Aliases: []string{"rm"},
		Short:   "Delete virtual environments",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			inst, _, err := app.resolveInstance(ctx, m, &sel)
			if err != nil {
				return app.fail("prepare Python "+orDefault(sel.python, app.cfg.DefaultVersion), m.Platform().TargetTriple, err)
			}
			envs := inst.Environments()

			if len(args) == 1 {
				if err := envs.Delete(ctx, args[0]); err != nil {
					return app.fail("delete environment "+args[0], envs.Dir(), err)
				}
				_, _ = fmt.Fprintf(app.stdout, "%s deleted %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
				return nil
			}

			results := envs.DeleteMany(ctx, args, parallel)
			failed := 0
			for _, name := range args {
				if err := results[name]; err != nil {
					failed++
					_, _ = fmt.Fprintf(app.stderr, "%s %s: %v\n", ErrorStyle.Render("✗"), name, err)
					continue
				}
				_, _ = fmt.Fprintf(app.stdout, "%s deleted %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(name))
			}
			if failed > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d environments could not be deleted", failed, len(args))}
			}
			return nil
		},
	}
	sel.bindRuntime(cmd)
	cmd.Flags().BoolVar(&parallel, "parallel", false, "delete environments concurrently")
	return cmd
}

func newVenvListCommand(app *App) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List virtual environments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			inst, _, err := app.resolveInstance(ctx, m, &sel)
			if err != nil {
				return app.fail("prepare Python "+orDefault(sel.python, app.cfg.DefaultVersion), m.Platform().TargetTriple, err)
			}
			envs, err := inst.Environments().List()
			if err != nil {
				return app.fail("list environments", inst.Environments().Dir(), err)
			}
			if len(envs) == 0 {
				_, _ = fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render("No environments for Python "+inst.Record.Version+"."))
				return nil
			}

			t := newTable("NAME", "EXTERNAL", "DIRECTORY")
			for _, env := range envs {
				t.Row(env.Name, yesNo(env.External), env.Dir)
			}
			_, _ = fmt.Fprintln(app.stdout, t.Render())
			return nil
		},
	}
	sel.bindRuntime(cmd)
	return cmd
}

func newVenvRegisterCommand(app *App) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "register <name> <path>",
		Short: "Track an environment that lives outside the runtime",
		Long: `Record an existing virtual environment under a name so that --venv can
select it. Deleting a registered environment only forgets it; its files
are left in place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			inst, _, err := app.resolveInstance(ctx, m, &sel)
			if err != nil {
				return app.fail("prepare Python "+orDefault(sel.python, app.cfg.DefaultVersion), m.Platform().TargetTriple, err)
			}
			env, err := inst.Environments().RegisterExternal(args[0], args[1])
			if err != nil {
				return app.fail("register environment "+args[0], args[1], err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s registered %s at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(env.Name), env.Dir)
			return nil
		},
	}
	sel.bindRuntime(cmd)
	return cmd
}
