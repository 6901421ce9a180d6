// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newInstallCommand(app *App) *cobra.Command {
	var buildDate string
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Install a Python runtime",
		Long: `Install a Python runtime from the release catalog.

A partial version such as 3.12 installs the newest patch release. Without a
version the configured default_version is used. An installed runtime that
already satisfies the request is reused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := firstArg(args)
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			inst, err := m.GetOrInstall(cmd.Context(), version, buildDate)
			if err != nil {
				return app.fail("install Python "+orDefault(version, app.cfg.DefaultVersion), m.Platform().TargetTriple, err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s Python %s (%s) at %s\n",
				SuccessStyle.Render("✓"), CmdStyle.Render(inst.Record.Version), inst.Record.BuildDate, inst.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&buildDate, "build-date", "", "install the build published on this date (YYYYMMDD)")
	return cmd
}

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed runtimes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			instances, err := m.ListInstances()
			if err != nil {
				return app.fail("list runtimes", m.Root(), err)
			}
			if len(instances) == 0 {
				_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No runtimes installed."))
				return nil
			}

			t := newTable("VERSION", "BUILD", "LATEST", "ENVS", "DIRECTORY")
			for _, inst := range instances {
				t.Row(inst.Record.Version, inst.Record.BuildDate, yesNo(inst.Record.WasLatestBuild),
					strconv.Itoa(len(inst.Record.SubEnvironments)), inst.Dir())
			}
			_, _ = fmt.Fprintln(app.stdout, t.Render())
			return nil
		},
	}
}

func newAvailableCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "available [version]",
		Short: "List versions published for this platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			available, err := m.ListAvailableVersions(cmd.Context(), firstArg(args))
			if err != nil {
				return app.fail("list available versions", m.Platform().TargetTriple, err)
			}
			if len(available) == 0 {
				_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No published builds match."))
				return nil
			}
			if limit > 0 && len(available) > limit {
				available = available[:limit]
			}

			t := newTable("VERSION", "BUILD", "ARCHIVE")
			for _, a := range available {
				kind := "full"
				if a.InstallOnly {
					kind = "install-only"
				}
				t.Row(a.Version.String(), a.BuildDate, kind)
			}
			_, _ = fmt.Fprintln(app.stdout, t.Render())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many builds")
	return cmd
}

func newRemoveCommand(app *App) *cobra.Command {
	var buildDate string
	cmd := &cobra.Command{
		Use:     "remove <version>",
		Aliases: []string{"rm"},
		Short:   "Remove an installed runtime and its environments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			if err := m.RemoveInstance(args[0], buildDate); err != nil {
				return app.fail("remove Python "+args[0], m.Root(), err)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s removed Python %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&buildDate, "build-date", "", "remove only the build published on this date")
	return cmd
}

func newPruneCommand(app *App) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop index entries of runtimes that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			if rebuild {
				n, err := m.Rebuild()
				if err != nil {
					return app.fail("rebuild runtime index", m.Root(), err)
				}
				_, _ = fmt.Fprintf(app.stdout, "%s index rebuilt with %d runtime(s)\n", SuccessStyle.Render("✓"), n)
				return nil
			}

			pruned, err := m.Prune()
			if err != nil {
				return app.fail("prune runtime index", m.Root(), err)
			}
			for _, dir := range pruned {
				_, _ = fmt.Fprintf(app.stdout, "pruned %s\n", dir)
			}
			_, _ = fmt.Fprintf(app.stdout, "%s %d stale entr%s removed\n", SuccessStyle.Render("✓"), len(pruned), plural(len(pruned), "y", "ies"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "regenerate the index from the runtime directories instead")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
