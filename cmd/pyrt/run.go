// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/shell"

	"github.com/pyrt-dev/pyrt/internal/manager"
	"github.com/pyrt-dev/pyrt/internal/pin"
	"github.com/pyrt-dev/pyrt/internal/runtime"
)

type (
	// selection names the runtime and environment a command targets.
	selection struct {
		python    string
		buildDate string
		venv      string
		noPin     bool
	}

	// runOptions shape a single interpreter invocation.
	runOptions struct {
		timeout  time.Duration
		workDir  string
		envFiles []string
		envVars  []string
	}
)

// bindRuntime registers the flags choosing a runtime.
func (s *selection) bindRuntime(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.python, "python", "p", "", "Python version to use (default: pinned or configured version)")
	cmd.Flags().StringVar(&s.buildDate, "build-date", "", "use the build published on this date")
	cmd.Flags().BoolVar(&s.noPin, "no-pin", false, "ignore the project pin file")
}

// bind registers the runtime flags and --venv.
func (s *selection) bind(cmd *cobra.Command) {
	s.bindRuntime(cmd)
	cmd.Flags().StringVar(&s.venv, "venv", "", "use this virtual environment, creating it if needed")
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "kill the interpreter after this long (default: default_timeout)")
	cmd.Flags().StringVarP(&o.workDir, "workdir", "w", "", "working directory for the interpreter")
	cmd.Flags().StringArrayVarP(&o.envFiles, "env-file", "e", nil, "load environment variables from a dotenv file (repeatable)")
	cmd.Flags().StringArrayVar(&o.envVars, "env", nil, "set an environment variable as KEY=VALUE (repeatable)")
}

// env merges the dotenv files in order, then the explicit variables.
func (o *runOptions) env() (map[string]string, error) {
	env := make(map[string]string)
	if len(o.envFiles) > 0 {
		loaded, err := godotenv.Read(o.envFiles...)
		if err != nil {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		maps.Copy(env, loaded)
	}
	for _, kv := range o.envVars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env value %q: want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}

func newRunCommand(app *App) *cobra.Command {
	var (
		sel  selection
		opts runOptions
	)
	cmd := &cobra.Command{
		Use:   "run [flags] [--] [args...]",
		Short: "Run the interpreter with arguments",
		Long: `Run the interpreter with the given arguments.

The runtime is taken from --python, then from the nearest pyrt.toml pin
file, then from default_version. It is installed first when missing. A
first argument naming an existing .py file runs it as a script.

The interpreter's exit status becomes pyrt's exit status.`,
		Example: `  pyrt run -- -c 'import sys; print(sys.version)'
  pyrt run --venv dev app.py --port 8000
  pyrt run -e .env -p 3.11 -- -m http.server`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInterpreter(cmd.Context(), &sel, &opts, args)
		},
	}
	cmd.Flags().SetInterspersed(false)
	sel.bind(cmd)
	opts.bind(cmd)
	return cmd
}

func newExecCommand(app *App) *cobra.Command {
	var (
		sel  selection
		opts runOptions
		line string
	)
	cmd := &cobra.Command{
		Use:   "exec --line <command line>",
		Short: "Run the interpreter with a quoted command line",
		Long: `Split a command line with POSIX shell quoting rules and run the
interpreter with the resulting arguments. No shell is started; variables
are expanded from the environment and any --env-file/--env values. A
leading "python" or "python3" word is dropped.`,
		Example: `  pyrt exec --line 'python -c "print(42)"'
  pyrt exec --line '-m pip --version'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := splitCommandLine(line, &opts)
			if err != nil {
				return app.fail("parse command line", line, err)
			}
			return app.runInterpreter(cmd.Context(), &sel, &opts, args)
		},
	}
	cmd.Flags().StringVarP(&line, "line", "l", "", "command line to run")
	_ = cmd.MarkFlagRequired("line")
	sel.bind(cmd)
	opts.bind(cmd)
	return cmd
}

func newReplCommand(app *App) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "repl [-- args...]",
		Short: "Start an interactive interpreter",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := app.openManager()
			if err != nil {
				return app.fail("open runtime store", app.cfg.RootDir.String(), err)
			}
			defer func() { _ = m.Close() }()

			rt, label, err := app.resolveRuntime(ctx, m, &sel)
			if err != nil {
				return app.fail("prepare "+label, m.Platform().TargetTriple, err)
			}
			code, err := rt.Interactive(ctx, app.stdin, app.stdout, args)
			if err != nil {
				return app.fail("run "+label, "", err)
			}
			if !code.IsSuccess() {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	sel.bind(cmd)
	return cmd
}

// splitCommandLine turns line into interpreter arguments.
func splitCommandLine(line string, opts *runOptions) ([]string, error) {
	extra, err := opts.env()
	if err != nil {
		return nil, err
	}
	args, err := shell.Fields(line, func(name string) string {
		if v, ok := extra[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, err
	}
	if len(args) > 0 && (args[0] == "python" || args[0] == "python3") {
		args = args[1:]
	}
	if len(args) == 0 {
		return nil, errors.New("command line is empty")
	}
	return args, nil
}

// resolveInstance installs or finds the runtime for sel: flags first, then
// the pin file, then the configured default. It also returns the
// environment name requested by the flags or the pin file.
func (a *App) resolveInstance(ctx context.Context, m *manager.Manager, sel *selection) (*manager.Instance, string, error) {
	python, buildDate, venvName := sel.python, sel.buildDate, sel.venv
	if python == "" && !sel.noPin {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		p, err := pin.Find(wd)
		switch {
		case err == nil:
			a.logger.Debug("using pin file", "path", p.Path, "python", p.Python)
			python = p.Python
			buildDate = orDefault(buildDate, p.BuildDate)
			venvName = orDefault(venvName, p.Venv)
		case !errors.Is(err, pin.ErrNotFound):
			return nil, "", err
		}
	}

	inst, err := m.GetOrInstall(ctx, python, buildDate)
	if err != nil {
		return nil, "", err
	}
	return inst, venvName, nil
}

// resolveRuntime returns the instance or the environment inside it that sel
// names. label describes the choice for messages.
func (a *App) resolveRuntime(ctx context.Context, m *manager.Manager, sel *selection) (runtime.InteractiveRuntime, string, error) {
	label := "Python " + orDefault(sel.python, a.cfg.DefaultVersion)
	inst, venvName, err := a.resolveInstance(ctx, m, sel)
	if err != nil {
		return nil, label, err
	}
	label = "Python " + inst.Record.Version
	if venvName == "" {
		return inst, label, nil
	}
	env, err := inst.Environments().GetOrCreate(ctx, venvName, false)
	if err != nil {
		return nil, label + " environment " + venvName, err
	}
	return env.Interpreter, label + " (" + venvName + ")", nil
}

func (a *App) runInterpreter(ctx context.Context, sel *selection, opts *runOptions, args []string) error {
	m, err := a.openManager()
	if err != nil {
		return a.fail("open runtime store", a.cfg.RootDir.String(), err)
	}
	defer func() { _ = m.Close() }()

	rt, label, err := a.resolveRuntime(ctx, m, sel)
	if err != nil {
		return a.fail("prepare "+label, m.Platform().TargetTriple, err)
	}

	env, err := opts.env()
	if err != nil {
		return a.fail("load environment", strings.Join(opts.envFiles, ", "), err)
	}
	callOpts := []runtime.CallOption{
		runtime.WithEnv(env),
		runtime.WithOutputHandlers(
			func(line string) { _, _ = fmt.Fprintln(a.stdout, line) },
			func(line string) { _, _ = fmt.Fprintln(a.stderr, line) },
		),
	}
	if opts.timeout > 0 {
		callOpts = append(callOpts, runtime.WithTimeout(opts.timeout))
	}
	if opts.workDir != "" {
		callOpts = append(callOpts, runtime.WithWorkDir(opts.workDir))
	}
	if !isTerminal(a.stdin) {
		callOpts = append(callOpts, runtime.WithStdin(stdinLines(a.stdin)))
	}

	var res *runtime.Result
	if len(args) > 0 && isScript(args[0]) {
		res, err = rt.RunScript(ctx, args[0], args[1:], callOpts...)
	} else {
		res, err = rt.ExecuteCommand(ctx, args, callOpts...)
	}
	if err != nil {
		return a.fail("run "+label, strings.Join(args, " "), err)
	}
	if !res.Success() {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// stdinLines forwards r line by line. The scan runs in its own goroutine so
// the supplier can give up once the process has exited.
func stdinLines(r io.Reader) runtime.StdinSupplier {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return func(ctx context.Context) (string, bool) {
		select {
		case line, ok := <-lines:
			return line, ok
		case <-ctx.Done():
			return "", false
		}
	}
}

func isScript(arg string) bool {
	if !strings.HasSuffix(arg, ".py") {
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && info.Mode().IsRegular()
}
