// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

// NameSubprocess is the name reported by Interpreter.
const NameSubprocess = "subprocess"

// VersionProbeTimeout bounds Interpreter.Version.
const VersionProbeTimeout = 10 * time.Second

type (
	// Runtime is an execution backend for one interpreter. Instance handles
	// and sub-environments depend on this interface only, so a backend that
	// does not spawn processes can be substituted.
	Runtime interface {
		// Name returns the backend name.
		Name() string
		// Available reports whether the backend can run on this host right now.
		Available() bool
		// Validate returns an error describing why the backend cannot run.
		Validate() error
		// ExecuteCommand runs the interpreter with args.
		ExecuteCommand(ctx context.Context, args []string, opts ...CallOption) (*Result, error)
		// RunScript runs a script file with args.
		RunScript(ctx context.Context, script string, args []string, opts ...CallOption) (*Result, error)
		// ExecuteInline runs a code snippet.
		ExecuteInline(ctx context.Context, code string, opts ...CallOption) (*Result, error)
	}

	// InteractiveRuntime is implemented by backends that can attach the
	// interpreter to a terminal.
	InteractiveRuntime interface {
		Runtime

		// Interactive runs the interpreter attached to in and out.
		Interactive(ctx context.Context, in *os.File, out io.Writer, args []string, opts ...CallOption) (types.ExitCode, error)
	}

	// Interpreter runs one interpreter executable through a Core.
	Interpreter struct {
		core *Core
		path string
		base Command
	}
)

// NewInterpreter binds core to the interpreter at path. defaults apply to
// every call before the per-call options.
func NewInterpreter(core *Core, path string, defaults ...CallOption) *Interpreter {
	return &Interpreter{
		core: core,
		path: path,
		base: Command{Executable: path}.apply(defaults),
	}
}

// Name implements Runtime.
func (i *Interpreter) Name() string { return NameSubprocess }

// Path returns the interpreter executable.
func (i *Interpreter) Path() string { return i.path }

// Available implements Runtime.
func (i *Interpreter) Available() bool { return i.Validate() == nil }

// Validate implements Runtime.
func (i *Interpreter) Validate() error {
	info, err := os.Stat(i.path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInterpreterMissing, i.path)
	}
	return nil
}

// ExecuteCommand implements Runtime.
func (i *Interpreter) ExecuteCommand(ctx context.Context, args []string, opts ...CallOption) (*Result, error) {
	cmd := i.base.apply(opts)
	cmd.Args = append(append([]string(nil), cmd.Args...), args...)
	return i.core.Execute(ctx, cmd)
}

// RunScript implements Runtime.
func (i *Interpreter) RunScript(ctx context.Context, script string, args []string, opts ...CallOption) (*Result, error) {
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("script %s: %w", script, err)
	}
	return i.ExecuteCommand(ctx, append([]string{script}, args...), opts...)
}

// ExecuteInline implements Runtime.
func (i *Interpreter) ExecuteInline(ctx context.Context, code string, opts ...CallOption) (*Result, error) {
	return i.ExecuteCommand(ctx, []string{"-c", code}, opts...)
}

// Interactive implements InteractiveRuntime.
func (i *Interpreter) Interactive(ctx context.Context, in *os.File, out io.Writer, args []string, opts ...CallOption) (types.ExitCode, error) {
	cmd := i.base.apply(opts)
	cmd.Args = append(append([]string(nil), cmd.Args...), args...)
	return i.core.ExecuteInteractive(ctx, cmd, in, out)
}

// Version runs the interpreter with --version and returns the reported
// version line. Old interpreters print it on stderr.
func (i *Interpreter) Version(ctx context.Context) (string, error) {
	res, err := i.ExecuteCommand(ctx, []string{"--version"}, WithTimeout(VersionProbeTimeout))
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", fmt.Errorf("%s --version exited with status %s: %s", i.path, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		out = strings.TrimSpace(res.Stderr)
	}
	return out, nil
}
