// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

// DefaultWaitDelay bounds how long Execute waits for output pipes to drain
// after the process has exited or been killed.
const DefaultWaitDelay = 2 * time.Second

// errTimeoutCause marks a context that ended because of the per-call timeout.
var errTimeoutCause = errors.New("per-call timeout elapsed")

type (
	// Core runs processes. It holds no per-call state and is safe for
	// concurrent use.
	Core struct {
		logger         *log.Logger
		defaultTimeout time.Duration
		waitDelay      time.Duration
	}

	// CoreOption configures a Core.
	CoreOption func(*Core)
)

// WithLogger sets the logger used for execution traces.
func WithLogger(l *log.Logger) CoreOption {
	return func(c *Core) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaultTimeout applies d to every call that does not set its own timeout.
// Zero disables the default.
func WithDefaultTimeout(d time.Duration) CoreOption {
	return func(c *Core) {
		c.defaultTimeout = d
	}
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) CoreOption {
	return func(c *Core) {
		c.waitDelay = d
	}
}

// NewCore creates a Core.
func NewCore(opts ...CoreOption) *Core {
	c := &Core{
		logger:    log.New(io.Discard),
		waitDelay: DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs cmd and waits for it to exit.
//
// The returned error is nil whenever the process ran to completion, whatever
// its exit status. A *StartError is returned when the process could not be
// started and a *CanceledError when ctx or the timeout ended it; in the latter
// case the partial Result is returned as well.
func (c *Core) Execute(ctx context.Context, cmd Command) (*Result, error) {
	runCtx, cancel := c.deriveContext(ctx, cmd.Timeout)
	defer cancel()

	if runCtx.Err() != nil {
		result := &Result{ExitCode: types.ExitCodeNotAvailable}
		return result, c.canceled(runCtx, cmd, result)
	}

	id := uuid.NewString()[:8]
	ec := c.prepare(runCtx, cmd, true)
	stdout := newLineWriter(cmd.OnStdout)
	stderr := newLineWriter(cmd.OnStderr)
	ec.Stdout = stdout
	ec.Stderr = stderr

	var stdin io.WriteCloser
	if cmd.Stdin != nil {
		pipe, err := ec.StdinPipe()
		if err != nil {
			return nil, &StartError{Executable: cmd.Executable, Err: err}
		}
		stdin = pipe
	}

	c.logger.Debug("exec", "id", id, "argv", shellquote.Join(append([]string{cmd.Executable}, cmd.Args...)...), "dir", ec.Dir)

	started := time.Now()
	if err := ec.Start(); err != nil {
		if stdin != nil {
			_ = stdin.Close()
		}
		return nil, &StartError{Executable: cmd.Executable, Err: err}
	}

	if cmd.Priority != PriorityNormal {
		if err := setPriority(ec.Process.Pid, cmd.Priority); err != nil {
			c.logger.Warn("could not set process priority", "id", id, "priority", int(cmd.Priority), "error", err)
		}
	}

	feedCtx, stopFeed := context.WithCancel(runCtx)
	if stdin != nil {
		go feedStdin(feedCtx, stdin, cmd.Stdin)
	}

	waitErr := ec.Wait()
	stopFeed()
	stdout.flush()
	stderr.flush()

	result := &Result{
		ExitCode: types.ExitCodeNotAvailable,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if ec.ProcessState != nil {
		result.ExitCode = types.ExitCode(ec.ProcessState.ExitCode())
	}

	if waitErr != nil && runCtx.Err() != nil {
		c.logger.Debug("exec canceled", "id", id, "duration", result.Duration, "cause", context.Cause(runCtx))
		return result, c.canceled(runCtx, cmd, result)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		c.logger.Debug("output pipes held open after exit", "id", id)
	default:
		return result, waitErr
	}

	c.logger.Debug("exited", "id", id, "code", result.ExitCode, "duration", result.Duration)
	return result, nil
}

// deriveContext merges ctx with the effective timeout into one cancellation
// condition. The returned cancel func must always be called.
func (c *Core) deriveContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, timeout, errTimeoutCause)
}

func (c *Core) canceled(runCtx context.Context, cmd Command, result *Result) error {
	return &CanceledError{
		Executable: cmd.Executable,
		TimedOut:   errors.Is(context.Cause(runCtx), errTimeoutCause),
		Result:     result,
	}
}

// prepare builds the exec.Cmd shared by Execute and ExecuteInteractive.
// ownGroup places the child in its own process group so that cancellation
// reaches its descendants too.
func (c *Core) prepare(ctx context.Context, cmd Command, ownGroup bool) *exec.Cmd {
	ec := exec.CommandContext(ctx, cmd.Executable, cmd.Args...)
	ec.Dir = cmd.WorkDir
	ec.Env = mergeEnv(os.Environ(), cmd.Env)
	ec.WaitDelay = c.waitDelay
	if ownGroup {
		setProcessGroup(ec)
	}
	ec.Cancel = func() error {
		return killProcessTree(ec.Process)
	}
	return ec
}

// feedStdin polls supplier until it reports the end of input or ctx ends,
// then closes stdin.
func feedStdin(ctx context.Context, w io.WriteCloser, supplier StdinSupplier) {
	defer func() { _ = w.Close() }()
	for ctx.Err() == nil {
		line, ok := supplier(ctx)
		if !ok {
			return
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return
		}
	}
}
