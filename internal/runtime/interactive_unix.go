// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

// ExecuteInteractive runs cmd attached to a pseudo-terminal wired to in and
// out. When in is a terminal it is switched to raw mode for the duration of
// the call and the PTY inherits its size. Output is not captured and the
// line handlers of cmd are ignored.
func (c *Core) ExecuteInteractive(ctx context.Context, cmd Command, in *os.File, out io.Writer) (types.ExitCode, error) {
	runCtx, cancel := c.deriveContext(ctx, cmd.Timeout)
	defer cancel()

	// pty.Start makes the child a session leader, which also gives it its
	// own process group.
	ec := c.prepare(runCtx, cmd, false)
	ptmx, err := pty.Start(ec)
	if err != nil {
		return types.ExitCodeNotAvailable, &StartError{Executable: cmd.Executable, Err: err}
	}
	defer func() { _ = ptmx.Close() }()

	if fd := int(in.Fd()); term.IsTerminal(fd) {
		_ = pty.InheritSize(in, ptmx)
		if state, err := term.MakeRaw(fd); err == nil {
			defer func() { _ = term.Restore(fd, state) }()
		}
	}

	go func() { _, _ = io.Copy(ptmx, in) }()
	// Reading the master side fails with EIO once the child exits.
	_, _ = io.Copy(out, ptmx)

	waitErr := ec.Wait()
	code := types.ExitCodeNotAvailable
	if ec.ProcessState != nil {
		code = types.ExitCode(ec.ProcessState.ExitCode())
	}
	if waitErr != nil && runCtx.Err() != nil {
		return code, c.canceled(runCtx, cmd, &Result{ExitCode: code})
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return code, waitErr
	}
	return code, nil
}
