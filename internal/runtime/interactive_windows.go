// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

// ExecuteInteractive runs cmd with its standard streams attached directly to
// in and out. Windows has no PTY; the console is inherited instead.
func (c *Core) ExecuteInteractive(ctx context.Context, cmd Command, in *os.File, out io.Writer) (types.ExitCode, error) {
	runCtx, cancel := c.deriveContext(ctx, cmd.Timeout)
	defer cancel()

	ec := c.prepare(runCtx, cmd, false)
	ec.Stdin = in
	ec.Stdout = out
	ec.Stderr = out

	if err := ec.Start(); err != nil {
		return types.ExitCodeNotAvailable, &StartError{Executable: cmd.Executable, Err: err}
	}

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
