// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"time"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

// Result is the outcome of a process that ran to completion.
type Result struct {
	// ExitCode is the process exit status. A non-zero value is not an error.
	ExitCode types.ExitCode
	// Stdout holds everything the process wrote to stdout.
	Stdout string
	// Stderr holds everything the process wrote to stderr.
	Stderr string
	// Duration is the wall-clock time between start and exit.
	Duration time.Duration
}

// Success returns true if the process exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode.IsSuccess()
}
