// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrStartFailed is returned when a process could not be started at all.
	ErrStartFailed = errors.New("process could not be started")
	// ErrCanceled is returned when the caller's context ends a running process.
	ErrCanceled = errors.New("process canceled")
	// ErrTimedOut is returned when the per-call timeout ends a running process.
	ErrTimedOut = errors.New("process timed out")
	// ErrInterpreterMissing is returned by Validate when the interpreter file is absent.
	ErrInterpreterMissing = errors.New("interpreter executable not found")
)

type (
	// StartError reports a process that never ran, for example because the
	// executable does not exist or is not executable.
	StartError struct {
		Executable string
		Err        error
	}

	// CanceledError reports a process that was killed because the combined
	// cancellation condition fired. Result holds whatever output was captured
	// before the kill.
	CanceledError struct {
		Executable string
		TimedOut   bool
		Result     *Result
	}
)

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Executable, e.Err)
}

// Unwrap exposes both ErrStartFailed and the underlying cause.
func (e *StartError) Unwrap() []error { return []error{ErrStartFailed, e.Err} }

// Error implements the error interface.
func (e *CanceledError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: timed out", e.Executable)
	}
	return fmt.Sprintf("%s: canceled", e.Executable)
}

// Unwrap returns ErrTimedOut or ErrCanceled.
func (e *CanceledError) Unwrap() error {
	if e.TimedOut {
		return ErrTimedOut
	}
	return ErrCanceled
}
