// SPDX-License-Identifier: MPL-2.0

package venv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pyrt-dev/pyrt/pkg/types"
)

var (
	// ErrEnvironmentNotFound is returned when no valid environment has the name.
	ErrEnvironmentNotFound = errors.New("environment not found")
	// ErrCreateFailed is returned when the interpreter could not build an environment.
	ErrCreateFailed = errors.New("environment creation failed")
	// ErrDeleteFailed is returned when an environment directory could not be removed.
	ErrDeleteFailed = errors.New("environment deletion failed")
)

type (
	// NotFoundError names the missing environment.
	NotFoundError struct {
		Name string
	}

	// CreateError describes a failed "-m venv" invocation.
	CreateError struct {
		Name     string
		Path     string
		ExitCode types.ExitCode
		Stderr   string
		Err      error
	}

	// DeleteError describes a deletion that failed after all retries.
	DeleteError struct {
		Name     string
		Path     string
		Attempts int
		Err      error
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string { return fmt.Sprintf("environment %q not found", e.Name) }

// Unwrap returns ErrEnvironmentNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrEnvironmentNotFound }

// Error implements the error interface.
func (e *CreateError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("create environment %q at %s: %v", e.Name, e.Path, e.Err)
	case strings.TrimSpace(e.Stderr) != "":
		return fmt.Sprintf("create environment %q at %s: interpreter exited with status %s: %s",
			e.Name, e.Path, e.ExitCode, strings.TrimSpace(e.Stderr))
	default:
		return fmt.Sprintf("create environment %q at %s: interpreter exited with status %s", e.Name, e.Path, e.ExitCode)
	}
}

// Unwrap exposes ErrCreateFailed and the cause, if any.
func (e *CreateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCreateFailed}
	}
	return []error{ErrCreateFailed, e.Err}
}

// Error implements the error interface.
func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete environment %q at %s after %d attempt(s): %v", e.Name, e.Path, e.Attempts, e.Err)
}

// Unwrap exposes ErrDeleteFailed and the last cause.
func (e *DeleteError) Unwrap() []error { return []error{ErrDeleteFailed, e.Err} }
