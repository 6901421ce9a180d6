// SPDX-License-Identifier: MPL-2.0

//go:build windows

package venv

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isLockError reports whether err is a transient "file in use" failure.
// Windows refuses to delete files another process still has open.
func isLockError(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_ACCESS_DENIED)
}
