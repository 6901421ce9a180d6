// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package venv

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isLockError reports whether err is a transient "file in use" failure.
func isLockError(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ETXTBSY)
}
