// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDirName is the sentinel error wrapped by InvalidDirNameError.
var ErrInvalidDirName = errors.New("invalid directory name")

// windowsReservedNames are names reserved by Windows regardless of extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// InvalidDirNameError describes why a sub-environment or instance name was rejected.
type InvalidDirNameError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidDirNameError) Error() string {
	return fmt.Sprintf("invalid directory name %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidDirName for errors.Is() compatibility.
func (e *InvalidDirNameError) Unwrap() error { return ErrInvalidDirName }

// IsWindowsReservedName checks if a filename is a Windows reserved name.
// It handles filenames with extensions by checking just the base name portion.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.LastIndex(upper, "."); idx != -1 {
		upper = upper[:idx]
	}
	return windowsReservedNames[upper]
}

// ValidateDirName rejects names that would escape their parent directory or
// cannot be created on every supported OS. The rules are applied on all hosts
// so that a layout stays portable.
func ValidateDirName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &InvalidDirNameError{Name: name, Reason: "must not be empty"}
	case name == "." || name == "..":
		return &InvalidDirNameError{Name: name, Reason: "must not be a relative path element"}
	case strings.ContainsAny(name, `/\:*?"<>|`):
		return &InvalidDirNameError{Name: name, Reason: `must not contain any of / \ : * ? " < > |`}
	case strings.HasSuffix(name, ".") || strings.HasSuffix(name, " "):
		return &InvalidDirNameError{Name: name, Reason: "must not end with a dot or space"}
	case IsWindowsReservedName(name):
		return &InvalidDirNameError{Name: name, Reason: "reserved on Windows"}
	}
	return nil
}
