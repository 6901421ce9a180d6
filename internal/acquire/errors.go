// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"errors"
	"fmt"
)

var (
	// ErrDownloadFailed is returned when an asset could not be fetched.
	ErrDownloadFailed = errors.New("download failed")
	// ErrChecksumMismatch indicates the computed SHA256 hash does not match the published one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

type (
	// StageError attaches the request context and the failing state to an
	// acquisition error.
	StageError struct {
		State     State
		Version   string
		BuildDate string
		Platform  string
		Err       error
	}

	// DownloadError describes a failed download after all retries.
	DownloadError struct {
		Asset    string
		Attempts int
		Err      error
	}

	// ChecksumError provides details about a checksum verification failure.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error implements the error interface.
func (e *StageError) Error() string {
	date := e.BuildDate
	if date == "" {
		date = "latest build"
	}
	return fmt.Sprintf("acquire python %s (%s, %s): %s: %v", e.Version, date, e.Platform, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.Asset, e.Attempts, e.Err)
}

// Unwrap exposes ErrDownloadFailed and the last cause.
func (e *DownloadError) Unwrap() []error { return []error{ErrDownloadFailed, e.Err} }

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
