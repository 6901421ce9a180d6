// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReleaseNotFound is returned when a requested release tag does not exist.
	ErrReleaseNotFound = errors.New("release not found")
	// ErrNoMatchingAsset is returned when no release provides an archive for
	// the requested version, build date and platform.
	ErrNoMatchingAsset = errors.New("no matching distribution asset")
	// ErrNoTransport is returned by a Catalog configured without transports.
	ErrNoTransport = errors.New("no release transport configured")
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// StatusError is an HTTP error response from the release index.
	StatusError struct {
		Transport  string
		Op         string
		StatusCode int
		Err        error
	}

	// TransportError is a client-side fault: the request never produced an
	// HTTP response, or the response could not be decoded.
	TransportError struct {
		Transport string
		Op        string
		Err       error
	}

	// NoMatchError describes a resolution that found nothing.
	NoMatchError struct {
		Version   string
		BuildDate string
		Platform  string
	}
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: unexpected status %d", e.Transport, e.Op, e.StatusCode)
}

// Unwrap returns the underlying error, if any.
func (e *StatusError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Transport, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *NoMatchError) Error() string {
	msg := fmt.Sprintf("no distribution found for Python %s on %s", e.Version, e.Platform)
	if e.BuildDate != "" {
		msg += fmt.Sprintf(" with build date %s", e.BuildDate)
	}
	return msg
}

// Unwrap returns ErrNoMatchingAsset.
func (e *NoMatchError) Unwrap() error { return ErrNoMatchingAsset }
