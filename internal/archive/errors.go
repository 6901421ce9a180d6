// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when an archive cannot be unpacked on this host.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrExtractionFailed is returned when an archive could not be unpacked.
	ErrExtractionFailed = errors.New("archive extraction failed")
	// ErrVerificationFailed is returned when an unpacked tree lacks the interpreter layout.
	ErrVerificationFailed = errors.New("installation verification failed")
)

type (
	// UnsupportedFormatError reports an unknown extension or a missing tool.
	UnsupportedFormatError struct {
		Name         string
		Format       Format
		MissingTools []string
	}

	// ExtractError describes a failed extraction.
	ExtractError struct {
		Archive string
		Dest    string
		Detail  string
		Err     error
	}

	// VerificationError lists the expected paths missing from an install root.
	VerificationError struct {
		Root    string
		Missing []string
	}
)

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	if len(e.MissingTools) == 0 {
		return fmt.Sprintf("unsupported archive format: %s", e.Name)
	}
	return fmt.Sprintf("unsupported archive format %s for %s: install %s",
		e.Format, e.Name, strings.Join(e.MissingTools, " and "))
}

// Unwrap returns ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// Error implements the error interface.
func (e *ExtractError) Error() string {
	msg := fmt.Sprintf("extract %s into %s", e.Archive, e.Dest)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrExtractionFailed and the cause.
func (e *ExtractError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtractionFailed}
	}
	return []error{ErrExtractionFailed, e.Err}
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("installation at %s is incomplete: missing %s", e.Root, strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrVerificationFailed.
func (e *VerificationError) Unwrap() error { return ErrVerificationFailed }
