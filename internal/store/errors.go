// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInstanceNotFound is returned when no record matches a lookup.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrMetadataCorrupt is returned when a record exists but its metadata
	// or directory cannot be read.
	ErrMetadataCorrupt = errors.New("instance metadata corrupt")
)

type (
	// NotFoundError names the lookup that found nothing.
	NotFoundError struct {
		Version   string
		BuildDate string
	}

	// CorruptError describes an unreadable record.
	CorruptError struct {
		Path   string
		Reason string
		Err    error
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.BuildDate == "" {
		return fmt.Sprintf("no installed instance for version %s", e.Version)
	}
	return fmt.Sprintf("no installed instance for version %s built %s", e.Version, e.BuildDate)
}

// Unwrap returns ErrInstanceNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrInstanceNotFound }

// Error implements the error interface.
func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt instance metadata at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt instance metadata at %s: %s", e.Path, e.Reason)
}

// Unwrap exposes both ErrMetadataCorrupt and the underlying cause.
func (e *CorruptError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMetadataCorrupt}
	}
	return []error{ErrMetadataCorrupt, e.Err}
}
