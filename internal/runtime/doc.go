// SPDX-License-Identifier: MPL-2.0

// Package runtime executes interpreter processes.
//
// Core is the process execution core: it runs an executable with a discrete
// argument list (never through a shell), streams stdout/stderr line by line
// to optional handlers while always accumulating both streams, feeds stdin
// from an optional supplier, and merges the caller's context with a per-call
// timeout into a single cancellation condition that kills the process tree.
//
// A non-zero exit status is a normal Result, not an error. Execute only
// returns an error when the process could not be started or was cancelled.
//
// Interpreter binds a Core to one interpreter executable and implements the
// backend-agnostic Runtime interface used by instance handles and
// sub-environments.
package runtime
