// SPDX-License-Identifier: MPL-2.0

// Package manager is the entry point for embedding pyrt.
//
// A Manager is opened from a configuration snapshot and owns every shared
// resource derived from it: the instance store, the release catalog with its
// cache, the HTTP client used for catalog requests and downloads, and the
// process core. Callers Close it when done; there is no package-level state.
//
// Instances returned by a Manager are handles bound to one installed runtime.
// They run the interpreter, drive its package installer and manage its
// sub-environments.
package manager
