// SPDX-License-Identifier: MPL-2.0

// Package store persists install metadata for runtime instances.
//
// Every instance directory under the store root carries its own metadata
// file (instance.json). A process-wide index (index.json) at the root lists
// the known instances so listings do not need to walk the tree; it can be
// rebuilt from the per-instance files at any time. Writes are serialized by
// an in-process mutex and an advisory file lock shared with other processes
// using the same root.
package store
