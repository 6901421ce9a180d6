// SPDX-License-Identifier: MPL-2.0

// Package acquire installs runtime instances.
//
// A Pipeline walks one acquisition through a fixed sequence of states:
// check the store for an existing instance, resolve an asset from the
// release catalog, download it into a private temporary directory, extract
// it, locate the install root inside the archive, verify the layout, run an
// optional smoke test and persist the instance record. The temporary
// directory is removed whatever state the acquisition ends in.
//
// Concurrent acquisitions of the same request share one in-flight install,
// and the extract-to-persist sequence is serialized per (version, build
// date) so two requests that resolve to the same asset never write the
// same directory at once.
package acquire
