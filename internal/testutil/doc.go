// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: Must* wrappers
// that fail the test on error and builders for fake interpreter trees and
// distribution archives.
package testutil
