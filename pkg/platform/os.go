// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// C library flavors used in Linux target triples.
const (
	LibcGNU  = "gnu"
	LibcMusl = "musl"
)
