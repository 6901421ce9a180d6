// SPDX-License-Identifier: MPL-2.0

// Package platform describes the host the manager runs on.
//
// A Descriptor is derived once per process from runtime.GOOS, runtime.GOARCH
// and (on Linux) the detected C library. Its TargetTriple is the identifier
// distribution archives embed in their file names, for example
// "x86_64-unknown-linux-gnu" or "aarch64-apple-darwin".
//
// The package also knows the interpreter layout of an installed runtime and
// of a derived sub-environment on each OS, and rejects directory names that
// cannot exist on Windows.
package platform
