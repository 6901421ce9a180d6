// SPDX-License-Identifier: MPL-2.0

// Package venv manages isolated sub-environments of an installed instance.
//
// Environments live in the instance's venvs/ directory, one directory per
// name, and are created by the instance's own interpreter ("-m venv"). A
// directory only counts as an environment when it holds the platform's
// environment interpreter; anything else is treated as absent. Externally
// created environments can be registered by path and are never deleted from
// disk, only unregistered.
package venv
