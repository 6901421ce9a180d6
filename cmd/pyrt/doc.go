// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pyrt command-line interface.
//
// The Cobra command tree is built by NewRootCommand around an App, the
// composition root holding the configuration provider and the standard
// streams. Every command that touches installed runtimes opens a
// manager.Manager for the duration of the call and closes it on return.
package cmd
