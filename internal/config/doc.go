// SPDX-License-Identifier: MPL-2.0

// Package config loads the manager configuration using Viper with CUE as the
// file format.
//
// Values come from, in increasing precedence: built-in defaults, config.cue
// (from the platform config directory, or the current directory when the
// former has none), and PYRT_* environment variables. The file is validated
// against an embedded CUE schema before it is merged; the merged result is
// validated again with struct tags so environment overrides cannot bypass
// the rules.
//
// A loaded Config is a value: components receive copies and never observe
// later changes.
package config
