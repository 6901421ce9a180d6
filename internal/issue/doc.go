// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and Markdown help pages for
// failures a user can fix on their own, such as a missing archive tool, an
// exhausted API rate limit or an unsupported host.
package issue
