// SPDX-License-Identifier: MPL-2.0

// Package catalog queries the remote release index of prebuilt interpreter
// distributions and selects the single archive to install for a requested
// version, optional build date and host platform.
//
// Releases are fetched through an ordered list of transports. The primary
// transport is a structured GitHub API client; the fallback speaks to the
// same REST endpoints directly. A failing transport hands over to the next
// one only for client faults (network, decoding) and 5xx responses. 4xx
// responses, including rate limiting, are returned immediately because the
// fallback would hit the same authorization wall. See Decide.
//
// Release listings go through an injected Cache (no-op by default).
package catalog
