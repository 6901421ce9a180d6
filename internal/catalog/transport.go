// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"net/http"
)

// Decisions returned by Decide.
const (
	// Propagate returns the error to the caller without trying other transports.
	Propagate Decision = iota
	// TryNext hands the request to the next transport.
	TryNext
)

type (
	// Transport fetches release metadata from the remote index.
	Transport interface {
		Name() string
		ListReleases(ctx context.Context) ([]Release, error)
		LatestRelease(ctx context.Context) (*Release, error)
		ReleaseByTag(ctx context.Context, tag string) (*Release, error)
	}

	// Decision tells the transport chain what to do with a failure.
	Decision int
)

// Decide is the fallback decision table:
//
//	caller context done          -> Propagate
//	rate limit                   -> Propagate
//	HTTP 4xx                     -> Propagate
//	HTTP 5xx                     -> TryNext
//	client fault (no response)   -> TryNext
func Decide(ctx context.Context, err error) Decision {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Propagate
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return Propagate
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= http.StatusInternalServerError {
			return TryNext
		}
		return Propagate
	}

	return TryNext
}

// String returns a short name for the decision.
func (d Decision) String() string {
	if d == TryNext {
		return "try-next"
	}
	return "propagate"
}
