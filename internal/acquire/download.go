// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pyrt-dev/pyrt/internal/catalog"
)

// chunkSize is the read size of the download loop; cancellation and
// progress are checked once per chunk.
const chunkSize = 64 << 10

type (
	// Downloader opens a streaming body for an asset URL and reports its
	// advertised length (-1 when unknown). catalog.RESTClient implements it.
	Downloader interface {
		DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
	}

	// RetryPolicy controls download retries. Only network faults and 5xx
	// responses are retried.
	RetryPolicy struct {
		Attempts    int
		Delay       time.Duration
		Exponential bool
	}

	// bodyError marks a failure while reading the response body, which is a
	// network fault and therefore retryable.
	bodyError struct{ err error }
)

// DefaultRetryPolicy makes three attempts with exponential backoff from one second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second, Exponential: true}

func (e *bodyError) Error() string { return "reading response body: " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

func (r RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if r.Exponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = r.Delay
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(r.Delay)
	}
	retries := max(r.Attempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// retryable reports whether a download error may succeed on another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *catalog.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	var te *catalog.TransportError
	var be *bodyError
	return errors.As(err, &te) || errors.As(err, &be)
}

// download streams asset into dest, retrying per policy, and returns the
// hex SHA256 of the bytes written.
func (p *Pipeline) download(ctx context.Context, asset catalog.Asset, dest string, report func(done, total int64)) (string, error) {
	var (
		attempts int
		sum      string
	)
	op := func() error {
		attempts++
		s, err := p.downloadOnce(ctx, asset, dest, report)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		sum = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("download attempt failed, retrying", "asset", asset.Name, "attempt", attempts, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, p.retry.backOff(ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(ctxErr, err)
		}
		return "", &DownloadError{Asset: asset.Name, Attempts: attempts, Err: err}
	}
	return sum, nil
}

func (p *Pipeline) downloadOnce(ctx context.Context, asset catalog.Asset, dest string, report func(done, total int64)) (_ string, err error) {
	body, total, err := p.downloader.DownloadAsset(ctx, asset.DownloadURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	if total <= 0 && asset.Size > 0 {
		total = asset.Size
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", dest, closeErr)
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(f, h)
	buf := make([]byte, chunkSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("writing %s: %w", dest, err)
			}
			done += int64(n)
			report(done, total)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", &bodyError{err: readErr}
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
