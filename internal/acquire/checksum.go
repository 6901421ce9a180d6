// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pyrt-dev/pyrt/internal/catalog"
)

const (
	// sumsFileName is the release-wide checksum manifest.
	sumsFileName = "SHA256SUMS"
	// sidecarSuffix marks a per-asset checksum file.
	sidecarSuffix = ".sha256"

	maxChecksumBytes = 4 << 20
)

// checksumSource returns the asset carrying the published hash for name:
// a "<name>.sha256" sidecar first, then the release-wide SHA256SUMS.
func checksumSource(rel catalog.Release, name string) (catalog.Asset, bool) {
	var sums catalog.Asset
	var haveSums bool
	for _, a := range rel.Assets {
		switch a.Name {
		case name + sidecarSuffix:
			return a, true
		case sumsFileName:
			sums, haveSums = a, true
		}
	}
	return sums, haveSums
}

// fetchChecksum downloads the checksum asset and returns the hash for name.
// ok is false when the file lists no hash for name.
func fetchChecksum(ctx context.Context, d Downloader, src catalog.Asset, name string) (string, bool, error) {
	body, _, err := d.DownloadAsset(ctx, src.DownloadURL)
	if err != nil {
		return "", false, fmt.Errorf("downloading %s: %w", src.Name, err)
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	hash, ok, err := parseChecksum(io.LimitReader(body, maxChecksumBytes), name)
	if err != nil {
		return "", false, fmt.Errorf("parsing %s: %w", src.Name, err)
	}
	return hash, ok, nil
}

// parseChecksum reads sha256sum output ("{hash}  {filename}", optionally
// with a "*" binary marker) or a bare hash as written in sidecar files.
func parseChecksum(r io.Reader, name string) (string, bool, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		switch {
		case len(fields) == 1 && isValidHexHash(fields[0]):
			return strings.ToLower(fields[0]), true, nil
		case len(fields) == 2 && isValidHexHash(fields[0]) && strings.TrimPrefix(fields[1], "*") == name:
			return strings.ToLower(fields[0]), true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading checksums: %w", err)
	}
	return "", false, nil
}

// isValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
