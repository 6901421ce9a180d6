// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// perPage is the number of releases fetched per API page.
	perPage = 100

	// maxPages is the upper bound on pagination to avoid runaway requests.
	maxPages = 20

	// maxJSONResponseBytes is the upper bound on JSON API response size (32 MB).
	// Release listings with hundreds of assets per release are large.
	maxJSONResponseBytes = 32 << 20

	// TransportREST names the raw REST transport.
	TransportREST = "rest"
)

type (
	// githubRelease is the JSON wire format for a GitHub Release API response.
	githubRelease struct {
		ID          int64         `json:"id"`
		TagName     string        `json:"tag_name"`
		Name        string        `json:"name"`
		Prerelease  bool          `json:"prerelease"`
		Draft       bool          `json:"draft"`
		PublishedAt time.Time     `json:"published_at"`
		Assets      []githubAsset `json:"assets"`
	}

	// githubAsset is the JSON wire format for a GitHub Release asset.
	githubAsset struct {
		ID                 int64     `json:"id"`
		Name               string    `json:"name"`
		BrowserDownloadURL string    `json:"browser_download_url"`
		Size               int64     `json:"size"`
		UpdatedAt          time.Time `json:"updated_at"`
	}

	// RESTClient talks to the GitHub Releases REST endpoints with plain
	// net/http. It is the fallback transport and the asset downloader.
	RESTClient struct {
		cfg clientConfig
	}
)

// NewRESTClient creates a RESTClient. Defaults: the python-build-standalone
// repository on api.github.com with http.DefaultClient.
func NewRESTClient(opts ...ClientOption) *RESTClient {
	return &RESTClient{cfg: newClientConfig(opts)}
}

// Name implements Transport.
func (c *RESTClient) Name() string { return TransportREST }

// ListReleases implements Transport. Pagination follows the Link header up
// to maxPages.
func (c *RESTClient) ListReleases(ctx context.Context) ([]Release, error) {
	const op = "list releases"
	pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.cfg.baseURL, c.cfg.owner, c.cfg.repo, perPage)

	var all []Release
	for page := 0; page < maxPages && pageURL != ""; page++ {
		resp, err := c.doRequest(ctx, pageURL)
		if err != nil {
			return nil, c.fault(op, err)
		}

		if err := c.checkResponse(op, resp); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}

		var raw []githubRelease
		decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&raw)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return nil, c.fault(op, fmt.Errorf("decoding releases: %w", decodeErr))
		}
		for _, gr := range raw {
			all = append(all, toRelease(gr))
		}

		pageURL = parseLinkHeader(resp.Header.Get("Link"))
	}
	return all, nil
}

// LatestRelease implements Transport.
func (c *RESTClient) LatestRelease(ctx context.Context) (*Release, error) {
	return c.getRelease(ctx, "get latest release",
		fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.cfg.baseURL, c.cfg.owner, c.cfg.repo))
}

// ReleaseByTag implements Transport. It returns ErrReleaseNotFound if the
// tag does not correspond to a release.
func (c *RESTClient) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	return c.getRelease(ctx, "get release "+tag,
		fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.cfg.baseURL, c.cfg.owner, c.cfg.repo, url.PathEscape(tag)))
}

// DownloadAsset opens the file at assetURL and returns the streaming body and
// its advertised length (-1 when unknown). The caller closes the body.
func (c *RESTClient) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	op := "download " + redactURL(assetURL)
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, 0, c.fault(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, &StatusError{Transport: c.Name(), Op: op, StatusCode: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *RESTClient) getRelease(ctx context.Context, op, reqURL string) (*Release, error) {
	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, c.fault(op, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := c.checkResponse(op, resp); err != nil {
		return nil, err
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, c.fault(op, fmt.Errorf("decoding response: %w", err))
	}
	r := toRelease(gr)
	return &r, nil
}

// doRequest creates and executes a GET request with common GitHub API headers.
func (c *RESTClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.cfg.userAgent)

	// Only attach the auth token when the request targets a known GitHub host.
	// This prevents token leakage if a download URL redirects to a third-party CDN.
	if c.cfg.token != "" && isGitHubHost(req.URL, c.cfg.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.cfg.token)
	}

	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkResponse maps a non-200 response onto the package error types.
func (c *RESTClient) checkResponse(op string, resp *http.Response) error {
	if rlErr := checkRateLimit(resp); rlErr != nil {
		return rlErr
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &StatusError{Transport: c.Name(), Op: op, StatusCode: resp.StatusCode, Err: ErrReleaseNotFound}
	default:
		return &StatusError{Transport: c.Name(), Op: op, StatusCode: resp.StatusCode}
	}
}

func (c *RESTClient) fault(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransportError{Transport: c.Name(), Op: op, Err: err}
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero on a 403/429 response.
func checkRateLimit(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	// Best-effort header parsing; malformed values default to zero.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the URL for the "next" page from a GitHub API Link header.
// Returns an empty string if no next page exists.
//
// Example header: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkHeader(header string) string {
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

func toRelease(gr githubRelease) Release {
	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset{
			ID:          ga.ID,
			Name:        ga.Name,
			DownloadURL: ga.BrowserDownloadURL,
			Size:        ga.Size,
			UpdatedAt:   ga.UpdatedAt,
		})
	}
	return Release{
		ID:          gr.ID,
		TagName:     gr.TagName,
		Name:        gr.Name,
		Draft:       gr.Draft,
		Prerelease:  gr.Prerelease,
		PublishedAt: gr.PublishedAt,
		Assets:      assets,
	}
}

// isGitHubHost reports whether reqURL targets a known GitHub host, so the auth
// token can be safely attached. It matches the configured API base URL host and,
// when the base is api.github.com, also trusts github.com for asset downloads.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}

// redactURL strips credentials, query parameters and fragments from a URL
// for safe inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
