// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v66/github"
)

// TransportGitHub names the structured GitHub API transport.
const TransportGitHub = "github"

// GitHubTransport reads releases through the go-github client.
type GitHubTransport struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubTransport creates the structured transport. It accepts the same
// options as NewRESTClient.
func NewGitHubTransport(opts ...ClientOption) (*GitHubTransport, error) {
	cfg := newClientConfig(opts)

	client := github.NewClient(cfg.httpClient)
	if cfg.token != "" {
		client = client.WithAuthToken(cfg.token)
	}
	client.UserAgent = cfg.userAgent

	if cfg.baseURL != DefaultAPIURL {
		base, err := url.Parse(cfg.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", cfg.baseURL, err)
		}
		client.BaseURL = base
	}

	return &GitHubTransport{client: client, owner: cfg.owner, repo: cfg.repo}, nil
}

// Name implements Transport.
func (g *GitHubTransport) Name() string { return TransportGitHub }

// ListReleases implements Transport.
func (g *GitHubTransport) ListReleases(ctx context.Context) ([]Release, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []Release
	for page := 0; page < maxPages; page++ {
		releases, resp, err := g.client.Repositories.ListReleases(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, g.wrap("list releases", err)
		}
		for _, r := range releases {
			all = append(all, fromGitHub(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// LatestRelease implements Transport.
func (g *GitHubTransport) LatestRelease(ctx context.Context) (*Release, error) {
	r, _, err := g.client.Repositories.GetLatestRelease(ctx, g.owner, g.repo)
	if err != nil {
		return nil, g.wrap("get latest release", err)
	}
	rel := fromGitHub(r)
	return &rel, nil
}

// ReleaseByTag implements Transport.
func (g *GitHubTransport) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	r, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		return nil, g.wrap("get release "+tag, err)
	}
	rel := fromGitHub(r)
	return &rel, nil
}

// wrap maps go-github errors onto the package error types that Decide
// understands.
func (g *GitHubTransport) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{Limit: rle.Rate.Limit, Remaining: rle.Rate.Remaining, ResetAt: rle.Rate.Reset.Time}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		status := http.StatusForbidden
		if abuse.Response != nil {
			status = abuse.Response.StatusCode
		}
		return &StatusError{Transport: g.Name(), Op: op, StatusCode: status, Err: err}
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		if er.Response.StatusCode == http.StatusNotFound {
			return &StatusError{Transport: g.Name(), Op: op, StatusCode: http.StatusNotFound, Err: ErrReleaseNotFound}
		}
		return &StatusError{Transport: g.Name(), Op: op, StatusCode: er.Response.StatusCode, Err: err}
	}

	return &TransportError{Transport: g.Name(), Op: op, Err: err}
}

func fromGitHub(r *github.RepositoryRelease) Release {
	assets := make([]Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			Size:        int64(a.GetSize()),
			UpdatedAt:   a.GetUpdatedAt().Time,
		})
	}
	return Release{
		ID:          r.GetID(),
		TagName:     r.GetTagName(),
		Name:        r.GetName(),
		Draft:       r.GetDraft(),
		Prerelease:  r.GetPrerelease(),
		PublishedAt: r.GetPublishedAt().Time,
		Assets:      assets,
	}
}
