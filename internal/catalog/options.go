// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultOwner and DefaultRepo name the python-build-standalone project.
	DefaultOwner = "astral-sh"
	DefaultRepo  = "python-build-standalone"
	// DefaultAPIURL is the GitHub REST API root.
	DefaultAPIURL = "https://api.github.com"

	defaultUserAgent = "pyrt"
)

type (
	// clientConfig is shared by both transports so they talk to the same
	// repository with the same credentials.
	clientConfig struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string
		token      string
		userAgent  string
	}

	// ClientOption configures a transport during construction.
	ClientOption func(*clientConfig)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *clientConfig) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *clientConfig) {
		if base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets a GitHub personal access token for authenticated requests.
// Authenticated requests have a higher rate limit (5000/hour vs 60/hour).
func WithToken(token string) ClientOption {
	return func(g *clientConfig) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *clientConfig) {
		g.userAgent = ua
	}
}

// WithRepo overrides the default repository owner and name.
func WithRepo(owner, repo string) ClientOption {
	return func(g *clientConfig) {
		if owner != "" {
			g.owner = owner
		}
		if repo != "" {
			g.repo = repo
		}
	}
}

func newClientConfig(opts []ClientOption) clientConfig {
	c := clientConfig{
		httpClient: http.DefaultClient,
		owner:      DefaultOwner,
		repo:       DefaultRepo,
		baseURL:    DefaultAPIURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewHTTPClient returns an HTTP client that routes through proxyURL when it
// is non-empty. A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", redactURL(proxyURL))
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
