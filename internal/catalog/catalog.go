// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/pyrt-dev/pyrt/pkg/platform"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

const releasesCacheKey = "releases"

type (
	// Catalog resolves version requests against the remote release index.
	Catalog struct {
		transports []Transport
		cache      Cache
		logger     *log.Logger
		platform   platform.Descriptor
		platErr    error
	}

	// Option configures a Catalog.
	Option func(*Catalog)
)

// WithTransports sets the ordered transport chain. An empty chain is kept
// as is and makes every lookup fail with ErrNoTransport.
func WithTransports(ts ...Transport) Option {
	return func(c *Catalog) {
		c.transports = append([]Transport{}, ts...)
	}
}

// WithCache sets the release listing cache.
func WithCache(cache Cache) Option {
	return func(c *Catalog) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPlatform overrides the host platform used for asset matching.
func WithPlatform(d platform.Descriptor) Option {
	return func(c *Catalog) {
		c.platform = d
		c.platErr = nil
	}
}

// DefaultTransports returns the structured GitHub transport followed by the
// raw REST fallback, both configured with opts.
func DefaultTransports(opts ...ClientOption) ([]Transport, error) {
	primary, err := NewGitHubTransport(opts...)
	if err != nil {
		return nil, err
	}
	return []Transport{primary, NewRESTClient(opts...)}, nil
}

// New creates a Catalog. Without WithTransports it uses DefaultTransports
// against the public API; without WithPlatform it targets the running host.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		cache:  NoopCache{},
		logger: log.New(io.Discard),
	}
	c.platform, c.platErr = platform.Host()
	for _, opt := range opts {
		opt(c)
	}
	if c.transports == nil {
		c.transports, _ = DefaultTransports()
	}
	return c
}

// Platform returns the descriptor assets are matched against.
func (c *Catalog) Platform() (platform.Descriptor, error) {
	return c.platform, c.platErr
}

// Releases returns all non-draft releases, newest first.
func (c *Catalog) Releases(ctx context.Context) ([]Release, error) {
	if cached, ok := c.cache.Get(releasesCacheKey); ok {
		c.logger.Debug("release listing served from cache", "releases", len(cached))
		return cached, nil
	}

	var releases []Release
	err := c.each(ctx, "list releases", func(t Transport) error {
		rs, err := t.ListReleases(ctx)
		releases = rs
		return err
	})
	if err != nil {
		return nil, err
	}

	releases = slices.DeleteFunc(releases, func(r Release) bool { return r.Draft })
	SortNewestFirst(releases)
	c.cache.Set(releasesCacheKey, releases)
	c.logger.Debug("fetched release listing", "releases", len(releases))
	return releases, nil
}

// LatestRelease returns the most recent published release.
func (c *Catalog) LatestRelease(ctx context.Context) (*Release, error) {
	var rel *Release
	err := c.each(ctx, "get latest release", func(t Transport) error {
		r, err := t.LatestRelease(ctx)
		rel = r
		return err
	})
	return rel, err
}

// ReleaseByTag returns the release with the given tag. The error wraps
// ErrReleaseNotFound when no such release exists.
func (c *Catalog) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var rel *Release
	err := c.each(ctx, "get release "+tag, func(t Transport) error {
		r, err := t.ReleaseByTag(ctx, tag)
		rel = r
		return err
	})
	return rel, err
}

// Resolve turns a version request and optional build date into exactly one
// asset for the host platform. Partial requests ("3.12") resolve to the
// latest published patch release.
func (c *Catalog) Resolve(ctx context.Context, request pyversion.Version, buildDate string) (*Resolution, error) {
	if c.platErr != nil {
		return nil, c.platErr
	}
	triple := c.platform.TargetTriple

	releases, err := c.candidates(ctx, buildDate)
	if err != nil {
		return nil, err
	}

	noMatch := &NoMatchError{Version: request.Request(), BuildDate: buildDate, Platform: triple}

	version := request
	if request.IsPartial() {
		latest, ok := pyversion.Latest(c.versionsFor(releases, buildDate), request)
		if !ok {
			return nil, noMatch
		}
		version = latest
	}

	rel, asset, installOnly, ok := SelectAsset(releases, version, buildDate, triple)
	if !ok {
		return nil, noMatch
	}

	date := NormalizeBuildDate(buildDate)
	if date == "" {
		if d, found := ExtractBuildDate(rel.TagName); found {
			date = d
		} else {
			date = BuildDateUnknown
			c.logger.Warn("release tag carries no build date", "tag", rel.TagName, "asset", asset.Name)
		}
	}

	c.logger.Debug("resolved asset", "version", version, "build_date", date, "asset", asset.Name, "install_only", installOnly)
	return &Resolution{
		Version:     version,
		BuildDate:   date,
		Release:     rel,
		Asset:       asset,
		InstallOnly: installOnly,
	}, nil
}

// AvailableVersions lists every version/build pair published for the host
// platform, newest version first. A non-nil filter keeps only versions
// matching it.
func (c *Catalog) AvailableVersions(ctx context.Context, filter *pyversion.Version) ([]Available, error) {
	if c.platErr != nil {
		return nil, c.platErr
	}
	releases, err := c.Releases(ctx)
	if err != nil {
		return nil, err
	}

	type key struct{ version, date string }
	seen := make(map[key]int)
	var out []Available
	for _, r := range releases {
		date, ok := ExtractBuildDate(r.TagName)
		if !ok {
			date = BuildDateUnknown
		}
		for _, a := range r.Assets {
			v, ok := AssetVersion(a.Name)
			if !ok || !MatchAsset(a.Name, v, c.platform.TargetTriple) {
				continue
			}
			if filter != nil && !pyversion.Matches(v, *filter) {
				continue
			}
			installOnly, full := Classify(a.Name)
			if !installOnly && !full {
				continue
			}
			k := key{v.String(), date}
			if i, dup := seen[k]; dup {
				if installOnly && !out[i].InstallOnly {
					out[i].AssetName, out[i].InstallOnly = a.Name, true
				}
				continue
			}
			seen[k] = len(out)
			out = append(out, Available{Version: v, BuildDate: date, AssetName: a.Name, InstallOnly: installOnly})
		}
	}

	slices.SortStableFunc(out, compareAvailable)
	return out, nil
}

// candidates returns the releases to search. With a build date the tagged
// release is tried first; the full listing is the fallback.
func (c *Catalog) candidates(ctx context.Context, buildDate string) ([]Release, error) {
	if date := NormalizeBuildDate(buildDate); date != "" {
		rel, err := c.ReleaseByTag(ctx, date)
		switch {
		case err == nil:
			return []Release{*rel}, nil
		case !errors.Is(err, ErrReleaseNotFound):
			return nil, err
		}
		c.logger.Debug("no release tagged with build date, scanning listing", "build_date", date)
	}
	return c.Releases(ctx)
}

// versionsFor collects the versions offered for the host platform.
func (c *Catalog) versionsFor(releases []Release, buildDate string) []pyversion.Version {
	var out []pyversion.Version
	for _, r := range releases {
		for _, a := range r.Assets {
			v, ok := AssetVersion(a.Name)
			if !ok || !MatchAsset(a.Name, v, c.platform.TargetTriple) {
				continue
			}
			if installOnly, full := Classify(a.Name); !installOnly && !full {
				continue
			}
			if MatchRelease(r, v, buildDate, c.platform.TargetTriple) {
				out = append(out, v)
			}
		}
	}
	return out
}

// each runs fn against the transport chain, consulting Decide after every
// failure.
func (c *Catalog) each(ctx context.Context, op string, fn func(Transport) error) error {
	if len(c.transports) == 0 {
		return ErrNoTransport
	}

	var errs []error
	for _, t := range c.transports {
		err := fn(t)
		if err == nil {
			return nil
		}
		if Decide(ctx, err) == Propagate {
			return err
		}
		c.logger.Warn("release transport failed, trying next", "transport", t.Name(), "op", op, "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
