// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pyrt-dev/pyrt/internal/acquire"
	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/internal/config"
	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/pkg/platform"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

// DefaultCacheSize is the number of release listings kept when caching is enabled.
const DefaultCacheSize = 16

// ErrClosed is returned by every Manager method called after Close.
var ErrClosed = errors.New("manager is closed")

type (
	// Manager installs, finds and removes runtime instances under one root.
	Manager struct {
		cfg      config.Config
		store    *store.Store
		catalog  *catalog.Catalog
		pipeline *acquire.Pipeline
		core     *runtime.Core
		platform platform.Descriptor
		logger   *log.Logger

		httpClient *http.Client
		ownsClient bool
		closed     atomic.Bool
	}

	// Option configures Open.
	Option func(*options)

	options struct {
		logger       *log.Logger
		progress     acquire.ProgressFunc
		transports   []catalog.Transport
		downloader   acquire.Downloader
		platform     *platform.Descriptor
		httpClient   *http.Client
		smokeTimeout *time.Duration
	}
)

// WithLogger sets the logger shared by every component.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgress registers an acquisition progress callback.
func WithProgress(fn acquire.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithTransports replaces the catalog transport chain.
func WithTransports(ts ...catalog.Transport) Option {
	return func(o *options) {
		o.transports = ts
	}
}

// WithDownloader replaces the asset downloader.
func WithDownloader(d acquire.Downloader) Option {
	return func(o *options) {
		o.downloader = d
	}
}

// WithPlatform targets d instead of the running host.
func WithPlatform(d platform.Descriptor) Option {
	return func(o *options) {
		o.platform = &d
	}
}

// WithHTTPClient sets the client used for catalog requests and downloads.
// The caller keeps ownership; Close leaves it untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithSmokeTestTimeout bounds the post-install interpreter probe; zero disables it.
func WithSmokeTestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.smokeTimeout = &d
	}
}

// Open validates cfg and builds a Manager from it.
func Open(cfg config.Config, opts ...Option) (*Manager, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	desc, err := hostOr(o.platform)
	if err != nil {
		return nil, err
	}

	root, err := cfg.RootDir.Expand()
	if err != nil {
		return nil, fmt.Errorf("root dir: %w", err)
	}
	st, err := store.Open(root, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		store:      st,
		platform:   desc,
		logger:     logger,
		httpClient: o.httpClient,
	}
	if m.httpClient == nil {
		// Downloads can outlast any fixed client timeout; contexts bound them instead.
		m.httpClient, err = catalog.NewHTTPClient(cfg.ProxyURL, 0)
		if err != nil {
			return nil, err
		}
		m.ownsClient = true
	}

	clientOpts := []catalog.ClientOption{
		catalog.WithHTTPClient(m.httpClient),
		catalog.WithBaseURL(cfg.ReleaseSource.APIURL),
		catalog.WithRepo(cfg.ReleaseSource.Owner, cfg.ReleaseSource.Repo),
		catalog.WithToken(cfg.GitHubToken),
	}

	transports := o.transports
	if transports == nil {
		transports, err = catalog.DefaultTransports(clientOpts...)
		if err != nil {
			return nil, err
		}
	}

	catOpts := []catalog.Option{
		catalog.WithTransports(transports...),
		catalog.WithLogger(logger),
		catalog.WithPlatform(desc),
	}
	if cfg.CacheTTL > 0 {
		catOpts = append(catOpts, catalog.WithCache(catalog.NewMemoryCache(DefaultCacheSize, cfg.CacheTTL)))
	}
	m.catalog = catalog.New(catOpts...)

	downloader := o.downloader
	if downloader == nil {
		downloader = catalog.NewRESTClient(clientOpts...)
	}

	m.core = runtime.NewCore(runtime.WithLogger(logger), runtime.WithDefaultTimeout(cfg.DefaultTimeout))

	pipeOpts := []acquire.Option{
		acquire.WithLogger(logger),
		acquire.WithCore(m.core),
		acquire.WithRetryPolicy(acquire.RetryPolicy{
			Attempts:    cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Exponential: cfg.UseExponentialBackoff,
		}),
		acquire.WithProgress(o.progress),
	}
	if o.smokeTimeout != nil {
		pipeOpts = append(pipeOpts, acquire.WithSmokeTestTimeout(*o.smokeTimeout))
	}
	m.pipeline = acquire.New(st, m.catalog, downloader, pipeOpts...)

	logger.Debug("manager opened", "root", st.Root(), "platform", desc.TargetTriple)
	return m, nil
}

// Close releases idle network connections. It is safe to call more than once.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.ownsClient {
		m.httpClient.CloseIdleConnections()
	}
	m.logger.Debug("manager closed")
	return nil
}

// Config returns the configuration snapshot the manager was opened with.
func (m *Manager) Config() config.Config { return m.cfg }

// Root returns the absolute directory instances are installed in.
func (m *Manager) Root() string { return m.store.Root() }

// Platform returns the descriptor assets are matched against.
func (m *Manager) Platform() platform.Descriptor { return m.platform }

// Core returns the shared process core.
func (m *Manager) Core() *runtime.Core { return m.core }

// GetOrInstall returns the instance satisfying version and buildDate,
// installing it first when needed. An empty version means the configured
// default; an empty buildDate accepts any build.
func (m *Manager) GetOrInstall(ctx context.Context, version, buildDate string) (*Instance, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	v, err := m.request(version)
	if err != nil {
		return nil, err
	}
	rec, err := m.pipeline.Acquire(ctx, v, buildDate)
	if err != nil {
		return nil, err
	}
	return m.instance(rec), nil
}

// Default returns the instance for the configured default version.
func (m *Manager) Default(ctx context.Context) (*Instance, error) {
	return m.GetOrInstall(ctx, "", "")
}

// FindInstance looks an installed instance up without touching the network.
func (m *Manager) FindInstance(version, buildDate string) (*Instance, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	v, err := m.request(version)
	if err != nil {
		return nil, err
	}
	rec, err := m.store.Find(v, catalog.NormalizeBuildDate(buildDate))
	if err != nil {
		return nil, err
	}
	return m.instance(rec), nil
}

// ListInstances returns every installed instance, newest version first.
func (m *Manager) ListInstances() ([]*Instance, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	recs, err := m.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]*Instance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, m.instance(rec))
	}
	return out, nil
}

// RemoveInstance deletes the instance matching version and buildDate along
// with its directory and sub-environments.
func (m *Manager) RemoveInstance(version, buildDate string) error {
	if err := m.check(); err != nil {
		return err
	}
	v, err := pyversion.Parse(version)
	if err != nil {
		return err
	}
	rec, err := m.store.Find(v, catalog.NormalizeBuildDate(buildDate))
	if err != nil {
		return err
	}
	if err := m.store.Remove(rec.Version, rec.BuildDate); err != nil {
		return err
	}
	m.logger.Info("removed instance", "version", rec.Version, "build_date", rec.BuildDate)
	return nil
}

// ListAvailableVersions lists the versions published for this platform. A
// non-empty filter restricts the result to versions matching it ("3.12").
func (m *Manager) ListAvailableVersions(ctx context.Context, filter string) ([]catalog.Available, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var f *pyversion.Version
	if filter != "" {
		v, err := pyversion.Parse(filter)
		if err != nil {
			return nil, err
		}
		f = &v
	}
	return m.catalog.AvailableVersions(ctx, f)
}

// Prune drops index entries whose instance directories have vanished.
func (m *Manager) Prune() ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.store.Prune()
}

// Rebuild regenerates the index from the per-instance metadata files.
func (m *Manager) Rebuild() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.store.Rebuild()
}

func (m *Manager) check() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *Manager) request(version string) (pyversion.Version, error) {
	if version == "" {
		version = m.cfg.DefaultVersion
	}
	return pyversion.Parse(version)
}

func hostOr(d *platform.Descriptor) (platform.Descriptor, error) {
	if d != nil {
		return *d, nil
	}
	return platform.Host()
}
