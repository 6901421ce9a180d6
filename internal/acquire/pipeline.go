// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pyrt-dev/pyrt/internal/archive"
	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/pkg/platform"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

const (
	// DefaultSmokeTestTimeout bounds the post-install interpreter probe.
	DefaultSmokeTestTimeout = 10 * time.Second

	tempDirName = ".tmp"
)

type (
	// Resolver turns a request into one downloadable asset. *catalog.Catalog
	// implements it.
	Resolver interface {
		Resolve(ctx context.Context, request pyversion.Version, buildDate string) (*catalog.Resolution, error)
		Platform() (platform.Descriptor, error)
	}

	// Pipeline installs runtime instances into a store.
	Pipeline struct {
		store        *store.Store
		resolver     Resolver
		downloader   Downloader
		extractor    *archive.Extractor
		core         *runtime.Core
		logger       *log.Logger
		retry        RetryPolicy
		progress     ProgressFunc
		smokeTimeout time.Duration
		checksums    bool
		now          func() time.Time

		flight sharedFlight
		locks  keyedMutex
	}

	// Option configures a Pipeline.
	Option func(*Pipeline)

	// attempt carries the request context through one install.
	attempt struct {
		p         *Pipeline
		version   string
		buildDate string
		platform  string
		asset     string
		// requested is the caller's build date, before resolution fills it in.
		requested string
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCore sets the process core used for the smoke test and archive tools.
func WithCore(c *runtime.Core) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.core = c
		}
	}
}

// WithExtractor replaces the archive extractor.
func WithExtractor(e *archive.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithRetryPolicy sets the download retry policy.
func WithRetryPolicy(r RetryPolicy) Option {
	return func(p *Pipeline) {
		p.retry = r
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// WithSmokeTestTimeout bounds the post-install probe; zero disables it.
func WithSmokeTestTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.smokeTimeout = d
	}
}

// WithChecksums toggles verification against published SHA256 files.
func WithChecksums(enabled bool) Option {
	return func(p *Pipeline) {
		p.checksums = enabled
	}
}

// WithClock overrides the clock used for install dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Pipeline installing into st.
func New(st *store.Store, resolver Resolver, downloader Downloader, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        st,
		resolver:     resolver,
		downloader:   downloader,
		logger:       log.New(io.Discard),
		retry:        DefaultRetryPolicy,
		smokeTimeout: DefaultSmokeTestTimeout,
		checksums:    true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.core == nil {
		p.core = runtime.NewCore(runtime.WithLogger(p.logger))
	}
	if p.extractor == nil {
		p.extractor = archive.NewExtractor(archive.WithLogger(p.logger), archive.WithCore(p.core))
	}
	return p
}

// Acquire returns the installed instance satisfying request and buildDate,
// installing it first when the store has none. An empty buildDate accepts
// any installed build and otherwise installs the newest one.
func (p *Pipeline) Acquire(ctx context.Context, request pyversion.Version, buildDate string) (*store.InstanceRecord, error) {
	buildDate = catalog.NormalizeBuildDate(buildDate)
	desc, err := p.resolver.Platform()
	if err != nil {
		return nil, err
	}

	a := &attempt{p: p, version: request.Request(), buildDate: buildDate, requested: buildDate, platform: desc.TargetTriple}
	a.emit(StateCheckExisting)
	if rec, ok := p.existing(request, buildDate); ok {
		p.logger.Debug("instance already installed", "version", rec.Version, "build_date", rec.BuildDate)
		return rec, nil
	}

	key := store.Key(request.Request(), buildDate)
	v, err, shared := p.flight.do(ctx, key, func(ctx context.Context) (any, error) {
		return a.install(ctx, request, desc)
	})
	if shared {
		p.logger.Debug("joined in-flight acquisition", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*store.InstanceRecord).Clone(), nil
}

// existing looks the request up in the store. Lookup failures count as a miss.
func (p *Pipeline) existing(request pyversion.Version, buildDate string) (*store.InstanceRecord, bool) {
	rec, err := p.store.Find(request, buildDate)
	if err == nil {
		return rec, true
	}
	if !errors.Is(err, store.ErrInstanceNotFound) {
		p.logger.Warn("installed instance unusable, reinstalling", "version", request.Request(), "build_date", buildDate, "err", err)
	}
	return nil, false
}

func (a *attempt) install(ctx context.Context, request pyversion.Version, desc platform.Descriptor) (*store.InstanceRecord, error) {
	p := a.p

	a.emit(StateResolveAsset)
	res, err := p.resolver.Resolve(ctx, request, a.buildDate)
	if err != nil {
		return nil, a.fail(StateResolveAsset, err)
	}
	a.version, a.buildDate, a.asset = res.Version.String(), res.BuildDate, res.Asset.Name

	unlock := p.locks.lock(store.Key(a.version, a.buildDate))
	defer unlock()

	if rec, err := p.store.Find(res.Version, res.BuildDate); err == nil {
		p.logger.Debug("resolved build already installed", "version", rec.Version, "build_date", rec.BuildDate)
		return rec, nil
	}

	tmp := filepath.Join(p.store.Root(), tempDirName, "acquire-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return nil, a.fail(StateDownload, fmt.Errorf("creating temporary directory: %w", err))
	}
	defer a.cleanup(tmp)

	archivePath, err := a.fetch(ctx, res, tmp)
	if err != nil {
		return nil, err
	}

	final := p.store.InstanceDir(a.version, a.buildDate)
	if err := a.unpack(ctx, desc, archivePath, filepath.Join(tmp, "extract"), final); err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := os.RemoveAll(final); err != nil {
			p.logger.Warn("failed to remove incomplete instance", "dir", final, "err", err)
		}
	}()

	a.emit(StateVerify)
	if err := archive.VerifyLayout(final, desc); err != nil {
		return nil, a.fail(StateVerify, err)
	}

	a.emit(StateSmokeTest)
	a.smokeTest(ctx, desc.InterpreterPath(final))

	a.emit(StatePersist)
	rec := &store.InstanceRecord{
		Version:        a.version,
		BuildDate:      a.buildDate,
		WasLatestBuild: a.requested == "",
		InstallDate:    p.now().UTC(),
		Directory:      final,
	}
	if err := p.store.Save(rec); err != nil {
		return nil, a.fail(StatePersist, err)
	}
	committed = true

	p.logger.Info("installed python", "version", rec.Version, "build_date", rec.BuildDate, "dir", final)
	a.emit(StateDone)
	return rec, nil
}

// fetch downloads the resolved asset into dir and checks it against a
// published checksum when one exists.
func (a *attempt) fetch(ctx context.Context, res *catalog.Resolution, dir string) (string, error) {
	p := a.p
	archivePath := filepath.Join(dir, filepath.Base(res.Asset.Name))

	a.emit(StateDownload)
	sum, err := p.download(ctx, res.Asset, archivePath, func(done, total int64) {
		a.report(done, total)
	})
	if err != nil {
		return "", a.fail(StateDownload, err)
	}
	p.logger.Debug("downloaded asset", "asset", res.Asset.Name, "sha256", sum)

	if !p.checksums {
		return archivePath, nil
	}
	src, ok := checksumSource(res.Release, res.Asset.Name)
	if !ok {
		p.logger.Debug("release publishes no checksum for asset", "asset", res.Asset.Name)
		return archivePath, nil
	}

	a.emit(StateVerifyChecksum)
	expected, found, err := fetchChecksum(ctx, p.downloader, src, res.Asset.Name)
	if err != nil {
		return "", a.fail(StateVerifyChecksum, err)
	}
	if !found {
		p.logger.Warn("checksum file does not list asset", "checksums", src.Name, "asset", res.Asset.Name)
		return archivePath, nil
	}
	if expected != sum {
		return "", a.fail(StateVerifyChecksum, &ChecksumError{Filename: res.Asset.Name, Expected: expected, Got: sum})
	}
	return archivePath, nil
}

// unpack extracts into staging, finds the install root inside it and moves
// that root to final. A stale directory at final is removed first.
func (a *attempt) unpack(ctx context.Context, desc platform.Descriptor, archivePath, staging, final string) error {
	p := a.p

	a.emit(StateExtract)
	if err := p.extractor.Extract(ctx, archivePath, staging); err != nil {
		return a.fail(StateExtract, err)
	}
	if _, err := os.Stat(final); err == nil {
		p.logger.Warn("removing stale instance directory without metadata", "dir", final)
		if err := os.RemoveAll(final); err != nil {
			return a.fail(StateExtract, fmt.Errorf("removing stale directory: %w", err))
		}
	}

	a.emit(StateLocateRoot)
	root, found := archive.LocateRoot(staging, desc)
	if !found {
		p.logger.Warn("no install root found in archive, using extraction root", "archive", filepath.Base(archivePath))
	}
	if err := os.Rename(root, final); err != nil {
		return a.fail(StateLocateRoot, fmt.Errorf("moving install root into place: %w", err))
	}
	return nil
}

// smokeTest runs the interpreter's version probe. Failures are only logged.
func (a *attempt) smokeTest(ctx context.Context, python string) {
	p := a.p
	if p.smokeTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.smokeTimeout)
	defer cancel()

	out, err := runtime.NewInterpreter(p.core, python).Version(ctx)
	if err != nil {
		p.logger.Warn("smoke test failed, keeping install", "python", python, "err", err)
		return
	}
	p.logger.Debug("smoke test passed", "python", python, "reported", out)
}

func (a *attempt) cleanup(dir string) {
	a.emit(StateCleanup)
	if err := os.RemoveAll(dir); err != nil {
		a.p.logger.Warn("failed to remove temporary directory", "dir", dir, "err", err)
	}
}

func (a *attempt) fail(s State, err error) error {
	return &StageError{State: s, Version: a.version, BuildDate: a.buildDate, Platform: a.platform, Err: err}
}

func (a *attempt) emit(s State) {
	if a.p.progress == nil {
		return
	}
	a.p.progress(Progress{State: s, Version: a.version, BuildDate: a.buildDate, Asset: a.asset, Total: -1})
}

func (a *attempt) report(done, total int64) {
	if a.p.progress == nil {
		return
	}
	a.p.progress(Progress{State: StateDownload, Version: a.version, BuildDate: a.buildDate, Asset: a.asset, Downloaded: done, Total: total})
}
