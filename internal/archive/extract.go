// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/pyrt-dev/pyrt/internal/runtime"
)

const (
	toolTar  = "tar"
	toolZstd = "zstd"

	// toolProbeTimeout bounds each "<tool> --version" availability probe.
	toolProbeTimeout = 10 * time.Second
)

type (
	// ToolProbe reports whether an external tool can be invoked.
	ToolProbe func(ctx context.Context, tool string) bool

	// Extractor unpacks archives. Tool availability is probed at most once
	// per tool and cached for the lifetime of the Extractor.
	Extractor struct {
		logger *log.Logger
		core   *runtime.Core
		probe  ToolProbe

		mu     sync.Mutex
		probed map[string]bool
	}

	// Option configures an Extractor.
	Option func(*Extractor)
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCore sets the process core used to run tar and zstd.
func WithCore(c *runtime.Core) Option {
	return func(e *Extractor) {
		if c != nil {
			e.core = c
		}
	}
}

// WithToolProbe replaces the default "<tool> --version" probe.
func WithToolProbe(p ToolProbe) Option {
	return func(e *Extractor) {
		e.probe = p
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		logger: log.New(io.Discard),
		probed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.core == nil {
		e.core = runtime.NewCore(runtime.WithLogger(e.logger))
	}
	if e.probe == nil {
		e.probe = e.versionProbe
	}
	return e
}

// Extract unpacks archivePath into dest, creating dest if needed. The
// format is chosen from the archive's file name.
func (e *Extractor) Extract(ctx context.Context, archivePath, dest string) error {
	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return &UnsupportedFormatError{Name: filepath.Base(archivePath)}
	}

	if missing := e.missingTools(ctx, format); len(missing) > 0 {
		return &UnsupportedFormatError{Name: filepath.Base(archivePath), Format: format, MissingTools: missing}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &ExtractError{Archive: archivePath, Dest: dest, Err: err}
	}

	e.logger.Debug("extracting archive", "archive", filepath.Base(archivePath), "format", format, "dest", dest)

	switch format {
	case FormatZip:
		return extractZip(ctx, archivePath, dest)
	case FormatTarZst:
		return e.extractTarZst(ctx, archivePath, dest)
	default:
		return e.runTar(ctx, format, archivePath, dest)
	}
}

// ToolAvailable reports whether tool responded to a version probe. The
// result is cached.
func (e *Extractor) ToolAvailable(ctx context.Context, tool string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ok, seen := e.probed[tool]; seen {
		return ok
	}
	ok := e.probe(ctx, tool)
	e.probed[tool] = ok
	if !ok {
		e.logger.Debug("external tool unavailable", "tool", tool)
	}
	return ok
}

func (e *Extractor) missingTools(ctx context.Context, f Format) []string {
	var missing []string
	for _, tool := range f.RequiredTools() {
		if !e.ToolAvailable(ctx, tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}

func (e *Extractor) versionProbe(ctx context.Context, tool string) bool {
	res, err := e.core.Execute(ctx, runtime.Command{
		Executable: tool,
		Args:       []string{"--version"},
		Timeout:    toolProbeTimeout,
	})
	return err == nil && res.Success()
}

func (e *Extractor) runTar(ctx context.Context, f Format, archivePath, dest string) error {
	res, err := e.core.Execute(ctx, runtime.Command{
		Executable: toolTar,
		Args:       []string{f.tarFlags(), archivePath, "-C", dest},
	})
	if err != nil {
		return &ExtractError{Archive: archivePath, Dest: dest, Err: err}
	}
	if !res.Success() {
		return &ExtractError{
			Archive: archivePath,
			Dest:    dest,
			Detail:  fmt.Sprintf("tar exited with status %s: %s", res.ExitCode, strings.TrimSpace(res.Stderr)),
		}
	}
	return nil
}

// extractTarZst decompresses next to the archive and then unpacks the
// intermediate tarball.
func (e *Extractor) extractTarZst(ctx context.Context, archivePath, dest string) error {
	tarPath := filepath.Join(filepath.Dir(archivePath), "pyrt-"+uuid.NewString()+".tar")
	defer func() { _ = os.Remove(tarPath) }()

	res, err := e.core.Execute(ctx, runtime.Command{
		Executable: toolZstd,
		Args:       []string{"-d", "-q", "-f", "-o", tarPath, archivePath},
	})
	if err != nil {
		return &ExtractError{Archive: archivePath, Dest: dest, Err: err}
	}
	if !res.Success() {
		return &ExtractError{
			Archive: archivePath,
			Dest:    dest,
			Detail:  fmt.Sprintf("zstd exited with status %s: %s", res.ExitCode, strings.TrimSpace(res.Stderr)),
		}
	}
	return e.runTar(ctx, FormatTar, tarPath, dest)
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Dest: dest, Err: err}
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return &ExtractError{Archive: archivePath, Dest: dest, Err: err}
		}
		if err := extractZipEntry(ctx, f, dest); err != nil {
			return &ExtractError{Archive: archivePath, Dest: dest, Detail: f.Name, Err: err}
		}
	}
	return nil
}

func extractZipEntry(ctx context.Context, f *zip.File, dest string) (err error) {
	target, err := securejoin.SecureJoin(dest, f.Name)
	if err != nil {
		return err
	}
	if rel, relErr := filepath.Rel(dest, target); relErr != nil || !filepath.IsLocal(rel) {
		return errors.New("entry escapes destination")
	}

	mode := f.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, 0o755)
	case mode&fs.ModeSymlink != 0:
		return extractZipSymlink(f, target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, ctxReader{ctx: ctx, r: rc})
	return err
}

// ctxReader fails every read once ctx has ended.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// extractZipSymlink recreates a symlink entry whose target stays inside the
// entry's own tree.
func extractZipSymlink(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	raw, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return err
	}
	link := string(raw)
	if filepath.IsAbs(link) || !filepath.IsLocal(filepath.Join(filepath.Dir(f.Name), link)) {
		return fmt.Errorf("symlink target %q escapes destination", link)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Symlink(link, target)
}
