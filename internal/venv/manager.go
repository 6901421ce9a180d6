// SPDX-License-Identifier: MPL-2.0

package venv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pyrt-dev/pyrt/internal/pip"
	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/pkg/platform"
)

const (
	// DefaultDeleteAttempts bounds deletion retries on lock errors.
	DefaultDeleteAttempts = 5
	// DefaultDeleteDelay is the first wait between deletion attempts; it doubles each time.
	DefaultDeleteDelay = 100 * time.Millisecond
	// DefaultParallelism bounds concurrent deletions in DeleteMany.
	DefaultParallelism = 4
)

type (
	// Environment is a handle to one valid sub-environment. It runs its
	// own interpreter with VIRTUAL_ENV set and its scripts directory first
	// on PATH.
	Environment struct {
		*runtime.Interpreter

		Name     string
		Dir      string
		External bool
	}

	// Manager creates, lists and deletes the sub-environments of one instance.
	Manager struct {
		store    *store.Store
		record   *store.InstanceRecord
		core     *runtime.Core
		base     *runtime.Interpreter
		platform platform.Descriptor
		logger   *log.Logger

		deleteAttempts int
		deleteDelay    time.Duration
		parallelism    int
		removeAll      func(string) error

		mu sync.Mutex
	}

	// Option configures a Manager.
	Option func(*Manager)
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDeleteRetry sets the attempt count and initial delay for deletions
// that hit lock errors.
func WithDeleteRetry(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.deleteAttempts = attempts
		}
		if delay >= 0 {
			m.deleteDelay = delay
		}
	}
}

// WithParallelism bounds concurrent deletions in DeleteMany.
func WithParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// New returns a Manager for the instance described by rec.
func New(st *store.Store, rec *store.InstanceRecord, core *runtime.Core, d platform.Descriptor, opts ...Option) *Manager {
	m := &Manager{
		store:          st,
		record:         rec.Clone(),
		core:           core,
		base:           runtime.NewInterpreter(core, d.InterpreterPath(rec.Directory)),
		platform:       d,
		logger:         log.New(io.Discard),
		deleteAttempts: DefaultDeleteAttempts,
		deleteDelay:    DefaultDeleteDelay,
		parallelism:    DefaultParallelism,
		removeAll:      os.RemoveAll,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the directory holding managed environments.
func (m *Manager) Dir() string {
	return filepath.Join(m.record.Directory, store.EnvironmentsDirName)
}

// Path returns the directory a managed environment named name would use.
func (m *Manager) Path(name string) (string, error) {
	if err := platform.ValidateDirName(name); err != nil {
		return "", err
	}
	return filepath.Join(m.Dir(), name), nil
}

// IsValid reports whether dir holds the platform's environment interpreter.
func (m *Manager) IsValid(dir string) bool {
	info, err := os.Stat(m.platform.EnvInterpreterPath(dir))
	return err == nil && !info.IsDir()
}

// GetOrCreate returns the environment called name, building it with the
// instance interpreter when it is absent or invalid. With recreate set an
// existing environment is deleted first.
func (m *Manager) GetOrCreate(ctx context.Context, name string, recreate bool) (*Environment, error) {
	dir, err := m.Path(name)
	if err != nil {
		return nil, err
	}

	if recreate {
		if err := m.Delete(ctx, name); err != nil && !errors.Is(err, ErrEnvironmentNotFound) {
			return nil, err
		}
	}

	if m.IsValid(dir) {
		if err := m.register(store.SubEnvironment{Name: name, Path: dir}); err != nil {
			return nil, err
		}
		return m.handle(name, dir, false), nil
	}

	if _, err := os.Stat(dir); err == nil {
		m.logger.Warn("replacing invalid environment directory", "env", name, "dir", dir)
		if err := m.removeWithRetry(ctx, name, dir); err != nil {
			return nil, err
		}
	}

	m.logger.Info("creating environment", "env", name, "dir", dir)
	res, err := m.base.ExecuteCommand(ctx, []string{"-m", "venv", dir})
	if err != nil {
		return nil, &CreateError{Name: name, Path: dir, Err: err}
	}
	if !res.Success() {
		return nil, &CreateError{Name: name, Path: dir, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	if !m.IsValid(dir) {
		return nil, &CreateError{Name: name, Path: dir, Err: fmt.Errorf("%w: %s", runtime.ErrInterpreterMissing, m.platform.EnvInterpreterPath(dir))}
	}

	if err := m.register(store.SubEnvironment{Name: name, Path: dir}); err != nil {
		return nil, err
	}
	return m.handle(name, dir, false), nil
}

// Recreate deletes and rebuilds the environment called name.
func (m *Manager) Recreate(ctx context.Context, name string) (*Environment, error) {
	return m.GetOrCreate(ctx, name, true)
}

// Get returns the environment called name, managed or external.
func (m *Manager) Get(name string) (*Environment, error) {
	if ext, ok := m.external(name); ok {
		if !m.IsValid(ext.ExternalPath) {
			return nil, &NotFoundError{Name: name}
		}
		return m.handle(name, ext.ExternalPath, true), nil
	}

	dir, err := m.Path(name)
	if err != nil {
		return nil, err
	}
	if !m.IsValid(dir) {
		return nil, &NotFoundError{Name: name}
	}
	return m.handle(name, dir, false), nil
}

// List returns the valid environments sorted by name. Directories without
// an interpreter are skipped.
func (m *Manager) List() ([]*Environment, error) {
	var envs []*Environment

	entries, err := os.ReadDir(m.Dir())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.Dir(), e.Name())
		if m.IsValid(dir) {
			envs = append(envs, m.handle(e.Name(), dir, false))
		}
	}

	for _, ext := range m.snapshot().SubEnvironments {
		if ext.IsExternal && m.IsValid(ext.ExternalPath) {
			envs = append(envs, m.handle(ext.Name, ext.ExternalPath, true))
		}
	}

	slices.SortFunc(envs, func(a, b *Environment) int { return strings.Compare(a.Name, b.Name) })
	return envs, nil
}

// Delete removes the environment called name. Lock errors are retried with
// a doubling delay; the error wraps ErrDeleteFailed once every attempt has
// failed. External environments are unregistered but left on disk.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if _, ok := m.external(name); ok {
		return m.unregister(name)
	}

	dir, err := m.Path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		_ = m.unregister(name)
		return &NotFoundError{Name: name}
	}

	if err := m.removeWithRetry(ctx, name, dir); err != nil {
		return err
	}
	m.logger.Info("deleted environment", "env", name)
	return m.unregister(name)
}

// DeleteMany deletes each named environment and returns a per-name result;
// a nil entry means success. One failure never stops the others.
func (m *Manager) DeleteMany(ctx context.Context, names []string, parallel bool) map[string]error {
	results := make(map[string]error, len(names))
	if !parallel {
		for _, n := range names {
			results[n] = m.Delete(ctx, n)
		}
		return results
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(m.parallelism)
	for _, n := range names {
		g.Go(func() error {
			err := m.Delete(ctx, n)
			mu.Lock()
			results[n] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return results
}

// Clone creates dst with the packages installed in src.
func (m *Manager) Clone(ctx context.Context, src, dst string) (*Environment, error) {
	from, err := m.Get(src)
	if err != nil {
		return nil, err
	}
	reqs, err := pip.New(from.Interpreter, pip.WithLogger(m.logger)).Freeze(ctx)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", src, err)
	}

	to, err := m.GetOrCreate(ctx, dst, true)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return to, nil
	}

	f, err := os.CreateTemp(to.Dir, "requirements-*.txt")
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", src, err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.WriteString(strings.Join(reqs, "\n") + "\n"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("clone %s: %w", src, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("clone %s: %w", src, err)
	}

	if err := pip.New(to.Interpreter, pip.WithLogger(m.logger)).InstallRequirements(ctx, f.Name()); err != nil {
		return nil, fmt.Errorf("clone %s into %s: %w", src, dst, err)
	}
	return to, nil
}

// RegisterExternal records an environment created outside the instance.
// path must already hold an environment interpreter.
func (m *Manager) RegisterExternal(name, path string) (*Environment, error) {
	if err := platform.ValidateDirName(name); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	if !m.IsValid(abs) {
		return nil, fmt.Errorf("register %s: %w: %s", name, runtime.ErrInterpreterMissing, m.platform.EnvInterpreterPath(abs))
	}
	if err := m.register(store.SubEnvironment{Name: name, Path: abs, IsExternal: true, ExternalPath: abs}); err != nil {
		return nil, err
	}
	return m.handle(name, abs, true), nil
}

func (m *Manager) removeWithRetry(ctx context.Context, name, dir string) error {
	attempts := 0
	op := func() error {
		attempts++
		err := m.removeAll(dir)
		if err == nil || isLockError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		m.logger.Warn("environment locked, retrying delete", "env", name, "attempt", attempts, "wait", wait, "err", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.deleteDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.deleteAttempts-1)), ctx)

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return &DeleteError{Name: name, Path: dir, Attempts: attempts, Err: err}
	}
	return nil
}

func (m *Manager) handle(name, dir string, external bool) *Environment {
	scripts := filepath.Dir(m.platform.EnvInterpreterPath(dir))
	path := scripts
	if host := os.Getenv("PATH"); host != "" {
		path += string(os.PathListSeparator) + host
	}
	env := map[string]string{"VIRTUAL_ENV": dir, "PATH": path}
	return &Environment{
		Interpreter: runtime.NewInterpreter(m.core, m.platform.EnvInterpreterPath(dir), runtime.WithEnv(env)),
		Name:        name,
		Dir:         dir,
		External:    external,
	}
}

func (m *Manager) external(name string) (store.SubEnvironment, bool) {
	e, ok := m.snapshot().Environment(name)
	if !ok || !e.IsExternal {
		return store.SubEnvironment{}, false
	}
	return e, true
}

func (m *Manager) snapshot() *store.InstanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.Clone()
}

func (m *Manager) register(env store.SubEnvironment) error {
	return m.updateRecord(func(r *store.InstanceRecord) {
		r.SetEnvironment(env)
	})
}

func (m *Manager) unregister(name string) error {
	return m.updateRecord(func(r *store.InstanceRecord) {
		r.RemoveEnvironment(name)
	})
}

func (m *Manager) updateRecord(fn func(*store.InstanceRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Update(m.record.Version, m.record.BuildDate, func(r *store.InstanceRecord) error {
		fn(r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update instance record: %w", err)
	}
	m.record = rec
	return nil
}
