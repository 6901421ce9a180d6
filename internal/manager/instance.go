// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"context"

	"github.com/pyrt-dev/pyrt/internal/archive"
	"github.com/pyrt-dev/pyrt/internal/pip"
	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/internal/venv"
)

// Instance is a handle to one installed runtime. The embedded interpreter
// runs commands, scripts and inline code against it.
type Instance struct {
	*runtime.Interpreter

	// Record is a snapshot of the instance metadata taken when the handle was built.
	Record *store.InstanceRecord

	m    *Manager
	pip  *pip.Client
	envs *venv.Manager
}

var _ runtime.InteractiveRuntime = (*Instance)(nil)

func (m *Manager) instance(rec *store.InstanceRecord) *Instance {
	interp := runtime.NewInterpreter(m.core, m.platform.InterpreterPath(rec.Directory))
	return &Instance{
		Interpreter: interp,
		Record:      rec,
		m:           m,
		pip:         m.packagesFor(interp),
		envs:        venv.New(m.store, rec, m.core, m.platform, venv.WithLogger(m.logger)),
	}
}

func (m *Manager) packagesFor(rt runtime.Runtime) *pip.Client {
	return pip.New(rt, pip.WithLogger(m.logger), pip.WithIndexURL(m.cfg.DefaultIndexURL))
}

// Key returns "version@buildDate".
func (i *Instance) Key() string { return i.Record.Key() }

// Dir returns the installation directory.
func (i *Instance) Dir() string { return i.Record.Directory }

// VerifyLayout checks that the installed tree still has the files a usable
// runtime needs.
func (i *Instance) VerifyLayout() error {
	return archive.VerifyLayout(i.Record.Directory, i.m.platform)
}

// InstallPackage installs one requirement into the instance itself.
func (i *Instance) InstallPackage(ctx context.Context, requirement string) error {
	return i.pip.Install(ctx, requirement)
}

// InstallPackages installs each requirement separately and reports a
// per-requirement result.
func (i *Instance) InstallPackages(ctx context.Context, requirements []string, parallel bool) map[string]error {
	return i.pip.InstallMany(ctx, requirements, parallel)
}

// UninstallPackage removes a package from the instance.
func (i *Instance) UninstallPackage(ctx context.Context, name string) error {
	return i.pip.Uninstall(ctx, name)
}

// ListPackages returns the packages installed in the instance.
func (i *Instance) ListPackages(ctx context.Context) ([]pip.Package, error) {
	return i.pip.List(ctx)
}

// Packages returns a package client for rt, typically one of the instance's
// sub-environments, configured like the instance's own.
func (i *Instance) Packages(rt runtime.Runtime) *pip.Client {
	return i.m.packagesFor(rt)
}

// Environments returns the sub-environment manager of the instance.
func (i *Instance) Environments() *venv.Manager { return i.envs }
