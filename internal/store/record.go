// SPDX-License-Identifier: MPL-2.0

package store

import (
	"cmp"
	"slices"
	"time"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

const (
	// MetadataFileName is the per-instance metadata file.
	MetadataFileName = "instance.json"
	// IndexFileName is the process-wide index at the store root.
	IndexFileName = "index.json"
	// EnvironmentsDirName holds one directory per named sub-environment.
	EnvironmentsDirName = "venvs"

	instanceDirPrefix = "python-"
)

type (
	// InstanceRecord describes one installed runtime, keyed by (Version, BuildDate).
	InstanceRecord struct {
		Version         string           `json:"version"`
		BuildDate       string           `json:"buildDate"`
		WasLatestBuild  bool             `json:"wasLatestBuild"`
		InstallDate     time.Time        `json:"installDate"`
		Directory       string           `json:"directory"`
		SubEnvironments []SubEnvironment `json:"subEnvironments,omitempty"`
	}

	// SubEnvironment is a named isolated environment owned by an instance.
	SubEnvironment struct {
		Name         string `json:"name"`
		Path         string `json:"path"`
		IsExternal   bool   `json:"isExternal,omitempty"`
		ExternalPath string `json:"externalPath,omitempty"`
	}

	// indexEntry is one line of the process-wide index.
	indexEntry struct {
		Version   string `json:"version"`
		BuildDate string `json:"buildDate"`
		Directory string `json:"directory"`
	}

	index struct {
		Instances []indexEntry `json:"instances"`
	}
)

// DirName returns the instance directory name for a version and build date.
func DirName(version, buildDate string) string {
	return instanceDirPrefix + version + "-" + buildDate
}

// Key identifies the record in maps and lock tables.
func (r *InstanceRecord) Key() string { return Key(r.Version, r.BuildDate) }

// Key joins a version and build date into a lookup key.
func Key(version, buildDate string) string { return version + "@" + buildDate }

// ParsedVersion parses the stored version string.
func (r *InstanceRecord) ParsedVersion() (pyversion.Version, error) {
	return pyversion.Parse(r.Version)
}

// Environment returns the named sub-environment, if registered.
func (r *InstanceRecord) Environment(name string) (SubEnvironment, bool) {
	i := slices.IndexFunc(r.SubEnvironments, func(e SubEnvironment) bool { return e.Name == name })
	if i < 0 {
		return SubEnvironment{}, false
	}
	return r.SubEnvironments[i], true
}

// SetEnvironment adds or replaces a sub-environment by name, keeping the
// list sorted by name.
func (r *InstanceRecord) SetEnvironment(env SubEnvironment) {
	r.RemoveEnvironment(env.Name)
	r.SubEnvironments = append(r.SubEnvironments, env)
	slices.SortFunc(r.SubEnvironments, func(a, b SubEnvironment) int {
		return cmp.Compare(a.Name, b.Name)
	})
}

// RemoveEnvironment drops a sub-environment by name and reports whether it existed.
func (r *InstanceRecord) RemoveEnvironment(name string) bool {
	n := len(r.SubEnvironments)
	r.SubEnvironments = slices.DeleteFunc(r.SubEnvironments, func(e SubEnvironment) bool { return e.Name == name })
	if len(r.SubEnvironments) == 0 {
		r.SubEnvironments = nil
	}
	return len(r.SubEnvironments) != n
}

// Clone returns a deep copy.
func (r *InstanceRecord) Clone() *InstanceRecord {
	c := *r
	c.SubEnvironments = slices.Clone(r.SubEnvironments)
	return &c
}
