// SPDX-License-Identifier: MPL-2.0

package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
	"github.com/pyrt-dev/pyrt/pkg/types"
)

const lockFileName = ".pyrt.lock"

type (
	// Store reads and writes instance metadata under a single root directory.
	Store struct {
		root   string
		logger *log.Logger
		mu     sync.Mutex
	}

	// Option configures a Store.
	Option func(*Store)
)

// WithLogger sets the logger used for non-fatal conditions.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string, opts ...Option) (*Store, error) {
	abs, err := types.FilesystemPath(root).Expand()
	if err != nil {
		return nil, fmt.Errorf("store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", abs, err)
	}

	s := &Store{root: abs, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// InstanceDir returns the directory an instance is (or would be) installed in.
func (s *Store) InstanceDir(version, buildDate string) string {
	return filepath.Join(s.root, DirName(version, buildDate))
}

// HasMetadata reports whether dir carries a metadata file. A directory
// without one is a leftover of an interrupted install.
func HasMetadata(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MetadataFileName))
	return err == nil && info.Mode().IsRegular()
}

// Save writes the record into its instance directory and registers it in
// the index.
func (s *Store) Save(rec *InstanceRecord) error {
	switch {
	case rec == nil:
		return errors.New("save: nil record")
	case rec.Version == "" || rec.BuildDate == "":
		return fmt.Errorf("save: record needs a version and build date (got %q, %q)", rec.Version, rec.BuildDate)
	case rec.Directory == "":
		return fmt.Errorf("save %s: record has no directory", rec.Key())
	}

	return s.withLock(func() error {
		if err := s.write(rec); err != nil {
			return err
		}
		idx := s.readIndexLocked()
		idx.upsert(s.entryFor(rec))
		return s.writeIndexLocked(idx)
	})
}

// Update loads the record for (version, buildDate), applies fn and writes
// the result back while holding the store lock.
func (s *Store) Update(version, buildDate string, fn func(*InstanceRecord) error) (*InstanceRecord, error) {
	var out *InstanceRecord
	err := s.withLock(func() error {
		dir := s.InstanceDir(version, buildDate)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Version: version, BuildDate: buildDate}
		}
		rec, err := Load(dir)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		if err := s.write(rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// Load reads the metadata file in dir. A missing directory, a missing file
// or unparseable contents are reported as a CorruptError.
func Load(dir string) (*InstanceRecord, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CorruptError{Path: dir, Reason: "instance directory unreadable", Err: err}
	}
	if !info.IsDir() {
		return nil, &CorruptError{Path: dir, Reason: "instance path is not a directory"}
	}

	path := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Reason: "metadata unreadable", Err: err}
	}

	var rec InstanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &CorruptError{Path: path, Reason: "metadata is not valid JSON", Err: err}
	}
	if rec.Version == "" || rec.BuildDate == "" {
		return nil, &CorruptError{Path: path, Reason: "metadata lacks version or build date"}
	}
	if _, err := pyversion.Parse(rec.Version); err != nil {
		return nil, &CorruptError{Path: path, Reason: "metadata version is invalid", Err: err}
	}

	// The directory is where the metadata was found, even if the tree moved.
	rec.Directory = dir
	return &rec, nil
}

// Find returns the installed instance satisfying request. A partial request
// or an empty buildDate selects the greatest matching version, then the
// newest build.
func (s *Store) Find(request pyversion.Version, buildDate string) (*InstanceRecord, error) {
	buildDate = strings.ReplaceAll(buildDate, "-", "")

	if !request.IsPartial() && buildDate != "" {
		dir := s.InstanceDir(request.String(), buildDate)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Version: request.String(), BuildDate: buildDate}
		}
		return Load(dir)
	}

	recs, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		v, err := rec.ParsedVersion()
		if err != nil || !pyversion.Matches(v, request) {
			continue
		}
		if buildDate != "" && rec.BuildDate != buildDate {
			continue
		}
		// List is ordered greatest first.
		return rec, nil
	}
	return nil, &NotFoundError{Version: request.Request(), BuildDate: buildDate}
}

// List returns every readable instance ordered by version then build date,
// greatest first. Unreadable entries are logged and skipped.
func (s *Store) List() ([]*InstanceRecord, error) {
	s.mu.Lock()
	idx, ok := s.loadIndex()
	s.mu.Unlock()

	var dirs []string
	if ok {
		for _, e := range idx.Instances {
			dirs = append(dirs, filepath.Join(s.root, e.Directory))
		}
	} else {
		scanned, err := s.scan()
		if err != nil {
			return nil, err
		}
		dirs = scanned
	}

	recs := make([]*InstanceRecord, 0, len(dirs))
	for _, dir := range dirs {
		rec, err := Load(dir)
		if err != nil {
			s.logger.Warn("skipping unreadable instance", "dir", dir, "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	sortRecords(recs)
	return recs, nil
}

// Remove deletes the instance directory recursively and drops it from the index.
func (s *Store) Remove(version, buildDate string) error {
	dir := s.InstanceDir(version, buildDate)
	return s.withLock(func() error {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Version: version, BuildDate: buildDate}
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove instance %s: %w", dir, err)
		}
		idx := s.readIndexLocked()
		idx.remove(DirName(version, buildDate))
		return s.writeIndexLocked(idx)
	})
}

// Prune drops index entries whose directory or metadata is gone or
// unreadable and returns the directory names it dropped.
func (s *Store) Prune() ([]string, error) {
	var pruned []string
	err := s.withLock(func() error {
		idx := s.readIndexLocked()
		kept := idx.Instances[:0]
		for _, e := range idx.Instances {
			if _, err := Load(filepath.Join(s.root, e.Directory)); err != nil {
				s.logger.Warn("pruning index entry", "dir", e.Directory, "err", err)
				pruned = append(pruned, e.Directory)
				continue
			}
			kept = append(kept, e)
		}
		idx.Instances = kept
		return s.writeIndexLocked(idx)
	})
	return pruned, err
}

// Rebuild regenerates the index from the per-instance metadata files and
// returns the number of instances indexed.
func (s *Store) Rebuild() (int, error) {
	var n int
	err := s.withLock(func() error {
		dirs, err := s.scan()
		if err != nil {
			return err
		}
		var idx index
		for _, dir := range dirs {
			rec, err := Load(dir)
			if err != nil {
				s.logger.Warn("not indexing unreadable instance", "dir", dir, "err", err)
				continue
			}
			idx.upsert(s.entryFor(rec))
		}
		n = len(idx.Instances)
		return s.writeIndexLocked(&idx)
	})
	return n, err
}

func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl, err := acquireFileLock(filepath.Join(s.root, lockFileName))
	if err != nil {
		return err
	}
	defer func() {
		if err := fl.release(); err != nil {
			s.logger.Debug("store lock release failed", "err", err)
		}
	}()

	return fn()
}

func (s *Store) write(rec *InstanceRecord) error {
	if err := os.MkdirAll(rec.Directory, 0o755); err != nil {
		return fmt.Errorf("create instance directory: %w", err)
	}
	return writeJSON(filepath.Join(rec.Directory, MetadataFileName), rec)
}

func (s *Store) entryFor(rec *InstanceRecord) indexEntry {
	dir := rec.Directory
	if rel, err := filepath.Rel(s.root, rec.Directory); err == nil && filepath.IsLocal(rel) {
		dir = rel
	}
	return indexEntry{Version: rec.Version, BuildDate: rec.BuildDate, Directory: dir}
}

// scan lists instance directories that carry metadata.
func (s *Store) scan() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), instanceDirPrefix) {
			continue
		}
		dir := filepath.Join(s.root, e.Name())
		if HasMetadata(dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// loadIndex reads the index; ok is false when it is absent or unreadable.
func (s *Store) loadIndex() (*index, bool) {
	data, err := os.ReadFile(filepath.Join(s.root, IndexFileName))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("index unreadable, scanning instead", "err", err)
		}
		return nil, false
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("index corrupt, scanning instead", "err", err)
		return nil, false
	}
	return &idx, true
}

// readIndexLocked returns the index or, if missing, one rebuilt from a scan.
func (s *Store) readIndexLocked() *index {
	if idx, ok := s.loadIndex(); ok {
		return idx
	}
	var idx index
	dirs, err := s.scan()
	if err != nil {
		return &idx
	}
	for _, dir := range dirs {
		if rec, err := Load(dir); err == nil {
			idx.upsert(s.entryFor(rec))
		}
	}
	return &idx
}

func (s *Store) writeIndexLocked(idx *index) error {
	return writeJSON(filepath.Join(s.root, IndexFileName), idx)
}

func (idx *index) upsert(e indexEntry) {
	idx.remove(e.Directory)
	idx.Instances = append(idx.Instances, e)
	slices.SortFunc(idx.Instances, func(a, b indexEntry) int {
		return cmp.Compare(a.Directory, b.Directory)
	})
}

func (idx *index) remove(dir string) {
	idx.Instances = slices.DeleteFunc(idx.Instances, func(e indexEntry) bool { return e.Directory == dir })
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sortRecords(recs []*InstanceRecord) {
	slices.SortStableFunc(recs, func(a, b *InstanceRecord) int {
		av, aerr := a.ParsedVersion()
		bv, berr := b.ParsedVersion()
		if aerr == nil && berr == nil {
			if c := pyversion.Compare(bv, av); c != 0 {
				return c
			}
		}
		return cmp.Compare(b.BuildDate, a.BuildDate)
	})
}
