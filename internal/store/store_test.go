// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pyrt-dev/pyrt/internal/testutil"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s
}

func record(s *Store, version, buildDate string) *InstanceRecord {
	return &InstanceRecord{
		Version:     version,
		BuildDate:   buildDate,
		InstallDate: time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC),
		Directory:   s.InstanceDir(version, buildDate),
	}
}

func mustSave(t *testing.T, s *Store, rec *InstanceRecord) {
	t.Helper()
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save(%s) error: %v", rec.Key(), err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rec := record(s, "3.12.4", "20240726")
	rec.WasLatestBuild = true
	rec.SubEnvironments = []SubEnvironment{
		{Name: "build", Path: filepath.Join(rec.Directory, EnvironmentsDirName, "build")},
		{Name: "shared", Path: "/opt/envs/shared", IsExternal: true, ExternalPath: "/opt/envs/shared"},
	}
	mustSave(t, s, rec)

	got, err := Load(rec.Directory)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.InstallDate.Equal(rec.InstallDate) {
		t.Errorf("InstallDate = %v, want %v", got.InstallDate, rec.InstallDate)
	}
	got.InstallDate = rec.InstallDate
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Load(Save(r)) = %+v, want %+v", got, rec)
	}
}

func TestSave_JSONShape(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rec := record(s, "3.11.9", "20240701")
	mustSave(t, s, rec)

	data := string(testutil.MustReadFile(t, filepath.Join(rec.Directory, MetadataFileName)))
	for _, want := range []string{`"version": "3.11.9"`, `"buildDate": "20240701"`, `"wasLatestBuild": false`, `"installDate"`} {
		if !strings.Contains(data, want) {
			t.Errorf("metadata missing %s:\n%s", want, data)
		}
	}
	if strings.Contains(data, "subEnvironments") {
		t.Errorf("empty sub-environment list should be omitted:\n%s", data)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	missing := filepath.Join(s.Root(), "python-3.12.4-20240726")
	if _, err := Load(missing); !errors.Is(err, ErrMetadataCorrupt) {
		t.Errorf("Load(missing dir) error = %v, want ErrMetadataCorrupt", err)
	}

	noMeta := filepath.Join(s.Root(), "python-3.12.1-20240101")
	testutil.MustMkdirAll(t, noMeta, 0o755)
	if _, err := Load(noMeta); !errors.Is(err, ErrMetadataCorrupt) {
		t.Errorf("Load(no metadata) error = %v, want ErrMetadataCorrupt", err)
	}

	garbage := filepath.Join(s.Root(), "python-3.12.2-20240101")
	testutil.MustWriteFile(t, filepath.Join(garbage, MetadataFileName), []byte("{nope"), 0o644)
	_, err := Load(garbage)
	var ce *CorruptError
	if !errors.As(err, &ce) || ce.Path != filepath.Join(garbage, MetadataFileName) {
		t.Errorf("Load(garbage) error = %v, want CorruptError naming the file", err)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, r := range []*InstanceRecord{
		record(s, "3.12.1", "20240101"),
		record(s, "3.12.4", "20240701"),
		record(s, "3.12.4", "20240726"),
		record(s, "3.11.9", "20240726"),
	} {
		mustSave(t, s, r)
	}

	tests := []struct {
		request   string
		buildDate string
		want      string
	}{
		{"3.12", "", "python-3.12.4-20240726"},
		{"3.12.4", "", "python-3.12.4-20240726"},
		{"3.12.4", "20240701", "python-3.12.4-20240701"},
		{"3.12.4", "2024-07-01", "python-3.12.4-20240701"},
		{"3.12", "20240101", "python-3.12.1-20240101"},
		{"3.11", "", "python-3.11.9-20240726"},
	}
	for _, tt := range tests {
		rec, err := s.Find(pyversion.MustParse(tt.request), tt.buildDate)
		if err != nil {
			t.Errorf("Find(%s, %q) error: %v", tt.request, tt.buildDate, err)
			continue
		}
		if got := filepath.Base(rec.Directory); got != tt.want {
			t.Errorf("Find(%s, %q) = %s, want %s", tt.request, tt.buildDate, got, tt.want)
		}
	}

	_, err := s.Find(pyversion.MustParse("3.13"), "")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Find(3.13) error = %v, want ErrInstanceNotFound", err)
	}
	_, err = s.Find(pyversion.MustParse("3.12.4"), "19990101")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Find(unknown date) error = %v, want ErrInstanceNotFound", err)
	}
}

func TestList_OrderAndCorruptSkip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mustSave(t, s, record(s, "3.11.9", "20240726"))
	mustSave(t, s, record(s, "3.12.4", "20240701"))
	broken := record(s, "3.10.14", "20240701")
	mustSave(t, s, broken)
	testutil.MustWriteFile(t, filepath.Join(broken.Directory, MetadataFileName), []byte("not json"), 0o644)

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(recs) != 2 || recs[0].Version != "3.12.4" || recs[1].Version != "3.11.9" {
		t.Errorf("List() = %v", keys(recs))
	}
}

func TestList_WithoutIndexScans(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mustSave(t, s, record(s, "3.12.4", "20240701"))
	testutil.MustRemoveAll(t, filepath.Join(s.Root(), IndexFileName))

	recs, err := s.List()
	if err != nil || len(recs) != 1 {
		t.Fatalf("List() = %v, %v; want one record from a scan", keys(recs), err)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	rec := record(s, "3.12.4", "20240701")
	mustSave(t, s, rec)
	testutil.MustWriteFile(t, filepath.Join(rec.Directory, "bin", "python3"), []byte("#!"), 0o755)

	if err := s.Remove("3.12.4", "20240701"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(rec.Directory); !os.IsNotExist(err) {
		t.Errorf("instance directory still exists: %v", err)
	}
	if recs, _ := s.List(); len(recs) != 0 {
		t.Errorf("List() after Remove = %v", keys(recs))
	}
	if err := s.Remove("3.12.4", "20240701"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("second Remove() error = %v, want ErrInstanceNotFound", err)
	}
}

func TestPruneAndRebuild(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	gone := record(s, "3.11.9", "20240701")
	mustSave(t, s, gone)
	mustSave(t, s, record(s, "3.12.4", "20240701"))
	testutil.MustRemoveAll(t, gone.Directory)

	pruned, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != DirName("3.11.9", "20240701") {
		t.Errorf("Prune() = %v", pruned)
	}

	testutil.MustWriteFile(t, filepath.Join(s.Root(), IndexFileName), []byte("garbage"), 0o644)
	n, err := s.Rebuild()
	if err != nil || n != 1 {
		t.Fatalf("Rebuild() = %d, %v; want 1", n, err)
	}
	if _, ok := s.loadIndex(); !ok {
		t.Error("index not readable after Rebuild")
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mustSave(t, s, record(s, "3.12.4", "20240701"))

	rec, err := s.Update("3.12.4", "20240701", func(r *InstanceRecord) error {
		r.SetEnvironment(SubEnvironment{Name: "b", Path: "b"})
		r.SetEnvironment(SubEnvironment{Name: "a", Path: "a"})
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(rec.SubEnvironments) != 2 || rec.SubEnvironments[0].Name != "a" {
		t.Errorf("SubEnvironments = %+v", rec.SubEnvironments)
	}

	sentinel := errors.New("abort")
	if _, err := s.Update("3.12.4", "20240701", func(*InstanceRecord) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("Update() error = %v, want callback error", err)
	}
	if _, err := s.Update("3.9.0", "20240701", func(*InstanceRecord) error { return nil }); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrInstanceNotFound", err)
	}
}

func TestSave_ConcurrentWritersKeepIndexConsistent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	versions := []string{"3.8.19", "3.9.19", "3.10.14", "3.11.9", "3.12.4", "3.13.0"}

	var wg sync.WaitGroup
	for _, v := range versions {
		wg.Go(func() {
			if err := s.Save(record(s, v, "20240701")); err != nil {
				t.Errorf("Save(%s) error: %v", v, err)
			}
		})
	}
	wg.Wait()

	idx, ok := s.loadIndex()
	if !ok || len(idx.Instances) != len(versions) {
		t.Fatalf("index has %v entries, want %d", idx, len(versions))
	}
}

func TestRecordEnvironments(t *testing.T) {
	t.Parallel()

	var r InstanceRecord
	r.SetEnvironment(SubEnvironment{Name: "x", Path: "1"})
	r.SetEnvironment(SubEnvironment{Name: "x", Path: "2"})
	if e, ok := r.Environment("x"); !ok || e.Path != "2" || len(r.SubEnvironments) != 1 {
		t.Errorf("SetEnvironment did not replace: %+v", r.SubEnvironments)
	}
	if !r.RemoveEnvironment("x") || r.RemoveEnvironment("x") {
		t.Error("RemoveEnvironment should report presence exactly once")
	}
	if r.SubEnvironments != nil {
		t.Error("empty environment list should be nil so it is omitted")
	}
}

func keys(recs []*InstanceRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Key())
	}
	return out
}
