// SPDX-License-Identifier: MPL-2.0

package pin

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyrt-dev/pyrt/internal/testutil"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

func TestWriteRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := Write(dir, Pin{Python: "3.12", BuildDate: "20240726", Venv: "dev"})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("Write() path = %s", path)
	}

	data := string(testutil.MustReadFile(t, path))
	for _, want := range []string{`python = '3.12'`, `build_date = '20240726'`, `venv = 'dev'`} {
		if !strings.Contains(data, want) {
			t.Errorf("pin file missing %q:\n%s", want, data)
		}
	}

	p, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if p.Python != "3.12" || p.BuildDate != "20240726" || p.Venv != "dev" || p.Path != path {
		t.Errorf("Read() = %+v", p)
	}
	v, err := p.Version()
	if err != nil || !v.IsPartial() || v.Request() != "3.12" {
		t.Errorf("Version() = %v, %v", v, err)
	}
}

func TestWrite_OmitsEmptyKeys(t *testing.T) {
	t.Parallel()

	path, err := Write(t.TempDir(), Pin{Python: "3.11.9"})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	data := string(testutil.MustReadFile(t, path))
	if strings.Contains(data, "build_date") || strings.Contains(data, "venv") {
		t.Errorf("empty keys written:\n%s", data)
	}
}

func TestWrite_RejectsInvalidVersion(t *testing.T) {
	t.Parallel()

	if _, err := Write(t.TempDir(), Pin{Python: "three"}); !errors.Is(err, pyversion.ErrInvalidVersion) {
		t.Errorf("Write() error = %v, want ErrInvalidVersion", err)
	}
}

func TestRead_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "python = "},
		{"missing python", "venv = 'dev'\n"},
		{"bad version", "python = 'latest'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), FileName)
			testutil.MustWriteFile(t, path, []byte(tt.content), 0o644)

			_, err := Read(path)
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Path != path {
				t.Errorf("Read() error = %v, want ParseError", err)
			}
		})
	}
}

func TestFind_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if _, err := Write(root, Pin{Python: "3.13"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	nested := filepath.Join(root, "src", "pkg")
	testutil.MustMkdirAll(t, nested, 0o755)

	p, err := Find(nested)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if p.Path != filepath.Join(root, FileName) || p.Python != "3.13" {
		t.Errorf("Find() = %+v", p)
	}

	// A closer pin wins.
	if _, err := Write(nested, Pin{Python: "3.11"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	p, err = Find(nested)
	if err != nil || p.Python != "3.11" {
		t.Errorf("Find() = %+v, %v", p, err)
	}
}

func TestFind_StopsOnBrokenFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, FileName), []byte("python = [\n"), 0o644)

	var pe *ParseError
	if _, err := Find(root); !errors.As(err, &pe) {
		t.Errorf("Find() error = %v, want ParseError", err)
	}
}
