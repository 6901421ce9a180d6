// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"testing"
)

// ArchiveEntry is one member of an archive built by the helpers below.
type ArchiveEntry struct {
	Name string
	Body string
	Mode os.FileMode
	Dir  bool
}

// TarGzBytes builds a gzip-compressed tarball in memory.
func TarGzBytes(t testing.TB, entries []ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: int64(modeOr(e.Mode, 0o644))}
		if e.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.Name, err)
		}
		if !e.Dir {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("tar body %s: %v", e.Name, err)
			}
		}
	}
	MustClose(t, tw)
	MustClose(t, gz)
	return buf.Bytes()
}

// ZipBytes builds a zip archive in memory.
func ZipBytes(t testing.TB, entries []ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		if e.Dir {
			fh.SetMode(os.ModeDir | 0o755)
		} else {
			fh.SetMode(modeOr(e.Mode, 0o644))
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		if !e.Dir {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("zip body %s: %v", e.Name, err)
			}
		}
	}
	MustClose(t, zw)
	return buf.Bytes()
}

func modeOr(m, def os.FileMode) os.FileMode {
	if m == 0 {
		return def
	}
	return m
}
