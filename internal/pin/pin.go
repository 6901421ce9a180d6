// SPDX-License-Identifier: MPL-2.0

// Package pin reads and writes the pyrt.toml project pin file, which fixes
// the interpreter version (and optionally the build date and environment)
// for a directory tree.
package pin

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

// FileName is the pin file looked up in a directory and its parents.
const FileName = "pyrt.toml"

// ErrNotFound is returned by Find when no pin file exists up to the filesystem root.
var ErrNotFound = errors.New("no " + FileName + " found")

type (
	// Pin is the content of a pin file.
	Pin struct {
		Python    string `toml:"python"`
		BuildDate string `toml:"build_date,omitempty"`
		Venv      string `toml:"venv,omitempty"`

		// Path is the file the pin was read from.
		Path string `toml:"-"`
	}

	// ParseError reports an unreadable or invalid pin file.
	ParseError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string { return fmt.Sprintf("pin file %s: %v", e.Path, e.Err) }

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Version parses the pinned version.
func (p *Pin) Version() (pyversion.Version, error) {
	return pyversion.Parse(p.Python)
}

// Validate reports whether the pin names a parseable version.
func (p *Pin) Validate() error {
	if p.Python == "" {
		return errors.New(`missing "python" key`)
	}
	_, err := p.Version()
	return err
}

// Read parses the pin file at path.
func Read(path string) (*Pin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Pin
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := p.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	p.Path = path
	return &p, nil
}

// Find walks from dir up to the filesystem root and returns the first pin
// file it can read.
func Find(dir string) (*Pin, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		p, err := Read(filepath.Join(abs, FileName))
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, ErrNotFound
		}
		abs = parent
	}
}

// Write stores p as dir/pyrt.toml and returns the file path.
func Write(dir string, p Pin) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("# Interpreter pinned for this project; managed by pyrt.\n")
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("encode pin: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
