// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
)

// ErrUnsupportedPlatform is the sentinel error wrapped by UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type (
	// Descriptor identifies the host for archive matching. It is immutable once built.
	Descriptor struct {
		OS           string
		Arch         string
		Libc         string // empty on non-Linux hosts
		TargetTriple string
	}

	// UnsupportedPlatformError is returned when no distribution target triple
	// exists for the OS/arch pair.
	UnsupportedPlatformError struct {
		OS   string
		Arch string
	}
)

// hostOnce caches the host descriptor for the lifetime of the process.
// The host cannot change while the process runs.
var hostOnce = sync.OnceValues(func() (Descriptor, error) {
	libc := ""
	if runtime.GOOS == Linux {
		libc = detectLibc(filepath.Glob)
	}
	return DescriptorFor(runtime.GOOS, runtime.GOARCH, libc)
})

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s: no distribution is published for this host", e.OS, e.Arch)
}

// Unwrap returns ErrUnsupportedPlatform for errors.Is() compatibility.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Host returns the descriptor of the running host. The result is computed once.
func Host() (Descriptor, error) {
	return hostOnce()
}

// DescriptorFor builds a descriptor for an explicit OS/arch/libc combination.
// An empty libc on Linux defaults to glibc.
func DescriptorFor(goos, goarch, libc string) (Descriptor, error) {
	if goos == Linux && libc == "" {
		libc = LibcGNU
	}
	if goos != Linux {
		libc = ""
	}

	triple, ok := targetTriple(goos, goarch, libc)
	if !ok {
		return Descriptor{}, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	return Descriptor{
		OS:           goos,
		Arch:         goarch,
		Libc:         libc,
		TargetTriple: triple,
	}, nil
}

// IsWindows reports whether the descriptor targets Windows.
func (d Descriptor) IsWindows() bool { return d.OS == Windows }

// String returns the target triple.
func (d Descriptor) String() string { return d.TargetTriple }

// InterpreterPath returns the interpreter location inside an installed runtime root.
func (d Descriptor) InterpreterPath(root string) string {
	if d.IsWindows() {
		return filepath.Join(root, "python.exe")
	}
	return filepath.Join(root, "bin", "python3")
}

// EnvInterpreterPath returns the interpreter location inside a sub-environment directory.
func (d Descriptor) EnvInterpreterPath(envDir string) string {
	if d.IsWindows() {
		return filepath.Join(envDir, "Scripts", "python.exe")
	}
	return filepath.Join(envDir, "bin", "python")
}

func targetTriple(goos, goarch, libc string) (string, bool) {
	var cpu string
	switch goarch {
	case "amd64":
		cpu = "x86_64"
	case "arm64":
		cpu = "aarch64"
	case "386":
		cpu = "i686"
	case "ppc64le":
		cpu = "ppc64le"
	case "s390x":
		cpu = "s390x"
	case "riscv64":
		cpu = "riscv64gc"
	default:
		return "", false
	}

	switch goos {
	case Linux:
		return cpu + "-unknown-linux-" + libc, true
	case Darwin:
		if cpu != "x86_64" && cpu != "aarch64" {
			return "", false
		}
		return cpu + "-apple-darwin", true
	case Windows:
		if cpu != "x86_64" && cpu != "aarch64" && cpu != "i686" {
			return "", false
		}
		return cpu + "-pc-windows-msvc", true
	default:
		return "", false
	}
}

// detectLibc reports musl when a musl dynamic loader is present.
func detectLibc(glob func(string) ([]string, error)) string {
	for _, pattern := range []string{"/lib/ld-musl-*.so.1", "/usr/lib/ld-musl-*.so.1"} {
		if matches, err := glob(pattern); err == nil && len(matches) > 0 {
			return LibcMusl
		}
	}
	return LibcGNU
}
