// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/pyrt-dev/pyrt/pkg/platform"
)

// maxRootDepth is how many directory levels below the extraction root are
// searched for the real install root.
const maxRootDepth = 2

// VerifyLayout checks that root holds a runnable interpreter tree for d:
// python.exe on Windows, bin/python3 and lib/ elsewhere.
func VerifyLayout(root string, d platform.Descriptor) error {
	var missing []string
	if d.IsWindows() {
		if !isFile(filepath.Join(root, "python.exe")) {
			missing = append(missing, "python.exe")
		}
	} else {
		if !isFile(filepath.Join(root, "bin", "python3")) {
			missing = append(missing, filepath.Join("bin", "python3"))
		}
		if !isDir(filepath.Join(root, "lib")) {
			missing = append(missing, "lib"+string(filepath.Separator))
		}
	}
	if len(missing) > 0 {
		return &VerificationError{Root: root, Missing: missing}
	}
	return nil
}

// LocateRoot finds the directory under extractDir that passes VerifyLayout,
// searching extractDir itself and then up to two levels of subdirectories
// in lexical order. It returns extractDir and false when nothing matches.
func LocateRoot(extractDir string, d platform.Descriptor) (string, bool) {
	level := []string{extractDir}
	for depth := 0; depth <= maxRootDepth; depth++ {
		var next []string
		for _, dir := range level {
			if VerifyLayout(dir, d) == nil {
				return dir, true
			}
			next = append(next, subdirs(dir)...)
		}
		level = next
	}
	return extractDir, false
}

func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
