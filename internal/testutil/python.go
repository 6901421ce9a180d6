// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakePythonScript is a POSIX sh stand-in for an interpreter. It answers
// --version and -c, creates environments for "-m venv", and keeps a
// package list in <prefix>/.fake-packages for "-m pip". Package names
// starting with "fail" make pip install exit 1.
const fakePythonScript = `#!/bin/sh
here=$(cd "$(dirname "$0")/.." && pwd)
pkgs="$here/.fake-packages"
case "$1" in
--version)
	echo "Python @VERSION@"
	exit 0
	;;
-c)
	echo "$2"
	exit 0
	;;
-m)
	mod="$2"
	shift 2
	;;
*)
	echo "args: $*"
	exit 0
	;;
esac

case "$mod" in
venv)
	dest="$1"
	mkdir -p "$dest/bin" "$dest/lib" || exit 1
	cp "$0" "$dest/bin/python" || exit 1
	chmod +x "$dest/bin/python"
	echo "home = $here/bin" > "$dest/pyvenv.cfg"
	exit 0
	;;
pip)
	sub="$1"
	shift
	;;
*)
	echo "No module named $mod" >&2
	exit 1
	;;
esac

case "$sub" in
install)
	while [ $# -gt 0 ]; do
		case "$1" in
		-r)
			shift
			while IFS= read -r l; do
				[ -n "$l" ] && echo "${l%%==*}" >> "$pkgs"
			done < "$1"
			;;
		fail*)
			echo "ERROR: could not install $1" >&2
			exit 1
			;;
		-*) ;;
		*) echo "${1%%==*}" >> "$pkgs" ;;
		esac
		shift
	done
	exit 0
	;;
uninstall)
	for a in "$@"; do
		case "$a" in
		-*) ;;
		*)
			if [ -f "$pkgs" ]; then
				grep -vx "$a" "$pkgs" > "$pkgs.tmp"
				mv "$pkgs.tmp" "$pkgs"
			fi
			;;
		esac
	done
	exit 0
	;;
freeze)
	[ -f "$pkgs" ] && sed 's/$/==1.0.0/' "$pkgs"
	exit 0
	;;
list)
	printf '['
	sep=''
	if [ -f "$pkgs" ]; then
		while IFS= read -r n; do
			printf '%s{"name":"%s","version":"1.0.0"}' "$sep" "$n"
			sep=','
		done < "$pkgs"
	fi
	printf ']\n'
	exit 0
	;;
esac
echo "unknown pip command $sub" >&2
exit 2
`

// SkipIfWindows skips tests that rely on POSIX sh fake interpreters.
func SkipIfWindows(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreters are POSIX sh scripts")
	}
}

// FakePythonScript returns the fake interpreter script reporting version.
func FakePythonScript(version string) string {
	return strings.ReplaceAll(fakePythonScript, "@VERSION@", version)
}

// WriteFakePython lays out a minimal POSIX install root under root
// (bin/python3, lib/) and returns the interpreter path.
func WriteFakePython(t testing.TB, root, version string) string {
	t.Helper()
	python := filepath.Join(root, "bin", "python3")
	MustWriteFile(t, python, []byte(FakePythonScript(version)), 0o755)
	MustWriteFile(t, filepath.Join(root, "lib", "python"+shortVersion(version), "os.py"), []byte("# stub\n"), 0o644)
	return python
}

// FakePythonEntries returns archive entries for a fake install root nested
// under prefix, mirroring python-build-standalone install-only archives
// when prefix is "python".
func FakePythonEntries(prefix, version string) []ArchiveEntry {
	join := func(parts ...string) string {
		if prefix == "" {
			return strings.Join(parts, "/")
		}
		return prefix + "/" + strings.Join(parts, "/")
	}
	return []ArchiveEntry{
		{Name: join("bin") + "/", Dir: true},
		{Name: join("bin", "python3"), Body: FakePythonScript(version), Mode: 0o755},
		{Name: join("lib", "python"+shortVersion(version)) + "/", Dir: true},
		{Name: join("lib", "python"+shortVersion(version), "os.py"), Body: "# stub\n", Mode: 0o644},
	}
}

func shortVersion(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}
