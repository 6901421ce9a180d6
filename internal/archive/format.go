// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"strings"
)

// Archive formats recognized by DetectFormat.
const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGz
	FormatTarBz2
	FormatTarZst
)

// Format identifies how an archive must be unpacked.
type Format int

// suffixes lists compound extensions before the simple ones they contain.
var suffixes = []struct {
	ext    string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.bz2", FormatTarBz2},
	{".tbz2", FormatTarBz2},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".zst", FormatTarZst},
	{".zip", FormatZip},
	{".tar", FormatTar},
}

// DetectFormat maps a file name to its archive format by extension.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) {
			return s.format
		}
	}
	return FormatUnknown
}

// IsArchiveName reports whether name has a recognized archive extension.
func IsArchiveName(name string) bool {
	return DetectFormat(name) != FormatUnknown
}

// String returns the canonical extension of the format.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarBz2:
		return "tar.bz2"
	case FormatTarZst:
		return "tar.zst"
	default:
		return "unknown"
	}
}

// RequiredTools lists the external binaries needed to unpack the format.
func (f Format) RequiredTools() []string {
	switch f {
	case FormatTar, FormatTarGz, FormatTarBz2:
		return []string{toolTar}
	case FormatTarZst:
		return []string{toolTar, toolZstd}
	default:
		return nil
	}
}

// tarFlags returns the tar extraction flags for the format. Zstd archives
// are decompressed separately and then read as plain tar.
func (f Format) tarFlags() string {
	switch f {
	case FormatTarGz:
		return "-xzf"
	case FormatTarBz2:
		return "-xjf"
	default:
		return "-xf"
	}
}
