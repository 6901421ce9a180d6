// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks distribution archives and checks the resulting
// interpreter layout.
//
// Zip archives are read in-process. Tar variants are handed to the system
// tar binary (and zstd for .tar.zst), which are probed once per Extractor;
// a missing tool is reported as an UnsupportedFormatError naming the tool
// to install.
package archive
