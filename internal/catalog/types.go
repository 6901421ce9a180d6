// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"time"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

type (
	// Release is one published release of the distribution source.
	Release struct {
		ID          int64
		TagName     string
		Name        string
		Draft       bool
		Prerelease  bool
		PublishedAt time.Time
		Assets      []Asset
	}

	// Asset is one downloadable artifact within a release.
	Asset struct {
		ID          int64
		Name        string
		DownloadURL string
		Size        int64
		UpdatedAt   time.Time
	}

	// Resolution is the outcome of resolving a request to one archive.
	Resolution struct {
		// Version is the concrete version the asset provides.
		Version pyversion.Version
		// BuildDate is YYYYMMDD, or BuildDateUnknown when the release tag has no date.
		BuildDate string
		// Release is the release that contains Asset.
		Release Release
		Asset   Asset
		// InstallOnly reports whether Asset is an install-only archive.
		InstallOnly bool
	}

	// Available is one version/build pair published for the host platform.
	Available struct {
		Version     pyversion.Version
		BuildDate   string
		AssetName   string
		InstallOnly bool
	}
)
