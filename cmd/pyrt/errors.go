// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pyrt-dev/pyrt/internal/acquire"
	"github.com/pyrt-dev/pyrt/internal/archive"
	"github.com/pyrt-dev/pyrt/internal/catalog"
	"github.com/pyrt-dev/pyrt/internal/config"
	"github.com/pyrt-dev/pyrt/internal/issue"
	"github.com/pyrt-dev/pyrt/internal/pin"
	"github.com/pyrt-dev/pyrt/internal/runtime"
	"github.com/pyrt-dev/pyrt/internal/store"
	"github.com/pyrt-dev/pyrt/internal/venv"
	"github.com/pyrt-dev/pyrt/pkg/platform"
	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

// presentedError prints as the full actionable message, suggestions included.
type presentedError struct {
	ae      *issue.ActionableError
	verbose bool
}

func (e *presentedError) Error() string { return e.ae.Format(e.verbose) }

func (e *presentedError) Unwrap() error { return e.ae }

// fail turns err into a user-facing error for operation on resource and
// prints the matching help page when one applies. Exit statuses pass through.
func (a *App) fail(operation, resource string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	ae := actionable(operation, resource, err)
	a.renderHelp(ae.Help)
	return &presentedError{ae: ae, verbose: a.verbose}
}

func actionable(operation, resource string, err error) *issue.ActionableError {
	var existing *issue.ActionableError
	if errors.As(err, &existing) {
		out := *existing
		if out.Help == 0 {
			out.Help = helpFor(err)
		}
		return &out
	}
	return issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithSuggestions(suggestionsFor(err)...).
		WithHelp(helpFor(err)).
		Wrap(err).
		Build()
}

// helpFor maps a failure to its help page; zero means none.
func helpFor(err error) issue.Id {
	var (
		rateErr   *catalog.RateLimitError
		formatErr *archive.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &formatErr) && len(formatErr.MissingTools) > 0:
		return issue.ArchiveToolMissingId
	case errors.As(err, &rateErr):
		return issue.RateLimitedId
	case errors.Is(err, catalog.ErrNoMatchingAsset):
		return issue.NoMatchingAssetId
	case errors.Is(err, acquire.ErrChecksumMismatch):
		return issue.ChecksumMismatchId
	case errors.Is(err, archive.ErrVerificationFailed):
		return issue.VerificationFailedId
	case errors.Is(err, acquire.ErrDownloadFailed):
		return issue.DownloadFailedId
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return issue.UnsupportedPlatformId
	case errors.Is(err, pyversion.ErrInvalidVersion):
		return issue.InvalidVersionId
	case errors.Is(err, runtime.ErrInterpreterMissing), errors.Is(err, runtime.ErrStartFailed):
		return issue.InterpreterMissingId
	case errors.Is(err, venv.ErrDeleteFailed):
		return issue.EnvironmentLockedId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	}
	return 0
}

func suggestionsFor(err error) []string {
	var formatErr *archive.UnsupportedFormatError
	switch {
	case errors.As(err, &formatErr) && len(formatErr.MissingTools) > 0:
		return []string{fmt.Sprintf("Install %s and retry", strings.Join(formatErr.MissingTools, " and "))}
	case errors.Is(err, catalog.ErrNoMatchingAsset):
		return []string{"Run 'pyrt available' to list the versions published for this platform"}
	case errors.Is(err, store.ErrInstanceNotFound):
		return []string{"Run 'pyrt list' to see installed runtimes", "Run 'pyrt install <version>' to install one"}
	case errors.Is(err, venv.ErrEnvironmentNotFound):
		return []string{"Run 'pyrt venv list' to see the environments of this runtime"}
	case errors.Is(err, pyversion.ErrInvalidVersion):
		return []string{"Use a version like 3.12 or 3.12.4"}
	case errors.Is(err, platform.ErrInvalidDirName):
		return []string{"Use a name made of letters, digits, dashes and underscores"}
	case errors.Is(err, pin.ErrNotFound):
		return []string{"Run 'pyrt pin <version>' in the project root"}
	case errors.Is(err, store.ErrMetadataCorrupt):
		return []string{"Run 'pyrt prune' and reinstall the runtime"}
	}
	return nil
}

// renderHelp prints a help page when stderr is a terminal or verbose
// output was requested.
func (a *App) renderHelp(id issue.Id) {
	if id == 0 {
		return
	}
	page := issue.Get(id)
	if page == nil {
		return
	}
	tty := isTerminal(a.stderr)
	if !tty && !a.verbose {
		return
	}
	rendered, err := page.Render(glamourStyle(a.cfg.UI.ColorScheme, tty))
	if err != nil {
		a.logger.Warn("failed to render help page", "id", id, "err", err)
		return
	}
	_, _ = fmt.Fprint(a.stderr, rendered)
}

func glamourStyle(scheme config.ColorScheme, tty bool) string {
	switch {
	case !tty:
		return "notty"
	case scheme == config.ColorSchemeLight:
		return "light"
	default:
		return "dark"
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
