// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ArchiveToolMissingId Id = iota + 1
	RateLimitedId
	NoMatchingAssetId
	VerificationFailedId
	ChecksumMismatchId
	DownloadFailedId
	UnsupportedPlatformId
	InvalidVersionId
	InterpreterMissingId
	EnvironmentLockedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // lookup key
	mdMsg    MarkdownMsg // rendered with glamour
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page with the named glamour style ("dark", "light",
// "notty", ...). External links are appended as a "See also" list.
func (i *Issue) Render(stylePath string) (string, error) {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(b.String(), stylePath)
}

var (
	render = glamour.Render

	archiveToolMissingIssue = &Issue{
		id: ArchiveToolMissingId,
		mdMsg: `
# An archive tool is missing!

Python distributions are published as ` + "`.tar.gz`" + `, ` + "`.tar.zst`" + ` and ` + "`.zip`" + `
archives. Tar archives are unpacked with the system ` + "`tar`" + ` tool, and
Zstandard archives also need ` + "`zstd`" + ` on the PATH.

## Things you can try:
- Install the missing tool with your package manager:
~~~
$ sudo apt-get install tar zstd
$ brew install zstd
~~~

- Check that the tools are reachable:
~~~
$ tar --version
$ zstd --version
~~~`,
	}

	rateLimitedIssue = &Issue{
		id: RateLimitedId,
		mdMsg: `
# GitHub API rate limit exceeded!

Release metadata is read from the GitHub API, which allows 60 unauthenticated
requests per hour.

## Things you can try:
- Wait until the limit resets and try again
- Provide a token to raise the limit:
~~~
$ export PYRT_GITHUB_TOKEN=ghp_...
~~~

- Use an already installed version: ` + "`pyrt list`",
		extLinks: []HttpLink{"https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	noMatchingAssetIssue = &Issue{
		id: NoMatchingAssetId,
		mdMsg: `
# No distribution matches your request!

No published release carries an archive for the requested version on this
platform.

## Things you can try:
- List the versions published for your host:
~~~
$ pyrt available
~~~

- Ask for a minor version (` + "`3.12`" + `) instead of an exact patch release
- Drop the ` + "`--build-date`" + ` flag to use the newest build`,
		extLinks: []HttpLink{"https://github.com/astral-sh/python-build-standalone/releases"},
	}

	verificationFailedIssue = &Issue{
		id: VerificationFailedId,
		mdMsg: `
# The unpacked distribution looks incomplete!

The archive was extracted but the interpreter or its standard library is
missing. The partial installation has been removed.

## Things you can try:
- Retry the installation; the download may have been truncated
- Check that the disk holding the runtime root is not full
- Report the asset name if the problem persists`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The downloaded archive does not match the checksum published with the
release. Nothing was installed.

## Things you can try:
- Retry; a proxy or a flaky connection may have corrupted the transfer
- Check ` + "`proxy_url`" + ` in your configuration`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# The download failed!

The archive could not be fetched after all retries.

## Things you can try:
- Check your network connection and proxy settings
- Raise ` + "`retry_attempts`" + ` or ` + "`retry_delay`" + ` in your configuration
- Run again with ` + "`--verbose`" + ` to see each attempt`,
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Host not supported!

No prebuilt distribution is published for this operating system and CPU
architecture.

## Things you can try:
- Use a system interpreter instead
- Run pyrt on a supported host (Linux, macOS or Windows on x86_64 or aarch64)`,
	}

	invalidVersionIssue = &Issue{
		id: InvalidVersionId,
		mdMsg: `
# Invalid version!

Versions are written as ` + "`major.minor`" + ` or ` + "`major.minor.patch`" + `,
optionally followed by a pre-release tag.

## Examples:
~~~
3.12
3.12.4
3.13.0rc2
~~~`,
	}

	interpreterMissingIssue = &Issue{
		id: InterpreterMissingId,
		mdMsg: `
# Interpreter not found!

The instance directory exists but its interpreter executable is gone.

## Things you can try:
- Reinstall the version:
~~~
$ pyrt remove 3.12.4
$ pyrt install 3.12.4
~~~`,
	}

	environmentLockedIssue = &Issue{
		id: EnvironmentLockedId,
		mdMsg: `
# The environment is in use!

Some files in the environment stayed locked after every retry.

## Things you can try:
- Stop processes running from the environment (shells, editors, servers)
- Try the deletion again`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration!

The configuration file could not be parsed or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ pyrt config show
~~~

- Check the CUE syntax of your ` + "`config.cue`" + `
- Remove the file to fall back to the defaults`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	issues = map[Id]*Issue{
		archiveToolMissingIssue.Id():  archiveToolMissingIssue,
		rateLimitedIssue.Id():         rateLimitedIssue,
		noMatchingAssetIssue.Id():     noMatchingAssetIssue,
		verificationFailedIssue.Id():  verificationFailedIssue,
		checksumMismatchIssue.Id():    checksumMismatchIssue,
		downloadFailedIssue.Id():      downloadFailedIssue,
		unsupportedPlatformIssue.Id(): unsupportedPlatformIssue,
		invalidVersionIssue.Id():      invalidVersionIssue,
		interpreterMissingIssue.Id():  interpreterMissingIssue,
		environmentLockedIssue.Id():   environmentLockedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	var out []*Issue
	for i := range maps.Values(issues) {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
