// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	FileNotFoundId Id = iota + 1
	ArchiveCorruptId
	MetadataMalformedId
	VersionPolicyFailedId
	ArchiveIOFailedId
	InvalidCoordinatesId
	ConfigLoadFailedId
	LockTimeoutId
	NoExtensionDefinitionId
	ReportFormatUnsupportedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at
// stylePath ("" selects glamour's default).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# File not found!

The archive or artifact you named does not exist or cannot be read.

## Things you can try:
- Check the path for typos
- Make sure the build that produces the artifact has run`,
	}

	archiveCorruptIssue = &Issue{
		id: ArchiveCorruptId,
		mdMsg: `
# Archive is corrupt!

The source archive, or a jar nested inside it, is not a readable zip file.
Nothing was written to the destination.

## Things you can try:
- Rebuild the artifact and try again
- Check the archive with:
~~~
$ unzip -t path/to/archive.zip
~~~`,
	}

	metadataMalformedIssue = &Issue{
		id: MetadataMalformedId,
		mdMsg: `
# Version metadata is malformed!

A manifest, properties file or POM inside an extension jar could not be parsed,
so its version could not be rewritten.

## Things you can try:
- Run with --verbose to see which entry failed
- Inspect the entry with 'extpack inspect'`,
	}

	versionPolicyFailedIssue = &Issue{
		id: VersionPolicyFailedId,
		mdMsg: `
# Version policy failed!

The new version for an extension jar could not be computed.

## Things you can try:
- Check the BUILD_NUMBER environment variable
- Check 'snapshot_version_as_build_number' in your configuration`,
	}

	archiveIOFailedIssue = &Issue{
		id: ArchiveIOFailedId,
		mdMsg: `
# Archive could not be written!

Reading the source or writing the destination failed part way through.
The destination was left untouched.

## Things you can try:
- Check free disk space in the staging directory
- Check write permissions on the destination directory`,
	}

	invalidCoordinatesIssue = &Issue{
		id: InvalidCoordinatesId,
		mdMsg: `
# Invalid artifact coordinates!

Coordinates take the form:
~~~
groupId:artifactId:version[:type[:classifier]]
~~~

## Example:
~~~
$ extpack rewrite in.zip out.zip --coords com.logonbox:logonbox-vpn:2.4.0-SNAPSHOT:zip:extension-archive
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your configuration file could not be loaded or does not match the schema.

## Things you can try:
- Print the defaults and compare:
~~~
$ extpack config show
~~~
- Write a fresh default file:
~~~
$ extpack config init
~~~`,
	}

	lockTimeoutIssue = &Issue{
		id: LockTimeoutId,
		mdMsg: `
# Timed out waiting for another build!

Another process held the lock for the same artifact for longer than the
configured retry budget.

## Things you can try:
- Wait for the other build to finish
- Raise 'lock.max_attempts' or 'lock.max_backoff' in your configuration`,
	}

	noExtensionDefinitionIssue = &Issue{
		id: NoExtensionDefinitionId,
		mdMsg: `
# No extension definition found!

The archive does not contain an 'extension.def' entry in any directory.

## Things you can try:
- Check that you passed the extension jar and not its parent archive`,
	}

	reportFormatUnsupportedIssue = &Issue{
		id: ReportFormatUnsupportedId,
		mdMsg: `
# Unsupported report format!

Run reports are written as TOML or YAML, chosen by the file extension.

## Things you can try:
- Use a path ending in .toml, .yaml or .yml`,
	}

	issues = map[Id]*Issue{
		fileNotFoundIssue.Id():            fileNotFoundIssue,
		archiveCorruptIssue.Id():          archiveCorruptIssue,
		metadataMalformedIssue.Id():       metadataMalformedIssue,
		versionPolicyFailedIssue.Id():     versionPolicyFailedIssue,
		archiveIOFailedIssue.Id():         archiveIOFailedIssue,
		invalidCoordinatesIssue.Id():      invalidCoordinatesIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		lockTimeoutIssue.Id():             lockTimeoutIssue,
		noExtensionDefinitionIssue.Id():   noExtensionDefinitionIssue,
		reportFormatUnsupportedIssue.Id(): reportFormatUnsupportedIssue,
	}
)

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	ids := maps.Keys(issues)
	slices.Sort(ids)
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
