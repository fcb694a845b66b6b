// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/invowk/extpack/internal/config"
	"github.com/invowk/extpack/internal/issue"
	"github.com/invowk/extpack/internal/runcache"
	"github.com/invowk/extpack/internal/staging"
	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/rewrite"
)

// classifyError maps a command failure to an issue catalog ID. Zero means the
// catalog has no entry for it.
func classifyError(err error) issue.Id {
	var ae *issue.ActionableError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, rewrite.ErrNoDefinition):
		return issue.NoExtensionDefinitionId
	case errors.Is(err, coords.ErrInvalidCoordinates):
		return issue.InvalidCoordinatesId
	case errors.Is(err, runcache.ErrLockTimeout):
		return issue.LockTimeoutId
	case errors.Is(err, staging.ErrUnsupportedReportFormat):
		return issue.ReportFormatUnsupportedId
	case errors.Is(err, config.ErrInvalidConfig),
		errors.As(err, &ae) && ae.Operation == "load configuration":
		return issue.ConfigLoadFailedId
	case errors.Is(err, fs.ErrNotExist):
		return issue.FileNotFoundId
	case errors.Is(err, rewrite.ErrArchiveCorrupt):
		return issue.ArchiveCorruptId
	case errors.Is(err, rewrite.ErrMetadataMalformed):
		return issue.MetadataMalformedId
	case errors.Is(err, rewrite.ErrVersionPolicy):
		return issue.VersionPolicyFailedId
	case errors.Is(err, rewrite.ErrIOFailure):
		return issue.ArchiveIOFailedId
	default:
		return 0
	}
}

// rewriteSuggestions are the hints shown for each rewrite failure kind.
var rewriteSuggestions = map[error][]string{
	rewrite.ErrArchiveCorrupt: {
		"Check that the source archive was fully written and is a valid zip file",
		"Rebuild the extension archive",
	},
	rewrite.ErrMetadataMalformed: {
		"Fix the syntax of the named entry and rebuild the extension jar",
	},
	rewrite.ErrVersionPolicy: {
		"Check BUILD_NUMBER and the version policy settings",
	},
	rewrite.ErrIOFailure: {
		"Check free space and permissions on the source and destination paths",
	},
}

// actionableFor returns err as an ActionableError when it is one or wraps a
// rewrite failure, and nil otherwise.
func actionableFor(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}
	var re *rewrite.Error
	if !errors.As(err, &re) {
		return nil
	}
	var cause error
	switch {
	case re.Kind == nil:
		cause = re.Err
	case re.Err == nil:
		cause = re.Kind
	default:
		cause = fmt.Errorf("%w: %w", re.Kind, re.Err)
	}
	ctx := issue.NewErrorContext().
		WithOperation("rewrite " + re.Artifact).
		WithResource(re.Entry).
		Wrap(cause)
	for _, s := range rewriteSuggestions[re.Kind] {
		ctx.WithSuggestion(s)
	}
	return ctx.Build()
}

// formatErrorForDisplay formats an error for user display. Actionable and
// rewrite failures carry suggestions; in verbose mode the full error chain
// is shown.
func formatErrorForDisplay(err error, verboseMode bool) string {
	if ae := actionableFor(err); ae != nil {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderFailure writes the styled error and, when the catalog knows the
// failure, its help text.
func renderFailure(stderr io.Writer, err error, verbose bool) {
	fmt.Fprintf(stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	id := classifyError(err)
	if id == 0 {
		return
	}
	if entry := issue.Get(id); entry != nil {
		rendered, renderErr := entry.Render("")
		if renderErr != nil {
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}
