// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/extpack/internal/runcache"
	"github.com/invowk/extpack/internal/staging"
	"github.com/invowk/extpack/pkg/coords"
)

type stageRequest struct {
	Specs       []string
	StagingDirs []string
	Jobs        int
	ReportPath  string
}

// newStageCommand creates the `extpack stage` command.
func newStageCommand(app *App) *cobra.Command {
	var req stageRequest

	cmd := &cobra.Command{
		Use:   "stage <file=coords>...",
		Short: "Stage provisioned artifacts into the extension store",
		Long: `Stage provisioned artifacts into one or more staging areas.

Each argument pairs a local file with its coordinates, for example
  build/app.zip=org.example:app:1.0-SNAPSHOT:zip:extension-archive

Artifacts are placed at <staging>/<version>/<artifactId>/<file>. Extension
archives are version-rewritten on the way; with copy_once_per_runtime set,
later requests for the same artifact and version are linked to the first
output instead of being rewritten again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Specs = args
			return app.runStage(cmd.Context(), req)
		},
	}

	cmd.Flags().StringArrayVar(&req.StagingDirs, "staging", nil, "staging area (repeatable, default staging_dir from config)")
	cmd.Flags().IntVarP(&req.Jobs, "jobs", "j", runtime.NumCPU(), "artifacts staged concurrently")
	cmd.Flags().StringVar(&req.ReportPath, "report", "", "write a run report (.toml, .yaml or .yml)")

	return cmd
}

func (a *App) runStage(ctx context.Context, req stageRequest) error {
	s, err := a.session(ctx)
	if err != nil {
		return a.fail(err)
	}

	artifacts := make([]staging.Artifact, 0, len(req.Specs))
	for _, spec := range req.Specs {
		art, err := parseArtifactSpec(spec)
		if err != nil {
			return a.fail(err)
		}
		artifacts = append(artifacts, art)
	}

	dirs := req.StagingDirs
	if len(dirs) == 0 {
		dirs = []string{s.cfg.StagingDir.OrDefault()}
	}

	packager := &staging.Packager{
		StagingDirs:             dirs,
		Rewrite:                 s.cfg.RewriteOptions(s.log),
		Versions:                s.cfg.Versions(),
		ProcessSnapshotVersions: s.cfg.ProcessSnapshotVersions,
		IncludeVersion:          s.cfg.IncludeVersion,
		Filter:                  s.cfg.Filter(),
		Cache:                   runcache.New(s.cfg.CacheOptions(s.log)),
		Logger:                  s.log,
		Jobs:                    req.Jobs,
	}

	records, err := packager.StageAll(ctx, artifacts)
	if err != nil {
		return a.fail(err)
	}

	printRecords(a, records, s.verbose)

	if req.ReportPath != "" {
		if err := staging.WriteReport(req.ReportPath, records); err != nil {
			return a.fail(err)
		}
		fmt.Fprintf(a.stdout, "%s Report written to %s\n", SuccessStyle.Render("✓"), req.ReportPath)
	}
	return nil
}

// parseArtifactSpec splits "path=coords". Coordinates never contain '=', so
// the last one separates the two.
func parseArtifactSpec(spec string) (staging.Artifact, error) {
	idx := strings.LastIndex(spec, "=")
	if idx <= 0 {
		return staging.Artifact{}, fmt.Errorf("%w: %q (expected <file>=<coords>)", coords.ErrInvalidCoordinates, spec)
	}
	id, err := coords.Parse(spec[idx+1:])
	if err != nil {
		return staging.Artifact{}, err
	}
	return staging.Artifact{Path: spec[:idx], Identity: id}, nil
}

func printRecords(a *App, records []staging.Record, verbose bool) {
	for _, r := range records {
		label := outcomeStyle(r.Outcome).Render(fmt.Sprintf("%-14s", r.Outcome))
		switch {
		case r.Target == "":
			fmt.Fprintf(a.stdout, "%s %s\n", label, r.Artifact)
		case r.LinkedTo != "":
			fmt.Fprintf(a.stdout, "%s %s → %s\n", label, r.Target, SubtitleStyle.Render(r.LinkedTo))
		default:
			fmt.Fprintf(a.stdout, "%s %s\n", label, r.Target)
		}
		if !verbose {
			continue
		}
		for _, c := range r.Changes {
			fmt.Fprintf(a.stdout, "  %s %s → %s\n",
				KeyStyle.Render(c.Entry), VerboseStyle.Render(c.OldVersion), c.NewVersion)
		}
	}

	sum := staging.Summarize(records)
	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s %d rewritten, %d linked, %d passed through, %d skipped (%d extension jar(s))\n",
		TitleStyle.Render("Staged:"),
		sum.Rewritten, sum.Linked, sum.PassedThrough,
		sum.Excluded+sum.Ignored+sum.Duplicate, sum.ExtensionJars)
}
