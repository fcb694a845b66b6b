// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/rewrite"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

type rewriteRequest struct {
	Source      string
	Target      string
	Coords      string
	BuildNumber string
}

// newRewriteCommand creates the `extpack rewrite` command.
func newRewriteCommand(app *App) *cobra.Command {
	var req rewriteRequest

	cmd := &cobra.Command{
		Use:   "rewrite <src> <dst>",
		Short: "Rewrite the embedded versions of one archive",
		Long: `Rewrite the version metadata of every extension jar inside an archive.

The archive identity given by --coords decides whether the archive is an
extension archive and which version the embedded metadata is moved to.
<dst> is only written when the rewrite succeeds; it may equal <src>.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Source, req.Target = args[0], args[1]
			return app.runRewrite(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVar(&req.Coords, "coords", "", "archive coordinates groupId:artifactId:version[:type[:classifier]]")
	cmd.Flags().StringVar(&req.BuildNumber, "build-number", "", "build number substituted for SNAPSHOT (default $"+versionpolicy.BuildNumberEnv+")")
	_ = cmd.MarkFlagRequired("coords")

	return cmd
}

func (a *App) runRewrite(ctx context.Context, req rewriteRequest) error {
	s, err := a.session(ctx)
	if err != nil {
		return a.fail(err)
	}

	id, err := coords.Parse(req.Coords)
	if err != nil {
		return a.fail(err)
	}

	opts := s.cfg.RewriteOptions(s.log)
	if req.BuildNumber != "" {
		versions := s.cfg.Versions()
		versions.Getenv = buildNumberEnv(req.BuildNumber)
		opts.Policy = versions.Policy()
	}

	res, err := rewrite.RewriteFile(ctx, req.Source, req.Target, id, opts)
	if err != nil {
		return a.fail(err)
	}

	printRewriteResult(a, req, res, s.verbose)
	return nil
}

func printRewriteResult(a *App, req rewriteRequest, res rewrite.Result, verbose bool) {
	if res.PassedThrough {
		fmt.Fprintf(a.stdout, "%s %s copied unchanged to %s %s\n",
			SuccessStyle.Render("✓"), req.Source, req.Target,
			SubtitleStyle.Render("(no extension jars)"))
		return
	}

	fmt.Fprintf(a.stdout, "%s Rewrote %s to %s: %d extension jar(s), %d change(s)\n",
		SuccessStyle.Render("✓"), req.Source, req.Target, res.ExtensionJars, len(res.Changes))
	if !verbose {
		return
	}
	for _, c := range res.Changes {
		fmt.Fprintf(a.stdout, "  %s %s → %s\n",
			KeyStyle.Render(c.Entry), VerboseStyle.Render(c.OldVersion), c.NewVersion)
	}
}

// buildNumberEnv resolves BUILD_NUMBER to override and everything else from
// the process environment.
func buildNumberEnv(override string) func(string) string {
	return func(key string) string {
		if key == versionpolicy.BuildNumberEnv {
			return override
		}
		return os.Getenv(key)
	}
}
