// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the extpack command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extpack",
		Short: "Rewrite and stage extension archives",
		Long: TitleStyle.Render("extpack") + SubtitleStyle.Render(" - Rewrite and stage extension archives") + `

extpack rewrites the version metadata embedded in extension jars so that
it matches the version the archive is published under. Nested jars are
processed recursively and every other entry is copied byte for byte.

` + SubtitleStyle.Render("Examples:") + `
  extpack rewrite app.zip out.zip --coords org.example:app:1.0-SNAPSHOT:extension-archive:zip
  extpack stage build/app.zip=org.example:app:1.0-SNAPSHOT:extension-archive:zip
  extpack inspect build/ext.jar
  extpack config show`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/extpack/config.cue)")

	rootCmd.AddCommand(newRewriteCommand(app))
	rootCmd.AddCommand(newStageCommand(app))
	rootCmd.AddCommand(newInspectCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// fail renders err with its catalog entry and turns it into an exit code.
func (a *App) fail(err error) error {
	renderFailure(a.stderr, err, a.verbose)
	return &ExitError{Code: 1}
}
