// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/extpack/internal/config"
)

// pathResolver is implemented by config providers that report which file a
// configuration was read from.
type pathResolver interface {
	LoadWithPath(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
}

// newConfigCommand creates the `extpack config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage extpack configuration",
		Long: `Manage extpack configuration.

Configuration is stored in:
  - Linux: ~/.config/extpack/config.cue
  - macOS: ~/Library/Application Support/extpack/config.cue
  - Windows: %APPDATA%\extpack\config.cue

A config.cue in the working directory is used when the user file is absent.
Environment variables prefixed with EXTPACK_ override file values, for
example EXTPACK_STAGING_DIR or EXTPACK_LOCK_MAX_ATTEMPTS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfigPath()
		},
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context) error {
	opts := config.LoadOptions{ConfigFilePath: a.configPath}

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if pr, ok := a.Config.(pathResolver); ok {
		cfg, path, err = pr.LoadWithPath(ctx, opts)
	} else {
		cfg, err = a.Config.Load(ctx, opts)
	}
	if err != nil {
		return a.fail(err)
	}

	source := SubtitleStyle.Render("(using defaults)")
	if path != "" {
		source = path
	}
	fmt.Fprintf(a.stdout, "// %s: %s\n", KeyStyle.Render("Config file"), source)
	fmt.Fprint(a.stdout, config.GenerateCUE(cfg))
	return nil
}

func (a *App) initConfig() error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.FilePath(); err != nil {
			return a.fail(err)
		}
	}

	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return a.fail(err)
	}
	if !created {
		fmt.Fprintf(a.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func (a *App) showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return a.fail(err)
	}
	path, err := config.FilePath()
	if err != nil {
		return a.fail(err)
	}

	fmt.Fprintf(a.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(a.stdout, "Config file: %s\n", path)
	return nil
}
