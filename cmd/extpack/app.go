// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/extpack/internal/config"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App reference; nothing in this package reads package-level
	// state.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer

		// Global flag values, bound by NewRootCommand.
		verbose    bool
		configPath string
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// session is the per-invocation state shared by the command handlers.
	session struct {
		cfg     *config.Config
		log     *log.Logger
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// session loads the configuration named by --config (or the default lookup)
// and builds the logger. --verbose wins over ui.verbose only when set.
func (a *App) session(ctx context.Context) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}
	verbose := a.verbose || cfg.UI.Verbose
	return &session{
		cfg:     cfg,
		log:     newLogger(a.stderr, verbose),
		verbose: verbose,
	}, nil
}

// newLogger returns the CLI logger. Debug output (per-entry rewrite
// decisions) is enabled in verbose mode.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}
