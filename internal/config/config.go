// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/invowk/extpack/internal/cueutil"
	"github.com/invowk/extpack/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "extpack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. EXTPACK_STAGING_DIR.
	EnvPrefix = "EXTPACK"
	// ConfigDirEnv names a directory that replaces the platform default
	// returned by ConfigDir.
	ConfigDirEnv = EnvPrefix + "_CONFIG_DIR"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the extpack configuration directory. $EXTPACK_CONFIG_DIR
// is used as is when set; otherwise Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the path of the user config file inside ConfigDir.
func FilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("organization_prefixes", defaults.OrganizationPrefixes)
	v.SetDefault("groups", defaults.Groups)
	v.SetDefault("exclude_classifiers", defaults.ExcludeClassifiers)
	v.SetDefault("copy_once_per_runtime", defaults.CopyOncePerRuntime)
	v.SetDefault("process_extension_versions", defaults.ProcessExtensionVersions)
	v.SetDefault("snapshot_version_as_build_number", defaults.SnapshotVersionAsBuildNumber)
	v.SetDefault("process_snapshot_versions", defaults.ProcessSnapshotVersions)
	v.SetDefault("include_version", defaults.IncludeVersion)
	v.SetDefault("staging_dir", string(defaults.StagingDir))
	v.SetDefault("lock.max_attempts", defaults.Lock.MaxAttempts)
	v.SetDefault("lock.base_backoff", defaults.Lock.BaseBackoff)
	v.SetDefault("lock.max_backoff", defaults.Lock.MaxBackoff)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	// --config is used exclusively when set.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'extpack config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", loadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		candidates := []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		}
		for _, path := range candidates {
			if !fileExists(path) {
				continue
			}
			if err := loadCUEIntoViper(v, path); err != nil {
				return nil, "", loadError(path, err)
			}
			resolvedPath = path
			break
		}
		// No config file found means defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		var details []error
		for _, e := range errs {
			var ice *InvalidConfigError
			if errors.As(e, &ice) {
				details = append(details, ice.FieldErrors...)
			}
		}
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Remove blank entries from list settings").
			WithSuggestion("Keep lock.max_backoff at or above lock.base_backoff").
			Wrap(fmt.Errorf("%w: %w", errs[0], errors.Join(details...))).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'extpack config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Fields are optional, so validation uses Concrete(false); the decoded map is
// merged over the defaults and still loses to environment overrides.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes the default config to path unless a file is
// already there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if fileExists(path) {
		return false, nil
	}
	if err := Save(DefaultConfig(), path); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes cfg to path as CUE.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// extpack configuration file\n")
	sb.WriteString("// Environment variables prefixed with EXTPACK_ override these values.\n\n")

	writeList(&sb, "organization_prefixes", cfg.OrganizationPrefixes)
	writeList(&sb, "groups", cfg.Groups)
	writeList(&sb, "exclude_classifiers", cfg.ExcludeClassifiers)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "copy_once_per_runtime: %v\n", cfg.CopyOncePerRuntime)
	fmt.Fprintf(&sb, "process_extension_versions: %v\n", cfg.ProcessExtensionVersions)
	fmt.Fprintf(&sb, "snapshot_version_as_build_number: %v\n", cfg.SnapshotVersionAsBuildNumber)
	fmt.Fprintf(&sb, "process_snapshot_versions: %v\n", cfg.ProcessSnapshotVersions)
	fmt.Fprintf(&sb, "include_version: %v\n", cfg.IncludeVersion)
	if cfg.StagingDir != "" {
		fmt.Fprintf(&sb, "staging_dir: %q\n", cfg.StagingDir)
	}

	sb.WriteString("\nlock: {\n")
	fmt.Fprintf(&sb, "\tmax_attempts: %d\n", cfg.Lock.MaxAttempts)
	fmt.Fprintf(&sb, "\tbase_backoff: %q\n", cfg.Lock.BaseBackoff.String())
	fmt.Fprintf(&sb, "\tmax_backoff: %q\n", cfg.Lock.MaxBackoff.String())
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(sb, "%s: []\n", key)
		return
	}
	fmt.Fprintf(sb, "%s: [\n", key)
	for _, v := range values {
		fmt.Fprintf(sb, "\t%q,\n", v)
	}
	sb.WriteString("]\n")
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
