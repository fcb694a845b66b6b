// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/rewrite"
)

const (
	// DefaultStagingDir is the staging area used when none is configured.
	DefaultStagingDir = "target/extension-store"
	// DefaultLockMaxAttempts bounds cross-process lock acquisition.
	DefaultLockMaxAttempts = 50
	// DefaultLockBaseBackoff is the first lock retry delay.
	DefaultLockBaseBackoff = 100 * time.Millisecond
	// DefaultLockMaxBackoff caps the lock retry delay.
	DefaultLockMaxBackoff = 2 * time.Second
)

var (
	// ErrInvalidStagingDir is returned when a StagingDir value is whitespace-only.
	ErrInvalidStagingDir = errors.New("invalid staging dir")
	// ErrInvalidListEntry is the sentinel error wrapped by InvalidListEntryError.
	ErrInvalidListEntry = errors.New("invalid list entry")
	// ErrInvalidLockConfig is the sentinel error wrapped by InvalidLockConfigError.
	ErrInvalidLockConfig = errors.New("invalid lock config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// StagingDir is the directory artifacts are staged into.
	// The zero value means DefaultStagingDir.
	StagingDir string

	// InvalidStagingDirError is returned when a StagingDir value is
	// non-empty but whitespace-only.
	InvalidStagingDirError struct {
		Value StagingDir
	}

	// InvalidListEntryError is returned when a list field holds a blank entry.
	// It wraps ErrInvalidListEntry for errors.Is() compatibility.
	InvalidListEntryError struct {
		Field string
		Index int
	}

	// InvalidLockConfigError is returned when a LockConfig has invalid fields.
	// It wraps ErrInvalidLockConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidLockConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// OrganizationPrefixes lists artifact ID prefixes of jars that may be extensions.
		OrganizationPrefixes []string `json:"organization_prefixes" mapstructure:"organization_prefixes"`
		// Groups lists the group IDs whose artifacts are staged.
		Groups []string `json:"groups" mapstructure:"groups"`
		// ExcludeClassifiers lists classifiers that are never staged.
		ExcludeClassifiers []string `json:"exclude_classifiers" mapstructure:"exclude_classifiers"`
		// CopyOncePerRuntime memoizes rewrites for the duration of a run.
		CopyOncePerRuntime bool `json:"copy_once_per_runtime" mapstructure:"copy_once_per_runtime"`
		// ProcessExtensionVersions enables version rewriting.
		ProcessExtensionVersions bool `json:"process_extension_versions" mapstructure:"process_extension_versions"`
		// SnapshotVersionAsBuildNumber replaces SNAPSHOT with $BUILD_NUMBER.
		SnapshotVersionAsBuildNumber bool `json:"snapshot_version_as_build_number" mapstructure:"snapshot_version_as_build_number"`
		// ProcessSnapshotVersions collapses timestamped snapshot versions.
		ProcessSnapshotVersions bool `json:"process_snapshot_versions" mapstructure:"process_snapshot_versions"`
		// IncludeVersion puts the version in staged file names.
		IncludeVersion bool `json:"include_version" mapstructure:"include_version"`
		// StagingDir is the default staging area.
		StagingDir StagingDir `json:"staging_dir" mapstructure:"staging_dir"`
		// Lock configures cross-process lock acquisition.
		Lock LockConfig `json:"lock" mapstructure:"lock"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// LockConfig bounds how long a run waits for another process holding
	// the same artifact lock.
	LockConfig struct {
		MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
		BaseBackoff time.Duration `json:"base_backoff" mapstructure:"base_backoff"`
		MaxBackoff  time.Duration `json:"max_backoff" mapstructure:"max_backoff"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the StagingDir.
func (d StagingDir) String() string { return string(d) }

// IsValid returns whether the StagingDir is valid.
// The zero value ("") is valid (means DefaultStagingDir).
// Non-zero values must not be whitespace-only.
func (d StagingDir) IsValid() (bool, []error) {
	if d == "" {
		return true, nil
	}
	if strings.TrimSpace(string(d)) == "" {
		return false, []error{&InvalidStagingDirError{Value: d}}
	}
	return true, nil
}

// OrDefault returns d, or DefaultStagingDir when d is empty.
func (d StagingDir) OrDefault() string {
	if d == "" {
		return DefaultStagingDir
	}
	return string(d)
}

// Error implements the error interface for InvalidStagingDirError.
func (e *InvalidStagingDirError) Error() string {
	return fmt.Sprintf("invalid staging dir %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidStagingDir for errors.Is() compatibility.
func (e *InvalidStagingDirError) Unwrap() error { return ErrInvalidStagingDir }

// Error implements the error interface for InvalidListEntryError.
func (e *InvalidListEntryError) Error() string {
	return fmt.Sprintf("%s[%d]: entry must not be blank", e.Field, e.Index)
}

// Unwrap returns ErrInvalidListEntry for errors.Is() compatibility.
func (e *InvalidListEntryError) Unwrap() error { return ErrInvalidListEntry }

// IsValid returns whether the LockConfig has valid fields.
func (c LockConfig) IsValid() (bool, []error) {
	var errs []error
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BaseBackoff <= 0 {
		errs = append(errs, fmt.Errorf("base_backoff must be positive, got %s", c.BaseBackoff))
	}
	if c.MaxBackoff < c.BaseBackoff {
		errs = append(errs, fmt.Errorf("max_backoff %s is below base_backoff %s", c.MaxBackoff, c.BaseBackoff))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLockConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLockConfigError.
func (e *InvalidLockConfigError) Error() string {
	return fmt.Sprintf("invalid lock config: %s", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidLockConfig for errors.Is() compatibility.
func (e *InvalidLockConfigError) Unwrap() error { return ErrInvalidLockConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to StagingDir.IsValid() and Lock.IsValid() and checks that
// no list field holds a blank entry. Bool fields need no validation.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	errs = append(errs, blankEntries("organization_prefixes", c.OrganizationPrefixes)...)
	errs = append(errs, blankEntries("groups", c.Groups)...)
	errs = append(errs, blankEntries("exclude_classifiers", c.ExcludeClassifiers)...)
	if valid, fieldErrs := c.StagingDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Lock.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func blankEntries(field string, values []string) []error {
	var errs []error
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, &InvalidListEntryError{Field: field, Index: i})
		}
	}
	return errs
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OrganizationPrefixes:         slices.Clone(rewrite.DefaultOrganizationPrefixes),
		Groups:                       slices.Clone(coords.DefaultGroups),
		ExcludeClassifiers:           []string{},
		CopyOncePerRuntime:           true,
		ProcessExtensionVersions:     true,
		SnapshotVersionAsBuildNumber: true,
		ProcessSnapshotVersions:      true,
		IncludeVersion:               true,
		StagingDir:                   DefaultStagingDir,
		Lock: LockConfig{
			MaxAttempts: DefaultLockMaxAttempts,
			BaseBackoff: DefaultLockBaseBackoff,
			MaxBackoff:  DefaultLockMaxBackoff,
		},
		UI: UIConfig{
			Verbose: false,
		},
	}
}
