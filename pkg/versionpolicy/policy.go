// SPDX-License-Identifier: MPL-2.0

package versionpolicy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	// SnapshotQualifier is the Maven qualifier marking a development version.
	SnapshotQualifier = "SNAPSHOT"
	// SnapshotSuffix is the version suffix of a non-timestamped snapshot.
	SnapshotSuffix = "-" + SnapshotQualifier
	// BuildNumberEnv names the environment variable holding the CI build number.
	BuildNumberEnv = "BUILD_NUMBER"
	// DefaultBuildNumber is used when BuildNumberEnv is unset or empty.
	DefaultBuildNumber = "0"
)

// ErrInvalidVersion is returned when a policy produces an unusable version.
var ErrInvalidVersion = errors.New("invalid version")

// timestampedSnapshot matches resolved snapshot versions such as
// 1.0.0-20240101.120000-3.
var timestampedSnapshot = regexp.MustCompile(`^(.+)-(\d{8}\.\d{6})-(\d+)$`)

type (
	// Policy maps an embedded version to the version it is published under.
	// Implementations must be pure: the same inputs always yield the same output.
	Policy func(oldVersion string, isSnapshot bool) (string, error)

	// BuildNumber is the build-number substitution policy.
	BuildNumber struct {
		// AsBuildNumber replaces the snapshot qualifier with the build number.
		// When false the qualifier is normalized to "SNAPSHOT".
		AsBuildNumber bool
		// Getenv looks up BuildNumberEnv. Nil means os.Getenv.
		Getenv func(string) string
	}
)

// IsSnapshot reports whether v is a plain or timestamped snapshot version.
func IsSnapshot(v string) bool {
	return strings.HasSuffix(v, SnapshotSuffix) || timestampedSnapshot.MatchString(v)
}

// Validate rejects versions that cannot be written back into a manifest or
// properties file.
func Validate(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidVersion, v)
	}
	return nil
}

// Suffix returns the qualifier substituted for the snapshot marker.
func (b BuildNumber) Suffix() string {
	if !b.AsBuildNumber {
		return SnapshotQualifier
	}
	getenv := b.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if n := strings.TrimSpace(getenv(BuildNumberEnv)); n != "" {
		return n
	}
	return DefaultBuildNumber
}

// Policy returns the build-number substitution as a Policy.
// Release versions are returned unchanged.
func (b BuildNumber) Policy() Policy {
	return func(oldVersion string, isSnapshot bool) (string, error) {
		if !isSnapshot {
			return oldVersion, nil
		}
		return b.Apply(oldVersion), nil
	}
}

// Apply replaces the snapshot marker of v with Suffix. Versions that are not
// snapshots are returned unchanged.
func (b BuildNumber) Apply(v string) string {
	if base, ok := strings.CutSuffix(v, SnapshotSuffix); ok {
		return base + "-" + b.Suffix()
	}
	if m := timestampedSnapshot.FindStringSubmatch(v); m != nil {
		return m[1] + "-" + b.Suffix()
	}
	return v
}

// ArtifactVersion returns the version an artifact is staged under.
//
// A -SNAPSHOT version is kept as is, as is any version when process is false.
// A timestamped snapshot (base-yyyyMMdd.HHmmss-N) is collapsed to base-Suffix.
func (b BuildNumber) ArtifactVersion(v string, process bool) string {
	if !IsSnapshot(v) || strings.Contains(v, SnapshotSuffix) || !process {
		return v
	}
	idx := strings.LastIndex(v, "-")
	if idx == -1 {
		return v
	}
	idx = strings.LastIndex(v[:idx], ".")
	if idx == -1 {
		return v
	}
	idx = strings.LastIndex(v[:idx], "-")
	if idx == -1 {
		return v
	}
	return v[:idx] + "-" + b.Suffix()
}
