// SPDX-License-Identifier: MPL-2.0

// Package coords models Maven-style artifact coordinates and the staging-area
// naming derived from them.
package coords

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/extpack/pkg/versionpolicy"
)

const (
	// ClassifierExtensionArchive marks a zip bundling extension jars.
	ClassifierExtensionArchive = "extension-archive"
	// TypeZip is the packaging type of an extension archive.
	TypeZip = "zip"
	// TypeJar is the default packaging type.
	TypeJar = "jar"
)

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid artifact coordinates")

// DefaultGroups are the group IDs that may publish extension archives when no
// explicit list is configured.
var DefaultGroups = []string{
	"com.hypersocket",
	"com.logonbox",
	"com.nervepoint",
	"com.sshtools",
	"com.jadaptive",
}

type (
	// Identity is the (group, artifact, version, classifier, type) tuple of one
	// built unit. It is a value type and is never mutated once constructed.
	Identity struct {
		Group      string `json:"group" toml:"group" yaml:"group"`
		Artifact   string `json:"artifact" toml:"artifact" yaml:"artifact"`
		Version    string `json:"version" toml:"version" yaml:"version"`
		Classifier string `json:"classifier,omitempty" toml:"classifier,omitempty" yaml:"classifier,omitempty"`
		Type       string `json:"type" toml:"type" yaml:"type"`
	}

	// Filter decides which artifacts are considered at all.
	Filter struct {
		// Groups lists group IDs that can carry extensions. Empty means DefaultGroups.
		Groups []string
		// ExcludeClassifiers lists classifiers that are skipped entirely.
		ExcludeClassifiers []string
	}
)

// Parse reads groupId:artifactId:version[:type[:classifier]]. The type
// defaults to "jar".
func Parse(s string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 || len(parts) > 5 {
		return Identity{}, fmt.Errorf("%w: %q (expected groupId:artifactId:version[:type[:classifier]])", ErrInvalidCoordinates, s)
	}
	for i, p := range parts[:3] {
		if strings.TrimSpace(p) == "" {
			return Identity{}, fmt.Errorf("%w: %q has an empty field at position %d", ErrInvalidCoordinates, s, i+1)
		}
	}

	id := Identity{
		Group:    parts[0],
		Artifact: parts[1],
		Version:  parts[2],
		Type:     TypeJar,
	}
	if len(parts) >= 4 && parts[3] != "" {
		id.Type = parts[3]
	}
	if len(parts) == 5 {
		id.Classifier = parts[4]
	}
	return id, nil
}

// String returns the canonical groupId:artifactId:version:type[:classifier] form.
func (id Identity) String() string {
	s := id.Group + ":" + id.Artifact + ":" + id.Version + ":" + id.Type
	if id.Classifier != "" {
		s += ":" + id.Classifier
	}
	return s
}

// IsExtensionArchive reports whether the artifact is an extension-archive zip.
func (id Identity) IsExtensionArchive() bool {
	return id.Classifier == ClassifierExtensionArchive && id.Type == TypeZip
}

// IsJar reports whether the artifact is a plain jar.
func (id Identity) IsJar() bool {
	return id.Type == TypeJar
}

// IsSnapshot reports whether the artifact version is a snapshot.
func (id Identity) IsSnapshot() bool {
	return versionpolicy.IsSnapshot(id.Version)
}

// WithVersion returns a copy of id carrying version v.
func (id Identity) WithVersion(v string) Identity {
	id.Version = v
	return id
}

// FileName returns artifactId[-version][-classifier].type.
func FileName(artifactID, version, classifier, typ string, includeVersion, includeClassifier bool) string {
	var sb strings.Builder
	sb.WriteString(artifactID)
	if includeVersion {
		sb.WriteString("-")
		sb.WriteString(version)
	}
	if includeClassifier && classifier != "" {
		sb.WriteString("-")
		sb.WriteString(classifier)
	}
	sb.WriteString(".")
	sb.WriteString(typ)
	return sb.String()
}

// StagingPath returns <stagingDir>/<version>/<artifactId>/<fileName>.
func StagingPath(stagingDir, version, artifactID, fileName string) string {
	return filepath.Join(stagingDir, version, artifactID, fileName)
}

// IsExcluded reports whether the artifact's classifier is excluded.
func (f Filter) IsExcluded(id Identity) bool {
	return id.Classifier != "" && slices.Contains(f.ExcludeClassifiers, id.Classifier)
}

// IsProcessedGroup reports whether the artifact's group may carry extensions.
func (f Filter) IsProcessedGroup(id Identity) bool {
	groups := f.Groups
	if len(groups) == 0 {
		groups = DefaultGroups
	}
	return slices.Contains(groups, id.Group)
}

// ExtensionArchive returns the extension-archive coordinate paired with id.
func (id Identity) ExtensionArchive() Identity {
	id.Classifier = ClassifierExtensionArchive
	id.Type = TypeZip
	return id
}
