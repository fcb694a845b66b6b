// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"io"
	"path"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

// DefaultOrganizationPrefixes are the jar base-name prefixes that mark a
// nested jar as a potential extension.
var DefaultOrganizationPrefixes = []string{
	"com.logonbox-",
	"com.hypersocket-",
	"com.sshtools-",
	"com.nervepoint-",
}

// Options configures a rewrite.
type Options struct {
	// ProcessExtensionVersions enables version rewriting. When false every
	// archive is copied unchanged.
	ProcessExtensionVersions bool

	// CopyOncePerRuntime is consumed by the run-once cache; it is carried here
	// so a single Options value describes a whole packaging run.
	CopyOncePerRuntime bool

	// OrganizationPrefixes gates which nested jars are opened at all.
	OrganizationPrefixes []string

	// ExcludeClassifiers lists artifact classifiers that are passed through.
	ExcludeClassifiers []string

	// Policy computes the new version for each extension jar.
	Policy versionpolicy.Policy

	// Logger receives per-entry debug output. Nil discards it.
	Logger *log.Logger

	// OnNestedOpen, if set, is called with the entry name of every nested jar
	// the engine opens.
	OnNestedOpen func(name string)
}

// DefaultOptions returns options with rewriting enabled, the default
// organization prefixes and the build-number policy.
func DefaultOptions() Options {
	return Options{
		ProcessExtensionVersions: true,
		CopyOncePerRuntime:       true,
		OrganizationPrefixes:     slices.Clone(DefaultOrganizationPrefixes),
		Policy:                   versionpolicy.BuildNumber{}.Policy(),
	}
}

// IsPotentialExtension reports whether a nested jar entry may be an
// extension and should be opened.
func (o Options) IsPotentialExtension(name string) bool {
	if !strings.HasSuffix(strings.ToLower(name), ".jar") {
		return false
	}
	base := path.Base(name)
	for _, prefix := range o.OrganizationPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// eligible reports whether the top-level artifact is processed at all.
func (o Options) eligible(id coords.Identity) bool {
	if !o.ProcessExtensionVersions {
		return false
	}
	if (coords.Filter{ExcludeClassifiers: o.ExcludeClassifiers}).IsExcluded(id) {
		return false
	}
	return id.IsExtensionArchive() || id.IsJar()
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}
