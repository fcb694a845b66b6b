// SPDX-License-Identifier: MPL-2.0

package config

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/invowk/extpack/internal/retry"
	"github.com/invowk/extpack/internal/runcache"
	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/rewrite"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

// Versions returns the build-number policy selected by the configuration.
// BUILD_NUMBER is read from the process environment.
func (c *Config) Versions() versionpolicy.BuildNumber {
	return versionpolicy.BuildNumber{AsBuildNumber: c.SnapshotVersionAsBuildNumber}
}

// Filter returns the artifact filter selected by the configuration.
func (c *Config) Filter() coords.Filter {
	return coords.Filter{
		Groups:             slices.Clone(c.Groups),
		ExcludeClassifiers: slices.Clone(c.ExcludeClassifiers),
	}
}

// RewriteOptions returns the archive rewrite options selected by the
// configuration, logging to logger.
func (c *Config) RewriteOptions(logger *log.Logger) rewrite.Options {
	return rewrite.Options{
		ProcessExtensionVersions: c.ProcessExtensionVersions,
		CopyOncePerRuntime:       c.CopyOncePerRuntime,
		OrganizationPrefixes:     slices.Clone(c.OrganizationPrefixes),
		ExcludeClassifiers:       slices.Clone(c.ExcludeClassifiers),
		Policy:                   c.Versions().Policy(),
		Logger:                   logger,
	}
}

// RetryPolicy returns the lock acquisition policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Lock.MaxAttempts,
		BaseBackoff: c.Lock.BaseBackoff,
		MaxBackoff:  c.Lock.MaxBackoff,
	}
}

// CacheOptions returns the run cache options selected by the configuration.
func (c *Config) CacheOptions(logger *log.Logger) runcache.Options {
	return runcache.Options{
		Enabled: c.CopyOncePerRuntime,
		Retry:   c.RetryPolicy(),
		Logger:  logger,
	}
}
