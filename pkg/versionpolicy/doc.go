// SPDX-License-Identifier: MPL-2.0

// Package versionpolicy computes the concrete version an extension is published
// under at packaging time.
//
// The rewrite engine consumes a Policy as an injected function and never decides
// versions itself. BuildNumber is the default policy: it substitutes a numeric
// build identifier (from $BUILD_NUMBER) for a -SNAPSHOT suffix, or keeps the
// literal "SNAPSHOT" qualifier when build-number substitution is disabled.
package versionpolicy
