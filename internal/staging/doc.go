// SPDX-License-Identifier: MPL-2.0

// Package staging places provisioned extension archives into one or more
// staging areas, laid out as <staging>/<version>/<artifactId>/<file>.
//
// Each artifact is rewritten through a run-once cache, so an artifact staged
// into several areas, or requested twice, is rewritten exactly once and linked
// everywhere else.
package staging
