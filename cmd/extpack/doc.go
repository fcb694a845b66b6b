// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for extpack.
//
// The root command carries the global --verbose and --config flags. Subcommands
// rewrite a single archive, stage a set of provisioned artifacts through the
// run cache, inspect an extension definition, and manage the configuration file.
package cmd
