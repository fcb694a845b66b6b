// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/extpack/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/extpack/config.cue on macOS, %APPDATA%\extpack\config.cue
// on Windows), then ./config.cue, unless a file is named explicitly. Environment
// variables prefixed with EXTPACK_ override file values (EXTPACK_LOCK_MAX_ATTEMPTS).
//
// The file is validated against an embedded CUE schema (config_schema.cue) before it
// is merged over the built-in defaults. The resulting Config converts into the
// rewrite options, run cache options and version policy used by the CLI.
package config
