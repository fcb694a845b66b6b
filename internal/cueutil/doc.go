// SPDX-License-Identifier: MPL-2.0

// Package cueutil formats CUE evaluation errors for users and guards
// against oversized input files.
package cueutil
