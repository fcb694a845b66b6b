// SPDX-License-Identifier: MPL-2.0

// Package runcache makes sure an artifact is rewritten at most once per
// packaging run.
//
// A Cache is created when a run starts and discarded when it ends. The first
// request for an (identity, version) pair runs the producer and records the
// output path; later requests for the same pair replace their target with a
// symbolic link to that output and stamp the requested modification time on
// the link. Requests for one key are serialized by an in-process mutex and,
// where flock is available, by a lock file shared with concurrent processes
// staging into the same area.
package runcache
