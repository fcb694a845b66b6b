// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Zip fixtures are assembled in memory (BuildZip with File, Dir and Nested
// entries) and read back with ReadZip, ZipNames and ZipBody. File helpers
// (MustWriteFile, MustReadFile, MustMkdirAll) and MustChdir cover the rest.
package testutil
