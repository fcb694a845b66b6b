// SPDX-License-Identifier: MPL-2.0

// Package rewrite re-versions extension archives at packaging time.
//
// An extension archive is a zip whose entries include jars. Any jar whose
// main manifest carries an X-Extension-Version attribute is an extension: its
// version is replaced with the one produced by an injected
// [versionpolicy.Policy], and the copies of that version held in
// plugin.properties, extension.def and the embedded Maven metadata are kept in
// step. Jars nested inside jars are processed recursively.
//
// The engine streams entries from a source archive to a destination archive
// in source order:
//   - [Options.Classify] routes each entry to one handler
//   - directories are re-emitted empty, opaque entries are copied raw
//   - nested jars are only opened when their base name starts with one of
//     the configured organization prefixes
//
// If no extension jar is found anywhere in the archive, the destination is a
// byte-for-byte copy of the source. Use [RewriteFile] for the atomic
// file-to-file form and [Rewrite] for in-memory or stream sources.
package rewrite
