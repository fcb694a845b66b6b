// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// FixtureTime is the modification time stamped on every fixture entry.
var FixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// ZipEntry describes a single entry of a fixture archive.
// Names ending in "/" become directory entries and ignore Body.
type ZipEntry struct {
	Name    string
	Body    []byte
	Store   bool
	// NonUTF8 leaves the UTF-8 name flag clear even for non-ASCII names.
	NonUTF8 bool
}

// File is a shorthand for a deflated file entry with a string body.
func File(name, body string) ZipEntry {
	return ZipEntry{Name: name, Body: []byte(body)}
}

// Dir is a shorthand for a directory entry.
func Dir(name string) ZipEntry {
	return ZipEntry{Name: name}
}

// Nested is a shorthand for an entry whose body is itself a zip archive.
func Nested(name string, body []byte) ZipEntry {
	return ZipEntry{Name: name, Body: body, Store: true}
}

// BuildZip assembles a zip archive from entries in the given order.
// The test fails immediately if the archive cannot be written.
func BuildZip(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Modified: FixtureTime, Method: zip.Deflate, NonUTF8: e.NonUTF8}
		if e.Store || isDirName(e.Name) {
			fh.Method = zip.Store
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("failed to create fixture entry %s: %v", e.Name, err)
		}
		if isDirName(e.Name) {
			continue
		}
		if _, err := w.Write(e.Body); err != nil {
			t.Fatalf("failed to write fixture entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish fixture archive: %v", err)
	}
	return buf.Bytes()
}

// ReadZip returns every entry of data, in archive order, with decompressed bodies.
func ReadZip(t testing.TB, data []byte) []ZipEntry {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	entries := make([]ZipEntry, 0, len(zr.File))
	for _, f := range zr.File {
		e := ZipEntry{Name: f.Name, Store: f.Method == zip.Store}
		if !isDirName(f.Name) {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("failed to open entry %s: %v", f.Name, err)
			}
			e.Body, err = io.ReadAll(rc)
			MustClose(t, rc)
			if err != nil {
				t.Fatalf("failed to read entry %s: %v", f.Name, err)
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// ZipNames returns the entry names of data in archive order.
func ZipNames(t testing.TB, data []byte) []string {
	t.Helper()
	entries := ReadZip(t, data)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// ZipBody returns the decompressed body of the named entry.
// The test fails immediately if the entry is missing.
func ZipBody(t testing.TB, data []byte, name string) []byte {
	t.Helper()
	for _, e := range ReadZip(t, data) {
		if e.Name == name {
			return e.Body
		}
	}
	t.Fatalf("entry %s not found in archive", name)
	return nil
}

// MustWriteFile writes data to path, creating parent directories as needed.
func MustWriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustReadFile returns the contents of path.
func MustReadFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

func isDirName(name string) bool {
	return name != "" && name[len(name)-1] == '/'
}
