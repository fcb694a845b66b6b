// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and writes jar manifests (META-INF/MANIFEST.MF).
//
// Attribute order and the per-entry sections are preserved across a
// parse/write cycle. Lines are re-wrapped at 72 bytes on output, so a rewritten
// manifest is semantically, not byte-for-byte, identical to its source.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// ExtensionVersion is the main attribute marking a jar as an extension.
	ExtensionVersion = "X-Extension-Version"
	// ManifestVersion is the conventional first main attribute.
	ManifestVersion = "Manifest-Version"

	maxLineBytes = 72
	maxNameBytes = 70
	lineBreak    = "\r\n"
)

// ErrMalformed is the sentinel wrapped by SyntaxError.
var ErrMalformed = errors.New("malformed manifest")

type (
	// Attribute is one "Name: value" header.
	Attribute struct {
		Name  string
		Value string
	}

	// Section is an ordered list of attributes.
	Section struct {
		Attributes []Attribute
	}

	// Manifest is a parsed jar manifest: one main section followed by zero or
	// more per-entry sections.
	Manifest struct {
		Main    Section
		Entries []Section
	}

	// SyntaxError reports the 1-based line of a manifest that failed to parse.
	SyntaxError struct {
		Line int
		Msg  string
	}
)

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("manifest line %d: %s", e.Line, e.Msg)
}

// Unwrap returns ErrMalformed for errors.Is compatibility.
func (e *SyntaxError) Unwrap() error {
	return ErrMalformed
}

// Parse reads a manifest from r.
func Parse(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a manifest held in memory. CRLF, CR and LF line endings are
// all accepted, and a final line without a terminator is kept.
func ParseBytes(data []byte) (*Manifest, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	m := &Manifest{}
	cur := &m.Main
	for i, line := range lines {
		lineNo := i + 1
		if line == "" {
			cur = nil
			continue
		}

		if line[0] == ' ' {
			if cur == nil || len(cur.Attributes) == 0 {
				return nil, &SyntaxError{Line: lineNo, Msg: "continuation line without a preceding attribute"}
			}
			cur.Attributes[len(cur.Attributes)-1].Value += line[1:]
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("missing ':' in %q", line)}
		}
		if value != "" {
			v, hasSpace := strings.CutPrefix(value, " ")
			if !hasSpace {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("attribute %q: value must follow \": \"", name)}
			}
			value = v
		}
		if err := validateName(name); err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}

		if cur == nil {
			m.Entries = append(m.Entries, Section{})
			cur = &m.Entries[len(m.Entries)-1]
		}
		cur.Attributes = append(cur.Attributes, Attribute{Name: name, Value: value})
	}
	return m, nil
}

func validateName(name string) error {
	if name == "" || len(name) > maxNameBytes {
		return fmt.Errorf("attribute name %q must be 1-%d bytes", name, maxNameBytes)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("attribute name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// Get returns the value of the named attribute. Names compare case-insensitively.
func (s *Section) Get(name string) (string, bool) {
	for _, a := range s.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// Set replaces the named attribute in place or appends it.
func (s *Section) Set(name, value string) {
	for i := range s.Attributes {
		if strings.EqualFold(s.Attributes[i].Name, name) {
			s.Attributes[i].Value = value
			return
		}
	}
	s.Attributes = append(s.Attributes, Attribute{Name: name, Value: value})
}

// WriteTo writes the manifest using CRLF line endings and 72-byte lines.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	writeSection(&buf, &m.Main)
	buf.WriteString(lineBreak)
	for i := range m.Entries {
		writeSection(&buf, &m.Entries[i])
		buf.WriteString(lineBreak)
	}
	return buf.WriteTo(w)
}

// Bytes returns the serialized manifest.
func (m *Manifest) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf) // bytes.Buffer writes cannot fail
	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, s *Section) {
	for _, a := range s.Attributes {
		writeLine(buf, a.Name+": "+a.Value)
	}
}

// writeLine splits line into a first chunk of at most 72 bytes and
// continuation chunks of at most 71 bytes, never splitting a UTF-8 sequence.
func writeLine(buf *bytes.Buffer, line string) {
	limit := maxLineBytes
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString(lineBreak)
		buf.WriteByte(' ')
		line = line[cut:]
		limit = maxLineBytes - 1
	}
	buf.WriteString(line)
	buf.WriteString(lineBreak)
}
