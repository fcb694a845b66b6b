// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/beevik/etree"
	"github.com/magiconair/properties"

	"github.com/invowk/extpack/pkg/manifest"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

// pomIndent is the indentation used when re-serializing a POM.
const pomIndent = 4

// propertyKeys maps each properties-style resource to the key holding the
// version it carries.
var propertyKeys = map[EntryKind]string{
	KindPluginProperties:   "plugin.version",
	KindExtensionDef:       "extension.version",
	KindMavenPOMProperties: "version",
}

// propertyHeaders are the header comments written above rewritten
// properties resources.
var propertyHeaders = map[EntryKind]string{
	KindPluginProperties:   "Plugin Properties for %s",
	KindExtensionDef:       "Extension Properties for %s",
	KindMavenPOMProperties: "Processed by extpack",
}

// rewriteManifest returns the manifest with X-Extension-Version replaced.
// ok is false when the attribute is absent and the entry must be copied.
func rewriteManifest(data []byte, policy versionpolicy.Policy) (out []byte, oldVersion, newVersion string, ok bool, err error) {
	m, err := manifest.ParseBytes(data)
	if err != nil {
		return nil, "", "", false, fmt.Errorf("%w: %w", ErrMetadataMalformed, err)
	}
	oldVersion, ok = m.Main.Get(manifest.ExtensionVersion)
	if !ok {
		return nil, "", "", false, nil
	}
	newVersion, err = applyPolicy(policy, oldVersion)
	if err != nil {
		return nil, "", "", false, err
	}
	m.Main.Set(manifest.ExtensionVersion, newVersion)
	return m.Bytes(), oldVersion, newVersion, true, nil
}

// applyPolicy runs the injected policy and validates its result. A panicking
// policy is reported as a policy failure.
func applyPolicy(policy versionpolicy.Policy, oldVersion string) (v string, err error) {
	if policy == nil {
		return "", fmt.Errorf("%w: no version policy configured", ErrVersionPolicy)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: policy panicked on %q: %v", ErrVersionPolicy, oldVersion, r)
		}
	}()
	v, err = policy(oldVersion, versionpolicy.IsSnapshot(oldVersion))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVersionPolicy, err)
	}
	if err := versionpolicy.Validate(v); err != nil {
		return "", fmt.Errorf("%w: %w", ErrVersionPolicy, err)
	}
	return v, nil
}

// rewriteProperties sets key to version in a Latin-1 properties document.
// Only the logical lines holding key are replaced; every other byte,
// comments and escapes included, is copied through. A missing key is
// appended.
func rewriteProperties(data []byte, key, version, header string) ([]byte, error) {
	loader := &properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}
	if _, err := loader.LoadBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataMalformed, err)
	}

	var buf bytes.Buffer
	if header != "" {
		buf.WriteString("#" + header + "\n")
	}
	entry := escapeProperty(key, true) + "=" + escapeProperty(version, false) + "\n"
	found := false
	for _, line := range logicalLines(data) {
		if k, ok := propertyLineKey(line); ok && k == key {
			buf.WriteString(entry)
			found = true
			continue
		}
		buf.Write(line)
	}
	if !found {
		if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) && !bytes.HasSuffix(data, []byte("\r")) {
			buf.WriteByte('\n')
		}
		buf.WriteString(entry)
	}
	return buf.Bytes(), nil
}

// logicalLines splits a properties document into logical lines, each with
// its continuation lines and terminators attached.
func logicalLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	comment := false
	first := true
	for i := 0; i < len(data); {
		if first {
			comment = isPropertyComment(data[i:])
			first = false
		}
		c := data[i]
		if c != '\n' && c != '\r' {
			i++
			continue
		}
		body := data[start:i]
		i++
		if c == '\r' && i < len(data) && data[i] == '\n' {
			i++
		}
		if !comment && trailingBackslashes(body)%2 == 1 {
			continue
		}
		lines = append(lines, data[start:i])
		start = i
		first = true
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func isPropertyComment(line []byte) bool {
	for _, c := range line {
		switch c {
		case ' ', '\t', '\f':
			continue
		case '#', '!':
			return true
		default:
			return false
		}
	}
	return false
}

func trailingBackslashes(b []byte) int {
	n := 0
	for i := len(b) - 1; i >= 0 && b[i] == '\\'; i-- {
		n++
	}
	return n
}

// propertyLineKey returns the unescaped key of a logical line. ok is false
// for blank and comment lines.
func propertyLineKey(line []byte) (key string, ok bool) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t' || line[i] == '\f') {
		i++
	}
	if i == len(line) || line[i] == '#' || line[i] == '!' || line[i] == '\n' || line[i] == '\r' {
		return "", false
	}
	var sb strings.Builder
	for i < len(line) {
		c := line[i]
		switch c {
		case '=', ':', ' ', '\t', '\f', '\n', '\r':
			return sb.String(), true
		case '\\':
			i++
			if i == len(line) {
				return sb.String(), true
			}
			switch e := line[i]; e {
			case 't':
				sb.WriteByte('\t')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 'f':
				sb.WriteByte('\f')
			case 'u':
				if i+4 < len(line) {
					if r, err := strconv.ParseUint(string(line[i+1:i+5]), 16, 16); err == nil {
						sb.WriteRune(rune(r))
						i += 4
						break
					}
				}
				sb.WriteByte('u')
			case '\n', '\r':
				if e == '\r' && i+1 < len(line) && line[i+1] == '\n' {
					i++
				}
				for i+1 < len(line) && (line[i+1] == ' ' || line[i+1] == '\t' || line[i+1] == '\f') {
					i++
				}
			default:
				sb.WriteRune(rune(e))
			}
		default:
			sb.WriteRune(rune(c))
		}
		i++
	}
	return sb.String(), true
}

// escapeProperty escapes s for a Latin-1 properties file. Keys also escape
// every space; values only a leading one.
func escapeProperty(s string, key bool) string {
	var sb strings.Builder
	for i, r := range s {
		switch r {
		case '\\', '=', ':', '#', '!':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case ' ':
			if key || i == 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(' ')
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			switch {
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(&sb, `\u%04X\u%04X`, r1, r2)
			case r < 0x20 || r > 0xff:
				fmt.Fprintf(&sb, `\u%04X`, r)
			default:
				sb.WriteByte(byte(r))
			}
		}
	}
	return sb.String()
}

// rewritePOM replaces the text of the first <version> element below the
// document root, in document order. ok is false when the POM has none.
func rewritePOM(data []byte, version string) (out []byte, ok bool, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMetadataMalformed, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, false, fmt.Errorf("%w: pom has no root element", ErrMetadataMalformed)
	}
	el := firstDescendant(root, "version")
	if el == nil {
		return nil, false, nil
	}
	el.SetText(version)
	doc.Indent(pomIndent)
	out, err = doc.WriteToBytes()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return out, true, nil
}

func firstDescendant(e *etree.Element, tag string) *etree.Element {
	for _, child := range e.ChildElements() {
		if child.Space == "" && child.Tag == tag {
			return child
		}
		if found := firstDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}
