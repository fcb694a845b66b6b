// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/magiconair/properties"
	"github.com/zeebo/blake3"

	"github.com/invowk/extpack/pkg/manifest"
)

// ErrNoDefinition is returned when an archive holds no extension.def.
var ErrNoDefinition = errors.New("no extension definition found")

// Definition is the content of an extension.def resource.
type Definition struct {
	// Entry is the qualified path of the extension.def that was read.
	Entry       string            `json:"entry" toml:"entry" yaml:"entry"`
	Name        string            `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version,omitempty" toml:"version,omitempty" yaml:"version,omitempty"`
	Depends     []string          `json:"depends,omitempty" toml:"depends,omitempty" yaml:"depends,omitempty"`
	Properties  map[string]string `json:"properties" toml:"properties" yaml:"properties"`
}

// ReadExtensionDefinition finds the first extension.def in src, either at the
// archive root, in a top-level directory, or inside a nested jar that passes
// the organization prefix filter. When the definition carries no
// extension.version the enclosing jar's X-Extension-Version is used.
func ReadExtensionDefinition(src Source, opts Options) (*Definition, error) {
	return readDefinition(src, opts, newContext("", nil, true))
}

func readDefinition(src Source, opts Options, scope *RewriteContext) (*Definition, error) {
	zr, err := newZipReader(src)
	if err != nil {
		return nil, &Error{Kind: readKind(err), Entry: scope.Path(""), Err: err}
	}

	var (
		def             *Definition
		manifestVersion string
		nested          []*zip.File
	)
	for _, f := range zr.File {
		switch {
		case def == nil && (f.Name == extensionDef || strings.HasSuffix(f.Name, "/"+extensionDef)):
			data, err := readAll(f, scope)
			if err != nil {
				return nil, err
			}
			if def, err = parseDefinition(data); err != nil {
				return nil, &Error{Kind: ErrMetadataMalformed, Entry: scope.Path(f.Name), Err: err}
			}
			def.Entry = scope.Path(f.Name)
		case f.Name == manifestEntry:
			data, err := readAll(f, scope)
			if err != nil {
				return nil, err
			}
			if m, err := manifest.ParseBytes(data); err == nil {
				manifestVersion, _ = m.Main.Get(manifest.ExtensionVersion)
			}
		case opts.IsPotentialExtension(f.Name):
			nested = append(nested, f)
		}
	}
	if def != nil {
		if def.Version == "" {
			def.Version = manifestVersion
		}
		return def, nil
	}

	for _, f := range nested {
		if opts.OnNestedOpen != nil {
			opts.OnNestedOpen(scope.Path(f.Name))
		}
		data, err := readAll(f, scope)
		if err != nil {
			return nil, err
		}
		def, err := readDefinition(bytes.NewReader(data), opts, newContext(f.Name, scope, true))
		if errors.Is(err, ErrNoDefinition) {
			continue
		}
		return def, err
	}
	return nil, ErrNoDefinition
}

func parseDefinition(data []byte) (*Definition, error) {
	loader := &properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	def := &Definition{
		Name:        p.GetString("extension.name", ""),
		Description: p.GetString("extension.description", ""),
		Version:     p.GetString("extension.version", ""),
		Properties:  p.Map(),
	}
	for dep := range strings.SplitSeq(p.GetString("extension.depends", ""), ",") {
		if dep = strings.TrimSpace(dep); dep != "" {
			def.Depends = append(def.Depends, dep)
		}
	}
	return def, nil
}

func readAll(f *zip.File, scope *RewriteContext) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &Error{Kind: readKind(err), Entry: scope.Path(f.Name), Err: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &Error{Kind: readKind(err), Entry: scope.Path(f.Name), Err: err}
	}
	return data, nil
}

// Digest returns the hex BLAKE3-256 digest of everything read from r.
func Digest(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
