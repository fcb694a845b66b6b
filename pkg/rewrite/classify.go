// SPDX-License-Identifier: MPL-2.0

package rewrite

import "strings"

// EntryKind identifies the handler an archive entry is routed to.
type EntryKind int

const (
	// KindOpaque entries are copied raw.
	KindOpaque EntryKind = iota
	KindDirectory
	KindManifest
	KindPluginProperties
	KindExtensionDef
	KindMavenPOM
	KindMavenPOMProperties
	KindNestedJar
)

const (
	manifestEntry     = "META-INF/MANIFEST.MF"
	pluginProperties  = "plugin.properties"
	extensionDef      = "extension.def"
	mavenMetadataRoot = "META-INF/maven/"
)

var kindNames = map[EntryKind]string{
	KindOpaque:             "opaque",
	KindDirectory:          "directory",
	KindManifest:           "manifest",
	KindPluginProperties:   "plugin-properties",
	KindExtensionDef:       "extension-def",
	KindMavenPOM:           "maven-pom",
	KindMavenPOMProperties: "maven-pom-properties",
	KindNestedJar:          "nested-jar",
}

func (k EntryKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Classify routes an entry by name. Exactly one kind applies to each entry;
// the checks run in the order below.
func (o Options) Classify(name string, isDir bool) EntryKind {
	switch {
	case isDir || strings.HasSuffix(name, "/"):
		return KindDirectory
	case name == manifestEntry:
		return KindManifest
	case name == pluginProperties:
		return KindPluginProperties
	case name == extensionDef:
		return KindExtensionDef
	case strings.HasPrefix(name, mavenMetadataRoot) && strings.HasSuffix(name, "/pom.xml"):
		return KindMavenPOM
	case strings.HasPrefix(name, mavenMetadataRoot) && strings.HasSuffix(name, "/pom.properties"):
		return KindMavenPOMProperties
	case o.IsPotentialExtension(name):
		return KindNestedJar
	default:
		return KindOpaque
	}
}
