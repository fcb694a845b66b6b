// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/magiconair/properties"

	"github.com/invowk/extpack/internal/testutil"
	"github.com/invowk/extpack/pkg/coords"
	"github.com/invowk/extpack/pkg/manifest"
	"github.com/invowk/extpack/pkg/versionpolicy"
)

var archiveID = coords.Identity{
	Group:      "com.sshtools",
	Artifact:   "sample-ext",
	Version:    "1.0.0-SNAPSHOT",
	Classifier: coords.ClassifierExtensionArchive,
	Type:       coords.TypeZip,
}

func buildNumber42() versionpolicy.Policy {
	return versionpolicy.BuildNumber{
		AsBuildNumber: true,
		Getenv:        func(string) string { return "42" },
	}.Policy()
}

func testOptions(policy versionpolicy.Policy) Options {
	opts := DefaultOptions()
	opts.Policy = policy
	return opts
}

func manifestBody(version string) string {
	s := "Manifest-Version: 1.0\r\nCreated-By: test\r\n"
	if version != "" {
		s += "X-Extension-Version: " + version + "\r\n"
	}
	return s + "\r\n"
}

func extensionJar(t *testing.T, version string, extra ...testutil.ZipEntry) []byte {
	t.Helper()
	entries := []testutil.ZipEntry{
		testutil.Dir("META-INF/"),
		testutil.File("META-INF/MANIFEST.MF", manifestBody(version)),
	}
	return testutil.BuildZip(t, append(entries, extra...)...)
}

func rewriteBytes(t *testing.T, src []byte, id coords.Identity, opts Options) ([]byte, Result, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := Rewrite(context.Background(), bytes.NewReader(src), &out, id, opts)
	return out.Bytes(), res, err
}

func manifestVersion(t *testing.T, data []byte) string {
	t.Helper()
	m, err := manifest.ParseBytes(data)
	if err != nil {
		t.Fatalf("manifest.ParseBytes() error = %v", err)
	}
	v, _ := m.Main.Get(manifest.ExtensionVersion)
	return v
}

func propertyValue(t *testing.T, data []byte, key string) string {
	t.Helper()
	p, err := (&properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}).LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	v, _ := p.Get(key)
	return v
}

// rawEntries returns the still-compressed bytes of every entry.
func rawEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	raw := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		r, err := f.OpenRaw()
		if err != nil {
			t.Fatalf("OpenRaw(%s) error = %v", f.Name, err)
		}
		b, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read raw %s: %v", f.Name, err)
		}
		raw[f.Name] = b
	}
	return raw
}

func TestRewrite_Scenario(t *testing.T) {
	t.Parallel()

	inner := extensionJar(t, "1.0.0-SNAPSHOT",
		testutil.File("extension.def", "extension.name=Sample\nextension.version=1.0.0-SNAPSHOT\n"),
		testutil.File("com/example/Sample.class", "\xca\xfe\xba\xbe"),
	)
	src := testutil.BuildZip(t,
		testutil.Dir("sample-ext/"),
		testutil.Nested("sample-ext/sample-ext.jar", inner),
		testutil.File("sample-ext/README.txt", "read me"),
	)

	opts := testOptions(buildNumber42())
	opts.OrganizationPrefixes = []string{"sample-"}
	out, res, err := rewriteBytes(t, src, archiveID, opts)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 || res.PassedThrough {
		t.Fatalf("Rewrite() result = %+v, want one extension jar", res)
	}

	if got, want := testutil.ZipNames(t, out), testutil.ZipNames(t, src); !slices.Equal(got, want) {
		t.Errorf("entry order = %v, want %v", got, want)
	}
	rewritten := testutil.ZipBody(t, out, "sample-ext/sample-ext.jar")
	if got := manifestVersion(t, testutil.ZipBody(t, rewritten, "META-INF/MANIFEST.MF")); got != "1.0.0-42" {
		t.Errorf("X-Extension-Version = %q, want %q", got, "1.0.0-42")
	}
	def := testutil.ZipBody(t, rewritten, "extension.def")
	if got := propertyValue(t, def, "extension.version"); got != "1.0.0-42" {
		t.Errorf("extension.version = %q, want %q", got, "1.0.0-42")
	}
	if got := propertyValue(t, def, "extension.name"); got != "Sample" {
		t.Errorf("extension.name = %q, want %q", got, "Sample")
	}

	srcRaw, outRaw := rawEntries(t, src), rawEntries(t, out)
	if !bytes.Equal(srcRaw["sample-ext/README.txt"], outRaw["sample-ext/README.txt"]) {
		t.Error("opaque top-level entry changed")
	}
	innerRaw, rewrittenRaw := rawEntries(t, inner), rawEntries(t, rewritten)
	if !bytes.Equal(innerRaw["com/example/Sample.class"], rewrittenRaw["com/example/Sample.class"]) {
		t.Error("opaque nested entry changed")
	}

	wantChanges := []string{
		"sample-ext/sample-ext.jar!/META-INF/MANIFEST.MF",
		"sample-ext/sample-ext.jar!/extension.def",
	}
	var gotChanges []string
	for _, c := range res.Changes {
		gotChanges = append(gotChanges, c.Entry)
		if c.OldVersion != "1.0.0-SNAPSHOT" || c.NewVersion != "1.0.0-42" {
			t.Errorf("change %s = %s -> %s", c.Entry, c.OldVersion, c.NewVersion)
		}
	}
	if !slices.Equal(gotChanges, wantChanges) {
		t.Errorf("Changes = %v, want %v", gotChanges, wantChanges)
	}
}

func TestRewrite_RecursiveAllMetadata(t *testing.T) {
	t.Parallel()

	pom := `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.sshtools</groupId>
  <artifactId>ext</artifactId>
  <version>1.2.3</version>
  <dependencies>
    <dependency><artifactId>dep</artifactId><version>9.9</version></dependency>
  </dependencies>
</project>
`
	inner := extensionJar(t, "1.2.3",
		testutil.File("plugin.properties", "plugin.id=ext\nplugin.version=1.2.3\n"),
		testutil.File("extension.def", "extension.version=1.2.3\nextension.depends=core\n"),
		testutil.File("META-INF/maven/com.sshtools/ext/pom.xml", pom),
		testutil.File("META-INF/maven/com.sshtools/ext/pom.properties", "groupId=com.sshtools\nartifactId=ext\nversion=1.2.3\n"),
	)
	src := testutil.BuildZip(t, testutil.Nested("lib/com.sshtools-ext-1.2.3.jar", inner))

	policy := func(old string, _ bool) (string, error) {
		return old + "-42", nil
	}
	out, res, err := rewriteBytes(t, src, archiveID, testOptions(policy))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Fatalf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}

	jar := testutil.ZipBody(t, out, "lib/com.sshtools-ext-1.2.3.jar")
	tests := []struct {
		entry, key string
	}{
		{"plugin.properties", "plugin.version"},
		{"extension.def", "extension.version"},
		{"META-INF/maven/com.sshtools/ext/pom.properties", "version"},
	}
	for _, tt := range tests {
		if got := propertyValue(t, testutil.ZipBody(t, jar, tt.entry), tt.key); got != "1.2.3-42" {
			t.Errorf("%s %s = %q, want %q", tt.entry, tt.key, got, "1.2.3-42")
		}
	}
	if got := propertyValue(t, testutil.ZipBody(t, jar, "extension.def"), "extension.depends"); got != "core" {
		t.Errorf("extension.depends = %q, want unchanged", got)
	}
	if got := propertyValue(t, testutil.ZipBody(t, jar, "META-INF/maven/com.sshtools/ext/pom.properties"), "artifactId"); got != "ext" {
		t.Errorf("pom.properties artifactId = %q, want unchanged", got)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(testutil.ZipBody(t, jar, "META-INF/maven/com.sshtools/ext/pom.xml")); err != nil {
		t.Fatalf("rewritten pom does not parse: %v", err)
	}
	if got := doc.FindElement("/project/version").Text(); got != "1.2.3-42" {
		t.Errorf("pom version = %q, want %q", got, "1.2.3-42")
	}
	if got := doc.FindElement("/project/dependencies/dependency/version").Text(); got != "9.9" {
		t.Errorf("dependency version = %q, want unchanged", got)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	t.Parallel()

	inner := extensionJar(t, "2.0.0", testutil.File("extension.def", "extension.version=2.0.0\n"))
	src := testutil.BuildZip(t, testutil.Nested("com.logonbox-thing.jar", inner))
	identity := func(old string, _ bool) (string, error) { return old, nil }

	first, _, err := rewriteBytes(t, src, archiveID, testOptions(identity))
	if err != nil {
		t.Fatalf("first Rewrite() error = %v", err)
	}
	second, _, err := rewriteBytes(t, first, archiveID, testOptions(identity))
	if err != nil {
		t.Fatalf("second Rewrite() error = %v", err)
	}
	for _, out := range [][]byte{first, second} {
		jar := testutil.ZipBody(t, out, "com.logonbox-thing.jar")
		if got := manifestVersion(t, testutil.ZipBody(t, jar, "META-INF/MANIFEST.MF")); got != "2.0.0" {
			t.Errorf("X-Extension-Version = %q, want 2.0.0", got)
		}
		if got := propertyValue(t, testutil.ZipBody(t, jar, "extension.def"), "extension.version"); got != "2.0.0" {
			t.Errorf("extension.version = %q, want 2.0.0", got)
		}
	}
}

func TestRewrite_NoExtensionsPassesThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		inner []byte
	}{
		{"no manifest", testutil.BuildZip(t, testutil.File("a.txt", "a"))},
		{"manifest without version", extensionJar(t, "", testutil.File("a.txt", "a"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := testutil.BuildZip(t,
				testutil.File("one.txt", "1"),
				testutil.Nested("lib/com.hypersocket-core.jar", tt.inner),
				testutil.File("two.txt", "2"),
			)
			out, res, err := rewriteBytes(t, src, archiveID, testOptions(buildNumber42()))
			if err != nil {
				t.Fatalf("Rewrite() error = %v", err)
			}
			if res.ExtensionJars != 0 || !res.PassedThrough {
				t.Errorf("result = %+v, want pass-through", res)
			}
			if !bytes.Equal(out, src) {
				t.Error("output is not a byte-for-byte copy of the source")
			}
		})
	}
}

func TestRewrite_NonExtensionSiblingCopiedRaw(t *testing.T) {
	t.Parallel()

	plain := testutil.BuildZip(t, testutil.File("META-INF/MANIFEST.MF", manifestBody("")))
	ext := extensionJar(t, "1.0-SNAPSHOT")
	src := testutil.BuildZip(t,
		testutil.Nested("com.sshtools-plain.jar", plain),
		testutil.Nested("com.sshtools-ext.jar", ext),
	)
	out, res, err := rewriteBytes(t, src, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Errorf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}
	if !bytes.Equal(rawEntries(t, src)["com.sshtools-plain.jar"], rawEntries(t, out)["com.sshtools-plain.jar"]) {
		t.Error("non-extension nested jar was not copied byte-for-byte")
	}
}

func TestRewrite_DirectoryNameEncodingKept(t *testing.T) {
	t.Parallel()

	src := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "caf\u00e9/", NonUTF8: true},
		testutil.ZipEntry{Name: "na\u00efve/"},
		testutil.Nested("com.sshtools-ext.jar", extensionJar(t, "1.0-SNAPSHOT")),
	)
	out, _, err := rewriteBytes(t, src, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}

	tests := []struct {
		name     string
		wantUTF8 bool
	}{
		{"caf\u00e9/", false},
		{"na\u00efve/", true},
	}
	for _, tt := range tests {
		idx := slices.IndexFunc(zr.File, func(f *zip.File) bool { return f.Name == tt.name })
		if idx < 0 {
			t.Fatalf("entry %q missing from output", tt.name)
		}
		if got := zr.File[idx].Flags&0x800 != 0; got != tt.wantUTF8 {
			t.Errorf("%q UTF-8 flag = %v, want %v", tt.name, got, tt.wantUTF8)
		}
	}
}

func TestRewrite_FilteredJarsNeverOpened(t *testing.T) {
	t.Parallel()

	src := testutil.BuildZip(t,
		// Not a zip at all: opening it would fail the rewrite.
		testutil.Nested("lib/commons-io-2.11.0.jar", []byte("definitely not a zip")),
		testutil.Nested("lib/com.nervepoint-ext.jar", extensionJar(t, "3.0-SNAPSHOT")),
	)
	var opened []string
	opts := testOptions(buildNumber42())
	opts.OnNestedOpen = func(name string) { opened = append(opened, name) }

	out, _, err := rewriteBytes(t, src, archiveID, opts)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if !slices.Equal(opened, []string{"lib/com.nervepoint-ext.jar"}) {
		t.Errorf("opened = %v, want only the allow-listed jar", opened)
	}
	if !bytes.Equal(testutil.ZipBody(t, out, "lib/commons-io-2.11.0.jar"), []byte("definitely not a zip")) {
		t.Error("filtered jar content changed")
	}
}

func TestRewrite_DeeplyNested(t *testing.T) {
	t.Parallel()

	innermost := extensionJar(t, "1.0-SNAPSHOT")
	middle := testutil.BuildZip(t,
		testutil.File("META-INF/MANIFEST.MF", manifestBody("")),
		testutil.Nested("lib/com.sshtools-inner.jar", innermost),
	)
	src := testutil.BuildZip(t, testutil.Nested("com.sshtools-outer.jar", middle))

	var opened []string
	opts := testOptions(buildNumber42())
	opts.OnNestedOpen = func(name string) { opened = append(opened, name) }
	out, res, err := rewriteBytes(t, src, archiveID, opts)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Errorf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}
	want := []string{"com.sshtools-outer.jar", "com.sshtools-outer.jar!/lib/com.sshtools-inner.jar"}
	if !slices.Equal(opened, want) {
		t.Errorf("opened = %v, want %v", opened, want)
	}
	jar := testutil.ZipBody(t, testutil.ZipBody(t, out, "com.sshtools-outer.jar"), "lib/com.sshtools-inner.jar")
	if got := manifestVersion(t, testutil.ZipBody(t, jar, "META-INF/MANIFEST.MF")); got != "1.0-42" {
		t.Errorf("X-Extension-Version = %q, want 1.0-42", got)
	}
}

func TestRewrite_PropertiesBeforeManifestLeftAlone(t *testing.T) {
	t.Parallel()

	def := "extension.version=1.0-SNAPSHOT\n"
	inner := testutil.BuildZip(t,
		testutil.File("extension.def", def),
		testutil.File("META-INF/MANIFEST.MF", manifestBody("1.0-SNAPSHOT")),
	)
	src := testutil.BuildZip(t, testutil.Nested("com.sshtools-early.jar", inner))
	out, _, err := rewriteBytes(t, src, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	jar := testutil.ZipBody(t, out, "com.sshtools-early.jar")
	if got := string(testutil.ZipBody(t, jar, "extension.def")); got != def {
		t.Errorf("extension.def = %q, want unchanged %q", got, def)
	}
	if got := manifestVersion(t, testutil.ZipBody(t, jar, "META-INF/MANIFEST.MF")); got != "1.0-42" {
		t.Errorf("X-Extension-Version = %q, want 1.0-42", got)
	}
}

func TestRewrite_TopLevelJar(t *testing.T) {
	t.Parallel()

	src := extensionJar(t, "5.1-SNAPSHOT", testutil.File("plugin.properties", "plugin.version=5.1-SNAPSHOT\n"))
	id := coords.Identity{Group: "com.sshtools", Artifact: "ext", Version: "5.1-SNAPSHOT", Type: coords.TypeJar}
	out, res, err := rewriteBytes(t, src, id, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Errorf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}
	if got := propertyValue(t, testutil.ZipBody(t, out, "plugin.properties"), "plugin.version"); got != "5.1-42" {
		t.Errorf("plugin.version = %q, want 5.1-42", got)
	}
}

func TestRewrite_ExtensionArchiveRootMetadataIsOpaque(t *testing.T) {
	t.Parallel()

	src := testutil.BuildZip(t,
		testutil.File("META-INF/MANIFEST.MF", manifestBody("1.0-SNAPSHOT")),
		testutil.Nested("com.sshtools-ext.jar", extensionJar(t, "1.0-SNAPSHOT")),
	)
	out, res, err := rewriteBytes(t, src, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Errorf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}
	if got := manifestVersion(t, testutil.ZipBody(t, out, "META-INF/MANIFEST.MF")); got != "1.0-SNAPSHOT" {
		t.Errorf("archive-level manifest rewritten to %q", got)
	}
}

func TestRewrite_Ineligible(t *testing.T) {
	t.Parallel()

	src := testutil.BuildZip(t, testutil.Nested("com.sshtools-ext.jar", extensionJar(t, "1.0-SNAPSHOT")))
	tests := []struct {
		name   string
		id     coords.Identity
		mutate func(*Options)
	}{
		{"processing disabled", archiveID, func(o *Options) { o.ProcessExtensionVersions = false }},
		{"excluded classifier", archiveID, func(o *Options) { o.ExcludeClassifiers = []string{coords.ClassifierExtensionArchive} }},
		{"plain zip", coords.Identity{Group: "g", Artifact: "a", Version: "1", Type: coords.TypeZip}, func(*Options) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := testOptions(buildNumber42())
			tt.mutate(&opts)
			out, res, err := rewriteBytes(t, src, tt.id, opts)
			if err != nil {
				t.Fatalf("Rewrite() error = %v", err)
			}
			if !res.PassedThrough || !bytes.Equal(out, src) {
				t.Errorf("result = %+v, want verbatim pass-through", res)
			}
		})
	}
}

func TestRewrite_Errors(t *testing.T) {
	t.Parallel()

	good := extensionJar(t, "1.0-SNAPSHOT")
	tests := []struct {
		name   string
		src    []byte
		policy versionpolicy.Policy
		want   error
		entry  string
	}{
		{
			name:   "corrupt archive",
			src:    []byte("PK\x03\x04 truncated"),
			policy: buildNumber42(),
			want:   ErrArchiveCorrupt,
		},
		{
			name:   "corrupt nested jar",
			src:    testutil.BuildZip(t, testutil.Nested("com.sshtools-bad.jar", []byte("nope"))),
			policy: buildNumber42(),
			want:   ErrArchiveCorrupt,
			entry:  "com.sshtools-bad.jar",
		},
		{
			name: "malformed manifest",
			src: testutil.BuildZip(t, testutil.Nested("com.sshtools-bad.jar",
				testutil.BuildZip(t, testutil.File("META-INF/MANIFEST.MF", "no colon here\r\n")))),
			policy: buildNumber42(),
			want:   ErrMetadataMalformed,
			entry:  "com.sshtools-bad.jar!/META-INF/MANIFEST.MF",
		},
		{
			name:   "policy error",
			src:    testutil.BuildZip(t, testutil.Nested("com.sshtools-ext.jar", good)),
			policy: func(string, bool) (string, error) { return "", errors.New("no build number") },
			want:   ErrVersionPolicy,
		},
		{
			name:   "policy returns blank",
			src:    testutil.BuildZip(t, testutil.Nested("com.sshtools-ext.jar", good)),
			policy: func(string, bool) (string, error) { return "  ", nil },
			want:   ErrVersionPolicy,
		},
		{
			name:   "policy panics",
			src:    testutil.BuildZip(t, testutil.Nested("com.sshtools-ext.jar", good)),
			policy: func(string, bool) (string, error) { panic("boom") },
			want:   ErrVersionPolicy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, err := Rewrite(context.Background(), bytes.NewReader(tt.src), &out, archiveID, testOptions(tt.policy))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Rewrite() error = %v, want %v", err, tt.want)
			}
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if rerr.Artifact != archiveID.String() {
				t.Errorf("Artifact = %q, want %q", rerr.Artifact, archiveID.String())
			}
			if tt.entry != "" && rerr.Entry != tt.entry {
				t.Errorf("Entry = %q, want %q", rerr.Entry, tt.entry)
			}
			if out.Len() != 0 {
				t.Errorf("destination received %d bytes on failure", out.Len())
			}
		})
	}
}

func TestRewrite_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := testutil.BuildZip(t, testutil.File("a", "a"))
	_, err := Rewrite(ctx, bytes.NewReader(src), io.Discard, archiveID, testOptions(buildNumber42()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Rewrite() error = %v, want context.Canceled", err)
	}
}

func TestRewriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in", "sample-ext-1.0.0-SNAPSHOT.zip")
	dstPath := filepath.Join(dir, "out", "1.0.0-SNAPSHOT", "sample-ext", "sample-ext.zip")
	testutil.MustWriteFile(t, srcPath, testutil.BuildZip(t,
		testutil.Nested("com.sshtools-ext.jar", extensionJar(t, "1.0.0-SNAPSHOT")),
	))

	res, err := RewriteFile(context.Background(), srcPath, dstPath, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("RewriteFile() error = %v", err)
	}
	if res.ExtensionJars != 1 {
		t.Errorf("ExtensionJars = %d, want 1", res.ExtensionJars)
	}
	jar := testutil.ZipBody(t, testutil.MustReadFile(t, dstPath), "com.sshtools-ext.jar")
	if got := manifestVersion(t, testutil.ZipBody(t, jar, "META-INF/MANIFEST.MF")); got != "1.0.0-42" {
		t.Errorf("X-Extension-Version = %q, want 1.0.0-42", got)
	}
	assertNoTempFiles(t, filepath.Dir(dstPath))
}

func TestRewriteFile_InPlace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ext.zip")
	testutil.MustWriteFile(t, path, testutil.BuildZip(t,
		testutil.Nested("com.sshtools-ext.jar", extensionJar(t, "1.0-SNAPSHOT")),
	))
	if _, err := RewriteFile(context.Background(), path, path, archiveID, testOptions(buildNumber42())); err != nil {
		t.Fatalf("RewriteFile() error = %v", err)
	}
	jar := testutil.ZipBody(t, testutil.MustReadFile(t, path), "com.sshtools-ext.jar")
	if got := manifestVersion(t, testutil.ZipBody(t, jar, "META-INF/MANIFEST.MF")); got != "1.0-42" {
		t.Errorf("X-Extension-Version = %q, want 1.0-42", got)
	}
}

func TestRewriteFile_PassThroughIsVerbatim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := testutil.BuildZip(t, testutil.File("a.txt", "a"), testutil.Nested("com.sshtools-x.jar", testutil.BuildZip(t)))
	srcPath := filepath.Join(dir, "in.zip")
	dstPath := filepath.Join(dir, "out.zip")
	testutil.MustWriteFile(t, srcPath, src)

	res, err := RewriteFile(context.Background(), srcPath, dstPath, archiveID, testOptions(buildNumber42()))
	if err != nil {
		t.Fatalf("RewriteFile() error = %v", err)
	}
	if !res.PassedThrough {
		t.Error("PassedThrough = false, want true")
	}
	if !bytes.Equal(testutil.MustReadFile(t, dstPath), src) {
		t.Error("destination differs from source")
	}
}

func TestRewriteFile_FailureLeavesNoDestination(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in.zip")
	dstPath := filepath.Join(dir, "out", "out.zip")
	testutil.MustWriteFile(t, srcPath, testutil.BuildZip(t,
		testutil.File("first.txt", "written before the failure"),
		testutil.Nested("com.sshtools-bad.jar", testutil.BuildZip(t,
			testutil.File("META-INF/MANIFEST.MF", "X-Extension-Version 1.0\r\n"))),
	))

	_, err := RewriteFile(context.Background(), srcPath, dstPath, archiveID, testOptions(buildNumber42()))
	if !errors.Is(err, ErrMetadataMalformed) {
		t.Fatalf("RewriteFile() error = %v, want ErrMetadataMalformed", err)
	}
	if _, statErr := os.Stat(dstPath); !os.IsNotExist(statErr) {
		t.Errorf("destination exists after failure: %v", statErr)
	}
	assertNoTempFiles(t, filepath.Dir(dstPath))
}

func TestRewriteFile_MissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := RewriteFile(context.Background(), filepath.Join(dir, "nope.zip"), filepath.Join(dir, "out.zip"), archiveID, testOptions(buildNumber42()))
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("RewriteFile() error = %v, want ErrIOFailure", err)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}
