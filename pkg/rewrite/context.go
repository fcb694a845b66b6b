// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"slices"
	"strings"
)

// RewriteContext tracks the state of one archive level while it is streamed.
// Every nested jar gets its own context whose Parent is the enclosing one.
type RewriteContext struct {
	// Name is the entry name of this level inside its parent. Empty for the
	// top level.
	Name   string
	Parent *RewriteContext

	// OldVersion and NewVersion are set once the manifest of this level has
	// been rewritten. Until then properties and POM entries pass through.
	OldVersion string
	NewVersion string

	// Extension reports whether this level's own manifest declared a version.
	Extension bool

	// jar is false for the top level of an extension archive, whose own
	// metadata-looking entries are not jar metadata.
	jar     bool
	changed bool
}

func newContext(name string, parent *RewriteContext, jar bool) *RewriteContext {
	return &RewriteContext{Name: name, Parent: parent, jar: jar}
}

// Changed reports whether this level or any level below it was rewritten.
func (c *RewriteContext) Changed() bool {
	return c.changed
}

// markChanged flags this level and all its ancestors.
func (c *RewriteContext) markChanged() {
	for s := c; s != nil; s = s.Parent {
		s.changed = true
	}
}

func (c *RewriteContext) hasVersion() bool {
	return c.NewVersion != ""
}

// Path returns entry qualified with the chain of enclosing jars, e.g.
// "lib/inner.jar!/META-INF/MANIFEST.MF". An empty entry names the level itself.
func (c *RewriteContext) Path(entry string) string {
	var parts []string
	if entry != "" {
		parts = append(parts, entry)
	}
	for s := c; s != nil; s = s.Parent {
		if s.Name != "" {
			parts = append(parts, s.Name)
		}
	}
	slices.Reverse(parts)
	return strings.Join(parts, "!/")
}
