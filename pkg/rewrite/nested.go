// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"archive/zip"
	"bytes"
	"context"
)

// recurse rewrites a nested jar entry as an archive of its own. The inner
// archive is built in memory through a borrowed writer; if nothing inside it
// changed, the original entry is copied raw instead.
func (t *transcoder) recurse(ctx context.Context, zw *zip.Writer, f *zip.File, parent *RewriteContext) error {
	if t.opts.OnNestedOpen != nil {
		t.opts.OnNestedOpen(parent.Path(f.Name))
	}
	data, err := t.readEntry(f, parent)
	if err != nil {
		return err
	}

	scope := newContext(f.Name, parent, true)
	t.log.Debugf("    process versions in inner jar %s of %s", scope.Path(""), t.artifact)

	var buf bytes.Buffer
	if err := t.transcode(ctx, bytes.NewReader(data), BorrowWriter(&buf), scope); err != nil {
		return err
	}
	if !scope.Changed() {
		t.log.Debugf("    not an extension, %s copied unchanged", scope.Path(""))
		return t.copyRaw(zw, f, parent)
	}
	return t.writeEntry(zw, f, buf.Bytes(), parent)
}
