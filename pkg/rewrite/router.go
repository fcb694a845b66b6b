// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/flate"

	"github.com/invowk/extpack/pkg/coords"
)

type (
	// Source is a random-access view of an archive.
	// *os.File wrapped in io.NewSectionReader and *bytes.Reader both satisfy it.
	Source interface {
		io.ReaderAt
		Size() int64
	}

	// transcoder carries the state shared by every level of one top-level
	// rewrite: the artifact being processed and the extension counter.
	transcoder struct {
		opts     Options
		id       coords.Identity
		artifact string
		log      *log.Logger

		extensions int
		changes    []Change
	}
)

func newZipReader(src Source) (*zip.Reader, error) {
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	return zr, nil
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return zw
}

// fail wraps err as a rewrite *Error unless it already is one.
func (t *transcoder) fail(kind error, scope *RewriteContext, entry string, err error) error {
	var rerr *Error
	if errors.As(err, &rerr) {
		return err
	}
	return &Error{Kind: kind, Artifact: t.artifact, Entry: scope.Path(entry), Err: err}
}

// transcode streams every entry of src into dst in source order. dst is
// closed on return; pass a borrowed writer to keep the underlying stream open.
func (t *transcoder) transcode(ctx context.Context, src Source, dst io.WriteCloser, scope *RewriteContext) (err error) {
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = t.fail(ErrIOFailure, scope, "", closeErr)
		}
	}()

	zr, err := newZipReader(src)
	if err != nil {
		return t.fail(readKind(err), scope, "", err)
	}

	zw := newZipWriter(dst)
	if zr.Comment != "" {
		if err := zw.SetComment(zr.Comment); err != nil {
			return t.fail(ErrIOFailure, scope, "", err)
		}
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return t.fail(ErrIOFailure, scope, f.Name, err)
		}
		if err := t.route(ctx, zw, f, scope); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return t.fail(ErrIOFailure, scope, "", err)
	}
	return nil
}

// route hands one entry to exactly one handler.
func (t *transcoder) route(ctx context.Context, zw *zip.Writer, f *zip.File, scope *RewriteContext) error {
	kind := t.opts.Classify(f.Name, f.FileInfo().IsDir())
	if !scope.jar && kind != KindDirectory && kind != KindNestedJar {
		// Metadata only has meaning inside a jar.
		kind = KindOpaque
	}
	t.log.Debugf("  entry: %s (%s)", scope.Path(f.Name), kind)

	switch kind {
	case KindDirectory:
		return t.writeDirectory(zw, f, scope)
	case KindManifest:
		return t.handleManifest(zw, f, scope)
	case KindPluginProperties, KindExtensionDef, KindMavenPOMProperties:
		return t.handleProperties(zw, f, kind, scope)
	case KindMavenPOM:
		return t.handlePOM(zw, f, scope)
	case KindNestedJar:
		return t.recurse(ctx, zw, f, scope)
	default:
		return t.copyRaw(zw, f, scope)
	}
}

func (t *transcoder) writeDirectory(zw *zip.Writer, f *zip.File, scope *RewriteContext) error {
	fh := &zip.FileHeader{
		Name:           f.Name,
		Comment:        f.Comment,
		Method:         zip.Store,
		Modified:       f.Modified,
		ExternalAttrs:  f.ExternalAttrs,
		CreatorVersion: f.CreatorVersion,
		NonUTF8:        f.NonUTF8,
	}
	if _, err := zw.CreateHeader(fh); err != nil {
		return t.fail(ErrIOFailure, scope, f.Name, err)
	}
	return nil
}

// copyRaw copies the entry without decompressing it, so its bytes, CRC and
// compression method are identical to the source.
func (t *transcoder) copyRaw(zw *zip.Writer, f *zip.File, scope *RewriteContext) error {
	if err := zw.Copy(f); err != nil {
		return t.fail(readKind(err), scope, f.Name, err)
	}
	return nil
}

func (t *transcoder) readEntry(f *zip.File, scope *RewriteContext) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, t.fail(readKind(err), scope, f.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = t.fail(readKind(closeErr), scope, f.Name, closeErr)
		}
	}()
	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, t.fail(readKind(err), scope, f.Name, err)
	}
	return data, nil
}

// writeEntry emits new content for f, keeping its name, method and timestamps.
// Stored entries are written with their sizes and CRC up front so that
// streaming readers never see a data descriptor on a stored entry.
func (t *transcoder) writeEntry(zw *zip.Writer, f *zip.File, data []byte, scope *RewriteContext) error {
	fh := &zip.FileHeader{
		Name:           f.Name,
		Comment:        f.Comment,
		Method:         zip.Deflate,
		Modified:       f.Modified,
		ExternalAttrs:  f.ExternalAttrs,
		CreatorVersion: f.CreatorVersion,
		NonUTF8:        f.NonUTF8,
	}

	var (
		w   io.Writer
		err error
	)
	if f.Method == zip.Store {
		fh.Method = zip.Store
		fh.CRC32 = crc32.ChecksumIEEE(data)
		fh.CompressedSize64 = uint64(len(data))
		fh.UncompressedSize64 = uint64(len(data))
		// CreateRaw does not derive the DOS timestamp from Modified.
		fh.ModifiedTime, fh.ModifiedDate = f.ModifiedTime, f.ModifiedDate //nolint:staticcheck // raw header fields
		w, err = zw.CreateRaw(fh)
	} else {
		w, err = zw.CreateHeader(fh)
	}
	if err != nil {
		return t.fail(ErrIOFailure, scope, f.Name, err)
	}
	if _, err := w.Write(data); err != nil {
		return t.fail(ErrIOFailure, scope, f.Name, err)
	}
	return nil
}

func (t *transcoder) handleManifest(zw *zip.Writer, f *zip.File, scope *RewriteContext) error {
	data, err := t.readEntry(f, scope)
	if err != nil {
		return err
	}
	out, oldVersion, newVersion, ok, err := rewriteManifest(data, t.opts.Policy)
	if err != nil {
		return t.fail(kindOf(err), scope, f.Name, err)
	}
	if !ok {
		t.log.Debugf("    %s has no %s", scope.Path(f.Name), "X-Extension-Version")
		return t.copyRaw(zw, f, scope)
	}

	scope.OldVersion, scope.NewVersion, scope.Extension = oldVersion, newVersion, true
	scope.markChanged()
	t.extensions++
	t.changes = append(t.changes, Change{Entry: scope.Path(f.Name), OldVersion: oldVersion, NewVersion: newVersion})
	t.log.Debugf("    adjusted version in %s from %s to %s", scope.Path(f.Name), oldVersion, newVersion)
	return t.writeEntry(zw, f, out, scope)
}

func (t *transcoder) handleProperties(zw *zip.Writer, f *zip.File, kind EntryKind, scope *RewriteContext) error {
	if !scope.hasVersion() {
		return t.copyRaw(zw, f, scope)
	}
	data, err := t.readEntry(f, scope)
	if err != nil {
		return err
	}
	header := propertyHeaders[kind]
	if kind != KindMavenPOMProperties {
		header = fmt.Sprintf(header, t.id.Artifact)
	}
	out, err := rewriteProperties(data, propertyKeys[kind], scope.NewVersion, header)
	if err != nil {
		return t.fail(kindOf(err), scope, f.Name, err)
	}
	t.changes = append(t.changes, Change{Entry: scope.Path(f.Name), OldVersion: scope.OldVersion, NewVersion: scope.NewVersion})
	t.log.Debugf("    adjusted version in %s from %s to %s", scope.Path(f.Name), scope.OldVersion, scope.NewVersion)
	return t.writeEntry(zw, f, out, scope)
}

func (t *transcoder) handlePOM(zw *zip.Writer, f *zip.File, scope *RewriteContext) error {
	if !scope.hasVersion() {
		return t.copyRaw(zw, f, scope)
	}
	data, err := t.readEntry(f, scope)
	if err != nil {
		return err
	}
	out, ok, err := rewritePOM(data, scope.NewVersion)
	if err != nil {
		return t.fail(kindOf(err), scope, f.Name, err)
	}
	if !ok {
		return t.copyRaw(zw, f, scope)
	}
	t.changes = append(t.changes, Change{Entry: scope.Path(f.Name), OldVersion: scope.OldVersion, NewVersion: scope.NewVersion})
	t.log.Debugf("    adjusted version in %s from %s to %s", scope.Path(f.Name), scope.OldVersion, scope.NewVersion)
	return t.writeEntry(zw, f, out, scope)
}

// kindOf picks the sentinel already wrapped into err by the rewriters.
func kindOf(err error) error {
	for _, kind := range []error{ErrMetadataMalformed, ErrVersionPolicy, ErrArchiveCorrupt} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrIOFailure
}
