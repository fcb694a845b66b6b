// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/invowk/extpack/pkg/coords"
)

type (
	// Change records one rewritten version-bearing entry.
	Change struct {
		Entry      string `toml:"entry" yaml:"entry"`
		OldVersion string `toml:"old_version" yaml:"old_version"`
		NewVersion string `toml:"new_version" yaml:"new_version"`
	}

	// Result summarizes a top-level rewrite.
	Result struct {
		// ExtensionJars counts the jars, at any depth, whose manifest declared
		// an extension version.
		ExtensionJars int
		// PassedThrough is true when the destination is a verbatim copy of the
		// source, either because the artifact was not eligible or because no
		// extension jar was found.
		PassedThrough bool
		// Changes lists every rewritten entry in archive order.
		Changes []Change
	}
)

// Rewrite re-versions the archive read from src and writes the result to dst.
// The rewritten archive is assembled in memory first so that nothing is
// written to dst when the rewrite fails.
func Rewrite(ctx context.Context, src Source, dst io.Writer, id coords.Identity, opts Options) (Result, error) {
	var buf bytes.Buffer
	res, err := run(ctx, src, BorrowWriter(&buf), id, opts)
	if err != nil {
		return Result{}, err
	}
	if res.PassedThrough {
		buf.Reset()
		if _, err := io.Copy(&buf, io.NewSectionReader(src, 0, src.Size())); err != nil {
			return Result{}, &Error{Kind: ErrIOFailure, Artifact: id.String(), Err: err}
		}
	}
	if _, err := dst.Write(buf.Bytes()); err != nil {
		return Result{}, &Error{Kind: ErrIOFailure, Artifact: id.String(), Err: err}
	}
	return res, nil
}

// RewriteFile rewrites srcPath into dstPath. The output is written to a
// temporary file next to dstPath and renamed into place only on success; on
// any failure dstPath is left untouched. srcPath and dstPath may be equal.
func RewriteFile(ctx context.Context, srcPath, dstPath string, id coords.Identity, opts Options) (res Result, err error) {
	ioErr := func(err error) error {
		return &Error{Kind: ErrIOFailure, Artifact: id.String(), Entry: srcPath, Err: err}
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return Result{}, ioErr(err)
	}
	defer func() { _ = in.Close() }()
	info, err := in.Stat()
	if err != nil {
		return Result{}, ioErr(err)
	}
	src := io.NewSectionReader(in, 0, info.Size())

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return Result{}, ioErr(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), "."+filepath.Base(dstPath)+".*.tmp")
	if err != nil {
		return Result{}, ioErr(err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	res, err = run(ctx, src, BorrowWriter(tmp), id, opts)
	if err != nil {
		return Result{}, err
	}
	if res.PassedThrough {
		if err := copyInto(tmp, src); err != nil {
			return Result{}, ioErr(err)
		}
	}

	if err := tmp.Chmod(0o644); err != nil {
		return Result{}, ioErr(err)
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, ioErr(err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, ioErr(err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return Result{}, ioErr(err)
	}
	committed = true
	return res, nil
}

// copyInto replaces whatever tmp holds with the verbatim source bytes.
func copyInto(tmp *os.File, src *io.SectionReader) error {
	if err := tmp.Truncate(0); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(tmp, io.NewSectionReader(src, 0, src.Size()))
	return err
}

// run drives one top-level rewrite into dst. When the result is a
// pass-through, dst may hold a discarded partial archive and the caller must
// substitute the source bytes.
func run(ctx context.Context, src Source, dst io.WriteCloser, id coords.Identity, opts Options) (Result, error) {
	log := opts.logger()
	if !opts.eligible(id) {
		log.Debugf("%s is not processed, copied unchanged", id)
		return Result{PassedThrough: true}, nil
	}

	t := &transcoder{opts: opts, id: id, artifact: id.String(), log: log}
	// A jar artifact is itself the extension candidate; an extension archive
	// only bundles candidates.
	scope := newContext("", nil, id.IsJar())
	if err := t.transcode(ctx, src, dst, scope); err != nil {
		return Result{}, err
	}

	if t.extensions == 0 {
		log.Debugf("no extension jars processed in %s", id)
		return Result{PassedThrough: true}, nil
	}
	log.Debugf("processed %d extension jar(s) in %s", t.extensions, id)
	return Result{ExtensionJars: t.extensions, Changes: t.changes}, nil
}
