// SPDX-License-Identifier: MPL-2.0

package rewrite

import "io"

type (
	borrowedWriter struct{ w io.Writer }
	borrowedReader struct{ r io.Reader }
)

// BorrowWriter wraps w so that closing the wrapper leaves w open.
// The zip writer of a nested archive closes its output when finished;
// the enclosing stream must outlive it.
func BorrowWriter(w io.Writer) io.WriteCloser {
	return borrowedWriter{w: w}
}

// BorrowReader wraps r so that closing the wrapper leaves r open.
func BorrowReader(r io.Reader) io.ReadCloser {
	return borrowedReader{r: r}
}

func (b borrowedWriter) Write(p []byte) (int, error) { return b.w.Write(p) }

func (borrowedWriter) Close() error { return nil }

func (b borrowedReader) Read(p []byte) (int, error) { return b.r.Read(p) }

func (borrowedReader) Close() error { return nil }
