// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrArchiveCorrupt is returned when the source is not a readable zip.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrMetadataMalformed is returned when a manifest, properties file or POM
	// cannot be parsed.
	ErrMetadataMalformed = errors.New("metadata malformed")

	// ErrVersionPolicy is returned when the version policy fails or produces an
	// unusable version.
	ErrVersionPolicy = errors.New("version policy failed")

	// ErrIOFailure is returned when reading the source or writing the
	// destination fails.
	ErrIOFailure = errors.New("i/o failure")
)

// Error describes a rewrite failure. Kind is one of the sentinel errors above
// so callers can match with errors.Is; Err is the underlying cause.
type Error struct {
	Kind     error
	Artifact string
	Entry    string
	Err      error
}

func (e *Error) Error() string {
	msg := "rewrite " + e.Artifact
	if e.Entry != "" {
		msg += " (" + e.Entry + ")"
	}
	return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// readKind classifies an error raised while reading source zip data.
func readKind(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &corrupt):
		return ErrArchiveCorrupt
	default:
		return ErrIOFailure
	}
}
