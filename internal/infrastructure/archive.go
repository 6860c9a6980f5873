package infrastructure

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
)

// deflate level 5 balances pack time against size; maximum compression
// buys little on already-compressed audio
const archiveCompressionLevel = 5

// ErrArchiveFinalized is returned when an archive is modified or
// finalized after Finalize has already been called
var ErrArchiveFinalized = errors.New("archive already finalized")

// ZipArchive accumulates named binary entries in memory and serializes
// them into one ZIP blob. An instance serves exactly one batch and is
// never reused.
type ZipArchive struct {
	buf       bytes.Buffer
	zw        *zip.Writer
	entries   int
	finalized bool
}

// NewZipArchive creates an empty archive accumulator
func NewZipArchive() *ZipArchive {
	a := &ZipArchive{}
	a.zw = zip.NewWriter(&a.buf)
	a.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, archiveCompressionLevel)
	})
	return a
}

// Add inserts one named entry. An entry with an already-used name
// overwrites the earlier entry in the archive's directory structure.
func (a *ZipArchive) Add(name string, data []byte) error {
	if a.finalized {
		return ErrArchiveFinalized
	}

	w, err := a.zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %q: %w", name, err)
	}

	a.entries++
	return nil
}

// Len returns the number of accumulated entries
func (a *ZipArchive) Len() int {
	return a.entries
}

// Finalize serializes the accumulated entries into a single ZIP blob.
// It may be called at most once; an archive with zero entries still
// yields a valid empty ZIP.
func (a *ZipArchive) Finalize() ([]byte, error) {
	if a.finalized {
		return nil, ErrArchiveFinalized
	}
	a.finalized = true

	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to serialize archive: %w", err)
	}
	return a.buf.Bytes(), nil
}
