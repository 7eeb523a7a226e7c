package vcf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/vcfgo"
)

// Reader reads variants from a VCF stream.
type Reader struct {
	vr         *vcfgo.Reader
	file       *os.File
	gzipReader *gzip.Reader
	count      int
}

// Open opens a VCF file. Both plain VCF and gzipped VCF (.vcf.gz) are supported.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReader creates a reader over r, transparently decompressing gzip input.
// An input with no bytes at all yields ErrEmpty.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err != nil && len(magic) == 0 {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	rd := &Reader{}
	var src io.Reader = br
	// gzip magic number (0x1f, 0x8b)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		rd.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		src = rd.gzipReader
	}

	rd.vr, err = vcfgo.NewReader(src, true)
	if err != nil {
		rd.Close()
		return nil, fmt.Errorf("parse vcf header: %w", err)
	}
	return rd, nil
}

// Header returns the parsed VCF header.
func (r *Reader) Header() *vcfgo.Header {
	return r.vr.Header
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (r *Reader) Next() (*Variant, error) {
	rec := r.vr.Read()
	if rec == nil {
		return nil, nil
	}
	r.count++
	return FromRecord(rec), nil
}

// Count returns the number of records read so far.
func (r *Reader) Count() int {
	return r.count
}

// Warnings returns non-fatal problems vcfgo accumulated while parsing,
// such as INFO keys missing from the header.
func (r *Reader) Warnings() error {
	return r.vr.Error()
}

// Close closes the reader and any underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ErrEmpty is returned for input that contains no VCF content at all.
var ErrEmpty = errors.New("vcf: empty input")
