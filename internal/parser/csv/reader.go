// Package csv streams large delimited files in bounded chunks.
//
// It provides the pieces the loader needs without ever materializing a file:
// a quote-aware row counter, format detection from the header, a byte-level
// row skipper for range starts, and a chunked record reader on top of
// encoding/csv.
package csv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"compliancedb/internal/loaderr"
)

// Options tunes reading.
type Options struct {
	// Comma is the field delimiter; default ','.
	Comma rune
	// StrictQuotes disables csv.Reader.LazyQuotes. Lazy quoting is the
	// default because enforcement extracts carry stray quotes in free text.
	StrictQuotes bool
	// BufferSize is the bufio buffer; default 1 MiB.
	BufferSize int
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

// Record is one raw source row. Ordinal is the 0-based data row number
// (header excluded). Err is set when encoding/csv could not parse the row.
type Record struct {
	Ordinal int64
	Fields  []string
	Err     error
}

// Chunk is a bounded batch of records sharing one header.
type Chunk struct {
	Header  []string
	Records []Record
}

// FirstOrdinal returns the ordinal of the first record, or -1.
func (c Chunk) FirstOrdinal() int64 {
	if len(c.Records) == 0 {
		return -1
	}
	return c.Records[0].Ordinal
}

// Reader is a forward-only chunked reader over one CSV file.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	cr     *csv.Reader
	opts   Options
	path   string
	header []string
	next   int64
}

// Open opens path and reads its header.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	adviseSequential(f)

	size := opts.BufferSize
	if size <= 0 {
		size = 1 << 20
	}
	r := &Reader{f: f, br: bufio.NewReaderSize(f, size), opts: opts, path: path}

	hdr, err := r.readHeader()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	r.header = NormalizeHeader(hdr)
	return r, nil
}

// readHeader captures the bytes of the first logical row and parses only
// those, so the shared bufio.Reader is positioned exactly at the first data
// row.
func (r *Reader) readHeader() ([]string, error) {
	var line []byte
	n, err := skipRows(r.br, r.opts.comma(), 1, &line)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	line = bytes.TrimPrefix(line, []byte(utf8BOM))
	cr := r.newCSV(bytes.NewReader(line))
	return cr.Read()
}

func (r *Reader) newCSV(src io.Reader) *csv.Reader {
	cr := csv.NewReader(src)
	cr.Comma = r.opts.comma()
	cr.LazyQuotes = !r.opts.StrictQuotes
	cr.FieldsPerRecord = -1 // validated per row by the chunk processor
	cr.ReuseRecord = true
	return cr
}

// Header returns the normalized header.
func (r *Reader) Header() []string { return r.header }

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Position is the ordinal of the next record Next will return.
func (r *Reader) Position() int64 { return r.next }

// Skip advances past n data rows at the byte level. It must be called before
// the first Next. It returns the rows skipped, fewer than n only at EOF.
func (r *Reader) Skip(n int64) (int64, error) {
	if r.cr != nil {
		return 0, errors.New("csv: Skip after Next")
	}
	if n <= 0 {
		return 0, nil
	}
	skipped, err := skipRows(r.br, r.opts.comma(), n, nil)
	r.next += skipped
	if err != nil {
		return skipped, fmt.Errorf("skip rows: %w", err)
	}
	return skipped, nil
}

// Next reads up to max records. It returns io.EOF once the file is
// exhausted and no records remain. Parse errors are attached to the record
// and do not stop reading; any other read error is returned.
func (r *Reader) Next(ctx context.Context, max int) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if max <= 0 {
		return Chunk{}, fmt.Errorf("csv: chunk size must be > 0")
	}
	if r.cr == nil {
		r.cr = r.newCSV(r.br)
	}

	ch := Chunk{Header: r.header, Records: make([]Record, 0, max)}
	for len(ch.Records) < max {
		rec, err := r.cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return ch, fmt.Errorf("read %s: %w", r.path, err)
			}
			ch.Records = append(ch.Records, Record{Ordinal: r.next, Fields: slices.Clone(rec), Err: err})
			r.next++
			continue
		}
		ch.Records = append(ch.Records, Record{Ordinal: r.next, Fields: slices.Clone(rec)})
		r.next++
	}
	if len(ch.Records) == 0 {
		return ch, io.EOF
	}
	return ch, nil
}

// Close closes the file.
func (r *Reader) Close() error { return r.f.Close() }

// Info is the result of Inspect.
type Info struct {
	Path   string
	Header []string
	Format Format
	Rows   int64
}

// Inspect reads the header of path, detects its format for table (any table
// when empty) and counts its data rows. An unrecognized header fails before
// the file is counted.
func Inspect(path, table string, opts Options) (Info, error) {
	format, header, err := DetectFile(path, table, opts)
	if err != nil {
		return Info{}, err
	}
	rows, err := CountRows(path, opts.comma())
	if err != nil {
		return Info{}, err
	}
	return Info{Path: path, Header: header, Format: format, Rows: rows}, nil
}

// DetectFile reads only the header of path and detects its format.
func DetectFile(path, table string, opts Options) (Format, []string, error) {
	r, err := Open(path, opts)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()
	f, err := Detect(r.Header(), table)
	if err != nil {
		var fe *loaderr.FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return "", r.Header(), err
	}
	return f, r.Header(), nil
}
