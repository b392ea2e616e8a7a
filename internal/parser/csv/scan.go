package csv

import (
	"bufio"
	"io"
)

type scanState uint8

const (
	stFieldStart scanState = iota
	stUnquoted
	stQuoted
	stQuoteInQuoted
)

// rowScanner finds logical CSV row boundaries in a byte stream without
// splitting fields. Newlines inside quoted fields do not end a row, and
// empty lines (LF or CRLF only) are ignored, the same way encoding/csv skips
// them. A CR not directly followed by LF is field content, so "\r\r\n" is
// a row. A quote only opens a quoted field at the start of a
// field; elsewhere it is literal, matching csv.Reader with LazyQuotes.
//
// Row counting and row skipping share this scanner so that a skip of n rows
// lands exactly where a count of n rows ends.
type rowScanner struct {
	comma   byte
	state   scanState
	content bool
	cr      bool // CR seen at field start, pending the next byte
}

func newRowScanner(comma rune) *rowScanner {
	c := byte(',')
	if comma > 0 && comma < 0x80 {
		c = byte(comma)
	}
	return &rowScanner{comma: c}
}

// scan consumes buf and reports how many bytes were consumed and how many
// rows were completed. When limit >= 0 it stops right after the limit-th row
// terminator.
func (s *rowScanner) scan(buf []byte, limit int64) (consumed int, rows int64) {
	for i, b := range buf {
		if s.cr {
			s.cr = false
			if b != '\n' {
				s.content = true
				s.state = stUnquoted
			}
		}
		switch s.state {
		case stFieldStart:
			switch b {
			case '"':
				s.state = stQuoted
				s.content = true
			case s.comma:
				s.content = true
			case '\n':
				if s.endRow() {
					rows++
					if rows == limit {
						return i + 1, rows
					}
				}
			case '\r':
				s.cr = true
			default:
				s.state = stUnquoted
				s.content = true
			}
		case stUnquoted:
			switch b {
			case s.comma:
				s.state = stFieldStart
			case '\n':
				if s.endRow() {
					rows++
					if rows == limit {
						return i + 1, rows
					}
				}
			}
		case stQuoted:
			if b == '"' {
				s.state = stQuoteInQuoted
			}
		case stQuoteInQuoted:
			switch b {
			case '"':
				s.state = stQuoted
			case s.comma:
				s.state = stFieldStart
			case '\n':
				if s.endRow() {
					rows++
					if rows == limit {
						return i + 1, rows
					}
				}
			case '\r':
			default:
				s.state = stQuoted
			}
		}
	}
	return len(buf), rows
}

// endRow resets state at a terminator and reports whether the row counted.
func (s *rowScanner) endRow() bool {
	counted := s.content
	s.state = stFieldStart
	s.content = false
	s.cr = false
	return counted
}

// finish accounts for an unterminated final row at EOF.
func (s *rowScanner) finish() int64 {
	if s.endRow() {
		return 1
	}
	return 0
}

// skipRows advances br past n logical rows without building records. If
// capture is non-nil the consumed bytes are appended to it. It returns the
// number of rows skipped, which is less than n only at EOF.
func skipRows(br *bufio.Reader, comma rune, n int64, capture *[]byte) (int64, error) {
	s := newRowScanner(comma)
	var skipped int64
	for skipped < n {
		if br.Buffered() == 0 {
			if _, err := br.Peek(1); err != nil {
				if err == io.EOF {
					return skipped + s.finish(), nil
				}
				return skipped, err
			}
		}
		buf, _ := br.Peek(br.Buffered())
		c, r := s.scan(buf, n-skipped)
		if capture != nil {
			*capture = append(*capture, buf[:c]...)
		}
		skipped += r
		if _, err := br.Discard(c); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}
