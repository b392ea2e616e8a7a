// Package loaderr defines the failure taxonomy of the loading pipeline.
//
// Each kind has a sentinel for errors.Is and a struct carrying the details a
// caller needs to report the failure (which file, which rows, which ranges).
// Row-level malformation is deliberately absent: bad dates and bad numbers are
// coerced to NULL and counted, never raised.
package loaderr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFormatUnrecognized    = errors.New("format unrecognized")
	ErrChunkProcessingFailed = errors.New("chunk processing failed")
	ErrBulkInsertFailed      = errors.New("bulk insert failed")
	ErrWorkerFailed          = errors.New("worker failed")
)

// FormatError reports a header that matches no known layout.
type FormatError struct {
	Path   string
	Table  string
	Header []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s (table=%s header=%s)",
		ErrFormatUnrecognized, e.Path, e.Table, strings.Join(e.Header, ","))
}

func (e *FormatError) Is(target error) bool { return target == ErrFormatUnrecognized }

// ChunkError reports a chunk in which no row survived processing.
type ChunkError struct {
	Table     string
	Format    string
	FirstRow  int64
	InputRows int
	Malformed int
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: table=%s format=%s first_row=%d: all %d rows malformed",
		ErrChunkProcessingFailed, e.Table, e.Format, e.FirstRow, e.InputRows)
}

func (e *ChunkError) Is(target error) bool { return target == ErrChunkProcessingFailed }

// BulkInsertError reports a batch that neither the native nor the fallback
// insert path could write.
type BulkInsertError struct {
	Table    string
	Rows     int
	Strategy string
	Native   error
	Fallback error
}

func (e *BulkInsertError) Error() string {
	return fmt.Sprintf("%s: table=%s rows=%d native(%s)=%v fallback=%v",
		ErrBulkInsertFailed, e.Table, e.Rows, e.Strategy, e.Native, e.Fallback)
}

func (e *BulkInsertError) Is(target error) bool { return target == ErrBulkInsertFailed }

func (e *BulkInsertError) Unwrap() []error {
	var out []error
	if e.Native != nil {
		out = append(out, e.Native)
	}
	if e.Fallback != nil {
		out = append(out, e.Fallback)
	}
	return out
}

// Span is a half-open row interval used in failure reports.
type Span struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// RangeFailure pairs a failed span with its cause.
type RangeFailure struct {
	Span
	Err error
}

// WorkerError reports a parallel load in which at least one worker failed.
// Rows written by the failed workers before they stopped are retained.
type WorkerError struct {
	Table     string
	Failed    []RangeFailure
	Succeeded []Span
}

func (e *WorkerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: table=%s failed=", ErrWorkerFailed, e.Table)
	for i, f := range e.Failed {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s", f.Span)
	}
	b.WriteString(" succeeded=")
	for i, s := range e.Succeeded {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.String())
	}
	if len(e.Failed) > 0 && e.Failed[0].Err != nil {
		fmt.Fprintf(&b, ": first: %v", e.Failed[0].Err)
	}
	return b.String()
}

func (e *WorkerError) Is(target error) bool { return target == ErrWorkerFailed }

// Unwrap exposes the first failure so errors.Is reaches its kind.
func (e *WorkerError) Unwrap() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e.Failed[0].Err
}

// Kind names for crossing a process boundary.
const (
	KindFormat = "format_unrecognized"
	KindChunk  = "chunk_processing_failed"
	KindBulk   = "bulk_insert_failed"
	KindOther  = "error"
)

// KindOf classifies err for serialization.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormatUnrecognized):
		return KindFormat
	case errors.Is(err, ErrChunkProcessingFailed):
		return KindChunk
	case errors.Is(err, ErrBulkInsertFailed):
		return KindBulk
	default:
		return KindOther
	}
}

// remoteError is a failure decoded from a worker process. It keeps the
// message and still matches the sentinel of its kind.
type remoteError struct {
	kind string
	msg  string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Is(target error) bool {
	switch e.kind {
	case KindFormat:
		return target == ErrFormatUnrecognized
	case KindChunk:
		return target == ErrChunkProcessingFailed
	case KindBulk:
		return target == ErrBulkInsertFailed
	}
	return false
}

// FromKind rebuilds an error previously classified by KindOf.
func FromKind(kind, msg string) error {
	if kind == "" && msg == "" {
		return nil
	}
	return &remoteError{kind: kind, msg: msg}
}
