// Package transformer conforms raw CSV chunks to the canonical schema.
//
// Process is a pure function of (chunk, format): it compiles a per-column
// plan from the chunk header once, then converts every record into a
// positional []any row aligned to the target table's columns. Field values
// that cannot be parsed become nil and are counted; rows that cannot be
// conformed at all are dropped and counted.
package transformer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"compliancedb/internal/loaderr"
	"compliancedb/internal/parser/csv"
	"compliancedb/internal/schema"
)

// Drop reasons.
const (
	ReasonParseError = "parse_error"
	ReasonFieldCount = "field_count"
	ReasonMissingKey = "missing_key"
)

// Batch is a processed chunk ready for insertion. Rows are aligned to
// Table.Columns; Ordinals[i] is the source row number of Rows[i], ascending.
type Batch struct {
	Table    schema.Table
	Rows     [][]any
	Ordinals []int64
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// Trim returns the rows whose source ordinal lies in [start, end). The
// result shares storage with b.
func (b Batch) Trim(start, end int64) Batch {
	lo := sort.Search(len(b.Ordinals), func(i int) bool { return b.Ordinals[i] >= start })
	hi := sort.Search(len(b.Ordinals), func(i int) bool { return b.Ordinals[i] >= end })
	if hi < lo {
		hi = lo
	}
	return Batch{Table: b.Table, Rows: b.Rows[lo:hi], Ordinals: b.Ordinals[lo:hi]}
}

// Drop records one row rejected by Process.
type Drop struct {
	Ordinal int64
	Reason  string
	Raw     string
}

// Stats counts what Process did with a chunk.
type Stats struct {
	Input       int
	Valid       int
	Malformed   int
	ParseErrors int
	FieldCount  int
	MissingKey  int
	// NullCoerced counts non-empty source values replaced by null because
	// they could not be parsed as the column's type.
	NullCoerced int
	Dropped     []Drop
}

func (s *Stats) drop(rec csv.Record, reason string) {
	s.Malformed++
	switch reason {
	case ReasonParseError:
		s.ParseErrors++
	case ReasonFieldCount:
		s.FieldCount++
	case ReasonMissingKey:
		s.MissingKey++
	}
	s.Dropped = append(s.Dropped, Drop{Ordinal: rec.Ordinal, Reason: reason, Raw: strings.Join(rec.Fields, ",")})
}

type convert func(s string) (v any, coerced bool)

type colPlan struct {
	src  source
	conv convert
}

type plan struct {
	cols    []colPlan
	key     int
	year    int
	date    int
	years   []source
	nFields int
}

// Process converts chunk into a batch for the table format loads into. It
// fails only when the chunk has records and none of them is usable; the
// error is a *loaderr.ChunkError.
func Process(chunk csv.Chunk, format csv.Format) (Batch, Stats, error) {
	t, ok := schema.Lookup(format.Table())
	if !ok {
		return Batch{}, Stats{}, fmt.Errorf("transformer: format %q has no table", format)
	}
	p := compile(t, format, chunk.Header)

	n := len(chunk.Records)
	batch := Batch{Table: t, Rows: make([][]any, 0, n), Ordinals: make([]int64, 0, n)}
	stats := Stats{Input: n}

	for _, rec := range chunk.Records {
		switch {
		case rec.Err != nil:
			stats.drop(rec, ReasonParseError)
			continue
		case len(rec.Fields) != p.nFields:
			stats.drop(rec, ReasonFieldCount)
			continue
		}
		row, nulls := p.row(rec.Fields)
		if row[p.key] == nil {
			stats.drop(rec, ReasonMissingKey)
			continue
		}
		batch.Rows = append(batch.Rows, row)
		batch.Ordinals = append(batch.Ordinals, rec.Ordinal)
		stats.Valid++
		stats.NullCoerced += nulls
	}

	if stats.Valid == 0 && stats.Input > 0 {
		return batch, stats, &loaderr.ChunkError{
			Table:     t.Name,
			Format:    string(format),
			FirstRow:  chunk.FirstOrdinal(),
			InputRows: stats.Input,
			Malformed: stats.Malformed,
		}
	}
	return batch, stats, nil
}

func compile(t schema.Table, format csv.Format, hdr []string) plan {
	h := newHeader(hdr)
	m := mappingFor(format, h, t.ColumnNames())
	p := plan{
		cols:    make([]colPlan, len(t.Columns)),
		key:     t.ColumnIndex(t.Key),
		year:    t.ColumnIndex("year"),
		date:    t.ColumnIndex(t.DateColumn),
		years:   m.years,
		nFields: len(hdr),
	}
	for i, c := range t.Columns {
		p.cols[i] = colPlan{src: m.sources[c.Name], conv: converter(c)}
	}
	return p
}

func converter(c schema.Column) convert {
	switch c.Kind {
	case schema.KindFloat:
		return func(s string) (any, bool) {
			if f, ok := ParseMoney(s); ok {
				return f, false
			}
			return nil, true
		}
	case schema.KindDate:
		return func(s string) (any, bool) {
			if t, ok := ParseDate(s); ok {
				return t, false
			}
			return nil, true
		}
	case schema.KindInt:
		return func(s string) (any, bool) {
			if i, ok := ParseInt(s); ok {
				return i, false
			}
			return nil, true
		}
	case schema.KindBool:
		return func(s string) (any, bool) {
			if b, ok := ParseBool(s); ok {
				return b, false
			}
			return nil, true
		}
	default:
		upper := c.Name == "site_state"
		size := c.Size
		return func(s string) (any, bool) {
			if upper {
				s = strings.ToUpper(s)
			}
			return truncate(s, size), false
		}
	}
}

// row builds one canonical row and reports how many values were coerced to
// null.
func (p plan) row(fields []string) ([]any, int) {
	row := make([]any, len(p.cols))
	nulls := 0
	for i, c := range p.cols {
		if c.src == nil || i == p.year {
			continue
		}
		raw := c.src(fields)
		if raw == "" {
			continue
		}
		v, coerced := c.conv(raw)
		if coerced {
			nulls++
		}
		row[i] = v
	}
	if p.year >= 0 {
		nulls += p.fillYear(row, fields)
	}
	return row, nulls
}

// fillYear prefers an explicit year column and falls back to the year of
// the primary date.
func (p plan) fillYear(row []any, fields []string) int {
	rejected := false
	for _, s := range p.years {
		raw := s(fields)
		if raw == "" {
			continue
		}
		if y, ok := ParseYear(raw); ok {
			row[p.year] = y
			return 0
		}
		rejected = true
	}
	if p.date >= 0 {
		if d, ok := row[p.date].(time.Time); ok {
			row[p.year] = int64(d.Year())
			return 0
		}
	}
	if rejected {
		return 1
	}
	return 0
}
