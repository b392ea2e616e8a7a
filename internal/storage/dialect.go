package storage

import (
	"fmt"
	"math"
	"strings"

	"compliancedb/internal/schema"
)

// Dialect captures the per-engine SQL differences the loader relies on.
type Dialect interface {
	Name() string

	// Quote quotes a single identifier.
	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// MaxParams is the bound-variable limit of one statement.
	MaxParams() int

	// ColumnType maps a canonical column to a SQL type.
	ColumnType(c schema.Column) string
	// CreateTableSQL returns an idempotent CREATE TABLE for t.
	CreateTableSQL(t schema.Table) string

	// IndexExistsSQL is a catalog query with two arguments (table, index)
	// returning the number of matching indexes.
	IndexExistsSQL() string
	DropIndexSQL(table, index string) string
	CreateIndexSQL(table string, idx schema.Index) string
	// AnalyzeSQL refreshes planner statistics; empty when unsupported.
	AnalyzeSQL(table string) string

	// Encode converts a canonical value (nil, string, int64, float64,
	// time.Time, bool) into what this engine's driver expects. nil and NaN
	// both become SQL NULL.
	Encode(c schema.Column, v any) any
}

// ColumnList returns the quoted, comma-separated column list of t.
func ColumnList(d Dialect, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}

// InsertSQL builds a multi-row INSERT for rows×len(cols) values, numbering
// placeholders from 1.
func InsertSQL(d Dialect, table string, cols []string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.Quote(table), ColumnList(d, cols))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// CreateTableBody renders "(col type, ...)" for t using d.ColumnType.
func CreateTableBody(d Dialect, t schema.Table) string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		parts[i] = d.Quote(c.Name) + " " + d.ColumnType(c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CreateIndexBody renders "name ON table (cols)".
func CreateIndexBody(d Dialect, table string, idx schema.Index) string {
	return fmt.Sprintf("%s ON %s (%s)", d.Quote(idx.Name), d.Quote(table), ColumnList(d, idx.Columns))
}

// RowsPerStatement is the largest row count whose parameters fit in one
// statement, capped at limit.
func RowsPerStatement(d Dialect, cols, limit int) int {
	if cols <= 0 {
		return limit
	}
	n := d.MaxParams() / cols
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// IsNull reports whether v is the canonical missing marker.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	}
	return false
}
