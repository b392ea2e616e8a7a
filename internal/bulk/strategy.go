// Package bulk inserts processed batches through the fastest path an engine
// offers.
//
// Each engine family has one native Strategy (multi-row VALUES, COPY, bulk
// copy). Select picks it once from the declared storage.Capability. The
// Dispatcher runs the native strategy and falls back to the generic batched
// INSERT path when it fails.
package bulk

import (
	"context"
	"fmt"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// NativeGroupRows bounds how many rows a native path sends per statement or
// COPY group; engines with lower parameter limits use less.
const NativeGroupRows = 10000

// Strategy writes rows (aligned to t.Columns, canonical values) into t and
// returns the number of rows inserted. Implementations are transactional:
// on error nothing from the call is committed.
type Strategy interface {
	Name() string
	Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error)
}

// Select returns the native strategy for db's declared capability. Engines
// without a native path get the generic strategy.
func Select(db storage.DB) Strategy {
	switch db.Capability() {
	case storage.CapMultiRowValues:
		if s, ok := db.(sqlPool); ok {
			if db.Kind() == "mysql" {
				return &MySQLBulkStrategy{multiRow{pool: s, dialect: db.Dialect(), name: "mysql-multirow"}}
			}
			return &SQLiteBulkStrategy{multiRow{pool: s, dialect: db.Dialect(), name: "sqlite-multirow"}}
		}
	case storage.CapCopyProtocol:
		if p, ok := db.(pgxPool); ok {
			return &PostgresBulkStrategy{pool: p}
		}
	case storage.CapBulkCopy:
		if s, ok := db.(sqlPool); ok {
			return &MSSQLBulkStrategy{pool: s, dialect: db.Dialect()}
		}
	}
	return NewGeneric(db)
}

// encodeRow appends the engine encoding of row to dst.
func encodeRow(dst []any, d storage.Dialect, t schema.Table, row []any) ([]any, error) {
	if len(row) != len(t.Columns) {
		return dst, fmt.Errorf("row has %d values, table %s has %d columns", len(row), t.Name, len(t.Columns))
	}
	for i, c := range t.Columns {
		v := row[i]
		if storage.IsNull(v) {
			dst = append(dst, nil)
			continue
		}
		dst = append(dst, d.Encode(c, v))
	}
	return dst, nil
}

func groups(n, size int, fn func(lo, hi int) error) error {
	if size <= 0 {
		size = n
	}
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}
