package bulk

import (
	"context"
	"fmt"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// GenericRows is the batch size of the generic path.
const GenericRows = 100

// GenericFallbackStrategy issues plain parameterized INSERTs of up to
// GenericRows rows through the storage.DB interface in one transaction. It
// works on every engine.
type GenericFallbackStrategy struct {
	db storage.DB
}

// NewGeneric returns the generic strategy for db.
func NewGeneric(db storage.DB) *GenericFallbackStrategy {
	return &GenericFallbackStrategy{db: db}
}

func (g *GenericFallbackStrategy) Name() string { return "generic" }

func (g *GenericFallbackStrategy) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	d := g.db.Dialect()
	cols := t.ColumnNames()
	per := storage.RowsPerStatement(d, len(cols), GenericRows)

	tx, err := g.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("generic insert: %w", err)
	}

	full := storage.InsertSQL(d, t.Name, cols, per)
	args := make([]any, 0, per*len(cols))
	err = groups(len(rows), per, func(lo, hi int) error {
		q := full
		if hi-lo != per {
			q = storage.InsertSQL(d, t.Name, cols, hi-lo)
		}
		args = args[:0]
		for _, row := range rows[lo:hi] {
			var err error
			if args, err = encodeRow(args, d, t, row); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", lo, hi, err)
		}
		return nil
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("generic insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("generic insert: %w", err)
	}
	return int64(len(rows)), nil
}
