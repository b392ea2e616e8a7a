package bulk

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage/postgres"
)

type pgxPool interface {
	Pool() *pgxpool.Pool
}

// PostgresBulkStrategy streams rows with COPY FROM STDIN inside one
// transaction.
type PostgresBulkStrategy struct {
	pool pgxPool
}

func (s *PostgresBulkStrategy) Name() string { return "postgres-copy" }

func (s *PostgresBulkStrategy) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	d := postgres.Dialect{}
	encoded := make([][]any, len(rows))
	for i, row := range rows {
		enc, err := encodeRow(make([]any, 0, len(row)), d, t, row)
		if err != nil {
			return 0, fmt.Errorf("postgres-copy: %w", err)
		}
		encoded[i] = enc
	}

	tx, err := s.pool.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres-copy: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	err = groups(len(encoded), NativeGroupRows, func(lo, hi int) error {
		n, err := tx.CopyFrom(ctx, postgres.Identifier(t.Name), t.ColumnNames(), pgx.CopyFromRows(encoded[lo:hi]))
		total += n
		if err != nil {
			return fmt.Errorf("copy rows %d-%d: %w", lo, hi, err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("postgres-copy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres-copy: commit: %w", err)
	}
	return total, nil
}
