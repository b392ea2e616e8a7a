package bulk

import (
	"context"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// MSSQLBulkStrategy uses the driver's bulk copy (INSERT BULK) inside one
// transaction.
type MSSQLBulkStrategy struct {
	pool    sqlPool
	dialect storage.Dialect
}

func (s *MSSQLBulkStrategy) Name() string { return "mssql-bulkcopy" }

func (s *MSSQLBulkStrategy) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.pool.SQL().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql-bulkcopy: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	opts := mssql.BulkOptions{Tablock: true, RowsPerBatch: NativeGroupRows}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(t.Name, opts, t.ColumnNames()...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql-bulkcopy: prepare: %w", err)
	}
	args := make([]any, 0, len(t.Columns))
	for i, row := range rows {
		if args, err = encodeRow(args[:0], s.dialect, t, row); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql-bulkcopy: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql-bulkcopy: row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql-bulkcopy: finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql-bulkcopy: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql-bulkcopy: commit: %w", err)
	}
	return n, nil
}
