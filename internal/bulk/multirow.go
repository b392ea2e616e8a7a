package bulk

import (
	"context"
	"database/sql"
	"fmt"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// sqlPool is implemented by backends built on database/sql.
type sqlPool interface {
	SQL() *sql.DB
}

// multiRow inserts with prepared multi-row VALUES statements inside one
// transaction, sized to the engine's bound-variable limit.
type multiRow struct {
	pool    sqlPool
	dialect storage.Dialect
	name    string
}

func (m multiRow) insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := t.ColumnNames()
	per := storage.RowsPerStatement(m.dialect, len(cols), NativeGroupRows)

	tx, err := m.pool.SQL().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", m.name, err)
	}
	rollback := func() { _ = tx.Rollback() }

	// Full groups share one prepared statement; the remainder gets its own.
	stmts := map[int]*sql.Stmt{}
	defer func() {
		for _, s := range stmts {
			_ = s.Close()
		}
	}()
	prepare := func(n int) (*sql.Stmt, error) {
		if s, ok := stmts[n]; ok {
			return s, nil
		}
		s, err := tx.PrepareContext(ctx, storage.InsertSQL(m.dialect, t.Name, cols, n))
		if err != nil {
			return nil, err
		}
		stmts[n] = s
		return s, nil
	}

	args := make([]any, 0, per*len(cols))
	err = groups(len(rows), per, func(lo, hi int) error {
		stmt, err := prepare(hi - lo)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		args = args[:0]
		for _, row := range rows[lo:hi] {
			if args, err = encodeRow(args, m.dialect, t, row); err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", lo, hi, err)
		}
		return nil
	})
	if err != nil {
		rollback()
		return 0, fmt.Errorf("%s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", m.name, err)
	}
	return int64(len(rows)), nil
}

// SQLiteBulkStrategy is the SQLite native path.
type SQLiteBulkStrategy struct{ multiRow }

func (s *SQLiteBulkStrategy) Name() string { return s.name }

func (s *SQLiteBulkStrategy) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	return s.insert(ctx, t, rows)
}

// MySQLBulkStrategy is the MySQL native path.
type MySQLBulkStrategy struct{ multiRow }

func (s *MySQLBulkStrategy) Name() string { return s.name }

func (s *MySQLBulkStrategy) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	return s.insert(ctx, t, rows)
}
