package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB adapts a database/sql pool to DB. The SQLite, MySQL and SQL Server
// backends share it; Postgres uses pgx directly.
type SQLDB struct {
	kind    string
	db      *sql.DB
	dialect Dialect
	cap     Capability
}

// NewSQLDB wraps db.
func NewSQLDB(kind string, db *sql.DB, d Dialect, c Capability) *SQLDB {
	return &SQLDB{kind: kind, db: db, dialect: d, cap: c}
}

var _ DB = (*SQLDB)(nil)

func (s *SQLDB) Kind() string           { return s.kind }
func (s *SQLDB) Dialect() Dialect       { return s.dialect }
func (s *SQLDB) Capability() Capability { return s.cap }

// SQL exposes the pool for native bulk strategies.
func (s *SQLDB) SQL() *sql.DB { return s.db }

func (s *SQLDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: exec: %w", s.kind, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLDB) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: query: %w", s.kind, err)
	}
	return n.Int64, nil
}

func (s *SQLDB) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", s.kind, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.kind, err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: query: %w", s.kind, err)
	}
	return out, nil
}

func (s *SQLDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", s.kind, err)
	}
	return &sqlTx{kind: s.kind, tx: tx}, nil
}

func (s *SQLDB) Close() error { return s.db.Close() }

type sqlTx struct {
	kind string
	tx   *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: exec: %w", t.kind, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (t *sqlTx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.kind, err)
	}
	return nil
}

func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// SQLTx exposes the underlying *sql.Tx of a Tx opened by SQLDB.
func SQLTx(tx Tx) (*sql.Tx, bool) {
	t, ok := tx.(*sqlTx)
	if !ok {
		return nil, false
	}
	return t.tx, true
}
