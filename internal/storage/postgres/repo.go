// Package postgres implements the Postgres backend on pgx v5. Its native bulk
// path is the COPY protocol (pgx CopyFrom) inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliancedb/internal/storage"
)

// Kind is the registered backend name.
const Kind = "postgres"

// DB is a pgxpool-backed storage.DB.
type DB struct {
	pool *pgxpool.Pool
}

var _ storage.DB = (*DB)(nil)

// Open constructs a pool and verifies connectivity.
func Open(ctx context.Context, cfg storage.Config) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool exposes the pool for the COPY strategy.
func (d *DB) Pool() *pgxpool.Pool { return d.pool }

func (d *DB) Kind() string                   { return Kind }
func (d *DB) Dialect() storage.Dialect       { return Dialect{} }
func (d *DB) Capability() storage.Capability { return storage.CapCopyProtocol }

func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: exec: %w", describe(err))
	}
	return tag.RowsAffected(), nil
}

func (d *DB) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var n *int64
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: query: %w", describe(err))
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}

func (d *DB) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", describe(err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query: %w", describe(err))
	}
	return out, nil
}

func (d *DB) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// PgxTx exposes the underlying transaction for CopyFrom.
func (t *Tx) PgxTx() pgx.Tx { return t.tx }

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: exec: %w", describe(err))
	}
	return tag.RowsAffected(), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// describe surfaces the server-side detail of a PgError, which pgx leaves out
// of Error().
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
