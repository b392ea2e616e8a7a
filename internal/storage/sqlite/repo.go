// Package sqlite implements the SQLite backend on modernc.org/sqlite (pure Go,
// no cgo). SQLite has no bulk-load API; the native path is multi-row INSERTs
// inside one transaction, sub-chunked to the bound-variable limit.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"compliancedb/internal/storage"

	_ "modernc.org/sqlite"
)

// Kind is the registered backend name.
const Kind = "sqlite"

// busyTimeout bounds how long a writer waits for the database lock held by
// another worker before failing with SQLITE_BUSY.
const busyTimeout = 30 * time.Second

// bulkPragmas trade durability for insert throughput during a load.
var bulkPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
}

// Open opens a SQLite database. The pool is limited to one connection so the
// pragmas applied here hold for every statement issued through it.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:compliance.db"
//	"compliance.db"
func Open(ctx context.Context, cfg storage.Config) (*storage.SQLDB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())}
	if cfg.BulkPragmas {
		pragmas = append(pragmas, bulkPragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	return storage.NewSQLDB(Kind, db, Dialect{}, storage.CapMultiRowValues), nil
}
