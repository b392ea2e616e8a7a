// Package mysql implements the MySQL backend on go-sql-driver/mysql. MySQL
// has no client-side COPY; the native path is prepared multi-row INSERTs
// bounded by the 65535 placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"compliancedb/internal/storage"
)

// Kind is the registered backend name.
const Kind = "mysql"

// Open parses the DSN, forces the settings the loader relies on, and pings.
func Open(ctx context.Context, cfg storage.Config) (*storage.SQLDB, error) {
	dc, err := driver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	dc.ParseTime = true
	if dc.Loc == nil {
		dc.Loc = time.UTC
	}

	connector, err := driver.NewConnector(dc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return storage.NewSQLDB(Kind, db, Dialect{}, storage.CapMultiRowValues), nil
}
