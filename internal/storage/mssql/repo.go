// Package mssql implements the SQL Server backend on go-mssqldb. Its native
// bulk path is the driver's bulk copy (mssql.CopyIn).
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"compliancedb/internal/storage"
)

// Kind is the registered backend name.
const Kind = "mssql"

// Open validates the DSN, opens a pool and pings it.
func Open(ctx context.Context, cfg storage.Config) (*storage.SQLDB, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return storage.NewSQLDB(Kind, db, Dialect{}, storage.CapBulkCopy), nil
}
