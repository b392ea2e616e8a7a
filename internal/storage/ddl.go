package storage

import (
	"context"
	"fmt"

	"compliancedb/internal/schema"
)

// EnsureSchema creates every canonical table that does not yet exist.
// Indexes are left to the index manager.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, t := range schema.All() {
		if err := EnsureTable(ctx, db, t); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTable creates t if it does not exist.
func EnsureTable(ctx context.Context, db DB, t schema.Table) error {
	if _, err := db.Exec(ctx, db.Dialect().CreateTableSQL(t)); err != nil {
		return fmt.Errorf("ensure table %s: %w", t.Name, err)
	}
	return nil
}

// CountRows returns the number of rows currently in table.
func CountRows(ctx context.Context, db DB, table string) (int64, error) {
	n, err := db.QueryInt(ctx, "SELECT COUNT(*) FROM "+db.Dialect().Quote(table))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Truncate deletes every row of table. DELETE is used instead of TRUNCATE so
// the same statement works on every engine and inside transactions.
func Truncate(ctx context.Context, db DB, table string) (int64, error) {
	n, err := db.Exec(ctx, "DELETE FROM "+db.Dialect().Quote(table))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return n, nil
}
