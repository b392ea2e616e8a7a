package sqlite

import (
	"context"

	"compliancedb/internal/storage"
)

// openDB is a test hook that points to Open by default.
var openDB = Open

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	})
}
