// Package index drops and recreates a table's secondary indexes around a
// bulk load.
//
// Only the load orchestrator holds a Manager. Parallel workers are built
// without one, so at most one caller issues index DDL for a table per load.
package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compliancedb/internal/logging"
	"compliancedb/internal/metrics"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Manager issues index DDL against one database.
type Manager struct {
	db  storage.DB
	log *zap.Logger
}

func New(db storage.DB, log *zap.Logger) *Manager {
	return &Manager{db: db, log: logging.OrNop(log)}
}

// Exists reports whether the named index is present on table.
func (m *Manager) Exists(ctx context.Context, table, index string) (bool, error) {
	n, err := m.db.QueryInt(ctx, m.db.Dialect().IndexExistsSQL(), table, index)
	if err != nil {
		return false, fmt.Errorf("index %s.%s: lookup: %w", table, index, err)
	}
	return n > 0, nil
}

// Drop removes every declared index of t that is present. Absent indexes are
// skipped, so calling Drop twice is safe.
func (m *Manager) Drop(ctx context.Context, t schema.Table) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(t.Name, "drop_indexes", err, time.Since(start)) }()

	d := m.db.Dialect()
	dropped := 0
	for _, idx := range t.Indexes {
		ok, err := m.Exists(ctx, t.Name, idx.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := m.db.Exec(ctx, d.DropIndexSQL(t.Name, idx.Name)); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.Name, err)
		}
		dropped++
	}
	m.log.Info("indexes dropped", zap.String("table", t.Name), zap.Int("count", dropped),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Create builds every declared index of t that is absent. Calling Create
// twice is safe.
func (m *Manager) Create(ctx context.Context, t schema.Table) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(t.Name, "create_indexes", err, time.Since(start)) }()

	d := m.db.Dialect()
	created := 0
	for _, idx := range t.Indexes {
		ok, err := m.Exists(ctx, t.Name, idx.Name)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := m.db.Exec(ctx, d.CreateIndexSQL(t.Name, idx)); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
		created++
	}
	m.log.Info("indexes created", zap.String("table", t.Name), zap.Int("count", created),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Analyze refreshes planner statistics for t. It is a no-op on engines
// without an equivalent statement.
func (m *Manager) Analyze(ctx context.Context, t schema.Table) error {
	q := m.db.Dialect().AnalyzeSQL(t.Name)
	if q == "" {
		return nil
	}
	if _, err := m.db.Exec(ctx, q); err != nil {
		return fmt.Errorf("analyze %s: %w", t.Name, err)
	}
	return nil
}

// Present lists the declared indexes of t that currently exist.
func (m *Manager) Present(ctx context.Context, t schema.Table) ([]string, error) {
	var out []string
	for _, idx := range t.Indexes {
		ok, err := m.Exists(ctx, t.Name, idx.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, idx.Name)
		}
	}
	return out, nil
}
