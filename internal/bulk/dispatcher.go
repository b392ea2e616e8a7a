package bulk

import (
	"context"

	"go.uber.org/zap"

	"compliancedb/internal/loaderr"
	"compliancedb/internal/logging"
	"compliancedb/internal/metrics"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Dispatcher writes batches through a native strategy and retries failures
// on the generic path.
type Dispatcher struct {
	native   Strategy
	fallback Strategy
	log      *zap.Logger
}

// NewDispatcher selects the native strategy for db.
func NewDispatcher(db storage.DB, log *zap.Logger) *Dispatcher {
	return NewDispatcherWith(Select(db), NewGeneric(db), log)
}

// NewDispatcherWith wires explicit strategies. A nil fallback disables the
// retry.
func NewDispatcherWith(native, fallback Strategy, log *zap.Logger) *Dispatcher {
	return &Dispatcher{native: native, fallback: fallback, log: logging.OrNop(log)}
}

// Native returns the name of the primary strategy.
func (d *Dispatcher) Native() string { return d.native.Name() }

// Insert writes rows into t. The native attempt is transactional, so a
// fallback never duplicates rows from it.
func (d *Dispatcher) Insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := d.native.Insert(ctx, t, rows)
	if err == nil {
		return n, nil
	}
	if ctx.Err() != nil || d.fallback == nil || d.fallback.Name() == d.native.Name() {
		return 0, &loaderr.BulkInsertError{Table: t.Name, Rows: len(rows), Strategy: d.native.Name(), Native: err}
	}

	d.log.Warn("native bulk insert failed; falling back",
		zap.String("table", t.Name),
		zap.String("strategy", d.native.Name()),
		zap.Int("rows", len(rows)),
		zap.Error(err))
	metrics.RecordFallback(t.Name, d.native.Name())

	n, ferr := d.fallback.Insert(ctx, t, rows)
	if ferr != nil {
		return 0, &loaderr.BulkInsertError{
			Table:    t.Name,
			Rows:     len(rows),
			Strategy: d.native.Name(),
			Native:   err,
			Fallback: ferr,
		}
	}
	return n, nil
}
