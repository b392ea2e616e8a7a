// Package metrics is a small backend-agnostic layer for recording loader
// metrics.
//
// Callers record through the package functions; a no-op backend is
// installed by default so instrumentation is always safe. Concrete systems
// live in subpackages (prompush, datadog) and are installed once at startup
// with SetBackend.
package metrics

import "time"

// Metric names.
const (
	StepTotal      = "loader_step_total"
	StepDuration   = "loader_step_duration_seconds"
	RowsTotal      = "loader_rows_total"
	BatchesTotal   = "loader_batches_total"
	FallbacksTotal = "loader_bulk_fallbacks_total"
)

// Row kinds recorded with RecordRow.
const (
	KindRead        = "read"
	KindInserted    = "inserted"
	KindMalformed   = "malformed"
	KindDuplicate   = "duplicate"
	KindNullCoerced = "null_coerced"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. It is meant to be called once before any load starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and outcome of one load step (count, drop
// indexes, stream, create indexes, analyze) for a table.
func RecordStep(table, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"table":  table,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a row counter for the given table and kind.
func RecordRow(table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"table": table,
		"kind":  kind,
	})
}

// RecordBatches increments the inserted-batch counter for table.
func RecordBatches(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"table": table})
}

// RecordFallback counts a native bulk insert that failed over to the generic
// path.
func RecordFallback(table, strategy string) {
	backend.IncCounter(FallbacksTotal, 1, Labels{
		"table":    table,
		"strategy": strategy,
	})
}
