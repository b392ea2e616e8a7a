package parallel

import (
	"runtime"

	"compliancedb/internal/loader"
)

// Worker count bounds.
const (
	MaxWorkers       = 8
	MaxSQLiteWorkers = 4
	MinRowsPerWorker = 10_000
)

// Partition splits [0, total) into n contiguous half-open ranges of
// total/n rows each. The last range absorbs the remainder, so the ranges
// cover every row exactly once in ascending order. n <= 0 yields nil.
//
// Sizes are roughly equal only when n <= total; with more ranges than rows
// all but the last are empty. Size n with Workers, which never exceeds total.
func Partition(total int64, n int) []loader.Range {
	if n <= 0 {
		return nil
	}
	if total < 0 {
		total = 0
	}
	size := total / int64(n)
	out := make([]loader.Range, n)
	for i := range out {
		out[i] = loader.Range{Start: int64(i) * size, End: int64(i+1) * size}
	}
	out[n-1].End = total
	return out
}

// Workers resolves the worker count for a file of total rows. A positive
// hint is honored; otherwise the count comes from the CPU count capped at
// MaxWorkers and reduced so each worker gets at least MinRowsPerWorker rows.
// SQLite is always capped at MaxSQLiteWorkers since it serializes writers.
// The result is never more than total (and at least 1).
func Workers(hint int, total int64, sqlite bool) int {
	n := hint
	if n <= 0 {
		n = min(runtime.NumCPU(), MaxWorkers)
		n = int(min(int64(n), max(1, total/MinRowsPerWorker)))
	}
	if sqlite {
		n = min(n, MaxSQLiteWorkers)
	}
	if total > 0 && int64(n) > total {
		n = int(total)
	}
	return max(n, 1)
}
