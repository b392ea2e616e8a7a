package parallel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"compliancedb/internal/index"
	"compliancedb/internal/loaderr"
	"compliancedb/internal/logging"
	"compliancedb/internal/metrics"
	"compliancedb/internal/parser/csv"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Options configures the workers a Coordinator launches.
type Options struct {
	// Storage is how each worker opens its own connection. It must name the
	// same database as the Coordinator's db.
	Storage    storage.Config
	RunID      string
	ChunkSize  int
	SkippedDir string
	NoDedupe   bool
	// Analyze refreshes statistics after indexes are recreated.
	Analyze bool
}

// WorkerSummary is one worker's share of a parallel load.
type WorkerSummary struct {
	ID          string        `json:"id"`
	Range       loaderr.Span  `json:"range"`
	Inserted    int64         `json:"inserted"`
	Malformed   int64         `json:"malformed"`
	Duplicates  int64         `json:"duplicates"`
	NullCoerced int64         `json:"null_coerced"`
	Elapsed     time.Duration `json:"elapsed"`
	Error       string        `json:"error,omitempty"`
}

// Summary reports a parallel load. Partial is set when any worker failed;
// the rows the other workers (and the failed ones, up to their failure)
// committed are kept.
type Summary struct {
	Table       string          `json:"table"`
	Path        string          `json:"path"`
	Format      string          `json:"format"`
	Total       int64           `json:"total"`
	Workers     int             `json:"workers"`
	Inserted    int64           `json:"inserted"`
	Malformed   int64           `json:"malformed"`
	Duplicates  int64           `json:"duplicates"`
	NullCoerced int64           `json:"null_coerced"`
	Elapsed     time.Duration   `json:"elapsed"`
	Rate        float64         `json:"rows_per_sec"`
	Partial     bool            `json:"partial"`
	PerWorker   []WorkerSummary `json:"per_worker"`
}

// Coordinator partitions a file and runs one worker per range. Its own
// connection is used only for counting and index DDL.
type Coordinator struct {
	db      storage.DB
	indexes *index.Manager
	launch  Launcher
	log     *zap.Logger
	opts    Options
}

func New(db storage.DB, launch Launcher, log *zap.Logger, opts Options) *Coordinator {
	log = logging.OrNop(log)
	return &Coordinator{db: db, indexes: index.New(db, log), launch: launch, log: log, opts: opts}
}

// Load splits path into workers ranges (0 picks a default) and loads them
// concurrently. A failing worker does not stop its siblings. Indexes are
// recreated after all workers have returned; when any failed the error is a
// *loaderr.WorkerError and the Summary is marked Partial.
func (c *Coordinator) Load(ctx context.Context, table, path string, workers int) (sum Summary, err error) {
	t, ok := schema.Lookup(table)
	if !ok {
		return Summary{}, fmt.Errorf("parallel: unknown table %q", table)
	}
	start := time.Now()
	sum = Summary{Table: t.Name, Path: path}
	defer func() {
		sum.Elapsed = time.Since(start)
		if secs := sum.Elapsed.Seconds(); secs > 0 {
			sum.Rate = float64(sum.Inserted) / secs
		}
		metrics.RecordStep(t.Name, "parallel_load", err, sum.Elapsed)
	}()

	info, err := csv.Inspect(path, t.Name, csv.Options{})
	if err != nil {
		return sum, err
	}
	sum.Format, sum.Total = string(info.Format), info.Rows

	n := Workers(workers, info.Rows, c.db.Kind() == "sqlite")
	ranges := Partition(info.Rows, n)
	sum.Workers = n
	log := c.log.With(zap.String("table", t.Name), zap.String("run_id", c.opts.RunID))
	log.Info("parallel load starting", zap.String("path", path), zap.String("format", sum.Format),
		zap.Int64("total", info.Rows), zap.Int("workers", n))

	if err := c.indexes.Drop(ctx, t); err != nil {
		return sum, err
	}
	defer func() {
		ictx := context.WithoutCancel(ctx)
		ierr := c.indexes.Create(ictx, t)
		if ierr == nil && c.opts.Analyze {
			ierr = c.indexes.Analyze(ictx, t)
		}
		err = errors.Join(err, ierr)
	}()

	results := make([]Result, len(ranges))
	var g errgroup.Group
	g.SetLimit(n)
	for i, r := range ranges {
		task := Task{
			ID:         fmt.Sprintf("%s-%d", t.Name, i),
			RunID:      c.opts.RunID,
			Table:      t.Name,
			Path:       path,
			Format:     sum.Format,
			Range:      r,
			Storage:    c.opts.Storage,
			ChunkSize:  c.opts.ChunkSize,
			SkippedDir: c.opts.SkippedDir,
			NoDedupe:   c.opts.NoDedupe,
		}
		g.Go(func() error {
			res, err := c.launch.Launch(ctx, task)
			if err != nil {
				res = failed(task, err)
			}
			results[i] = res
			if res.Error != "" {
				log.Error("worker failed", zap.String("worker", task.ID), zap.Stringer("range", task.Range),
					zap.Int64("inserted", res.Summary.Inserted), zap.String("error", res.Error))
			} else {
				log.Info("worker finished", zap.String("worker", task.ID), zap.Stringer("range", task.Range),
					zap.Int64("inserted", res.Summary.Inserted))
			}
			return nil
		})
	}
	_ = g.Wait()

	werr := &loaderr.WorkerError{Table: t.Name}
	for _, res := range results {
		span := loaderr.Span{Start: res.Range.Start, End: res.Range.End}
		sum.Inserted += res.Summary.Inserted
		sum.Malformed += res.Summary.Malformed
		sum.Duplicates += res.Summary.Duplicates
		sum.NullCoerced += res.Summary.NullCoerced
		sum.PerWorker = append(sum.PerWorker, WorkerSummary{
			ID:          res.ID,
			Range:       span,
			Inserted:    res.Summary.Inserted,
			Malformed:   res.Summary.Malformed,
			Duplicates:  res.Summary.Duplicates,
			NullCoerced: res.Summary.NullCoerced,
			Elapsed:     res.Summary.Elapsed,
			Error:       res.Error,
		})
		if rerr := res.Err(); rerr != nil {
			werr.Failed = append(werr.Failed, loaderr.RangeFailure{Span: span, Err: rerr})
		} else {
			werr.Succeeded = append(werr.Succeeded, span)
		}
	}

	if len(werr.Failed) > 0 {
		sum.Partial = true
		log.Error("parallel load partial", zap.Int("failed", len(werr.Failed)),
			zap.Int("succeeded", len(werr.Succeeded)), zap.Int64("inserted", sum.Inserted))
		return sum, werr
	}
	log.Info("parallel load finished", zap.Int64("inserted", sum.Inserted), zap.Duration("took", time.Since(start)))
	return sum, nil
}
