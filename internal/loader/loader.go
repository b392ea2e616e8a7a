// Package loader streams one CSV file into one canonical table.
//
// A Loader is sequential: it counts the rows, optionally drops the table's
// indexes, skips to the start of its range, then repeatedly reads a bounded
// chunk, conforms it, and inserts it before reading the next. Chunks that
// were inserted before a failure stay committed; the returned Summary says
// how far the load got.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"compliancedb/internal/bulk"
	"compliancedb/internal/index"
	"compliancedb/internal/logging"
	"compliancedb/internal/metrics"
	"compliancedb/internal/parser/csv"
	"compliancedb/internal/schema"
	"compliancedb/internal/skiplog"
	"compliancedb/internal/storage"
	"compliancedb/internal/transformer"
)

// DefaultChunkSize is the number of source rows per chunk.
const DefaultChunkSize = 50_000

// ReasonDuplicate marks rows dropped because their key was already loaded.
const ReasonDuplicate = "duplicate"

// Range is a half-open interval [Start, End) of 0-based data rows.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of rows in r.
func (r Range) Len() int64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Options configures a Loader.
type Options struct {
	ChunkSize int
	CSV       csv.Options

	// Format overrides detection from the header.
	Format csv.Format

	// Indexes manages the table's indexes around the load. Leave nil when
	// another party owns index DDL, as parallel workers do.
	Indexes *index.Manager
	// Analyze refreshes statistics after indexes are recreated.
	Analyze bool

	// NoDedupe keeps rows with repeated keys on tables that dedupe.
	NoDedupe bool

	// SkippedDir receives a CSV of dropped rows per load; empty disables.
	SkippedDir string

	// Progress is called after each inserted chunk.
	Progress func(Progress)

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Summary reports the outcome of one Load. On error it describes the rows
// committed before the failure.
type Summary struct {
	Table       string         `json:"table"`
	Path        string         `json:"path"`
	Format      string         `json:"format"`
	Range       *Range         `json:"range,omitempty"`
	Strategy    string         `json:"strategy"`
	Total       int64          `json:"total"`
	Read        int64          `json:"read"`
	Inserted    int64          `json:"inserted"`
	Malformed   int64          `json:"malformed"`
	Duplicates  int64          `json:"duplicates"`
	NullCoerced int64          `json:"null_coerced"`
	Chunks      int            `json:"chunks"`
	Elapsed     time.Duration  `json:"elapsed"`
	Rate        float64        `json:"rows_per_sec"`
	Skipped     map[string]int `json:"skipped,omitempty"`
}

// Loader loads files into one database.
type Loader struct {
	db       storage.DB
	log      *zap.Logger
	opts     Options
	inserter *bulk.Dispatcher
}

// New returns a Loader writing to db with the strategy selected for it.
func New(db storage.DB, log *zap.Logger, opts Options) *Loader {
	log = logging.OrNop(log)
	return NewWith(db, bulk.NewDispatcher(db, log), log, opts)
}

// NewWith returns a Loader that inserts through d.
func NewWith(db storage.DB, d *bulk.Dispatcher, log *zap.Logger, opts Options) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{db: db, log: logging.OrNop(log), opts: opts, inserter: d}
}

// Load streams path into table. A nil rng loads the whole file; otherwise
// only rows in rng are inserted. Counting a range load uses the range
// length instead of scanning the file.
func (l *Loader) Load(ctx context.Context, table, path string, rng *Range) (sum Summary, err error) {
	t, ok := schema.Lookup(table)
	if !ok {
		return Summary{}, fmt.Errorf("loader: unknown table %q", table)
	}
	start := l.opts.Now()
	sum = Summary{Table: t.Name, Path: path, Range: rng, Strategy: l.inserter.Native()}
	log := l.log.With(zap.String("table", t.Name), zap.String("path", path))
	if rng != nil {
		log = log.With(zap.Stringer("range", *rng))
	}

	defer func() {
		sum.Elapsed = l.opts.Now().Sub(start)
		if secs := sum.Elapsed.Seconds(); secs > 0 {
			sum.Rate = float64(sum.Inserted) / secs
		}
		metrics.RecordStep(t.Name, "load", err, sum.Elapsed)
	}()

	format := l.opts.Format
	if format == "" {
		if format, _, err = csv.DetectFile(path, t.Name, l.opts.CSV); err != nil {
			return sum, err
		}
	} else if format.Table() != t.Name {
		return sum, fmt.Errorf("loader: format %s loads %s, not %s", format, format.Table(), t.Name)
	}
	sum.Format = string(format)

	// 1. Count.
	if rng != nil {
		sum.Total = rng.Len()
	} else {
		countStart := time.Now()
		sum.Total, err = csv.CountRows(path, l.opts.CSV.Comma)
		metrics.RecordStep(t.Name, "count", err, time.Since(countStart))
		if err != nil {
			return sum, err
		}
	}
	log.Info("load starting", zap.String("format", sum.Format), zap.Int64("total", sum.Total),
		zap.String("strategy", sum.Strategy), zap.Int("chunk_size", l.opts.ChunkSize))

	// 2. Drop indexes; recreate them on every exit path.
	if l.opts.Indexes != nil {
		if err := l.opts.Indexes.Drop(ctx, t); err != nil {
			return sum, err
		}
		defer func() {
			// Rows already committed still deserve their indexes.
			ictx := context.WithoutCancel(ctx)
			ierr := l.opts.Indexes.Create(ictx, t)
			if ierr == nil && l.opts.Analyze {
				ierr = l.opts.Indexes.Analyze(ictx, t)
			}
			err = errors.Join(err, ierr)
		}()
	}

	skipped, err := l.openSkipLog(t.Name, rng)
	if err != nil {
		return sum, err
	}
	defer func() {
		sum.Skipped = skipped.Counts()
		err = errors.Join(err, skipped.Close())
	}()

	err = l.stream(ctx, t, path, format, rng, &sum, skipped, log)
	if err != nil {
		log.Error("load failed", zap.Int64("inserted", sum.Inserted), zap.Int("chunks", sum.Chunks), zap.Error(err))
		return sum, err
	}
	log.Info("load finished",
		zap.Int64("inserted", sum.Inserted),
		zap.Int64("malformed", sum.Malformed),
		zap.Int64("duplicates", sum.Duplicates),
		zap.Int64("null_coerced", sum.NullCoerced),
		zap.Int("chunks", sum.Chunks),
		zap.Duration("took", l.opts.Now().Sub(start)))
	return sum, nil
}

// stream runs steps 3 to 5: skip, then read, process, trim and insert until
// the file or the range is exhausted.
func (l *Loader) stream(ctx context.Context, t schema.Table, path string, format csv.Format,
	rng *Range, sum *Summary, skipped *skiplog.Log, log *zap.Logger) error {

	r, err := csv.Open(path, l.opts.CSV)
	if err != nil {
		return err
	}
	defer r.Close()

	first, end := int64(0), int64(-1)
	if rng != nil {
		first, end = rng.Start, rng.End
		if _, err := r.Skip(first); err != nil {
			return err
		}
	}

	var dedupe *keySet
	if t.Dedupe && !l.opts.NoDedupe {
		dedupe = newKeySet(t.ColumnIndex(t.Key))
	}
	track := newTracker(t.Name, sum.Total, l.opts.Now)

	for {
		want := l.opts.ChunkSize
		if end >= 0 {
			left := end - r.Position()
			if left <= 0 {
				return nil
			}
			want = int(min(int64(want), left))
		}
		chunk, err := r.Next(ctx, want)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		read := int64(len(chunk.Records))
		sum.Read += read
		metrics.RecordRow(t.Name, metrics.KindRead, read)

		batch, stats, err := transformer.Process(chunk, format)
		sum.Malformed += int64(stats.Malformed)
		sum.NullCoerced += int64(stats.NullCoerced)
		metrics.RecordRow(t.Name, metrics.KindMalformed, int64(stats.Malformed))
		metrics.RecordRow(t.Name, metrics.KindNullCoerced, int64(stats.NullCoerced))
		for _, d := range stats.Dropped {
			skipped.Add(d.Reason, d.Ordinal, d.Raw)
		}
		if stats.Malformed > 0 {
			log.Warn("dropped malformed rows", zap.Int64("first_row", chunk.FirstOrdinal()),
				zap.Int("dropped", stats.Malformed), zap.Int("parse_errors", stats.ParseErrors),
				zap.Int("field_count", stats.FieldCount), zap.Int("missing_key", stats.MissingKey))
		}
		if err != nil {
			return err
		}

		if end >= 0 {
			batch = batch.Trim(first, end)
		}
		if dedupe != nil {
			var dups []int64
			batch, dups = dedupe.filter(batch)
			sum.Duplicates += int64(len(dups))
			metrics.RecordRow(t.Name, metrics.KindDuplicate, int64(len(dups)))
			for _, o := range dups {
				skipped.Add(ReasonDuplicate, o, "")
			}
		}

		n, err := l.inserter.Insert(ctx, t, batch.Rows)
		if err != nil {
			return err
		}
		sum.Inserted += n
		sum.Chunks++
		metrics.RecordRow(t.Name, metrics.KindInserted, n)
		metrics.RecordBatches(t.Name, 1)

		p := track.at(sum.Chunks, r.Position()-first, sum.Inserted)
		log.Info("chunk loaded", p.fields()...)
		if l.opts.Progress != nil {
			l.opts.Progress(p)
		}
	}
}

func (l *Loader) openSkipLog(table string, rng *Range) (*skiplog.Log, error) {
	if l.opts.SkippedDir == "" {
		return nil, nil
	}
	name := table + "_skipped.csv"
	if rng != nil {
		name = fmt.Sprintf("%s_skipped_%d-%d.csv", table, rng.Start, rng.End)
	}
	return skiplog.Open(filepath.Join(l.opts.SkippedDir, name))
}
