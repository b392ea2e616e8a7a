// Package ingest loads the compliance extracts into the canonical tables.
//
// A Service decides per table whether to load at all (non-empty tables are
// left alone unless forced), where the file is, and whether to use a single
// streaming loader or the parallel coordinator. It owns the index manager
// for every load it starts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"compliancedb/internal/cache"
	"compliancedb/internal/index"
	"compliancedb/internal/loader"
	"compliancedb/internal/logging"
	"compliancedb/internal/parallel"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// DefaultFiles maps each table to its extract name under the data directory.
var DefaultFiles = map[string]string{
	schema.Inspections: "osha_inspection.csv",
	schema.Violations:  "osha_violation.csv",
	schema.Accidents:   "osha_accident.csv",
}

// StatusTTL is how long Status results are served from cache.
const StatusTTL = 30 * time.Second

// Options controls one ingest run.
type Options struct {
	DataDir string
	// Files overrides DefaultFiles per table; relative paths resolve
	// against DataDir.
	Files map[string]string

	Force      bool
	Parallel   bool
	Workers    int
	ChunkSize  int
	SkippedDir string
	NoDedupe   bool
	Analyze    bool
	// Backfill fills missing violation company, state, NAICS, date and
	// year from inspections after LoadAll or Reload touched violations.
	Backfill bool
	RunID    string
}

// TableResult is the outcome for one table.
type TableResult struct {
	Table    string `json:"table"`
	Path     string `json:"path,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Existing int64  `json:"existing"`
	Deleted  int64  `json:"deleted,omitempty"`

	Load     *loader.Summary   `json:"load,omitempty"`
	Parallel *parallel.Summary `json:"parallel,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Inserted returns the rows the table gained.
func (r TableResult) Inserted() int64 {
	switch {
	case r.Load != nil:
		return r.Load.Inserted
	case r.Parallel != nil:
		return r.Parallel.Inserted
	}
	return 0
}

// Report is the outcome of LoadAll or Reload.
type Report struct {
	RunID  string        `json:"run_id,omitempty"`
	Tables []TableResult `json:"tables"`
	// Enriched counts violation rows filled from inspections per column.
	Enriched map[string]int64 `json:"enriched,omitempty"`
	Elapsed  time.Duration    `json:"elapsed"`
}

// TableStatus is the current state of one table.
type TableStatus struct {
	Table   string   `json:"table"`
	Rows    int64    `json:"rows"`
	Indexes []string `json:"indexes"`
}

// Service runs loads against one database.
type Service struct {
	db       storage.DB
	cfg      storage.Config
	log      *zap.Logger
	indexes  *index.Manager
	launcher parallel.Launcher
	status   *cache.Cache[string, []TableStatus]
}

// New returns a Service. cfg must describe db; parallel workers use it to
// open their own connections. A nil launcher runs workers in-process.
func New(db storage.DB, cfg storage.Config, launcher parallel.Launcher, log *zap.Logger) *Service {
	log = logging.OrNop(log)
	if launcher == nil {
		launcher = &parallel.InProcessLauncher{Log: log}
	}
	return &Service{
		db:       db,
		cfg:      cfg,
		log:      log,
		indexes:  index.New(db, log),
		launcher: launcher,
		status:   cache.New[string, []TableStatus](StatusTTL, 1),
	}
}

// Close releases the status cache. It does not close the database.
func (s *Service) Close() { s.status.Close() }

// Path returns the file LoadAll uses for table.
func (o Options) Path(table string) string {
	name := DefaultFiles[table]
	if f, ok := o.Files[table]; ok && f != "" {
		name = f
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.DataDir, name)
}

// LoadTable loads path into table. A table that already holds rows is
// skipped unless opts.Force is set, in which case its rows are deleted
// first.
func (s *Service) LoadTable(ctx context.Context, table, path string, opts Options) (TableResult, error) {
	defer s.status.Purge()

	res := TableResult{Table: table, Path: path}
	t, ok := schema.Lookup(table)
	if !ok {
		return res, fmt.Errorf("ingest: unknown table %q", table)
	}
	log := s.log.With(zap.String("table", t.Name), zap.String("run_id", opts.RunID))

	if err := storage.EnsureTable(ctx, s.db, t); err != nil {
		return res, err
	}
	existing, err := storage.CountRows(ctx, s.db, t.Name)
	if err != nil {
		return res, err
	}
	res.Existing = existing
	if existing > 0 && !opts.Force {
		res.Skipped, res.Reason = true, "table not empty"
		log.Info("table already loaded; skipping", zap.Int64("rows", existing))
		return res, nil
	}
	if existing > 0 {
		log.Info("deleting existing rows", zap.Int64("rows", existing))
		if res.Deleted, err = storage.Truncate(ctx, s.db, t.Name); err != nil {
			return res, err
		}
	}

	if opts.Parallel {
		c := parallel.New(s.db, s.launcher, log, parallel.Options{
			Storage:    s.cfg,
			RunID:      opts.RunID,
			ChunkSize:  opts.ChunkSize,
			SkippedDir: opts.SkippedDir,
			NoDedupe:   opts.NoDedupe,
			Analyze:    opts.Analyze,
		})
		sum, err := c.Load(ctx, t.Name, path, opts.Workers)
		res.Parallel = &sum
		if err != nil {
			res.Error = err.Error()
		}
		return res, err
	}

	l := loader.New(s.db, log, loader.Options{
		ChunkSize:  opts.ChunkSize,
		Indexes:    s.indexes,
		Analyze:    opts.Analyze,
		NoDedupe:   opts.NoDedupe,
		SkippedDir: opts.SkippedDir,
	})
	sum, err := l.Load(ctx, t.Name, path, nil)
	res.Load = &sum
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}

// LoadAll loads every table in schema order from its default file. Missing
// files are reported and skipped. A failing table does not stop the others;
// the returned error joins every table failure.
func (s *Service) LoadAll(ctx context.Context, opts Options) (Report, error) {
	return s.run(ctx, schema.Names(), opts)
}

// Reload force-loads only the named tables and leaves the rest untouched.
func (s *Service) Reload(ctx context.Context, tables []string, opts Options) (Report, error) {
	if len(tables) == 0 {
		return Report{RunID: opts.RunID}, errors.New("ingest: reload needs at least one table")
	}
	want := map[string]bool{}
	for _, name := range tables {
		if _, ok := schema.Lookup(name); !ok {
			return Report{RunID: opts.RunID}, fmt.Errorf("ingest: unknown table %q (valid: %v)", name, schema.Names())
		}
		want[name] = true
	}
	var ordered []string
	for _, name := range schema.Names() {
		if want[name] {
			ordered = append(ordered, name)
		}
	}
	opts.Force = true
	return s.run(ctx, ordered, opts)
}

func (s *Service) run(ctx context.Context, tables []string, opts Options) (Report, error) {
	start := time.Now()
	rep := Report{RunID: opts.RunID}
	var errs []error
	touchedViolations := false

	for _, table := range tables {
		path := opts.Path(table)
		if _, err := os.Stat(path); err != nil {
			s.log.Warn("source file missing; skipping table", zap.String("table", table),
				zap.String("path", path), zap.Error(err))
			rep.Tables = append(rep.Tables, TableResult{Table: table, Path: path, Skipped: true, Reason: "file not found"})
			continue
		}
		res, err := s.LoadTable(ctx, table, path, opts)
		rep.Tables = append(rep.Tables, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if table == schema.Violations && !res.Skipped {
			touchedViolations = true
		}
	}

	if opts.Backfill && touchedViolations && ctx.Err() == nil {
		n, err := s.EnrichViolations(ctx)
		rep.Enriched = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	rep.Elapsed = time.Since(start)
	return rep, errors.Join(errs...)
}

// Status returns row counts and present indexes per table, cached for
// StatusTTL and invalidated by every load.
func (s *Service) Status(ctx context.Context) ([]TableStatus, error) {
	if st, ok := s.status.Get("all"); ok {
		return st, nil
	}
	var out []TableStatus
	for _, t := range schema.All() {
		if err := storage.EnsureTable(ctx, s.db, t); err != nil {
			return nil, err
		}
		n, err := storage.CountRows(ctx, s.db, t.Name)
		if err != nil {
			return nil, err
		}
		present, err := s.indexes.Present(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, TableStatus{Table: t.Name, Rows: n, Indexes: present})
	}
	s.status.Set("all", out)
	return out, nil
}
