package parallel

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"compliancedb/internal/loader"
	"compliancedb/internal/logging"
	"compliancedb/internal/parser/csv"
	"compliancedb/internal/storage"
)

// RunTask loads one range on a fresh connection obtained from open. It never
// manages indexes. Failures are reported in the Result, not returned.
func RunTask(ctx context.Context, t Task, open storage.Opener, log *zap.Logger) Result {
	log = logging.OrNop(log).With(zap.String("run_id", t.RunID), zap.String("worker", t.ID), zap.Stringer("range", t.Range))

	format, ok := csv.ParseFormat(t.Format)
	if t.Format != "" && !ok {
		return failed(t, fmt.Errorf("worker %s: unknown format %q", t.ID, t.Format))
	}

	db, err := open(ctx, t.Storage)
	if err != nil {
		return failed(t, fmt.Errorf("worker %s: open storage: %w", t.ID, err))
	}
	defer db.Close()

	l := loader.New(db, log, loader.Options{
		ChunkSize:  t.ChunkSize,
		Format:     format,
		NoDedupe:   t.NoDedupe,
		SkippedDir: t.SkippedDir,
	})
	rng := t.Range
	sum, err := l.Load(ctx, t.Table, t.Path, &rng)
	res := Result{ID: t.ID, Range: t.Range, Summary: sum}
	if err != nil {
		f := failed(t, err)
		res.Kind, res.Error = f.Kind, f.Error
	}
	return res
}

// Worker is the body of a worker process.
type Worker struct {
	Open storage.Opener
	Log  *zap.Logger
	// Setup, when set, runs once the task is known and before it is loaded.
	// The returned func runs after the load, before the result is written.
	Setup func(Task) func()
}

// Serve reads one Task from in, runs it, and writes the Result to out. It
// returns an error only when the task cannot be read or the result cannot be
// written; load failures travel inside the Result.
func (w Worker) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	t, err := ReadTask(in)
	if err != nil {
		return err
	}
	done := func() {}
	if w.Setup != nil {
		if d := w.Setup(t); d != nil {
			done = d
		}
	}
	res := RunTask(ctx, t, w.Open, w.Log)
	done()
	if err := WriteResult(out, res); err != nil {
		return fmt.Errorf("write worker result: %w", err)
	}
	return nil
}

// ServeWorker runs a Worker without setup.
func ServeWorker(ctx context.Context, in io.Reader, out io.Writer, open storage.Opener, log *zap.Logger) error {
	return Worker{Open: open, Log: log}.Serve(ctx, in, out)
}
