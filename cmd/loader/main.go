// Command loader bulk-loads the OSHA and MSHA compliance extracts into a
// SQL database.
//
// Logs go to stderr; every command prints its JSON report to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compliancedb/internal/config"
	"compliancedb/internal/ingest"
	"compliancedb/internal/logging"
	"compliancedb/internal/metrics"
	"compliancedb/internal/metrics/datadog"
	"compliancedb/internal/metrics/prompush"
	"compliancedb/internal/parallel"
	"compliancedb/internal/storage"

	// register every backend with the storage factory; --db-driver picks one.
	_ "compliancedb/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg   *config.Config
	out   io.Writer
	runID string
	log   *zap.Logger
	db    storage.DB
	svc   *ingest.Service
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "loader",
		Short:         "Load OSHA/MSHA compliance CSV extracts into SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.cfg = config.Bind(root.PersistentFlags(), os.Getenv)

	root.AddCommand(
		a.loadCmd(),
		a.loadAllCmd(),
		a.reloadCmd(),
		a.statusCmd(),
		a.validateCmd(),
		a.workerCmd(),
	)
	return root
}

// setup validates configuration and builds the logger, the metrics backend,
// the database and the ingest service. The returned func releases them.
func (a *app) setup(ctx context.Context) (func(), error) {
	if errs := config.Errors(config.Validate(a.cfg)); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errs[0])
	}
	log, err := logging.New(a.cfg.Logging())
	if err != nil {
		return nil, err
	}
	a.runID = uuid.NewString()
	a.log = log.With(zap.String("run_id", a.runID))

	flush := a.installMetrics("")

	a.db, err = storage.Open(ctx, a.cfg.Storage())
	if err != nil {
		flush()
		return nil, err
	}
	if err := storage.EnsureSchema(ctx, a.db); err != nil {
		a.db.Close()
		flush()
		return nil, err
	}
	a.svc = ingest.New(a.db, a.cfg.Storage(), &parallel.ProcessLauncher{}, a.log)

	return func() {
		a.svc.Close()
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
		flush()
		_ = a.log.Sync()
	}, nil
}

// installMetrics selects the configured backend; worker names the parallel
// task a worker process runs, or is empty in the parent. Failures leave the
// nop backend in place. The returned func flushes.
func (a *app) installMetrics(worker string) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch a.cfg.MetricsBackend {
	case "prometheus":
		var pb *prompush.Backend
		if pb, err = prompush.NewBackend(a.cfg.MetricsJob, a.cfg.PushgatewayURL); err == nil && worker != "" {
			pb.WithGrouping("worker", worker)
		}
		b = pb
	case "datadog":
		var tags []string
		if a.runID != "" {
			tags = append(tags, "run_id:"+a.runID)
		}
		if worker != "" {
			tags = append(tags, "worker:"+worker)
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       a.cfg.DDAgentAddr,
			Namespace:  a.cfg.MetricsJob + ".",
			GlobalTags: tags,
		})
	default:
		return func() {}
	}
	if err != nil {
		a.log.Warn("metrics backend unavailable; metrics disabled",
			zap.String("backend", a.cfg.MetricsBackend), zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	a.log.Info("metrics enabled", zap.String("backend", a.cfg.MetricsBackend), zap.String("job", a.cfg.MetricsJob))
	return func() {
		if err := metrics.Flush(); err != nil {
			a.log.Warn("metrics flush", zap.Error(err))
		}
	}
}

func (a *app) options() ingest.Options {
	return ingest.Options{
		DataDir:    a.cfg.DataDir,
		Force:      a.cfg.Force,
		Parallel:   a.cfg.Parallel,
		Workers:    a.cfg.Workers,
		ChunkSize:  a.cfg.ChunkSize,
		SkippedDir: a.cfg.SkippedDir,
		Analyze:    true,
		Backfill:   a.cfg.Backfill,
		RunID:      a.runID,
	}
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
