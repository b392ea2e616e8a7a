package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compliancedb/internal/config"
	"compliancedb/internal/logging"
	"compliancedb/internal/parallel"
	"compliancedb/internal/storage"
)

// report prints v and returns err, so a partial report still reaches stdout.
func (a *app) report(v any, err error) error {
	if perr := a.print(v); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <table> [path]",
		Short: "Load one table, from path or its default file under --data-dir",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			done, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			opts := a.options()
			path := opts.Path(args[0])
			if len(args) == 2 {
				path = args[1]
			}
			res, err := a.svc.LoadTable(cmd.Context(), args[0], path, opts)
			return a.report(res, err)
		},
	}
}

func (a *app) loadAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-all",
		Short: "Load every table from --data-dir, skipping tables that hold rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			done, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			rep, err := a.svc.LoadAll(cmd.Context(), a.options())
			return a.report(rep, err)
		},
	}
}

func (a *app) reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <table>...",
		Short: "Delete and reload only the named tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			rep, err := a.svc.Reload(cmd.Context(), args, a.options())
			return a.report(rep, err)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print row counts and present indexes per table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			done, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			st, err := a.svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(st)
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print any issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.Validate(a.cfg)
			if issues == nil {
				issues = []config.Issue{}
			}
			if err := a.print(issues); err != nil {
				return err
			}
			if errs := config.Errors(issues); len(errs) > 0 {
				return errors.New("configuration is invalid")
			}
			return nil
		},
	}
}

// workerCmd is the child side of the parallel coordinator: one task on
// stdin, one result on stdout. It is not meant to be run by hand. Metrics
// recorded by the load are flushed under the task's worker ID.
func (a *app) workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run one parallel load task read from stdin",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(a.cfg.Logging())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			a.log = log.With(zap.Int("pid", os.Getpid()))

			w := parallel.Worker{
				Open: storage.Open,
				Log:  a.log,
				Setup: func(t parallel.Task) func() {
					a.runID = t.RunID
					return a.installMetrics(t.ID)
				},
			}
			return w.Serve(cmd.Context(), cmd.InOrStdin(), a.out)
		},
	}
}
