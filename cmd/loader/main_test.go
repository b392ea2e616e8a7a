package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"compliancedb/internal/config"
	"compliancedb/internal/ingest"
	"compliancedb/internal/loader"
	"compliancedb/internal/parallel"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	t.Parallel()

	out, err := run(t, "validate", "--dsn", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.JSONEq(t, "[]", out)

	out, err = run(t, "validate", "--chunk-size", "0")
	require.Error(t, err)
	var issues []config.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Equal(t, "chunk-size", issues[0].Path)
}

/*
TestLoadAllThenStatus loads a data directory holding only the inspection
extract and reads the table state back through the status command.
*/
func TestLoadAllThenStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csv := "activity_nr,estab_name,site_state,open_date\n1,A,tx,2020-01-02\n2,B,ca,2021-03-04\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "osha_inspection.csv"), []byte(csv), 0o644))
	common := []string{"--data-dir", dir, "--dsn", filepath.Join(dir, "c.db"), "--log-level", "error"}

	out, err := run(t, append([]string{"load-all"}, common...)...)
	require.NoError(t, err)
	var rep ingest.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Tables, 3)
	require.NotEmpty(t, rep.RunID)
	require.EqualValues(t, 2, rep.Tables[0].Inserted())

	out, err = run(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	var st []ingest.TableStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.EqualValues(t, 2, st[0].Rows)
}

func TestLoad_UnknownTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := run(t, "load", "citations", "--data-dir", dir, "--dsn", filepath.Join(dir, "c.db"), "--log-level", "error")
	require.ErrorContains(t, err, "unknown table")
}

/*
TestWorker_PushesMetrics runs the worker command on one task with the
Pushgateway backend and expects the load's row counters pushed under the
task's worker group. It installs the process-wide metrics backend, so it
does not run in parallel.
*/
func TestWorker_PushesMetrics(t *testing.T) {
	type push struct {
		path string
		body []byte
	}
	pushes := make(chan push, 4)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		pushes <- push{path: r.URL.Path, body: body}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer gw.Close()

	dir := t.TempDir()
	csv := "activity_nr,estab_name,site_state,open_date\n1,A,tx,2020-01-02\n2,B,ca,2021-03-04\n"
	path := filepath.Join(dir, "osha_inspection.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	cfg := storage.Config{Kind: "sqlite", DSN: filepath.Join(dir, "c.db")}
	db, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, storage.EnsureSchema(context.Background(), db))
	require.NoError(t, db.Close())

	var in, out bytes.Buffer
	require.NoError(t, parallel.WriteTask(&in, parallel.Task{
		ID: "inspections-0", RunID: "run-1", Table: schema.Inspections, Path: path,
		Range: loader.Range{Start: 0, End: 2}, Storage: cfg,
	}))
	cmd := newRootCmd(&out)
	cmd.SetIn(&in)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"worker", "--metrics-backend", "prometheus", "--pushgateway-url", gw.URL, "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	res, err := parallel.ReadResult(&out)
	require.NoError(t, err)
	require.Empty(t, res.Error)
	require.EqualValues(t, 2, res.Summary.Inserted)

	var got push
	select {
	case got = <-pushes:
	default:
		t.Fatalf("worker did not push metrics")
	}
	require.Equal(t, "/metrics/job/loader/worker/inspections-0", got.path)
	require.Contains(t, string(got.body), "loader_rows_total")
	require.Contains(t, string(got.body), "inserted")
}
