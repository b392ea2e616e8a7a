package bulk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"compliancedb/internal/loaderr"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
	"compliancedb/internal/storage/sqlite"
)

func openSQLite(t *testing.T) *storage.SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, storage.Config{DSN: filepath.Join(t.TempDir(), "bulk.db")})
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return db
}

func inspectionRows(n int) [][]any {
	day := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([][]any, n)
	for i := range rows {
		var open any = day.AddDate(0, 0, i%300)
		if i%5 == 0 {
			open = nil
		}
		rows[i] = []any{
			fmt.Sprintf("A%06d", i), "ACME", "TX", "236220",
			open, nil, int64(2020), "Planned",
		}
	}
	return rows
}

func count(t *testing.T, db storage.DB, where string) int64 {
	t.Helper()
	n, err := db.QueryInt(context.Background(), "SELECT COUNT(*) FROM inspections "+where)
	if err != nil {
		t.Fatalf("count %q: %v", where, err)
	}
	return n
}

type failing struct {
	name  string
	calls int
}

func (f *failing) Name() string { return f.name }

func (f *failing) Insert(context.Context, schema.Table, [][]any) (int64, error) {
	f.calls++
	return 0, errors.New("boom")
}

// TestSelect_SQLite verifies the capability switch picks the multi-row path.
func TestSelect_SQLite(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	s := Select(db)
	if _, ok := s.(*SQLiteBulkStrategy); !ok {
		t.Fatalf("Select = %T, want *SQLiteBulkStrategy", s)
	}
	if s.Name() != "sqlite-multirow" {
		t.Fatalf("Name = %q", s.Name())
	}
}

/*
TestMultiRow_SplitsGroups inserts more rows than fit in one statement, so the
insert uses both the shared full-group statement and a remainder statement.
*/
func TestMultiRow_SplitsGroups(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	tbl := schema.MustLookup(schema.Inspections)
	per := storage.RowsPerStatement(db.Dialect(), len(tbl.Columns), NativeGroupRows)
	total := per*2 + 17

	n, err := Select(db).Insert(context.Background(), tbl, inspectionRows(total))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != int64(total) {
		t.Fatalf("inserted = %d, want %d", n, total)
	}
	if got := count(t, db, ""); got != int64(total) {
		t.Fatalf("table rows = %d, want %d", got, total)
	}
}

// TestInsert_EncodesMissingAsNull checks nil and NaN land as SQL NULL.
func TestInsert_EncodesMissingAsNull(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	tbl := schema.MustLookup(schema.Inspections)
	rows := inspectionRows(10)
	rows[1][6] = math.NaN()

	for _, s := range []Strategy{Select(db), NewGeneric(db)} {
		if _, err := storage.Truncate(context.Background(), db, tbl.Name); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Insert(context.Background(), tbl, rows); err != nil {
			t.Fatalf("%s: Insert: %v", s.Name(), err)
		}
		if got := count(t, db, "WHERE open_date IS NULL"); got != 2 {
			t.Fatalf("%s: null open_date = %d, want 2", s.Name(), got)
		}
		if got := count(t, db, "WHERE year IS NULL"); got != 1 {
			t.Fatalf("%s: null year = %d, want 1", s.Name(), got)
		}
		if got := count(t, db, "WHERE open_date = '2020-05-02'"); got != 1 {
			t.Fatalf("%s: ISO date rows = %d, want 1", s.Name(), got)
		}
	}
}

// TestGeneric_RejectsShortRow verifies a width mismatch rolls back the batch.
func TestGeneric_RejectsShortRow(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	tbl := schema.MustLookup(schema.Inspections)
	rows := inspectionRows(250)
	rows[240] = rows[240][:3]

	if _, err := NewGeneric(db).Insert(context.Background(), tbl, rows); err == nil {
		t.Fatal("Insert with short row: want error")
	}
	if got := count(t, db, ""); got != 0 {
		t.Fatalf("rows after rollback = %d, want 0", got)
	}
}

/*
TestDispatcher_FallsBack forces the native path to fail and verifies the
batch still lands through the generic path, with a warning logged.
*/
func TestDispatcher_FallsBack(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	tbl := schema.MustLookup(schema.Inspections)
	core, logs := observer.New(zapcore.WarnLevel)
	native := &failing{name: "fake-native"}
	d := NewDispatcherWith(native, NewGeneric(db), zap.New(core))

	n, err := d.Insert(context.Background(), tbl, inspectionRows(120))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != 120 || native.calls != 1 {
		t.Fatalf("inserted=%d native calls=%d", n, native.calls)
	}
	if got := count(t, db, ""); got != 120 {
		t.Fatalf("table rows = %d, want 120", got)
	}
	warned := logs.FilterMessage("native bulk insert failed; falling back").All()
	if len(warned) != 1 {
		t.Fatalf("fallback warnings = %d, want 1", len(warned))
	}
	if s := warned[0].ContextMap()["strategy"]; s != "fake-native" {
		t.Fatalf("logged strategy = %v", s)
	}
}

// TestDispatcher_BothFail verifies the typed error carries both causes.
func TestDispatcher_BothFail(t *testing.T) {
	t.Parallel()

	tbl := schema.MustLookup(schema.Inspections)
	native, fallback := &failing{name: "a"}, &failing{name: "b"}
	d := NewDispatcherWith(native, fallback, nil)

	_, err := d.Insert(context.Background(), tbl, inspectionRows(3))
	if !errors.Is(err, loaderr.ErrBulkInsertFailed) {
		t.Fatalf("err = %v, want ErrBulkInsertFailed", err)
	}
	var be *loaderr.BulkInsertError
	if !errors.As(err, &be) {
		t.Fatalf("err %T is not *BulkInsertError", err)
	}
	if be.Native == nil || be.Fallback == nil || be.Rows != 3 || be.Strategy != "a" {
		t.Fatalf("BulkInsertError = %+v", be)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d", fallback.calls)
	}
}

// TestDispatcher_GenericNativeNoRetry ensures a generic native path is not
// retried on itself.
func TestDispatcher_GenericNativeNoRetry(t *testing.T) {
	t.Parallel()

	s := &failing{name: "generic"}
	d := NewDispatcherWith(s, s, nil)
	_, err := d.Insert(context.Background(), schema.MustLookup(schema.Inspections), inspectionRows(1))
	if !errors.Is(err, loaderr.ErrBulkInsertFailed) {
		t.Fatalf("err = %v", err)
	}
	if s.calls != 1 {
		t.Fatalf("calls = %d, want 1", s.calls)
	}
}
