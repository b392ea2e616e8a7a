package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"compliancedb/internal/index"
	"compliancedb/internal/loaderr"
	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
	"compliancedb/internal/storage/sqlite"
)

const inspectionHeader = "activity_nr,estab_name,site_state,naics_code,open_date,close_case_date,year,inspection_type"

type fileSpec struct {
	rows     int
	badDate  func(i int) bool
	garbage  func(i int) bool
	keyOf    func(i int) string
	header   string
	quotedNL bool
}

// writeInspections writes a synthetic inspection extract. Row i carries key
// A%05d unless keyOf overrides it.
func writeInspections(t *testing.T, fs fileSpec) string {
	t.Helper()
	if fs.header == "" {
		fs.header = inspectionHeader
	}
	var b strings.Builder
	b.WriteString(fs.header + "\n")
	for i := 0; i < fs.rows; i++ {
		if fs.garbage != nil && fs.garbage(i) {
			fmt.Fprintf(&b, "@@garbage row %d@@\n", i)
			continue
		}
		key := fmt.Sprintf("A%05d", i)
		if fs.keyOf != nil {
			key = fs.keyOf(i)
		}
		date := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
		if fs.badDate != nil && fs.badDate(i) {
			date = "not-a-date"
		}
		name := fmt.Sprintf("Company %d", i)
		if fs.quotedNL && i%3 == 0 {
			name = fmt.Sprintf("\"Company\n%d\"", i)
		}
		fmt.Fprintf(&b, "%s,%s,tx,236220,%s,,,Planned\n", key, name, date)
	}
	path := filepath.Join(t.TempDir(), "osha_inspection.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func openDB(t *testing.T) *storage.SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, storage.Config{DSN: filepath.Join(t.TempDir(), "load.db"), BulkPragmas: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.EnsureSchema(ctx, db))
	return db
}

func countWhere(t *testing.T, db storage.DB, where string) int64 {
	t.Helper()
	n, err := db.QueryInt(context.Background(), "SELECT COUNT(*) FROM inspections "+where)
	require.NoError(t, err)
	return n
}

/*
TestLoad_Scenario loads 250 rows in chunks of 100, where every fifth row has
an unparseable date and five rows are garbage. The garbage is dropped, the
bad dates become NULL, and the run succeeds.
*/
func TestLoad_Scenario(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	garbage := map[int]bool{7: true, 57: true, 107: true, 157: true, 207: true}
	path := writeInspections(t, fileSpec{
		rows:    250,
		badDate: func(i int) bool { return i%5 == 0 },
		garbage: func(i int) bool { return garbage[i] },
	})
	skipped := t.TempDir()

	sum, err := New(db, nil, Options{ChunkSize: 100, SkippedDir: skipped}).
		Load(context.Background(), schema.Inspections, path, nil)
	require.NoError(t, err)

	require.EqualValues(t, 250, sum.Total)
	require.EqualValues(t, 250, sum.Read)
	require.EqualValues(t, 245, sum.Inserted)
	require.EqualValues(t, 5, sum.Malformed)
	require.Equal(t, 3, sum.Chunks)
	require.Equal(t, "inspection-standard", sum.Format)
	require.Equal(t, 5, sum.Skipped["field_count"])

	require.EqualValues(t, 245, countWhere(t, db, ""))
	require.EqualValues(t, 50, countWhere(t, db, "WHERE open_date IS NULL"))
	require.EqualValues(t, 50, countWhere(t, db, "WHERE year IS NULL"))

	data, err := os.ReadFile(filepath.Join(skipped, "inspections_skipped.csv"))
	require.NoError(t, err)
	require.Contains(t, string(data), "field_count,57,")
}

/*
TestLoad_RangeTrimming loads rows [30, 70) of a 100-row file with a chunk
size that does not divide the range. Exactly rows 30 through 69 land.
*/
func TestLoad_RangeTrimming(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	path := writeInspections(t, fileSpec{rows: 100, quotedNL: true})

	var seen []Progress
	opts := Options{ChunkSize: 7, Progress: func(p Progress) { seen = append(seen, p) }}
	sum, err := New(db, nil, opts).Load(context.Background(), schema.Inspections, path, &Range{Start: 30, End: 70})
	require.NoError(t, err)

	require.EqualValues(t, 40, sum.Total)
	require.EqualValues(t, 40, sum.Inserted)
	require.EqualValues(t, 40, countWhere(t, db, ""))
	require.EqualValues(t, 0, countWhere(t, db, "WHERE activity_nr < 'A00030' OR activity_nr >= 'A00070'"))
	require.EqualValues(t, 1, countWhere(t, db, "WHERE activity_nr = 'A00030'"))
	require.EqualValues(t, 1, countWhere(t, db, "WHERE activity_nr = 'A00069'"))

	require.Len(t, seen, 6)
	last := seen[len(seen)-1]
	require.EqualValues(t, 40, last.Rows)
	require.InDelta(t, 100.0, last.Percent, 1e-9)
	require.Zero(t, last.ETA)
}

// TestLoad_RoundTrip verifies N well-formed rows become N table rows and the
// owned indexes exist afterwards.
func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	tbl := schema.MustLookup(schema.Inspections)
	idx := index.New(db, nil)
	require.NoError(t, idx.Create(context.Background(), tbl))

	path := writeInspections(t, fileSpec{rows: 1234})
	sum, err := New(db, nil, Options{ChunkSize: 500, Indexes: idx, Analyze: true}).
		Load(context.Background(), schema.Inspections, path, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1234, sum.Inserted)
	require.EqualValues(t, 1234, countWhere(t, db, ""))

	present, err := idx.Present(context.Background(), tbl)
	require.NoError(t, err)
	require.Len(t, present, len(tbl.Indexes))
}

// TestLoad_Dedupe drops repeated activity numbers for inspections.
func TestLoad_Dedupe(t *testing.T) {
	t.Parallel()

	path := writeInspections(t, fileSpec{
		rows:  60,
		keyOf: func(i int) string { return fmt.Sprintf("K%02d", i%20) },
	})

	db := openDB(t)
	sum, err := New(db, nil, Options{ChunkSize: 25}).Load(context.Background(), schema.Inspections, path, nil)
	require.NoError(t, err)
	require.EqualValues(t, 20, sum.Inserted)
	require.EqualValues(t, 40, sum.Duplicates)

	other := openDB(t)
	sum, err = New(other, nil, Options{ChunkSize: 25, NoDedupe: true}).Load(context.Background(), schema.Inspections, path, nil)
	require.NoError(t, err)
	require.EqualValues(t, 60, sum.Inserted)
}

/*
TestLoad_AllGarbageChunkFails checks that a chunk with no usable row fails
the load with ChunkProcessingFailed, that earlier chunks stay committed, and
that the owned indexes are recreated anyway.
*/
func TestLoad_AllGarbageChunkFails(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	tbl := schema.MustLookup(schema.Inspections)
	idx := index.New(db, nil)
	path := writeInspections(t, fileSpec{rows: 40, garbage: func(i int) bool { return i >= 20 }})

	core, logs := observer.New(zapcore.ErrorLevel)
	sum, err := New(db, zap.New(core), Options{ChunkSize: 10, Indexes: idx}).
		Load(context.Background(), schema.Inspections, path, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, loaderr.ErrChunkProcessingFailed), "err = %v", err)

	var ce *loaderr.ChunkError
	require.ErrorAs(t, err, &ce)
	require.EqualValues(t, 20, ce.FirstRow)

	require.EqualValues(t, 20, sum.Inserted)
	require.EqualValues(t, 20, countWhere(t, db, ""))
	require.Equal(t, 1, logs.FilterMessage("load failed").Len())

	present, err := idx.Present(context.Background(), tbl)
	require.NoError(t, err)
	require.Len(t, present, len(tbl.Indexes))
}

// TestLoad_UnrecognizedHeader fails before anything is inserted.
func TestLoad_UnrecognizedHeader(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	path := writeInspections(t, fileSpec{rows: 5, header: "foo,bar,baz,qux,a,b,c,d"})
	_, err := New(db, nil, Options{}).Load(context.Background(), schema.Inspections, path, nil)
	require.ErrorIs(t, err, loaderr.ErrFormatUnrecognized)

	var fe *loaderr.FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, path, fe.Path)
	require.EqualValues(t, 0, countWhere(t, db, ""))
}

func TestLoad_UnknownTable(t *testing.T) {
	t.Parallel()

	_, err := New(openDB(t), nil, Options{}).Load(context.Background(), "citations", "x.csv", nil)
	require.Error(t, err)
}

func TestRange_Len(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 40, Range{Start: 30, End: 70}.Len())
	require.EqualValues(t, 0, Range{Start: 70, End: 30}.Len())
	require.Equal(t, "[30,70)", Range{Start: 30, End: 70}.String())
}

// TestTracker_RateAndETA drives the tracker with a fake clock.
func TestTracker_RateAndETA(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	tr := newTracker("t", 1000, clock)

	now = now.Add(2 * time.Second)
	p := tr.at(1, 250, 240)
	require.InDelta(t, 25.0, p.Percent, 1e-9)
	require.InDelta(t, 125.0, p.Rate, 1e-9)
	require.Equal(t, 6*time.Second, p.ETA)
}
