package csv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"compliancedb/internal/loaderr"
	"compliancedb/internal/schema"
)

func numberedFile(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(utf8BOM + "Activity Nr,Estab Name,open_date\n")
	for i := 0; i < rows; i++ {
		if i%10 == 3 {
			// quoted newline inside a row must not shift ordinals
			fmt.Fprintf(&b, "%d,\"ACME\nWEST\",2020-01-01\n", i)
			continue
		}
		fmt.Fprintf(&b, "%d,ACME,2020-01-01\n", i)
		if i%7 == 0 {
			b.WriteString("\n")
		}
	}
	return writeFile(t, "numbered.csv", b.String())
}

func TestOpen_NormalizesHeader(t *testing.T) {
	t.Parallel()

	r, err := Open(numberedFile(t, 1), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	want := []string{"activity_nr", "estab_name", "open_date"}
	if got := r.Header(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Header = %q, want %q", got, want)
	}
}

// TestReader_ChunksCarryOrdinals reads a file in small chunks and checks
// that every record's ordinal equals the row number written in its first
// field.
func TestReader_ChunksCarryOrdinals(t *testing.T) {
	t.Parallel()

	r, err := Open(numberedFile(t, 95), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	var seen int
	for {
		ch, err := r.Next(ctx, 20)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(ch.Records) > 20 {
			t.Fatalf("chunk of %d exceeds max", len(ch.Records))
		}
		for _, rec := range ch.Records {
			if rec.Fields[0] != fmt.Sprint(rec.Ordinal) {
				t.Fatalf("ordinal %d carries row %q", rec.Ordinal, rec.Fields[0])
			}
			seen++
		}
	}
	if seen != 95 {
		t.Fatalf("read %d records, want 95", seen)
	}
}

// TestReader_SkipMatchesOrdinals verifies byte-level skipping lands on the
// same row the record reader would have reached.
func TestReader_SkipMatchesOrdinals(t *testing.T) {
	t.Parallel()

	path := numberedFile(t, 100)
	for _, start := range []int64{0, 1, 3, 4, 30, 99, 100} {
		r, err := Open(path, Options{})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		n, err := r.Skip(start)
		if err != nil || n != start {
			t.Fatalf("Skip(%d) = %d, %v", start, n, err)
		}
		ch, err := r.Next(context.Background(), 1)
		if start == 100 {
			if err != io.EOF {
				t.Fatalf("Next after skipping all rows: err = %v, want EOF", err)
			}
			r.Close()
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got := ch.Records[0]; got.Ordinal != start || got.Fields[0] != fmt.Sprint(start) {
			t.Fatalf("after Skip(%d) got ordinal %d row %q", start, got.Ordinal, got.Fields[0])
		}
		if _, err := r.Skip(1); err == nil {
			t.Fatal("Skip after Next should fail")
		}
		r.Close()
	}
}

func TestReader_ParseErrorIsPerRecord(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "strict.csv", "a,b\n1,x\n2,\"bad\"quote\n3,y\n")
	r, err := Open(path, Options{StrictQuotes: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	ch, err := r.Next(context.Background(), 10)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var bad int
	for _, rec := range ch.Records {
		if rec.Err != nil {
			bad++
		}
	}
	if bad != 1 || len(ch.Records) != 3 {
		t.Fatalf("records=%d bad=%d, want 3 and 1", len(ch.Records), bad)
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	info, err := Inspect(numberedFile(t, 42), schema.Inspections, Options{})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Rows != 42 || info.Format != InspectionStandard {
		t.Fatalf("Inspect = %+v", info)
	}

	path := writeFile(t, "odd.csv", "foo,bar\n1,2\n")
	_, err = Inspect(path, "", Options{})
	var fe *loaderr.FormatError
	if !errors.As(err, &fe) || fe.Path != path || !errors.Is(err, loaderr.ErrFormatUnrecognized) {
		t.Fatalf("Inspect(odd) err = %v, want FormatError with path", err)
	}
}

func TestNext_CanceledContext(t *testing.T) {
	t.Parallel()

	r, err := Open(numberedFile(t, 5), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Next(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next err = %v, want context.Canceled", err)
	}
}
