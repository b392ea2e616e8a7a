package storage

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// TestOpen_UnknownKind lists registered kinds in the error.
func TestOpen_UnknownKind(t *testing.T) {
	Register("fake-kind", func(ctx context.Context, cfg Config) (DB, error) {
		return nil, errors.New("fake open")
	})

	_, err := Open(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "fake-kind") {
		t.Fatalf("err = %v, want unknown kind listing fake-kind", err)
	}

	// Kind lookup is case-insensitive.
	_, err = Open(context.Background(), Config{Kind: " FAKE-KIND "})
	if err == nil || err.Error() != "fake open" {
		t.Fatalf("err = %v, want fake open", err)
	}
}

func TestIsNull(t *testing.T) {
	t.Parallel()

	if !IsNull(nil) || !IsNull(math.NaN()) {
		t.Fatal("nil and NaN are missing markers")
	}
	if IsNull(0.0) || IsNull("") || IsNull(false) {
		t.Fatal("zero values are not missing markers")
	}
}

func TestCapability_String(t *testing.T) {
	t.Parallel()

	for c, want := range map[Capability]string{
		CapGeneric:        "generic",
		CapMultiRowValues: "multi-row-values",
		CapCopyProtocol:   "copy-protocol",
		CapBulkCopy:       "bulk-copy",
	} {
		if c.String() != want {
			t.Fatalf("%d.String() = %q, want %q", int(c), c.String(), want)
		}
	}
}
