// Package storage abstracts the relational engines the loader writes to.
//
// Backends register a Factory by kind at init time (see storage/all). The
// rest of the pipeline depends only on DB, Tx and Dialect, plus the declared
// Capability a DB advertises so the bulk dispatcher can choose its native
// fast path once per connection instead of branching per call.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Capability describes the native bulk path an engine supports.
type Capability int

const (
	// CapGeneric engines only support plain parameterized INSERTs.
	CapGeneric Capability = iota
	// CapMultiRowValues engines accept multi-row VALUES lists bounded by a
	// per-statement variable limit (SQLite, MySQL).
	CapMultiRowValues
	// CapCopyProtocol engines speak a streaming COPY protocol (Postgres).
	CapCopyProtocol
	// CapBulkCopy engines expose a driver-level bulk copy API (SQL Server).
	CapBulkCopy
)

func (c Capability) String() string {
	switch c {
	case CapGeneric:
		return "generic"
	case CapMultiRowValues:
		return "multi-row-values"
	case CapCopyProtocol:
		return "copy-protocol"
	case CapBulkCopy:
		return "bulk-copy"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// DB is an open connection pool to one engine. A DB is never shared across
// process boundaries; parallel workers each open their own.
type DB interface {
	Kind() string
	Dialect() Dialect
	Capability() Capability

	// Exec runs a statement and returns rows affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// QueryInt runs a query returning a single integer (COUNT(*) and friends).
	QueryInt(ctx context.Context, query string, args ...any) (int64, error)
	// QueryStrings runs a query returning one text column. NULLs are skipped.
	QueryStrings(ctx context.Context, query string, args ...any) ([]string, error)
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction on a DB.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`

	// BulkPragmas applies engine-specific throughput settings on open
	// (SQLite: synchronous OFF, WAL, large page cache).
	BulkPragmas bool `json:"bulk_pragmas,omitempty"`
}

// Factory opens a DB for a Config.
type Factory func(ctx context.Context, cfg Config) (DB, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register associates kind with a factory. Backends call it from init.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[strings.ToLower(kind)] = f
}

// Kinds lists registered backend kinds.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs a DB for cfg.Kind.
func Open(ctx context.Context, cfg Config) (DB, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	regMu.RLock()
	f, ok := factories[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Opener is the signature of Open, injectable where callers need a fresh
// connection per unit of work.
type Opener func(ctx context.Context, cfg Config) (DB, error)
