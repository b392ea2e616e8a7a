package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Dialect is the Postgres SQL dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return Kind }

// Quote safely quotes a single identifier segment for Postgres.
func (Dialect) Quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) MaxParams() int { return 65535 }

func (Dialect) ColumnType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDate:
		return "DATE"
	case schema.KindBool:
		return "BOOLEAN"
	default:
		if c.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "TEXT"
	}
}

func (d Dialect) CreateTableSQL(t schema.Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", d.Quote(t.Name), storage.CreateTableBody(d, t))
}

func (Dialect) IndexExistsSQL() string {
	return "SELECT COUNT(*) FROM pg_indexes WHERE schemaname = current_schema() AND tablename = $1 AND indexname = $2"
}

func (d Dialect) DropIndexSQL(_, index string) string { return "DROP INDEX IF EXISTS " + d.Quote(index) }

func (d Dialect) CreateIndexSQL(table string, idx schema.Index) string {
	return "CREATE INDEX IF NOT EXISTS " + storage.CreateIndexBody(d, table, idx)
}

func (d Dialect) AnalyzeSQL(table string) string { return "ANALYZE " + d.Quote(table) }

// Encode passes values through so pgx encodes time.Time and bool natively;
// only the missing markers are translated.
func (Dialect) Encode(_ schema.Column, v any) any {
	if storage.IsNull(v) {
		return nil
	}
	return v
}

// Identifier converts "schema.table" into a pgx.Identifier.
func Identifier(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
