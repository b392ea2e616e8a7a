package mssql

import (
	"fmt"
	"strings"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Dialect is the T-SQL dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return Kind }

func (Dialect) Quote(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// MaxParams is one below the 2100-parameter RPC limit.
func (Dialect) MaxParams() int { return 2099 }

func (Dialect) ColumnType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt:
		return "INT"
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindDate:
		return "DATE"
	case schema.KindBool:
		return "BIT"
	default:
		if c.Size > 0 && c.Size <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", c.Size)
		}
		return "NVARCHAR(MAX)"
	}
}

func (d Dialect) CreateTableSQL(t schema.Table) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s",
		strings.ReplaceAll(t.Name, "'", "''"), d.Quote(t.Name), storage.CreateTableBody(d, t))
}

func (Dialect) IndexExistsSQL() string {
	return "SELECT COUNT(*) FROM sys.indexes WHERE object_id = OBJECT_ID(@p1) AND name = @p2"
}

func (d Dialect) DropIndexSQL(table, index string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.Quote(index), d.Quote(table))
}

func (d Dialect) CreateIndexSQL(table string, idx schema.Index) string {
	return "CREATE INDEX " + storage.CreateIndexBody(d, table, idx)
}

func (d Dialect) AnalyzeSQL(table string) string { return "UPDATE STATISTICS " + d.Quote(table) }

// Encode passes time.Time and bool through for the driver's DATE and BIT
// encoders.
func (Dialect) Encode(_ schema.Column, v any) any {
	if storage.IsNull(v) {
		return nil
	}
	return v
}
