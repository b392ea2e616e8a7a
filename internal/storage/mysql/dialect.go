package mysql

import (
	"fmt"
	"strings"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// Dialect is the MySQL dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return Kind }

func (Dialect) Quote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return 65535 }

func (Dialect) ColumnType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt:
		return "INT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDate:
		return "DATE"
	case schema.KindBool:
		return "BOOLEAN"
	default:
		if c.Size > 0 && c.Size <= 1000 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "TEXT"
	}
}

func (d Dialect) CreateTableSQL(t schema.Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", d.Quote(t.Name), storage.CreateTableBody(d, t))
}

// IndexExistsSQL counts distinct names; statistics has one row per column.
func (Dialect) IndexExistsSQL() string {
	return "SELECT COUNT(DISTINCT index_name) FROM information_schema.statistics " +
		"WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?"
}

func (d Dialect) DropIndexSQL(table, index string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.Quote(index), d.Quote(table))
}

// CreateIndexSQL has no IF NOT EXISTS form on MySQL; the index manager
// checks the catalog first.
func (d Dialect) CreateIndexSQL(table string, idx schema.Index) string {
	return "CREATE INDEX " + storage.CreateIndexBody(d, table, idx)
}

func (d Dialect) AnalyzeSQL(table string) string { return "ANALYZE TABLE " + d.Quote(table) }

func (Dialect) Encode(_ schema.Column, v any) any {
	if storage.IsNull(v) {
		return nil
	}
	return v
}
