package sqlite

import (
	"fmt"
	"strings"
	"time"

	"compliancedb/internal/schema"
	"compliancedb/internal/storage"
)

// maxVariables is SQLITE_MAX_VARIABLE_NUMBER for SQLite >= 3.32.
const maxVariables = 32766

// DateLayout is how dates are stored; SQLite has no native date type and
// ISO text sorts and compares correctly.
const DateLayout = "2006-01-02"

// Dialect is the SQLite SQL dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return Kind }

func (Dialect) Quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return maxVariables }

func (Dialect) ColumnType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt, schema.KindBool:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func (d Dialect) CreateTableSQL(t schema.Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", d.Quote(t.Name), storage.CreateTableBody(d, t))
}

func (Dialect) IndexExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?"
}

func (d Dialect) DropIndexSQL(_, index string) string {
	return "DROP INDEX IF EXISTS " + d.Quote(index)
}

func (d Dialect) CreateIndexSQL(table string, idx schema.Index) string {
	return "CREATE INDEX IF NOT EXISTS " + storage.CreateIndexBody(d, table, idx)
}

func (d Dialect) AnalyzeSQL(table string) string { return "ANALYZE " + d.Quote(table) }

// Encode stores dates as ISO text and booleans as 0/1.
func (Dialect) Encode(_ schema.Column, v any) any {
	if storage.IsNull(v) {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		return t.Format(DateLayout)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}
