// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs each backend's init, which registers its factory with the
// storage package. After importing it these kinds are available:
//
//   - "sqlite"                 (compliancedb/internal/storage/sqlite)
//   - "postgres", "postgresql" (compliancedb/internal/storage/postgres)
//   - "mssql", "sqlserver"     (compliancedb/internal/storage/mssql)
//   - "mysql"                  (compliancedb/internal/storage/mysql)
//
// A binary that needs only a subset can blank-import those backends directly.
package all

import (
	_ "compliancedb/internal/storage/mssql"
	_ "compliancedb/internal/storage/mysql"
	_ "compliancedb/internal/storage/postgres"
	_ "compliancedb/internal/storage/sqlite"
)
