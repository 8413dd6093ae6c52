// Package dialect names the database platforms recordset talks to and the
// identifier rules that differ between them.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Usage
//
// The platform of a connection is reported by the executor and drives
// platform specific introspection (primary keys, next auto-increment value):
//
//	drv, err := sql.Open(dialect.SQLite, "file::memory:")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	drv.Executor().Platform() // "sqlite"
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed query executor and schema inspector
package dialect
