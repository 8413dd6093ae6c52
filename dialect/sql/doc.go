// Package sql implements the dialect interfaces on top of database/sql.
//
// # Driver
//
// A Driver wraps a *sql.DB and hands out executors and a shared schema
// inspector:
//
//	drv, err := sql.Open(dialect.MySQL, dsn, sql.WithSyncTimezone(time.Local))
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
// Session variables can be attached to a context with WithVar. They are set
// on a dedicated connection before the statement and reset after it.
//
// # Executor
//
// The executor is a one-shot query builder backed by squirrel. Conditions
// are collected with Where, OrWhere, WhereIn and Like, and are consumed by
// the next terminal call (FetchOne, FetchMany, CountAllResults, Update,
// Delete):
//
//	ex := drv.Executor()
//	ex.Where(map[string]any{"status": "active", "age >": 18})
//	ex.OrderBy("id", "desc")
//	ex.Limit(10, 0)
//	rows, err := ex.FetchMany(ctx, "users")
//
// Condition keys may carry an operator after the field name
// ("age >=", "name LIKE", "id !="). Slice values become IN lists and nil
// values become IS NULL.
//
// # Inspector
//
// The Inspector reads column metadata from information_schema (MySQL,
// PostgreSQL) or PRAGMA table_info (SQLite) and caches it per table.
//
// # Statistics
//
// WithStats counts queries, execs and errors and reports slow statements
// through a hook or a logger.
package sql
