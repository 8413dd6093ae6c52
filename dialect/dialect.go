package dialect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
)

// Driver is the connection-level collaborator. It hands out executors and
// the schema inspector of one database.
type Driver interface {
	// Executor returns a fresh executor with empty builder state.
	Executor() Executor
	// Inspector returns the schema inspector of the connection.
	Inspector() Inspector
	// Dialect returns the dialect name of the connection.
	Dialect() string
	// Close closes the underlying connection.
	Close() error
}

// Executor builds and runs statements against one table at a time.
//
// Builder methods (Where, Select, OrderBy, ...) accumulate state that the next
// terminal method (FetchOne, FetchMany, Update, Delete, CountAllResults)
// consumes. Terminal methods reset the builder state whether they succeed or
// not. An Executor is not safe for concurrent use.
type Executor interface {
	Where(cond map[string]any)
	OrWhere(cond map[string]any)
	WhereIn(field string, values ...any)
	WhereNotIn(field string, values ...any)
	Like(field, match string)
	Select(fields ...string)
	Distinct()
	GroupBy(fields ...string)
	OrderBy(field, direction string)
	Limit(count, offset int)
	Offset(offset int)
	Reset()

	FetchOne(ctx context.Context, table string) (map[string]any, error)
	FetchMany(ctx context.Context, table string) ([]map[string]any, error)
	Insert(ctx context.Context, table string, payload map[string]any) (sql.Result, error)
	InsertBatch(ctx context.Context, table string, payloads []map[string]any) (sql.Result, error)
	Update(ctx context.Context, table string, payload map[string]any) (sql.Result, error)
	Delete(ctx context.Context, table string) (sql.Result, error)
	CountAll(ctx context.Context, table string) (int64, error)
	CountAllResults(ctx context.Context, table string) (int64, error)

	// Platform returns the dialect name the executor talks to.
	Platform() string
	// RawQuery runs a statement verbatim. It is reserved for platform
	// metadata queries.
	RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string // lowercased type name without size, e.g. "varchar", "datetime"
	PrimaryKey bool
	Nullable   bool
	Default    any
	Position   int
}

// Inspector introspects table structure.
type Inspector interface {
	Columns(ctx context.Context, table string) ([]Column, error)
	ColumnTypes(ctx context.Context, table string) (map[string]string, error)
	ColumnExists(ctx context.Context, table, field string) (bool, error)
	// PrimaryKeyField returns the primary key column, or "" when the table
	// has none.
	PrimaryKeyField(ctx context.Context, table string) (string, error)
}

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Normalize maps driver names and their aliases onto a dialect name.
// Unknown names are returned lowercased.
func Normalize(name string) string {
	switch n := strings.ToLower(name); n {
	case "mysql", "mysqli", "mariadb":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	case "postgres", "postgresql", "pgx":
		return Postgres
	default:
		return n
	}
}

// QuoteIdent quotes an identifier for the given dialect. Dotted names are
// quoted part by part.
func QuoteIdent(dialect, ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		switch dialect {
		case MySQL:
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		case Postgres:
			parts[i] = pq.QuoteIdentifier(p)
		default:
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

// IsMySQL reports whether the platform identifier belongs to the MySQL family.
func IsMySQL(platform string) bool { return Normalize(platform) == MySQL }
