package sql

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/recordset/dialect"
)

// Inspector reads table structure from the database catalog. Results are
// cached per table; concurrent lookups of the same table share one query.
type Inspector struct {
	conn  Conn
	mu    sync.RWMutex
	cache map[string][]dialect.Column
	group singleflight.Group
}

// NewInspector returns an inspector on conn.
func NewInspector(conn Conn) *Inspector {
	return &Inspector{conn: conn, cache: make(map[string][]dialect.Column)}
}

// Columns returns the columns of table in ordinal order. An unknown table
// has no columns.
func (i *Inspector) Columns(ctx context.Context, table string) ([]dialect.Column, error) {
	i.mu.RLock()
	cols, ok := i.cache[table]
	i.mu.RUnlock()
	if ok {
		return slices.Clone(cols), nil
	}
	v, err, _ := i.group.Do(table, func() (any, error) {
		cols, err := i.load(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: inspect %s: %w", table, err)
		}
		// Tables that do not exist yet are looked up again next time.
		if len(cols) > 0 {
			i.mu.Lock()
			i.cache[table] = cols
			i.mu.Unlock()
		}
		return cols, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]dialect.Column)), nil
}

// ColumnTypes maps the column names of table to their types.
func (i *Inspector) ColumnTypes(ctx context.Context, table string) (map[string]string, error) {
	cols, err := i.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}
	return types, nil
}

// ColumnExists reports whether table has the column.
func (i *Inspector) ColumnExists(ctx context.Context, table, field string) (bool, error) {
	cols, err := i.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.Name == field {
			return true, nil
		}
	}
	return false, nil
}

// PrimaryKeyField returns the first primary key column of table, or "".
func (i *Inspector) PrimaryKeyField(ctx context.Context, table string) (string, error) {
	cols, err := i.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		if c.PrimaryKey {
			return c.Name, nil
		}
	}
	return "", nil
}

// Invalidate drops the cached columns of the tables, or of every table
// when none are given.
func (i *Inspector) Invalidate(tables ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(tables) == 0 {
		clear(i.cache)
		return
	}
	for _, t := range tables {
		delete(i.cache, t)
	}
}

const (
	mysqlColumnsQuery = "SELECT COLUMN_NAME AS name, DATA_TYPE AS type, IS_NULLABLE AS nullable, " +
		"COLUMN_DEFAULT AS dflt, COLUMN_KEY AS pk, ORDINAL_POSITION AS position " +
		"FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? " +
		"ORDER BY ORDINAL_POSITION"
	postgresColumnsQuery = "SELECT c.column_name AS name, c.data_type AS type, c.is_nullable AS nullable, " +
		"c.column_default AS dflt, c.ordinal_position AS position, EXISTS (" +
		"SELECT 1 FROM information_schema.table_constraints tc " +
		"JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name " +
		"AND tc.table_schema = kcu.table_schema " +
		"WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema " +
		"AND tc.table_name = c.table_name AND kcu.column_name = c.column_name) AS pk " +
		"FROM information_schema.columns c WHERE c.table_schema = current_schema() AND c.table_name = $1 " +
		"ORDER BY c.ordinal_position"
)

func (i *Inspector) load(ctx context.Context, table string) ([]dialect.Column, error) {
	var (
		query string
		args  []any
	)
	switch i.conn.dialect {
	case dialect.MySQL:
		query, args = mysqlColumnsQuery, []any{table}
	case dialect.Postgres:
		query, args = postgresColumnsQuery, []any{table}
	default:
		query = "PRAGMA table_info(" + dialect.QuoteIdent(dialect.SQLite, table) + ")"
	}
	rows, err := i.conn.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	maps, err := scanMaps(rows)
	if err != nil {
		return nil, err
	}
	cols := make([]dialect.Column, 0, len(maps))
	for n, m := range maps {
		c := dialect.Column{
			Name:    cast.ToString(m["name"]),
			Type:    normalizeType(cast.ToString(m["type"])),
			Default: m["dflt"],
		}
		switch i.conn.dialect {
		case dialect.MySQL:
			c.Nullable = strings.EqualFold(cast.ToString(m["nullable"]), "YES")
			c.PrimaryKey = cast.ToString(m["pk"]) == "PRI"
			c.Position = cast.ToInt(m["position"])
		case dialect.Postgres:
			c.Nullable = strings.EqualFold(cast.ToString(m["nullable"]), "YES")
			c.PrimaryKey = cast.ToBool(m["pk"])
			c.Position = cast.ToInt(m["position"])
		default:
			c.Default = m["dflt_value"]
			c.Nullable = cast.ToInt64(m["notnull"]) == 0
			c.PrimaryKey = cast.ToInt64(m["pk"]) > 0
			c.Position = n + 1
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// normalizeType lowercases a column type and drops its size and
// modifiers: "VARCHAR(255)" is "varchar", "int unsigned" stays as is.
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

var _ dialect.Inspector = (*Inspector)(nil)
