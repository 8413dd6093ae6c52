package recordset

import (
	"context"
	"strings"

	"github.com/spf13/cast"

	"github.com/syssam/recordset/dialect"
)

// GetSchema returns the column metadata of the table.
func (s *Session) GetSchema(ctx context.Context, opts ...QueryOption) ([]dialect.Column, error) {
	cols, err := s.client.driver.Inspector().Columns(ctx, s.table(newQuery(opts)))
	if err != nil {
		return nil, NewQueryError(s.model.name, "GetSchema", err)
	}
	return cols, nil
}

// GetFields returns the column names of the table in ordinal order.
func (s *Session) GetFields(ctx context.Context, opts ...QueryOption) ([]string, error) {
	cols, err := s.GetSchema(ctx, opts...)
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = c.Name
	}
	return fields, nil
}

// HasField reports whether the table has the column.
func (s *Session) HasField(ctx context.Context, field string, opts ...QueryOption) (bool, error) {
	ok, err := s.client.driver.Inspector().ColumnExists(ctx, s.table(newQuery(opts)), field)
	if err != nil {
		return false, NewQueryError(s.model.name, "HasField", err)
	}
	return ok, nil
}

// GetFieldTypes maps the columns of the table to their types.
func (s *Session) GetFieldTypes(ctx context.Context, opts ...QueryOption) (map[string]string, error) {
	types, err := s.client.driver.Inspector().ColumnTypes(ctx, s.table(newQuery(opts)))
	if err != nil {
		return nil, NewQueryError(s.model.name, "GetFieldTypes", err)
	}
	return types, nil
}

// GetFieldType returns the type of one column, or "" when the table has no
// such column.
func (s *Session) GetFieldType(ctx context.Context, field string, opts ...QueryOption) (string, error) {
	types, err := s.GetFieldTypes(ctx, opts...)
	if err != nil {
		return "", err
	}
	return types[field], nil
}

// GetNextID returns the identifier the next insert into the table will
// most likely get. It is only known on MySQL and SQLite; ok is false
// elsewhere and when the table has no sequence yet.
func (s *Session) GetNextID(ctx context.Context, opts ...QueryOption) (id int64, ok bool, err error) {
	table := s.table(newQuery(opts))
	switch dialect.Normalize(s.exec.Platform()) {
	case dialect.MySQL:
		rows, err := s.exec.RawQuery(ctx, "SHOW TABLE STATUS WHERE Name = '"+escapeLiteral(table)+"'")
		if err != nil {
			return 0, false, NewQueryError(s.model.name, "GetNextID", err)
		}
		if len(rows) == 0 || rows[0]["Auto_increment"] == nil {
			return 0, false, nil
		}
		id, err := cast.ToInt64E(rows[0]["Auto_increment"])
		return id, err == nil, nil
	case dialect.SQLite:
		// sqlite_sequence only exists once an AUTOINCREMENT table has rows.
		rows, err := s.exec.RawQuery(ctx, "SELECT seq FROM sqlite_sequence WHERE name = ?", table)
		if err != nil && !strings.Contains(err.Error(), "no such table") {
			return 0, false, NewQueryError(s.model.name, "GetNextID", err)
		}
		if len(rows) == 0 {
			return 0, false, nil
		}
		seq, err := cast.ToInt64E(rows[0]["seq"])
		return seq + 1, err == nil, nil
	default:
		return 0, false, nil
	}
}

// FetchPrimaryKey introspects the primary key column of the table.
func (s *Session) FetchPrimaryKey(ctx context.Context, opts ...QueryOption) (string, error) {
	key, err := fetchPrimaryKey(ctx, s.exec, s.client.driver.Inspector(), s.table(newQuery(opts)))
	if err != nil {
		return "", NewQueryError(s.model.name, "FetchPrimaryKey", err)
	}
	return key, nil
}

// fetchPrimaryKey reads the primary key from SHOW KEYS on MySQL and from
// the column metadata elsewhere. It returns "" for tables without one.
func fetchPrimaryKey(ctx context.Context, exec dialect.Executor, insp dialect.Inspector, table string) (string, error) {
	if !dialect.IsMySQL(exec.Platform()) {
		return insp.PrimaryKeyField(ctx, table)
	}
	rows, err := exec.RawQuery(ctx, "SHOW KEYS FROM "+dialect.QuoteIdent(dialect.MySQL, table)+" WHERE Key_name = 'PRIMARY'")
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return cast.ToString(rows[0]["Column_name"]), nil
}

func escapeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(s)
}
