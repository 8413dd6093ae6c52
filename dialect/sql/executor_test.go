package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/recordset/dialect"
)

func newMock(t *testing.T, name string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return OpenDB(name, db), mock
}

func TestExecutorFetch(t *testing.T) {
	ctx := context.Background()
	drv, mock := newMock(t, dialect.MySQL)
	ex := drv.Executor()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users WHERE (age > ? AND status = ?) ORDER BY id DESC LIMIT 10 OFFSET 5")).
		WithArgs(18, "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("alice")).AddRow(int64(2), nil))
	ex.Where(map[string]any{"status": "active", "age >": 18})
	ex.Select("id", "name")
	ex.OrderBy("id", "desc")
	ex.Limit(10, 5)
	rows, err := ex.FetchMany(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2), "name": nil},
	}, rows)

	// The terminal call reset the builder.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	row, err := ex.FetchOne(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorConditions(t *testing.T) {
	tests := []struct {
		name  string
		build func(dialect.Executor)
		query string
		args  []any
	}{
		{
			name:  "IsNull",
			build: func(ex dialect.Executor) { ex.Where(map[string]any{"parent_id": nil}) },
			query: "SELECT * FROM t WHERE parent_id IS NULL",
		},
		{
			name:  "In",
			build: func(ex dialect.Executor) { ex.Where(map[string]any{"id": []any{1, 2}}) },
			query: "SELECT * FROM t WHERE id IN (?,?)",
			args:  []any{1, 2},
		},
		{
			name:  "NotEqual",
			build: func(ex dialect.Executor) { ex.Where(map[string]any{"status !=": "draft"}) },
			query: "SELECT * FROM t WHERE status <> ?",
			args:  []any{"draft"},
		},
		{
			name:  "LikeOperator",
			build: func(ex dialect.Executor) { ex.Where(map[string]any{"title LIKE": "a%"}) },
			query: "SELECT * FROM t WHERE title LIKE ?",
			args:  []any{"a%"},
		},
		{
			name:  "Like",
			build: func(ex dialect.Executor) { ex.Like("title", "go") },
			query: "SELECT * FROM t WHERE title LIKE ?",
			args:  []any{"%go%"},
		},
		{
			name: "OrWhere",
			build: func(ex dialect.Executor) {
				ex.Where(map[string]any{"a": 1})
				ex.OrWhere(map[string]any{"b": 2})
			},
			query: "SELECT * FROM t WHERE (a = ? OR b = ?)",
			args:  []any{1, 2},
		},
		{
			name: "WhereInNotIn",
			build: func(ex dialect.Executor) {
				ex.WhereIn("id", 1, 2)
				ex.WhereNotIn("status", "x")
			},
			query: "SELECT * FROM t WHERE (id IN (?,?) AND status NOT IN (?))",
			args:  []any{1, 2, "x"},
		},
		{
			name: "DistinctGroupBy",
			build: func(ex dialect.Executor) {
				ex.Select("status")
				ex.Distinct()
				ex.GroupBy("status")
			},
			query: "SELECT DISTINCT status FROM t GROUP BY status",
		},
		{
			name:  "Random",
			build: func(ex dialect.Executor) { ex.OrderBy("id", "random") },
			query: "SELECT * FROM t ORDER BY RAND()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, mock := newMock(t, dialect.MySQL)
			ex := drv.Executor()
			tt.build(ex)
			args := make([]driver.Value, len(tt.args))
			for i, a := range tt.args {
				args[i] = a
			}
			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).WithArgs(args...).WillReturnRows(sqlmock.NewRows([]string{"x"}))
			_, err := ex.FetchMany(context.Background(), "t")
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecutorMutations(t *testing.T) {
	ctx := context.Background()
	drv, mock := newMock(t, dialect.SQLite)
	ex := drv.Executor()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email,name) VALUES (?,?)")).
		WithArgs("a@b.com", "alice").
		WillReturnResult(sqlmock.NewResult(7, 1))
	res, err := ex.Insert(ctx, "users", map[string]any{"name": "alice", "email": "a@b.com"})
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email,name) VALUES (?,?),(?,?)")).
		WithArgs(nil, "bob", "c@d.com", "carol").
		WillReturnResult(sqlmock.NewResult(9, 2))
	_, err = ex.InsertBatch(ctx, "users", []map[string]any{{"name": "bob"}, {"name": "carol", "email": "c@d.com"}})
	require.NoError(t, err)

	_, err = ex.InsertBatch(ctx, "users", nil)
	assert.Error(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = ?, name = ? WHERE id = ?")).
		WithArgs("x@y.z", "al", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ex.Where(map[string]any{"id": 1})
	_, err = ex.Update(ctx, "users", map[string]any{"name": "al", "email": "x@y.z"})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ex.Where(map[string]any{"id": 1})
	_, err = ex.Delete(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorPostgresInsertReturning(t *testing.T) {
	ctx := context.Background()
	drv, mock := newMock(t, dialect.Postgres)
	ex := drv.Executor()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "dflt", "position", "pk"}).
			AddRow("id", "integer", "NO", nil, 1, true).
			AddRow("name", "character varying", "YES", nil, 2, false))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (name) VALUES ($1) RETURNING "id"`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	res, err := ex.Insert(ctx, "users", map[string]any{"name": "alice"})
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorCounts(t *testing.T) {
	ctx := context.Background()
	drv, mock := newMock(t, dialect.SQLite)
	ex := drv.Executor()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS numrows FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"numrows"}).AddRow(int64(4)))
	ex.Where(map[string]any{"ignored": true})
	n, err := ex.CountAll(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS numrows FROM posts WHERE status = ?")).
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows([]string{"numrows"}).AddRow(int64(1)))
	ex.Where(map[string]any{"status": "draft"})
	ex.OrderBy("id", "asc")
	ex.Limit(5, 0)
	n, err = ex.CountAllResults(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS numrows FROM (SELECT * FROM posts GROUP BY status) AS counted")).
		WillReturnRows(sqlmock.NewRows([]string{"numrows"}).AddRow(int64(2)))
	ex.GroupBy("status")
	n, err = ex.CountAllResults(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorRawQuery(t *testing.T) {
	drv, mock := newMock(t, dialect.MySQL)
	mock.ExpectQuery(regexp.QuoteMeta("SHOW KEYS FROM `users` WHERE Key_name = 'PRIMARY'")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Column_name"}).AddRow("users", []byte("id")))
	rows, err := drv.Executor().RawQuery(context.Background(), "SHOW KEYS FROM `users` WHERE Key_name = 'PRIMARY'")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "id", rows[0]["Column_name"])
}

func TestExecutorResetAfterFailure(t *testing.T) {
	ctx := context.Background()
	drv, mock := newMock(t, dialect.SQLite)
	ex := drv.Executor()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("down"))
	ex.Where(map[string]any{"id": 1})
	_, err := ex.FetchMany(ctx, "users")
	require.Error(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users")).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	rows, err := ex.FetchMany(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"MySQLUnique", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, IsUniqueConstraintError},
		{"MySQLForeignKey", &mysql.MySQLError{Number: 1452, Message: "Cannot add"}, IsForeignKeyConstraintError},
		{"PostgresUnique", &pq.Error{Code: "23505"}, IsUniqueConstraintError},
		{"PostgresCheck", &pq.Error{Code: "23514"}, IsCheckConstraintError},
		{"SQLiteUnique", errors.New("UNIQUE constraint failed: users.email"), IsUniqueConstraintError},
		{"SQLiteForeignKey", errors.New("FOREIGN KEY constraint failed"), IsForeignKeyConstraintError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, mock := newMock(t, dialect.SQLite)
			mock.ExpectExec("INSERT").WillReturnError(tt.err)
			_, err := drv.Executor().Insert(context.Background(), "users", map[string]any{"email": "x"})
			require.Error(t, err)
			assert.True(t, tt.is(err))
			assert.True(t, IsConstraintError(err))
			var cerr *ConstraintError
			assert.True(t, errors.As(err, &cerr))
		})
	}

	assert.False(t, IsConstraintError(errors.New("connection refused")))
	assert.False(t, IsUniqueConstraintError(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueConstraintError(nil))
}

func TestSplitOperator(t *testing.T) {
	tests := []struct {
		key, field, op string
	}{
		{"age", "age", ""},
		{"age >", "age", ">"},
		{"age>=", "age", ">="},
		{"name !=", "name", "!="},
		{"name <>", "name", "<>"},
		{"title like", "title", "LIKE"},
		{"title NOT LIKE", "title", "NOT LIKE"},
		{"unlike", "unlike", ""},
		{"id =", "id", "="},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			field, op := splitOperator(tt.key)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.op, op)
		})
	}
}
