package recordset_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/recordset"
	"github.com/syssam/recordset/dialect"
	dsql "github.com/syssam/recordset/dialect/sql"
)

func TestSchemaHelpers(t *testing.T) {
	ctx := context.Background()
	client, _ := openClient(t, testSchemas())
	s := client.MustSession("UserModel")

	cols, err := s.GetSchema(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 5)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, "integer", cols[0].Type)

	fields, err := s.GetFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "user_name", "email", "created", "modified"}, fields)

	ok, err := s.HasField(ctx, "email")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasField(ctx, "title")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.HasField(ctx, "title", recordset.Table("posts"))
	require.NoError(t, err)
	assert.True(t, ok)

	types, err := s.GetFieldTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "datetime", types["modified"])
	assert.Equal(t, "text", types["email"])

	typ, err := s.GetFieldType(ctx, "created")
	require.NoError(t, err)
	assert.Equal(t, "datetime", typ)
	typ, err = s.GetFieldType(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, typ)

	key, err := s.FetchPrimaryKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id", key)
	key, err = s.FetchPrimaryKey(ctx, recordset.Table("audit"))
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestGetNextID(t *testing.T) {
	ctx := context.Background()
	client, _ := openClient(t, testSchemas())
	s := client.MustSession("UserModel")

	id, ok, err := s.GetNextID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)

	created, err := s.Create(ctx, recordset.Payload{"user_name": "carol"})
	require.NoError(t, err)
	assert.Equal(t, id, created)

	id, ok, err = s.GetNextID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), id)

	_, ok, err = s.GetNextID(ctx, recordset.Table("audit"))
	require.NoError(t, err)
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, ok, err = s.GetNextID(cancelled)
	assert.True(t, recordset.IsQueryError(err), "only a missing sequence table means no id")
	assert.False(t, ok)
}

func TestGetNextIDWithoutSequenceTable(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	client, err := recordset.Open(ctx, dsql.OpenDB(dialect.SQLite, db), []recordset.Schema{{Name: "NoteModel"}},
		recordset.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	id, ok, err := client.MustSession("NoteModel").GetNextID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)
}
