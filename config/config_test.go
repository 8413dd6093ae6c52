package config_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/syssam/recordset"
	"github.com/syssam/recordset/config"
)

const document = `
dialect: sqlite
dsn: ${RECORDSET_TEST_DSN}
slow_query: 250ms
conventions:
  model_suffix: Entity
  irregular:
    person: people
timestamps:
  created: created_at
  updated: updated_at
entities:
  - name: UserEntity
    has_many:
      - posts
      - comments: {foreign_key: author_id, limit: [5, 10], order: [id, desc], scope: {visible: 1}}
  - name: PostEntity
    representation: keyed
    timestamps:
      updated: touched
    belongs_to:
      - user: {fields: [id, user_name]}
  - name: ReportEntity
    no_table: true
    primary_key: id
`

func TestParse(t *testing.T) {
	t.Setenv("RECORDSET_TEST_DSN", "file:app.db")
	cfg, err := config.Parse([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "file:app.db", cfg.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQuery)
	require.Len(t, cfg.Entities, 3)

	schemas, err := cfg.Schemas()
	require.NoError(t, err)
	require.Len(t, schemas, 3)

	user := schemas[0]
	assert.Equal(t, "UserEntity", user.Name)
	assert.Equal(t, recordset.Structured, user.Representation)
	assert.Equal(t, "created_at", user.CreatedField)
	assert.Equal(t, "updated_at", user.UpdatedField)
	assert.Equal(t, []recordset.Relation{
		recordset.HasMany("posts"),
		recordset.HasMany("comments").
			WithForeignKey("author_id").
			WithLimit(5, 10).
			WithOrder("id", "desc").
			WithScope(recordset.Condition{"visible": 1}),
	}, user.HasMany)

	post := schemas[1]
	assert.Equal(t, recordset.Keyed, post.Representation)
	assert.Equal(t, "touched", post.UpdatedField)
	assert.Equal(t, []recordset.Relation{recordset.BelongsTo("user").WithFields("id", "user_name")}, post.BelongsTo)

	assert.True(t, schemas[2].NoTable)
	assert.Equal(t, "id", schemas[2].PrimaryKey)

	namer := cfg.Namer()
	assert.Equal(t, "users", namer.TableName("UserEntity"))
	assert.Equal(t, "PostEntity", namer.TargetEntity("posts"))
	assert.Equal(t, "people", namer.TableName("PersonEntity"))
}

func TestRelationForms(t *testing.T) {
	var doc struct {
		Short    []config.Relation `yaml:"short"`
		Explicit []config.Relation `yaml:"explicit"`
		Empty    []config.Relation `yaml:"empty"`
	}
	cfg := `
short: [posts]
explicit: [{posts: {}}]
empty: [{posts: }]
`
	require.NoError(t, decodeInto(cfg, &doc))
	short, err := recordset.ParseRelation(recordset.HasManyKind, doc.Short[0].Name, doc.Short[0].Options)
	require.NoError(t, err)
	explicit, err := recordset.ParseRelation(recordset.HasManyKind, doc.Explicit[0].Name, doc.Explicit[0].Options)
	require.NoError(t, err)
	empty, err := recordset.ParseRelation(recordset.HasManyKind, doc.Empty[0].Name, doc.Empty[0].Options)
	require.NoError(t, err)
	assert.Equal(t, short, explicit)
	assert.Equal(t, short, empty)
}

func decodeInto(doc string, v any) error {
	return yaml.Unmarshal([]byte(doc), v)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown_key", "dialect: sqlite\nentites: []\n", "field entites not found"},
		{"two_key_relation", "entities:\n  - name: A\n    has_many:\n      - {posts: {}, tags: {}}\n", "exactly one key"},
		{"sequence_relation", "entities:\n  - name: A\n    has_many:\n      - [posts]\n", "must be a name or a map"},
		{"options_not_map", "entities:\n  - name: A\n    has_many:\n      - posts: [id]\n", `relation "posts"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("empty_document", func(t *testing.T) {
		cfg, err := config.Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, cfg.Entities)
	})
}

func TestSchemasErrors(t *testing.T) {
	cfg, err := config.Parse([]byte("entities:\n  - name: A\n    representation: xml\n"))
	require.NoError(t, err)
	_, err = cfg.Schemas()
	assert.ErrorContains(t, err, `entity "A"`)

	cfg, err = config.Parse([]byte("entities:\n  - name: A\n    has_many:\n      - posts: {through: tags}\n"))
	require.NoError(t, err)
	_, err = cfg.Schemas()
	assert.ErrorContains(t, err, `option "through"`)
}

func TestDriverOptions(t *testing.T) {
	cfg := &config.Config{SyncTimezone: "UTC", SlowQuery: time.Second}
	opts, err := cfg.DriverOptions(slog.Default())
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.SyncTimezone = "Mars/Olympus"
	_, err = cfg.DriverOptions(slog.Default())
	assert.ErrorContains(t, err, "sync_timezone")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, user_name TEXT);
CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, title TEXT);
INSERT INTO users (id, user_name) VALUES (1, 'alice');
INSERT INTO posts (user_id, title) VALUES (1, 'hello'), (1, 'again');
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	path := filepath.Join(dir, "recordset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dialect: sqlite
dsn: `+dbPath+`
entities:
  - name: UserModel
    has_many: [posts]
  - name: PostModel
    belongs_to: [user]
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	ctx := context.Background()
	client, err := cfg.Open(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	rec, err := client.MustSession("UserModel").With("posts").Find(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.String("user_name"))
	assert.Len(t, rec.Related("posts"), 2)

	t.Run("missing_dialect", func(t *testing.T) {
		_, err := (&config.Config{}).Open(ctx, nil)
		assert.ErrorContains(t, err, "dialect is required")
	})
	t.Run("unknown_table", func(t *testing.T) {
		bad := &config.Config{Dialect: "sqlite", DSN: dbPath, Entities: []config.Entity{{Name: "GhostModel"}}}
		_, err := bad.Open(ctx, nil)
		assert.True(t, recordset.IsConfigurationError(err))
	})
	t.Run("missing_file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(dir, "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
