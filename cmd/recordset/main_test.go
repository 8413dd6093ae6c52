package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// setup creates a SQLite database and a configuration file pointing at it.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, user_name TEXT NOT NULL);
CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, title TEXT, status TEXT);
INSERT INTO users (id, user_name) VALUES (1, 'alice'), (2, 'bob');
INSERT INTO posts (user_id, title, status) VALUES (1, 'hello', 'published'), (1, 'draft one', 'draft'), (2, 'bobs', 'published');
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	path := filepath.Join(dir, "recordset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dialect: sqlite
dsn: `+dbPath+`
entities:
  - name: UserModel
    has_many:
      - posts: {order: [id, asc]}
  - name: PostModel
    belongs_to: [user]
`), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, "-c", cfg, "inspect")
	require.NoError(t, err)
	var names []string
	require.NoError(t, yaml.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"UserModel", "PostModel"}, names)

	out, err = run(t, "-c", cfg, "inspect", "PostModel")
	require.NoError(t, err)
	var info entityInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "posts", info.Table)
	assert.Equal(t, "id", info.PrimaryKey)
	require.Len(t, info.Relations, 1)
	assert.Equal(t, relationInfo{Name: "user", Kind: "belongs_to", Target: "UserModel", ForeignKey: "user_id"}, info.Relations[0])
	require.Len(t, info.Columns, 4)
	assert.Equal(t, columnInfo{Name: "id", Type: "integer", PrimaryKey: true, Nullable: true}, info.Columns[0])

	_, err = run(t, "-c", cfg, "inspect", "GhostModel")
	assert.ErrorContains(t, err, "unknown entity")
}

func TestFind(t *testing.T) {
	cfg := setup(t)

	t.Run("by_id_with_relation", func(t *testing.T) {
		out, err := run(t, "-c", cfg, "find", "UserModel", "1", "--with", "posts")
		require.NoError(t, err)
		var rec map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
		assert.Equal(t, "alice", rec["user_name"])
		posts, ok := rec["posts"].([]any)
		require.True(t, ok)
		require.Len(t, posts, 2)
		assert.Equal(t, "hello", posts[0].(map[string]any)["title"])
	})

	t.Run("by_condition", func(t *testing.T) {
		out, err := run(t, "-c", cfg, "find", "PostModel", "-w", "status=published", "--order", "id:desc", "--fields", "id,title")
		require.NoError(t, err)
		var recs []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &recs))
		assert.Equal(t, []map[string]any{{"id": 3, "title": "bobs"}, {"id": 1, "title": "hello"}}, recs)
	})

	t.Run("first", func(t *testing.T) {
		out, err := run(t, "-c", cfg, "find", "PostModel", "--first", "-w", "user_id=2", "--with", "user")
		require.NoError(t, err)
		var rec map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
		assert.Equal(t, "bobs", rec["title"])
		assert.Equal(t, "bob", rec["user"].(map[string]any)["user_name"])
	})

	t.Run("missing", func(t *testing.T) {
		_, err := run(t, "-c", cfg, "find", "UserModel", "99")
		assert.ErrorContains(t, err, "no UserModel record found")
	})

	t.Run("limit", func(t *testing.T) {
		out, err := run(t, "-c", cfg, "find", "PostModel", "--order", "id", "-l", "1", "--offset", "1")
		require.NoError(t, err)
		var recs []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &recs))
		require.Len(t, recs, 1)
		assert.Equal(t, 2, recs[0]["id"])
	})
}

func TestCount(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, "-c", cfg, "count", "PostModel")
	require.NoError(t, err)
	assert.Equal(t, "count: 3\n", out)

	out, err = run(t, "-c", cfg, "count", "PostModel", "-w", "user_id=1", "--field", "title")
	require.NoError(t, err)
	assert.Equal(t, "count: 2\n", out)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "inspect")
	assert.ErrorContains(t, err, "failed to load config")
}
