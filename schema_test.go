package recordset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/recordset"
)

func TestParseRelation(t *testing.T) {
	short, err := recordset.ParseRelation(recordset.HasManyKind, "posts", nil)
	require.NoError(t, err)
	explicit, err := recordset.ParseRelation(recordset.HasManyKind, "posts", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, short, explicit)
	assert.Equal(t, recordset.HasMany("posts"), short)

	r, err := recordset.ParseRelation(recordset.HasManyKind, "comments", map[string]any{
		"foreign_key": "author_id",
		"model":       "NoteModel",
		"fields":      []any{"id", "body"},
		"limit":       []any{5, 10},
		"order":       []any{"id", "desc"},
		"scope":       map[string]any{"visible": 1},
	})
	require.NoError(t, err)
	want := recordset.HasMany("comments").
		WithForeignKey("author_id").
		WithTarget("NoteModel").
		WithFields("id", "body").
		WithLimit(5, 10).
		WithOrder("id", "desc").
		WithScope(recordset.Condition{"visible": 1})
	assert.Equal(t, want, r)

	r, err = recordset.ParseRelation(recordset.BelongsToKind, "author", map[string]any{
		"target": "UserModel",
		"fields": "name",
		"limit":  3,
		"order":  []any{"name", []any{"id", "desc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "UserModel", r.Target)
	assert.Equal(t, []string{"name"}, r.Fields)
	assert.Equal(t, 3, r.Limit)
	assert.Equal(t, []recordset.Order{{Field: "name"}, {Field: "id", Direction: "desc"}}, r.Order)

	_, err = recordset.ParseRelation(recordset.HasManyKind, "posts", map[string]any{"through": "x"})
	assert.Error(t, err)
	_, err = recordset.ParseRelation(recordset.HasManyKind, "posts", map[string]any{"limit": "many"})
	assert.Error(t, err)
}

func TestParseRepresentation(t *testing.T) {
	tests := []struct {
		in   string
		want recordset.Representation
	}{
		{"", recordset.Structured},
		{"object", recordset.Structured},
		{"Structured", recordset.Structured},
		{"array", recordset.Keyed},
		{"keyed", recordset.Keyed},
	}
	for _, tt := range tests {
		got, err := recordset.ParseRepresentation(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := recordset.ParseRepresentation("xml")
	assert.Error(t, err)
	assert.Equal(t, "keyed", recordset.Keyed.String())
	assert.Equal(t, "unset", recordset.Representation(0).String())
}

func TestRelationBuildersDoNotAlias(t *testing.T) {
	base := recordset.HasMany("posts").WithOrder("id", "asc")
	a := base.WithOrder("title", "desc")
	b := base.WithOrder("status", "")
	assert.Len(t, base.Order, 1)
	assert.Equal(t, "title", a.Order[1].Field)
	assert.Equal(t, "status", b.Order[1].Field)
}
