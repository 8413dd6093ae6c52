package recordset

import (
	"maps"
	"slices"

	"github.com/spf13/cast"
)

// Record is one fetched row together with the relations loaded into it.
//
// Relation data is kept in one canonical shape regardless of the
// representation; Map renders the keyed form.
type Record struct {
	values  map[string]any
	related map[string]any // []*Record for has-many, *Record for belongs-to
	mode    Representation
}

func newRecord(row map[string]any, mode Representation) *Record {
	return &Record{values: row, mode: mode}
}

// Mode returns the representation the record was fetched in.
func (r *Record) Mode() Representation { return r.mode }

// Get returns a column value or loaded relation by name. It returns nil
// when neither exists.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	if v, ok := r.values[name]; ok {
		return v
	}
	return r.related[name]
}

// String returns a column value converted to string.
func (r *Record) String(field string) string {
	return cast.ToString(r.Get(field))
}

// Int64 returns a column value converted to int64.
func (r *Record) Int64(field string) int64 {
	return cast.ToInt64(r.Get(field))
}

// Fields returns the column names of the row, sorted.
func (r *Record) Fields() []string {
	return slices.Sorted(maps.Keys(r.values))
}

// Loaded reports whether the relation was loaded into the record.
func (r *Record) Loaded(relation string) bool {
	_, ok := r.related[relation]
	return ok
}

// Related returns the rows of a loaded has-many relation.
func (r *Record) Related(relation string) []*Record {
	rs, _ := r.related[relation].([]*Record)
	return rs
}

// One returns the row of a loaded belongs-to relation, or nil.
func (r *Record) One(relation string) *Record {
	rec, _ := r.related[relation].(*Record)
	return rec
}

// Map renders the record and its relations as nested maps. Has-many
// relations become []map[string]any, belongs-to relations map[string]any
// or nil.
func (r *Record) Map() map[string]any {
	if r == nil {
		return nil
	}
	m := make(map[string]any, len(r.values)+len(r.related))
	maps.Copy(m, r.values)
	for name, v := range r.related {
		switch v := v.(type) {
		case []*Record:
			list := make([]map[string]any, len(v))
			for i, rec := range v {
				list[i] = rec.Map()
			}
			m[name] = list
		case *Record:
			if v == nil {
				m[name] = nil
			} else {
				m[name] = v.Map()
			}
		}
	}
	return m
}

// Export converts the record at the boundary: keyed records become
// map[string]any, structured records are returned as is.
func (r *Record) Export() any {
	if r.mode == Keyed {
		return r.Map()
	}
	return r
}

func (r *Record) setMany(relation string, rs []*Record) {
	if r.related == nil {
		r.related = make(map[string]any)
	}
	if rs == nil {
		rs = []*Record{}
	}
	r.related[relation] = rs
}

func (r *Record) setOne(relation string, rec *Record) {
	if r.related == nil {
		r.related = make(map[string]any)
	}
	r.related[relation] = rec
}
