package recordset

import (
	"context"
	"maps"
)

// fetchSpec is the effective configuration of one relation fetch.
type fetchSpec struct {
	fields []string
	limit  int
	offset int
	order  []Order
	scope  Condition
}

func defaultSpec(r *relation) fetchSpec {
	return fetchSpec{
		fields: r.Fields,
		limit:  r.Limit,
		offset: r.Offset,
		order:  r.Order,
		scope:  r.Scope,
	}
}

// merge applies per-call overrides over the relation defaults. Scopes are
// merged with the override winning on conflicting keys.
func (f fetchSpec) merge(o Override) fetchSpec {
	if len(o.Fields) > 0 {
		f.fields = o.Fields
	}
	if o.Limit > 0 {
		f.limit, f.offset = o.Limit, o.Offset
	}
	if len(o.Order) > 0 {
		f.order = o.Order
	}
	if len(o.Scope) > 0 {
		scope := make(Condition, len(f.scope)+len(o.Scope))
		maps.Copy(scope, f.scope)
		maps.Copy(scope, o.Scope)
		f.scope = scope
	}
	return f
}

// resolveRequested loads the relations named in relatives into rec. Other
// relations of the model are left untouched.
func (s *Session) resolveRequested(ctx context.Context, rec *Record, table string, relatives map[string]Override) error {
	if rec == nil || len(relatives) == 0 {
		return nil
	}
	for _, r := range s.model.hasMany {
		o, ok := relatives[r.Name]
		if !ok {
			continue
		}
		if err := s.loadMany(ctx, rec, table, r, defaultSpec(r).merge(o), 0); err != nil {
			return err
		}
	}
	for _, r := range s.model.belongsTo {
		o, ok := relatives[r.Name]
		if !ok {
			continue
		}
		fields := r.Fields
		if len(o.Fields) > 0 {
			fields = o.Fields
		}
		if err := s.loadOne(ctx, rec, r, fields); err != nil {
			return err
		}
	}
	return nil
}

// resolveRecursive loads every has-many relation of rec with its defaults
// and passes the decremented budget on to the nested fetches. Belongs-to
// relations are not traversed.
func (s *Session) resolveRecursive(ctx context.Context, rec *Record, table string, depth Depth) error {
	if rec == nil || !depth.active() {
		return nil
	}
	for _, r := range s.model.hasMany {
		if err := s.loadMany(ctx, rec, table, r, defaultSpec(r), depth.next()); err != nil {
			return err
		}
	}
	return nil
}

// loadMany fetches the has-many rows of rec. The foreign key equality is
// added after the scope so that no scope key can replace it. An owner
// without a key value, such as one fetched without its key field, loads an
// empty relation without a query.
func (s *Session) loadMany(ctx context.Context, rec *Record, table string, r *relation, f fetchSpec, depth Depth) error {
	key := rec.Get(s.model.primaryKey)
	if key == nil {
		rec.setMany(r.Name, nil)
		return nil
	}
	fk := r.foreignKey(s.client.namer, table)
	cond := make(Condition, len(f.scope)+1)
	maps.Copy(cond, f.scope)
	cond[fk] = key

	child := s.child(r.target, rec.Mode())
	for _, o := range f.order {
		child.Order(o.Field, o.Direction)
	}
	if f.limit > 0 {
		child.Limit(f.limit, f.offset)
	}
	if depth.active() {
		child.WithRecursive(depth)
	}
	rows, err := child.FindBy(ctx, cond, Fields(f.fields...))
	if err != nil {
		return err
	}
	rec.setMany(r.Name, rows)
	return nil
}

// loadOne fetches the belongs-to row of rec. A missing key loads nil
// without a query.
func (s *Session) loadOne(ctx context.Context, rec *Record, r *relation, fields []string) error {
	key := rec.Get(r.ForeignKey)
	if key == nil {
		rec.setOne(r.Name, nil)
		return nil
	}
	row, err := s.child(r.target, rec.Mode()).Find(ctx, key, Fields(fields...))
	if err != nil {
		return err
	}
	rec.setOne(r.Name, row)
	return nil
}
