package recordset

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/recordset/dialect"
)

// Namer derives default names. naming.Convention implements it.
type Namer interface {
	TableName(entity string) string
	ForeignKey(name string) string
	TargetEntity(relation string) string
	FieldName(fragment string) string
}

// Model is the resolved descriptor of an entity type. It is immutable after
// Open and safe for concurrent use.
type Model struct {
	name           string
	table          string
	primaryKey     string
	hasMany        []*relation
	belongsTo      []*relation
	representation Representation
	createdField   string
	updatedField   string
	beforeSave     func(context.Context, Payload, string) (Payload, error)
	policy         Policy
}

// relation is a Relation whose target has been resolved.
type relation struct {
	Relation
	target *Model
}

// Name returns the entity type name.
func (m *Model) Name() string { return m.name }

// Table returns the default table.
func (m *Model) Table() string { return m.table }

// PrimaryKey returns the primary key field.
func (m *Model) PrimaryKey() string { return m.primaryKey }

// Relations returns the relation definitions of the model: has-many first,
// then belongs-to, each in declaration order.
func (m *Model) Relations() []Relation {
	rs := make([]Relation, 0, len(m.hasMany)+len(m.belongsTo))
	for _, r := range slices.Concat(m.hasMany, m.belongsTo) {
		rs = append(rs, r.Relation)
	}
	return rs
}

// Registry holds the models of a client by entity name.
type Registry struct {
	models map[string]*Model
	names  []string
	namer  Namer
}

// Lookup returns the model registered under name. Names that differ only in
// case or word separation ("PostModel", "post_model") match.
func (r *Registry) Lookup(name string) (*Model, bool) {
	if m, ok := r.models[name]; ok {
		return m, true
	}
	want := r.namer.FieldName(name)
	for _, n := range r.names {
		if r.namer.FieldName(n) == want {
			return r.models[n], true
		}
	}
	return nil, false
}

// Names returns the registered entity names in registration order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// buildRegistry resolves tables, primary keys and relation targets of the
// schemas. Every failure is a ConfigurationError.
func buildRegistry(ctx context.Context, drv dialect.Driver, namer Namer, schemas []Schema) (*Registry, error) {
	reg := &Registry{models: make(map[string]*Model, len(schemas)), namer: namer}
	for _, s := range schemas {
		if s.Name == "" {
			return nil, NewConfigurationError("<unnamed>", "schema has no name")
		}
		if _, ok := reg.models[s.Name]; ok {
			return nil, NewConfigurationError(s.Name, "entity registered twice")
		}
		m, err := newModel(ctx, drv, namer, s)
		if err != nil {
			return nil, err
		}
		reg.models[s.Name] = m
		reg.names = append(reg.names, s.Name)
	}
	for _, s := range schemas {
		m := reg.models[s.Name]
		var err error
		if m.hasMany, err = reg.resolve(s, HasManyKind, s.HasMany); err != nil {
			return nil, err
		}
		if m.belongsTo, err = reg.resolve(s, BelongsToKind, s.BelongsTo); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newModel(ctx context.Context, drv dialect.Driver, namer Namer, s Schema) (*Model, error) {
	m := &Model{
		name:           s.Name,
		table:          s.Table,
		primaryKey:     s.PrimaryKey,
		representation: s.Representation,
		createdField:   s.CreatedField,
		updatedField:   s.UpdatedField,
		beforeSave:     s.BeforeSave,
		policy:         s.Policy,
	}
	if m.table == "" && !s.NoTable {
		m.table = namer.TableName(s.Name)
	}
	if m.representation == 0 {
		m.representation = Structured
	}
	if m.createdField == "" {
		m.createdField = DefaultCreatedField
	}
	if m.updatedField == "" {
		m.updatedField = DefaultUpdatedField
	}
	if m.primaryKey == "" && m.table != "" {
		key, err := fetchPrimaryKey(ctx, drv.Executor(), drv.Inspector(), m.table)
		if err != nil {
			return nil, &ConfigurationError{Entity: s.Name, Msg: fmt.Sprintf("introspect primary key of %q: %v", m.table, err)}
		}
		m.primaryKey = key
	}
	if m.primaryKey == "" {
		return nil, NewConfigurationError(s.Name, "set PrimaryKey to use key dependent methods")
	}
	return m, nil
}

func (r *Registry) resolve(s Schema, kind RelationKind, defs []Relation) ([]*relation, error) {
	rels := make([]*relation, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, NewConfigurationError(s.Name, fmt.Sprintf("%s relation has no name", kind))
		}
		d.Kind = kind
		if d.Target == "" {
			d.Target = r.namer.TargetEntity(d.Name)
		}
		if kind == BelongsToKind && d.ForeignKey == "" {
			d.ForeignKey = r.namer.ForeignKey(d.Name)
		}
		target, ok := r.Lookup(d.Target)
		if !ok {
			return nil, NewConfigurationError(s.Name, fmt.Sprintf("relation %q targets unknown entity %q", d.Name, d.Target))
		}
		rels = append(rels, &relation{Relation: d, target: target})
	}
	return rels, nil
}

// foreignKey returns the key of a has-many relation. Without an explicit
// key it derives from the table the owner row was read from.
func (r *relation) foreignKey(namer Namer, ownerTable string) string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	return namer.ForeignKey(ownerTable)
}
