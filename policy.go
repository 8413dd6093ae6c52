package recordset

import (
	"context"
	"maps"
	"strings"
)

// Op is the kind of a mutation.
type Op uint

// Mutation operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpDelete
)

// Is reports whether o matches any of the operations in x.
func (o Op) Is(x Op) bool { return o&x != 0 }

func (o Op) String() string {
	var names []string
	for _, n := range []struct {
		op   Op
		name string
	}{{OpCreate, "OpCreate"}, {OpUpdate, "OpUpdate"}, {OpDelete, "OpDelete"}} {
		if o.Is(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "Op(0)"
	}
	return strings.Join(names, "|")
}

// Query describes a fetch or count about to run. Rules may narrow it by
// adding conditions to Where.
type Query struct {
	Entity string
	Op     string // facade method, e.g. "FindBy"
	Table  string
	Where  Condition
}

// Mutation describes a write about to run. Rules may narrow updates and
// deletes by adding conditions to Where.
type Mutation struct {
	Entity  string
	Op      Op
	Table   string
	Payload Payload
	Where   Condition
}

// Field returns the value a mutation writes to field, or the value its
// condition requires.
func (m *Mutation) Field(name string) (any, bool) {
	if v, ok := m.Payload[name]; ok {
		return v, true
	}
	v, ok := m.Where[name]
	return v, ok
}

// Policy decides whether operations on an entity may run. A nil error
// allows the operation, any other error denies it. The privacy package
// builds policies from rules.
type Policy interface {
	EvalQuery(context.Context, *Query) error
	EvalMutation(context.Context, *Mutation) error
}

// evalQuery runs the query policy of the model and returns the condition
// the fetch must use.
func (s *Session) evalQuery(ctx context.Context, op, table string, cond Condition) (Condition, error) {
	if s.model.policy == nil {
		return cond, nil
	}
	q := &Query{Entity: s.model.name, Op: op, Table: table, Where: maps.Clone(cond)}
	if q.Where == nil {
		q.Where = Condition{}
	}
	if err := s.model.policy.EvalQuery(ctx, q); err != nil {
		s.log.DebugContext(ctx, "recordset: query denied", "op", op, "table", table, "error", err)
		return nil, NewQueryError(s.model.name, op, err)
	}
	return q.Where, nil
}

// evalMutation runs the mutation policy of the model and returns the
// condition an update or delete must use.
func (s *Session) evalMutation(ctx context.Context, name string, op Op, table string, payload Payload, cond Condition) (Condition, error) {
	if s.model.policy == nil {
		return cond, nil
	}
	m := &Mutation{Entity: s.model.name, Op: op, Table: table, Payload: payload, Where: maps.Clone(cond)}
	if m.Where == nil {
		m.Where = Condition{}
	}
	if err := s.model.policy.EvalMutation(ctx, m); err != nil {
		s.log.DebugContext(ctx, "recordset: mutation denied", "op", name, "table", table, "error", err)
		return nil, NewMutationError(s.model.name, name, err)
	}
	return m.Where, nil
}
