package recordset

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syssam/recordset/dialect"
)

// Session is the record access facade of one entity for one logical unit of
// work. The configuring methods are chainable and apply to the next fetch
// only. A Session must not be shared between goroutines.
type Session struct {
	client *Client
	model  *Model
	exec   dialect.Executor
	state  requestState
	log    *slog.Logger
}

func newSession(c *Client, m *Model, exec dialect.Executor) *Session {
	return &Session{
		client: c,
		model:  m,
		exec:   exec,
		log:    c.log.With("entity", m.name, "session", uuid.NewString()),
	}
}

// child returns a session on a related model sharing the executor. The
// relation rows are fetched in the owner's representation.
func (s *Session) child(m *Model, mode Representation) *Session {
	c := &Session{
		client: s.client,
		model:  m,
		exec:   s.exec,
		log:    s.log.With("relation_entity", m.name),
	}
	c.state.setRepresentation(mode)
	return c
}

// Model returns the model of the session.
func (s *Session) Model() *Model { return s.model }

// With requests a relation for the next fetch. Calls for distinct relations
// accumulate; a repeated call for the same relation replaces it.
func (s *Session) With(relation string, o ...Override) *Session {
	var ov Override
	if len(o) > 0 {
		ov = o[0]
	}
	s.state.setRelative(relation, ov)
	return s
}

// WithRecursive loads every has-many relation of the next fetch recursively,
// depth hops deep, or without limit for Unbounded.
func (s *Session) WithRecursive(depth Depth) *Session {
	s.state.setRecursion(depth)
	return s
}

// AsArray makes the next fetch return keyed records.
func (s *Session) AsArray() *Session {
	s.state.setRepresentation(Keyed)
	return s
}

// AsObject makes the next fetch return structured records.
func (s *Session) AsObject() *Session {
	s.state.setRepresentation(Structured)
	return s
}

// Order orders the rows of the next fetch.
func (s *Session) Order(field, direction string) *Session {
	s.state.addOrder(Order{Field: field, Direction: direction})
	return s
}

// Limit limits the rows of the next fetch.
func (s *Session) Limit(count, offset int) *Session {
	s.state.setWindow(count, offset)
	return s
}

// Find returns the record with the given primary key, or nil.
func (s *Session) Find(ctx context.Context, id any, opts ...QueryOption) (*Record, error) {
	q := newQuery(opts)
	key := s.table(q) + "." + s.model.primaryKey
	return s.fetchOne(ctx, "Find", Condition{key: id}, q)
}

// FindAll returns every record.
func (s *Session) FindAll(ctx context.Context, opts ...QueryOption) ([]*Record, error) {
	return s.fetch(ctx, "FindAll", nil, newQuery(opts), false)
}

// FindBy returns the records matching cond.
func (s *Session) FindBy(ctx context.Context, cond Condition, opts ...QueryOption) ([]*Record, error) {
	return s.fetch(ctx, "FindBy", cond, newQuery(opts), false)
}

// FindOneBy returns the first record matching cond, or nil.
func (s *Session) FindOneBy(ctx context.Context, cond Condition, opts ...QueryOption) (*Record, error) {
	return s.fetchOne(ctx, "FindOneBy", cond, newQuery(opts))
}

// FindValue returns a single column of the first record matching cond, or
// nil.
func (s *Session) FindValue(ctx context.Context, field string, cond Condition, opts ...QueryOption) (any, error) {
	q := newQuery(opts)
	q.fields = []string{field}
	rec, err := s.fetchOne(ctx, "FindValue", cond, q)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Get(field), nil
}

func (s *Session) fetchOne(ctx context.Context, op string, cond Condition, q *query) (*Record, error) {
	recs, err := s.fetch(ctx, op, cond, q, true)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// fetch runs one fetch operation. The one-shot state is drained up front so
// that it is discarded whatever the outcome.
func (s *Session) fetch(ctx context.Context, op string, cond Condition, q *query, one bool) ([]*Record, error) {
	p := s.state.drain()
	table := s.table(q)
	cond, err := s.evalQuery(ctx, op, table, cond)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(op, cond, q, p); err != nil {
		s.exec.Reset()
		return nil, err
	}
	var rows []map[string]any
	if one {
		var row map[string]any
		if row, err = s.exec.FetchOne(ctx, table); row != nil {
			rows = []map[string]any{row}
		}
	} else {
		rows, err = s.exec.FetchMany(ctx, table)
	}
	if err != nil {
		return nil, NewQueryError(s.model.name, op, err)
	}
	mode := p.mode
	if mode == 0 {
		mode = s.model.representation
	}
	s.log.DebugContext(ctx, "recordset: fetch", "op", op, "table", table, "rows", len(rows),
		"mode", mode, "depth", int(p.depth), "relations", len(p.relatives))
	recs := make([]*Record, len(rows))
	for i, row := range rows {
		rec := newRecord(row, mode)
		if err := s.resolveRecursive(ctx, rec, table, p.depth); err != nil {
			return nil, err
		}
		if err := s.resolveRequested(ctx, rec, table, p.relatives); err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	return recs, nil
}

// prepare forwards the pending directives, the condition, the projection and
// the pass-through options to the executor.
func (s *Session) prepare(op string, cond Condition, q *query, p pending) error {
	for _, o := range p.orders {
		s.exec.OrderBy(o.Field, o.Direction)
	}
	if p.window != nil {
		s.exec.Limit(p.window.limit, p.window.offset)
	}
	if len(cond) > 0 {
		s.exec.Where(cond)
	}
	if len(q.fields) > 0 {
		s.exec.Select(q.fields...)
	}
	return s.applyDirectives(op, q.directives)
}

// table returns the table of an operation: the Table option or the entity
// default.
func (s *Session) table(q *query) string {
	if q.table != "" {
		return q.table
	}
	return s.model.table
}
