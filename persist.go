package recordset

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// SaveResult reports the outcome of Save.
type SaveResult struct {
	// ID is the generated identifier of an insert, or the primary key the
	// update was applied to.
	ID      any
	Created bool
}

// Save inserts the payload, or updates the row it identifies when it
// carries a non-nil primary key. Lifecycle timestamp columns of a datetime
// or timestamp type are stamped unless the payload sets them. An update
// field set to Skip or false is left untouched.
func (s *Session) Save(ctx context.Context, payload Payload, opts ...QueryOption) (SaveResult, error) {
	q := newQuery(opts)
	table := s.table(q)
	payload = maps.Clone(payload)
	if s.model.beforeSave != nil {
		var err error
		if payload, err = s.model.beforeSave(ctx, payload, table); err != nil {
			return SaveResult{}, NewMutationError(s.model.name, "Save", err)
		}
	}
	if len(payload) == 0 {
		return SaveResult{}, NewValidationError(s.model.name, ErrEmptyPayload)
	}
	types, err := s.client.driver.Inspector().ColumnTypes(ctx, table)
	if err != nil {
		return SaveResult{}, NewQueryError(s.model.name, "Save", err)
	}
	now := s.client.now().Format(time.DateTime)
	pk := s.model.primaryKey
	if id, ok := payload[pk]; ok && id != nil {
		delete(payload, pk)
		field := s.model.updatedField
		switch v, set := payload[field]; {
		case set && v != nil:
			if isSkip(v) || v == false {
				delete(payload, field)
			}
		case isTimeColumn(types[field]):
			payload[field] = now
		}
		stripSkipped(payload)
		if len(payload) == 0 {
			return SaveResult{ID: id}, nil
		}
		if err := s.UpdateByID(ctx, id, payload, opts...); err != nil {
			return SaveResult{}, err
		}
		s.log.DebugContext(ctx, "recordset: saved", "table", table, "id", id, "created", false)
		return SaveResult{ID: id}, nil
	}
	delete(payload, pk)
	field := s.model.createdField
	if v, set := payload[field]; (!set || v == nil) && isTimeColumn(types[field]) {
		payload[field] = now
	}
	stripSkipped(payload)
	id, err := s.Create(ctx, payload, opts...)
	if err != nil {
		return SaveResult{}, err
	}
	s.log.DebugContext(ctx, "recordset: saved", "table", table, "id", id, "created", true)
	return SaveResult{ID: id, Created: true}, nil
}

// Create inserts a single row and returns its generated identifier. The
// identifier is 0 when the stored row has no integer key to report.
func (s *Session) Create(ctx context.Context, payload Payload, opts ...QueryOption) (int64, error) {
	payload = withoutSkipped(payload)
	if len(payload) == 0 {
		return 0, NewValidationError(s.model.name, ErrEmptyPayload)
	}
	table := s.table(newQuery(opts))
	if _, err := s.evalMutation(ctx, "Create", OpCreate, table, payload, nil); err != nil {
		return 0, err
	}
	res, err := s.exec.Insert(ctx, table, payload)
	if err != nil {
		return 0, NewMutationError(s.model.name, "Create", err)
	}
	n, nerr := res.RowsAffected()
	if nerr == nil && n == 0 {
		return 0, NewMutationError(s.model.name, "Create", ErrNotPersisted)
	}
	id, err := res.LastInsertId()
	switch {
	case err == nil:
		return id, nil
	case nerr == nil:
		// The row is stored but its key is not an integer, or the driver
		// does not report one (lib/pq without RETURNING).
		s.log.DebugContext(ctx, "recordset: no integer id for created row", "table", table, "error", err)
		return 0, nil
	default:
		return 0, NewMutationError(s.model.name, "Create", err)
	}
}

// CreateBatch inserts all payloads in one statement.
func (s *Session) CreateBatch(ctx context.Context, payloads []Payload, opts ...QueryOption) error {
	if len(payloads) == 0 {
		return NewValidationError(s.model.name, ErrEmptyPayload)
	}
	table := s.table(newQuery(opts))
	rows := make([]map[string]any, len(payloads))
	for i, p := range payloads {
		if rows[i] = withoutSkipped(p); len(rows[i]) == 0 {
			return NewValidationError(s.model.name, ErrEmptyPayload)
		}
		if _, err := s.evalMutation(ctx, "CreateBatch", OpCreate, table, rows[i], nil); err != nil {
			return err
		}
	}
	res, err := s.exec.InsertBatch(ctx, table, rows)
	if err != nil {
		return NewMutationError(s.model.name, "CreateBatch", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewMutationError(s.model.name, "CreateBatch", ErrNotPersisted)
	}
	return nil
}

// UpdateBy applies payload to the rows matching cond.
func (s *Session) UpdateBy(ctx context.Context, cond Condition, payload Payload, opts ...QueryOption) error {
	return s.update(ctx, "UpdateBy", cond, payload, opts)
}

// UpdateByID applies payload to the row with the given primary key.
func (s *Session) UpdateByID(ctx context.Context, id any, payload Payload, opts ...QueryOption) error {
	return s.update(ctx, "UpdateByID", Condition{s.model.primaryKey: id}, payload, opts)
}

func (s *Session) update(ctx context.Context, op string, cond Condition, payload Payload, opts []QueryOption) error {
	payload = withoutSkipped(payload)
	if len(payload) == 0 {
		return NewValidationError(s.model.name, ErrEmptyPayload)
	}
	table := s.table(newQuery(opts))
	cond, err := s.evalMutation(ctx, op, OpUpdate, table, payload, cond)
	if err != nil {
		return err
	}
	if len(cond) > 0 {
		s.exec.Where(cond)
	}
	if _, err := s.exec.Update(ctx, table, payload); err != nil {
		return NewMutationError(s.model.name, op, err)
	}
	return nil
}

// DeleteBy deletes the rows matching cond.
func (s *Session) DeleteBy(ctx context.Context, cond Condition, opts ...QueryOption) error {
	return s.delete(ctx, "DeleteBy", cond, opts)
}

// DeleteByID deletes the row with the given primary key.
func (s *Session) DeleteByID(ctx context.Context, id any, opts ...QueryOption) error {
	return s.delete(ctx, "DeleteByID", Condition{s.model.primaryKey: id}, opts)
}

func (s *Session) delete(ctx context.Context, op string, cond Condition, opts []QueryOption) error {
	table := s.table(newQuery(opts))
	cond, err := s.evalMutation(ctx, op, OpDelete, table, nil, cond)
	if err != nil {
		return err
	}
	if len(cond) > 0 {
		s.exec.Where(cond)
	}
	if _, err := s.exec.Delete(ctx, table); err != nil {
		return NewMutationError(s.model.name, op, err)
	}
	return nil
}

// CountAll counts the rows matching cond, or every row of the table when
// neither a condition nor directives are given.
func (s *Session) CountAll(ctx context.Context, cond Condition, opts ...QueryOption) (int64, error) {
	q := newQuery(opts)
	table := s.table(q)
	cond, err := s.evalQuery(ctx, "CountAll", table, cond)
	if err != nil {
		return 0, err
	}
	if len(cond) == 0 && len(q.directives) == 0 {
		n, err := s.exec.CountAll(ctx, table)
		if err != nil {
			return 0, NewQueryError(s.model.name, "CountAll", err)
		}
		return n, nil
	}
	if len(cond) > 0 {
		s.exec.Where(cond)
	}
	if err := s.applyDirectives("CountAll", q.directives); err != nil {
		s.exec.Reset()
		return 0, err
	}
	n, err := s.exec.CountAllResults(ctx, table)
	if err != nil {
		return 0, NewQueryError(s.model.name, "CountAll", err)
	}
	return n, nil
}

// CountField counts the non-null values of field in the rows matching
// cond. It is 0 when no row comes back.
func (s *Session) CountField(ctx context.Context, field string, cond Condition, opts ...QueryOption) (int64, error) {
	q := newQuery(opts)
	cond, err := s.evalQuery(ctx, "CountField", s.table(q), cond)
	if err != nil {
		return 0, err
	}
	if len(cond) > 0 {
		s.exec.Where(cond)
	}
	s.exec.Select("COUNT(" + field + ") AS rowcount")
	if err := s.applyDirectives("CountField", q.directives); err != nil {
		s.exec.Reset()
		return 0, err
	}
	row, err := s.exec.FetchOne(ctx, s.table(q))
	if err != nil {
		return 0, NewQueryError(s.model.name, "CountField", err)
	}
	if row == nil {
		return 0, nil
	}
	return cast.ToInt64E(row["rowcount"])
}

// HasID reports whether a row with the given primary key exists.
func (s *Session) HasID(ctx context.Context, id any, opts ...QueryOption) (bool, error) {
	n, err := s.CountAll(ctx, Condition{s.model.primaryKey: id}, Table(s.table(newQuery(opts))))
	return n > 0, err
}

// isTimeColumn reports whether a column type stores a point in time.
func isTimeColumn(typ string) bool {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if i := strings.IndexByte(typ, '('); i >= 0 {
		typ = typ[:i]
	}
	return strings.HasPrefix(typ, "datetime") || strings.HasPrefix(typ, "timestamp")
}

func stripSkipped(p Payload) {
	maps.DeleteFunc(p, func(_ string, v any) bool { return isSkip(v) })
}

func withoutSkipped(p Payload) Payload {
	out := maps.Clone(p)
	stripSkipped(out)
	return out
}
