package recordset

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/spf13/cast"

	"github.com/syssam/recordset/dialect"
)

// QueryOption configures a single operation.
type QueryOption interface {
	apply(*query)
}

type query struct {
	fields     []string
	table      string
	directives Directives
}

func newQuery(opts []QueryOption) *query {
	q := &query{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(q)
		}
	}
	return q
}

type fieldsOption []string

func (o fieldsOption) apply(q *query) { q.fields = append(q.fields, o...) }

// Fields restricts the columns a fetch selects.
func Fields(fields ...string) QueryOption { return fieldsOption(fields) }

type tableOption string

func (o tableOption) apply(q *query) { q.table = string(o) }

// Table runs the operation against another table than the entity default.
func Table(name string) QueryOption { return tableOption(name) }

// Directives passes executor calls through to a fetch or count, keyed by
// executor method name: where, or_where, where_in, where_not_in, like,
// select, distinct, group_by, order_by, limit, offset. A value is the
// argument list ([]any) or a single argument.
//
//	s.FindAll(ctx, recordset.Directives{"order_by": []any{"id", "desc"}, "limit": 10})
//
// Any other name is a ConfigurationError, and so is every name that looks
// like a read accessor (get...).
type Directives map[string]any

func (d Directives) apply(q *query) {
	if q.directives == nil {
		q.directives = make(Directives, len(d))
	}
	maps.Copy(q.directives, d)
}

var readAccessor = regexp.MustCompile(`(?i)^get`)

type directiveFunc func(ex dialect.Executor, args []any) error

// directiveTable maps normalized executor method names to the calls they
// make.
var directiveTable = map[string]directiveFunc{
	"where":        whereDirective(dialect.Executor.Where),
	"or_where":     whereDirective(dialect.Executor.OrWhere),
	"where_in":     inDirective(dialect.Executor.WhereIn),
	"where_not_in": inDirective(dialect.Executor.WhereNotIn),
	"like": func(ex dialect.Executor, args []any) error {
		if len(args) != 2 {
			return fmt.Errorf("expected field and match, got %d arguments", len(args))
		}
		field, err := cast.ToStringE(args[0])
		if err != nil {
			return err
		}
		match, err := cast.ToStringE(args[1])
		if err != nil {
			return err
		}
		ex.Like(field, match)
		return nil
	},
	"select": func(ex dialect.Executor, args []any) error {
		fields, err := flattenStrings(args)
		if err != nil {
			return err
		}
		ex.Select(fields...)
		return nil
	},
	"distinct": func(ex dialect.Executor, _ []any) error {
		ex.Distinct()
		return nil
	},
	"group_by": func(ex dialect.Executor, args []any) error {
		fields, err := flattenStrings(args)
		if err != nil {
			return err
		}
		ex.GroupBy(fields...)
		return nil
	},
	"order_by": func(ex dialect.Executor, args []any) error {
		if len(args) == 0 || len(args) > 2 {
			return fmt.Errorf("expected field and optional direction, got %d arguments", len(args))
		}
		field, err := cast.ToStringE(args[0])
		if err != nil {
			return err
		}
		var dir string
		if len(args) == 2 {
			if dir, err = cast.ToStringE(args[1]); err != nil {
				return err
			}
		}
		ex.OrderBy(field, dir)
		return nil
	},
	"limit": func(ex dialect.Executor, args []any) error {
		if len(args) == 0 || len(args) > 2 {
			return fmt.Errorf("expected count and optional offset, got %d arguments", len(args))
		}
		n, err := cast.ToIntE(args[0])
		if err != nil {
			return err
		}
		var off int
		if len(args) == 2 {
			if off, err = cast.ToIntE(args[1]); err != nil {
				return err
			}
		}
		ex.Limit(n, off)
		return nil
	},
	"offset": func(ex dialect.Executor, args []any) error {
		if len(args) != 1 {
			return fmt.Errorf("expected offset, got %d arguments", len(args))
		}
		n, err := cast.ToIntE(args[0])
		if err != nil {
			return err
		}
		ex.Offset(n)
		return nil
	},
}

func whereDirective(where func(dialect.Executor, map[string]any)) directiveFunc {
	return func(ex dialect.Executor, args []any) error {
		switch len(args) {
		case 1:
			cond, err := cast.ToStringMapE(args[0])
			if err != nil {
				return err
			}
			where(ex, cond)
		case 2:
			where(ex, map[string]any{cast.ToString(args[0]): args[1]})
		default:
			return fmt.Errorf("expected a condition or a field and value, got %d arguments", len(args))
		}
		return nil
	}
}

func inDirective(in func(dialect.Executor, string, ...any)) directiveFunc {
	return func(ex dialect.Executor, args []any) error {
		if len(args) < 2 {
			return fmt.Errorf("expected field and values, got %d arguments", len(args))
		}
		values := args[1:]
		if len(values) == 1 {
			if vs, ok := directiveArgs(values[0]); ok {
				values = vs
			}
		}
		in(ex, cast.ToString(args[0]), values...)
		return nil
	}
}

// directiveArgs spreads a []any or []string value into an argument list.
func directiveArgs(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case []string:
		args := make([]any, len(v))
		for i := range v {
			args[i] = v[i]
		}
		return args, true
	}
	return nil, false
}

func flattenStrings(args []any) ([]string, error) {
	var out []string
	for _, a := range args {
		ss, err := toStrings(a)
		if err != nil {
			return nil, err
		}
		out = append(out, ss...)
	}
	return out, nil
}

// applyDirectives validates every directive before applying any, in
// name order.
func (s *Session) applyDirectives(op string, d Directives) error {
	if len(d) == 0 {
		return nil
	}
	type call struct {
		fn   directiveFunc
		args []any
		name string
	}
	calls := make([]call, 0, len(d))
	for _, name := range slices.Sorted(maps.Keys(d)) {
		if readAccessor.MatchString(name) {
			return &ConfigurationError{Entity: s.model.name, Op: op, Option: name, Msg: "read accessors cannot be used as options"}
		}
		fn, ok := directiveTable[s.client.namer.FieldName(name)]
		if !ok {
			return &ConfigurationError{Entity: s.model.name, Op: op, Option: name, Msg: "not an executor method"}
		}
		args, ok := directiveArgs(d[name])
		if !ok && d[name] != nil {
			args = []any{d[name]}
		}
		calls = append(calls, call{fn: fn, args: args, name: name})
	}
	for _, c := range calls {
		if err := c.fn(s.exec, c.args); err != nil {
			return &ConfigurationError{Entity: s.model.name, Op: op, Option: c.name, Msg: err.Error()}
		}
	}
	return nil
}
