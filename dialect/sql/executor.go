package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/spf13/cast"

	"github.com/syssam/recordset/dialect"
)

// Executor is a dialect.Executor on squirrel. Builder calls accumulate
// until the next terminal call, which resets them whatever its outcome.
type Executor struct {
	conn    Conn
	insp    *Inspector
	log     *slog.Logger
	sb      squirrel.StatementBuilderType
	conds   []clause
	columns []string
	groupBy []string
	orders  []string
	limit   uint64
	offset  uint64
	hasLim  bool
	hasOff  bool
	unique  bool
}

type clause struct {
	or   bool
	expr squirrel.Sqlizer
}

// NewExecutor returns an executor on conn.
func NewExecutor(conn Conn, insp *Inspector, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	var format squirrel.PlaceholderFormat = squirrel.Question
	if conn.dialect == dialect.Postgres {
		format = squirrel.Dollar
	}
	return &Executor{
		conn: conn,
		insp: insp,
		log:  log,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(format),
	}
}

// Where adds the condition, joined with AND.
func (e *Executor) Where(cond map[string]any) {
	if expr := condition(cond); expr != nil {
		e.conds = append(e.conds, clause{expr: expr})
	}
}

// OrWhere adds the condition, joined with OR.
func (e *Executor) OrWhere(cond map[string]any) {
	if expr := condition(cond); expr != nil {
		e.conds = append(e.conds, clause{or: true, expr: expr})
	}
}

// WhereIn restricts field to values.
func (e *Executor) WhereIn(field string, values ...any) {
	e.conds = append(e.conds, clause{expr: squirrel.Eq{field: values}})
}

// WhereNotIn excludes values from field.
func (e *Executor) WhereNotIn(field string, values ...any) {
	e.conds = append(e.conds, clause{expr: squirrel.NotEq{field: values}})
}

// Like matches field against %match%.
func (e *Executor) Like(field, match string) {
	e.conds = append(e.conds, clause{expr: squirrel.Like{field: "%" + match + "%"}})
}

// Select adds columns to the projection. Without any, all columns are selected.
func (e *Executor) Select(fields ...string) { e.columns = append(e.columns, fields...) }

// Distinct selects distinct rows.
func (e *Executor) Distinct() { e.unique = true }

// GroupBy groups the rows by fields.
func (e *Executor) GroupBy(fields ...string) { e.groupBy = append(e.groupBy, fields...) }

// OrderBy orders the rows by field. The direction "random" shuffles them.
func (e *Executor) OrderBy(field, direction string) {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "ASC":
		e.orders = append(e.orders, field+" ASC")
	case "DESC":
		e.orders = append(e.orders, field+" DESC")
	case "RANDOM":
		if e.conn.dialect == dialect.MySQL {
			e.orders = append(e.orders, "RAND()")
		} else {
			e.orders = append(e.orders, "RANDOM()")
		}
	default:
		e.orders = append(e.orders, field)
	}
}

// Limit limits the rows to count, starting at offset. A count of 0 leaves
// the rows unlimited.
func (e *Executor) Limit(count, offset int) {
	if count > 0 {
		e.limit, e.hasLim = uint64(count), true
	}
	e.Offset(offset)
}

// Offset skips the first offset rows.
func (e *Executor) Offset(offset int) {
	if offset > 0 {
		e.offset, e.hasOff = uint64(offset), true
	}
}

// Reset clears the builder state.
func (e *Executor) Reset() {
	e.conds, e.columns, e.groupBy, e.orders = nil, nil, nil, nil
	e.limit, e.offset = 0, 0
	e.hasLim, e.hasOff, e.unique = false, false, false
}

// Platform returns the dialect of the connection.
func (e *Executor) Platform() string { return e.conn.dialect }

// FetchOne returns the first matching row, or nil.
func (e *Executor) FetchOne(ctx context.Context, table string) (map[string]any, error) {
	defer e.Reset()
	e.limit, e.hasLim = 1, true
	rows, err := e.fetch(ctx, table)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FetchMany returns all matching rows.
func (e *Executor) FetchMany(ctx context.Context, table string) ([]map[string]any, error) {
	defer e.Reset()
	return e.fetch(ctx, table)
}

func (e *Executor) fetch(ctx context.Context, table string) ([]map[string]any, error) {
	query, args, err := e.selectBuilder(table).ToSql()
	if err != nil {
		return nil, err
	}
	return e.query(ctx, query, args)
}

func (e *Executor) selectBuilder(table string) squirrel.SelectBuilder {
	columns := e.columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b := e.sb.Select(columns...).From(table)
	if e.unique {
		b = b.Distinct()
	}
	if expr := e.where(); expr != nil {
		b = b.Where(expr)
	}
	if len(e.groupBy) > 0 {
		b = b.GroupBy(e.groupBy...)
	}
	if len(e.orders) > 0 {
		b = b.OrderBy(e.orders...)
	}
	if e.hasLim {
		b = b.Limit(e.limit)
	}
	if e.hasOff {
		b = b.Offset(e.offset)
	}
	return b
}

// where folds the clauses left to right. Each OR clause joins everything
// before it.
func (e *Executor) where() squirrel.Sqlizer {
	var expr squirrel.Sqlizer
	for _, c := range e.conds {
		switch {
		case expr == nil:
			expr = c.expr
		case c.or:
			expr = squirrel.Or{expr, c.expr}
		default:
			expr = squirrel.And{expr, c.expr}
		}
	}
	return expr
}

// Insert inserts one row. On Postgres the generated key is read back with
// RETURNING.
func (e *Executor) Insert(ctx context.Context, table string, payload map[string]any) (sql.Result, error) {
	defer e.Reset()
	columns := slices.Sorted(maps.Keys(payload))
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = payload[c]
	}
	b := e.sb.Insert(table).Columns(columns...).Values(values...)
	if e.conn.dialect == dialect.Postgres {
		if pk, err := e.insp.PrimaryKeyField(ctx, table); err == nil && pk != "" {
			return e.insertReturning(ctx, b.Suffix("RETURNING "+dialect.QuoteIdent(dialect.Postgres, pk)))
		}
	}
	return e.exec(ctx, b)
}

func (e *Executor) insertReturning(ctx context.Context, b squirrel.InsertBuilder) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := e.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return insertResult{}, nil
	}
	var id any
	for _, v := range rows[0] {
		id = v
	}
	return insertResult{id: id, affected: 1}, nil
}

// InsertBatch inserts all rows in one statement. The columns are the union
// of the payload keys; missing values are inserted as NULL.
func (e *Executor) InsertBatch(ctx context.Context, table string, payloads []map[string]any) (sql.Result, error) {
	defer e.Reset()
	if len(payloads) == 0 {
		return nil, fmt.Errorf("dialect/sql: insert batch into %s: no rows", table)
	}
	seen := make(map[string]struct{})
	for _, p := range payloads {
		for k := range p {
			seen[k] = struct{}{}
		}
	}
	columns := slices.Sorted(maps.Keys(seen))
	b := e.sb.Insert(table).Columns(columns...)
	for _, p := range payloads {
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = p[c]
		}
		b = b.Values(values...)
	}
	return e.exec(ctx, b)
}

// Update applies payload to the rows matching the accumulated conditions.
func (e *Executor) Update(ctx context.Context, table string, payload map[string]any) (sql.Result, error) {
	defer e.Reset()
	if len(payload) == 0 {
		return nil, fmt.Errorf("dialect/sql: update %s: no columns", table)
	}
	b := e.sb.Update(table)
	for _, c := range slices.Sorted(maps.Keys(payload)) {
		b = b.Set(c, payload[c])
	}
	if expr := e.where(); expr != nil {
		b = b.Where(expr)
	}
	return e.exec(ctx, b)
}

// Delete deletes the rows matching the accumulated conditions.
func (e *Executor) Delete(ctx context.Context, table string) (sql.Result, error) {
	defer e.Reset()
	b := e.sb.Delete(table)
	if expr := e.where(); expr != nil {
		b = b.Where(expr)
	}
	return e.exec(ctx, b)
}

// CountAll counts every row of table, ignoring the builder state.
func (e *Executor) CountAll(ctx context.Context, table string) (int64, error) {
	e.Reset()
	return e.count(ctx, e.sb.Select("COUNT(*) AS numrows").From(table))
}

// CountAllResults counts the rows the accumulated state would fetch.
// Orders and windows do not apply.
func (e *Executor) CountAllResults(ctx context.Context, table string) (int64, error) {
	defer e.Reset()
	e.orders, e.hasLim, e.hasOff = nil, false, false
	if e.unique || len(e.groupBy) > 0 {
		return e.count(ctx, e.sb.Select("COUNT(*) AS numrows").FromSelect(e.selectBuilder(table), "counted"))
	}
	b := e.sb.Select("COUNT(*) AS numrows").From(table)
	if expr := e.where(); expr != nil {
		b = b.Where(expr)
	}
	return e.count(ctx, b)
}

func (e *Executor) count(ctx context.Context, b squirrel.SelectBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := e.query(ctx, query, args)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return cast.ToInt64E(rows[0]["numrows"])
}

// RawQuery runs query verbatim.
func (e *Executor) RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return e.query(ctx, query, args)
}

func (e *Executor) exec(ctx context.Context, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	e.log.DebugContext(ctx, "dialect/sql: exec", "query", query, "args", args)
	res, err := e.conn.Exec(ctx, query, args)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (e *Executor) query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	e.log.DebugContext(ctx, "dialect/sql: query", "query", query, "args", args)
	rows, err := e.conn.Query(ctx, query, args)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanMaps(rows)
}

// scanMaps scans every row into a map keyed by column name. Byte slices
// are returned as strings.
func scanMaps(rows ColumnScanner) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				m[c] = string(b)
			} else {
				m[c] = values[i]
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// condition converts a condition map into a squirrel expression. Keys may
// end in an operator: "age >", "name !=", "title LIKE".
func condition(cond map[string]any) squirrel.Sqlizer {
	if len(cond) == 0 {
		return nil
	}
	and := make(squirrel.And, 0, len(cond))
	for _, key := range slices.Sorted(maps.Keys(cond)) {
		field, op := splitOperator(key)
		v := cond[key]
		switch op {
		case ">":
			and = append(and, squirrel.Gt{field: v})
		case ">=":
			and = append(and, squirrel.GtOrEq{field: v})
		case "<":
			and = append(and, squirrel.Lt{field: v})
		case "<=":
			and = append(and, squirrel.LtOrEq{field: v})
		case "!=", "<>":
			and = append(and, squirrel.NotEq{field: v})
		case "LIKE":
			and = append(and, squirrel.Like{field: v})
		case "NOT LIKE":
			and = append(and, squirrel.NotLike{field: v})
		default:
			and = append(and, squirrel.Eq{field: v})
		}
	}
	if len(and) == 1 {
		return and[0]
	}
	return and
}

var operators = []string{"NOT LIKE", "LIKE", ">=", "<=", "!=", "<>", ">", "<", "="}

func splitOperator(key string) (field, op string) {
	key = strings.TrimSpace(key)
	upper := strings.ToUpper(key)
	for _, o := range operators {
		if strings.HasSuffix(upper, o) {
			field = strings.TrimSpace(key[:len(key)-len(o)])
			if field == "" {
				break
			}
			// "LIKE" must be its own word.
			if strings.HasSuffix(o, "LIKE") && !strings.HasSuffix(key[:len(key)-len(o)], " ") {
				continue
			}
			return field, o
		}
	}
	return key, ""
}

// insertResult is the sql.Result of an INSERT ... RETURNING statement.
type insertResult struct {
	id       any
	affected int64
}

func (r insertResult) LastInsertId() (int64, error) { return cast.ToInt64E(r.id) }

func (r insertResult) RowsAffected() (int64, error) { return r.affected, nil }

var _ dialect.Executor = (*Executor)(nil)
