package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/syssam/recordset/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue escapes a string value for safe use in SQL.
// It escapes both single quotes (by doubling) and backslashes (for MySQL compatibility).
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	db        *sql.DB
	inspector *Inspector
	stats     *QueryStats
	log       *slog.Logger
}

type config struct {
	log       *slog.Logger
	syncZone  *time.Location
	withStats bool
	statsOpts []StatsOption
}

// Option configures a Driver.
type Option func(*config)

// WithLogger sets the logger of the driver and its executors.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithSyncTimezone aligns the session time zone of every MySQL connection
// with the offset of loc. It is applied once, at Open, through the DSN and
// thus holds for each connection of the pool. Other dialects ignore it.
func WithSyncTimezone(loc *time.Location) Option {
	return func(c *config) { c.syncZone = loc }
}

// WithStats collects query statistics on every statement the driver runs.
func WithStats(opts ...StatsOption) Option {
	return func(c *config) {
		c.withStats = true
		c.statsOpts = append(c.statsOpts, opts...)
	}
}

// Open opens a database and returns a Driver for it.
//
//	drv, err := sql.Open("mysql", dsn, sql.WithSyncTimezone(time.Local))
func Open(driverName, source string, opts ...Option) (*Driver, error) {
	cfg := newConfig(opts)
	if cfg.syncZone != nil && dialect.Normalize(driverName) == dialect.MySQL {
		var err error
		if source, err = syncTimezone(source, cfg.syncZone); err != nil {
			return nil, fmt.Errorf("dialect/sql: sync timezone: %w", err)
		}
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return newDriver(driverName, db, cfg), nil
}

// OpenDB wraps the given database/sql.DB method with a Driver.
func OpenDB(driverName string, db *sql.DB, opts ...Option) *Driver {
	return newDriver(driverName, db, newConfig(opts))
}

func newConfig(opts []Option) *config {
	cfg := &config{log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newDriver(driverName string, db *sql.DB, cfg *config) *Driver {
	d := &Driver{db: db, log: cfg.log}
	d.Conn = Conn{ExecQuerier: db, dialect: dialect.Normalize(driverName)}
	if cfg.withStats {
		sc := NewStatsConn(db, cfg.statsOpts...)
		d.Conn.ExecQuerier, d.stats = sc, sc.QueryStats()
	}
	d.inspector = NewInspector(d.Conn)
	return d
}

// syncTimezone sets the MySQL time_zone session variable of the DSN to the
// current offset of loc.
func syncTimezone(dsn string, loc *time.Location) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["time_zone"] = "'" + zoneOffset(time.Now().In(loc)) + "'"
	return cfg.FormatDSN(), nil
}

// zoneOffset formats the UTC offset of t as "+hh:mm".
func zoneOffset(t time.Time) string {
	_, secs := t.Zone()
	sign := '+'
	if secs < 0 {
		sign, secs = '-', -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, secs%3600/60)
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements the dialect.Driver interface.
func (d *Driver) Dialect() string { return d.dialect }

// Executor implements the dialect.Driver interface.
func (d *Driver) Executor() dialect.Executor {
	return NewExecutor(d.Conn, d.inspector, d.log)
}

// Inspector implements the dialect.Driver interface.
func (d *Driver) Inspector() dialect.Inspector { return d.inspector }

// QueryStats returns the statistics collected by WithStats, or nil.
func (d *Driver) QueryStats() *QueryStats { return d.stats }

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.db.Close() }

// ctxVarsKey is the key used for attaching and reading the context variables.
type ctxVarsKey struct{}

// sessionVars holds sessions variables to set before every statement.
type sessionVars struct {
	vars []struct{ k, v string }
}

// WithVar returns a new context that holds the session variable to be executed before every query.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	sv.vars = append(sv.vars, struct{ k, v string }{k: name, v: value})
	return context.WithValue(ctx, ctxVarsKey{}, sv)
}

// VarFromContext returns the session variable value from the context.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	for _, s := range sv.vars {
		if s.k == name {
			return s.v, true
		}
	}
	return "", false
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn runs statements on an ExecQuerier, applying the session variables
// of the context first.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec executes a statement.
func (c Conn) Exec(ctx context.Context, query string, args []any) (res sql.Result, rerr error) {
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: exec: set session vars: %w", err)
	}
	if cf != nil {
		defer func() { rerr = errors.Join(rerr, cf()) }()
	}
	res, err = ex.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: exec: %w", err)
	}
	return res, nil
}

// Query executes a query. The caller must close the returned rows.
func (c Conn) Query(ctx context.Context, query string, args []any) (ColumnScanner, error) {
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: query: set session vars: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		if cf != nil {
			err = errors.Join(err, cf())
		}
		return nil, fmt.Errorf("dialect/sql: query: %w", err)
	}
	if cf != nil {
		return rowsWithCloser{rows, cf}, nil
	}
	return rows, nil
}

// maySetVars sets the session variables before executing a query.
func (c Conn) maySetVars(ctx context.Context) (ExecQuerier, func() error, error) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return c.ExecQuerier, nil, nil
	}
	var (
		ex    ExecQuerier  // Underlying ExecQuerier.
		cf    func() error // Close function.
		reset []string     // Reset variables.
		seen  = make(map[string]struct{}, len(sv.vars))
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.Tx:
		ex = e
	case interface {
		Conn(context.Context) (*sql.Conn, error)
	}:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, cf = conn, conn.Close
	default:
		return nil, nil, fmt.Errorf("unsupported ExecQuerier type: %T", c.ExecQuerier)
	}
	for _, s := range sv.vars {
		if !isValidIdentifier(s.k) {
			if cf != nil {
				_ = cf()
			}
			return nil, nil, fmt.Errorf("invalid session variable name: %q", s.k)
		}
		if _, ok := seen[s.k]; !ok {
			switch c.dialect {
			case dialect.Postgres:
				reset = append(reset, fmt.Sprintf("RESET %s", s.k))
			case dialect.MySQL:
				reset = append(reset, fmt.Sprintf("SET %s = NULL", s.k))
			}
			seen[s.k] = struct{}{}
		}
		if _, err := ex.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", s.k, escapeStringValue(s.v))); err != nil {
			if cf != nil {
				err = errors.Join(err, cf())
			}
			return nil, nil, err
		}
	}
	// The connection goes back to the pool after the statement, so the
	// variables are reset first, even if ctx was canceled.
	if cls := cf; cf != nil && len(reset) > 0 {
		cf = func() error {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, q := range reset {
				if _, err := ex.ExecContext(cleanupCtx, q); err != nil {
					return errors.Join(err, cls())
				}
			}
			return cls()
		}
	}
	return ex, cf, nil
}

var _ dialect.Driver = (*Driver)(nil)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

// Close closes the underlying ColumnScanner and calls the custom closer.
func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}
