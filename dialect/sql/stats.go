package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats counts the statements run through a StatsConn. It is safe for
// concurrent use.
type QueryStats struct {
	queries atomic.Int64
	execs   atomic.Int64
	errors  atomic.Int64
	slow    atomic.Int64
	elapsed atomic.Int64 // nanoseconds

	mu           sync.Mutex
	slowest      time.Duration
	slowestQuery string
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	s.mu.Lock()
	slowest, query := s.slowest, s.slowestQuery
	s.mu.Unlock()
	return StatsSnapshot{
		TotalQueries:  s.queries.Load(),
		TotalExecs:    s.execs.Load(),
		TotalDuration: time.Duration(s.elapsed.Load()),
		SlowQueries:   s.slow.Load(),
		Errors:        s.errors.Load(),
		Slowest:       slowest,
		SlowestQuery:  query,
	}
}

// Reset zeroes the counters.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.errors, &s.slow, &s.elapsed} {
		c.Store(0)
	}
	s.mu.Lock()
	s.slowest, s.slowestQuery = 0, ""
	s.mu.Unlock()
}

func (s *QueryStats) observe(query string, d time.Duration, isQuery, failed, slow bool) {
	if isQuery {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.elapsed.Add(int64(d))
	if failed {
		s.errors.Add(1)
	}
	if slow {
		s.slow.Add(1)
	}
	s.mu.Lock()
	if d > s.slowest {
		s.slowest, s.slowestQuery = d, query
	}
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	// Slowest is the longest statement seen, SlowestQuery its text.
	Slowest      time.Duration
	SlowestQuery string
}

// AvgQueryDuration returns the mean duration of all statements.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	if n := s.TotalQueries + s.TotalExecs; n > 0 {
		return s.TotalDuration / time.Duration(n)
	}
	return 0
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d slowest=%s",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(), s.SlowQueries, s.Errors, s.Slowest)
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsConn is an ExecQuerier that times every statement it forwards.
type StatsConn struct {
	ExecQuerier
	stats     *QueryStats
	threshold time.Duration
	hooks     []SlowQueryHook
}

// StatsOption configures a StatsConn.
type StatsOption func(*StatsConn)

// WithSlowThreshold sets the duration above which a statement is slow.
// Defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsConn) { s.threshold = d }
}

// WithSlowQueryHook adds a callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsConn) { s.hooks = append(s.hooks, hook) }
}

// WithSlowQueryLog logs slow statements at Warn level to l, or to the
// default logger when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, d time.Duration) {
		l.WarnContext(ctx, "dialect/sql: slow query", "duration", d, "query", query, "args", args)
	})
}

// NewStatsConn wraps ex.
//
//	conn := sql.NewStatsConn(db, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog(nil))
func NewStatsConn(ex ExecQuerier, opts ...StatsOption) *StatsConn {
	s := &StatsConn{ExecQuerier: ex, stats: &QueryStats{}, threshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the connection.
func (s *StatsConn) QueryStats() *QueryStats { return s.stats }

// QueryContext runs and times a query.
func (s *StatsConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.ExecQuerier.QueryContext(ctx, query, args...)
	s.record(ctx, query, args, time.Since(start), true, err)
	return rows, err
}

// ExecContext runs and times a statement.
func (s *StatsConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := s.ExecQuerier.ExecContext(ctx, query, args...)
	s.record(ctx, query, args, time.Since(start), false, err)
	return res, err
}

// Conn returns a dedicated connection of the wrapped database. Statements on
// it bypass the statistics.
func (s *StatsConn) Conn(ctx context.Context) (*sql.Conn, error) {
	db, ok := s.ExecQuerier.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: %T does not hand out connections", s.ExecQuerier)
	}
	return db.Conn(ctx)
}

func (s *StatsConn) record(ctx context.Context, query string, args []any, d time.Duration, isQuery bool, err error) {
	slow := d > s.threshold
	s.stats.observe(query, d, isQuery, err != nil, slow)
	if !slow {
		return
	}
	for _, hook := range s.hooks {
		hook(ctx, query, args, d)
	}
}
