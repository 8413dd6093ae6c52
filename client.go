// Package recordset is an active-record data access layer over a relational
// store.
//
// Every entity type maps to a table and declares its has-many and
// belongs-to relations once, at Open. A Session is the per-request facade:
// fluent calls (With, WithRecursive, AsArray, Order, Limit) configure exactly
// the next fetch, which runs the query, loads the requested relations and
// clears that configuration again.
//
//	client, err := recordset.Open(ctx, drv, []recordset.Schema{
//	    {Name: "UserModel", HasMany: []recordset.Relation{recordset.HasMany("posts")}},
//	    {Name: "PostModel", BelongsTo: []recordset.Relation{recordset.BelongsTo("user")}},
//	})
//	users, err := client.MustSession("UserModel").With("posts").FindAll(ctx)
//
// A Client is safe for concurrent use. A Session is not: each logical
// request must use its own.
package recordset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/syssam/recordset/dialect"
	"github.com/syssam/recordset/naming"
)

// Client holds the shared, read-only state of the data access layer.
type Client struct {
	driver   dialect.Driver
	registry *Registry
	namer    Namer
	log      *slog.Logger
	now      func() time.Time
	finders  sync.Map // method name -> Finder
}

type options struct {
	namer Namer
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithConventions sets the naming conventions. Defaults to naming.Default().
func WithConventions(n Namer) Option {
	return func(o *options) { o.namer = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock sets the time source of lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open resolves the schemas against the driver and returns a client.
// Unresolvable primary keys and relation targets fail with a
// ConfigurationError.
func Open(ctx context.Context, drv dialect.Driver, schemas []Schema, opts ...Option) (*Client, error) {
	o := options{
		namer: naming.Default(),
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	reg, err := buildRegistry(ctx, drv, o.namer, schemas)
	if err != nil {
		return nil, err
	}
	o.log.DebugContext(ctx, "recordset: client opened", "dialect", drv.Dialect(), "entities", reg.Names())
	return &Client{
		driver:   drv,
		registry: reg,
		namer:    o.namer,
		log:      o.log,
		now:      o.now,
	}, nil
}

// Registry returns the model registry.
func (c *Client) Registry() *Registry { return c.registry }

// Driver returns the underlying driver.
func (c *Client) Driver() dialect.Driver { return c.driver }

// Session starts a session on the named entity with a fresh executor.
func (c *Client) Session(entity string) (*Session, error) {
	m, ok := c.registry.Lookup(entity)
	if !ok {
		return nil, NewConfigurationError(entity, "unknown entity")
	}
	return newSession(c, m, c.driver.Executor()), nil
}

// MustSession is like Session but panics if the entity is unknown.
func (c *Client) MustSession(entity string) *Session {
	s, err := c.Session(entity)
	if err != nil {
		panic(err)
	}
	return s
}

// Close closes the underlying driver.
func (c *Client) Close() error { return c.driver.Close() }
