// Package config loads recordset clients from YAML files.
//
//	dialect: mysql
//	dsn: ${APP_DSN}
//	sync_timezone: Local
//	conventions:
//	  model_suffix: Model
//	timestamps:
//	  created: created_at
//	  updated: updated_at
//	entities:
//	  - name: UserModel
//	    has_many:
//	      - posts
//	      - comments: {foreign_key: author_id, limit: 5, order: [id, desc]}
//	  - name: PostModel
//	    belongs_to: [user]
//
// Relation entries are either a bare name or a single-key map from the name
// to its options. Both forms produce the same recordset.Relation.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/recordset"
	"github.com/syssam/recordset/dialect"
	"github.com/syssam/recordset/dialect/sql"
	"github.com/syssam/recordset/naming"
)

// Config is the file configuration of a client.
type Config struct {
	Dialect string `yaml:"dialect"`
	// DSN is expanded against the environment.
	DSN string `yaml:"dsn"`
	// SyncTimezone names the location whose offset MySQL sessions use,
	// e.g. "Local" or "Europe/Berlin". Empty leaves the server default.
	SyncTimezone string        `yaml:"sync_timezone"`
	SlowQuery    time.Duration `yaml:"slow_query"`
	Conventions  Conventions   `yaml:"conventions"`
	Timestamps   Timestamps    `yaml:"timestamps"`
	Entities     []Entity      `yaml:"entities"`
}

// Conventions configures the naming rules.
type Conventions struct {
	// ModelSuffix is a pointer so that an explicit "" disables the default.
	ModelSuffix *string           `yaml:"model_suffix"`
	Separator   string            `yaml:"separator"`
	KeySuffix   string            `yaml:"key_suffix"`
	Irregular   map[string]string `yaml:"irregular"`
	Uncountable []string          `yaml:"uncountable"`
}

// Timestamps names the lifecycle columns of every entity.
type Timestamps struct {
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
}

// Entity configures one entity type.
type Entity struct {
	Name           string     `yaml:"name"`
	Table          string     `yaml:"table"`
	NoTable        bool       `yaml:"no_table"`
	PrimaryKey     string     `yaml:"primary_key"`
	Representation string     `yaml:"representation"`
	Timestamps     Timestamps `yaml:"timestamps"`
	HasMany        []Relation `yaml:"has_many"`
	BelongsTo      []Relation `yaml:"belongs_to"`
}

// Relation is one entry of a relation list.
type Relation struct {
	Name    string
	Options map[string]any
}

// UnmarshalYAML accepts a scalar name or a map with a single name key.
func (r *Relation) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.Name, r.Options = node.Value, nil
		if r.Name == "" {
			return fmt.Errorf("line %d: empty relation name", node.Line)
		}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: relation map must have exactly one key, got %d", node.Line, len(node.Content)/2)
		}
		key, value := node.Content[0], node.Content[1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return fmt.Errorf("line %d: relation name must be a string", key.Line)
		}
		var opts map[string]any
		if err := value.Decode(&opts); err != nil {
			return fmt.Errorf("line %d: relation %q: %w", value.Line, key.Value, err)
		}
		r.Name, r.Options = key.Value, opts
		return nil
	default:
		return fmt.Errorf("line %d: relation must be a name or a map", node.Line)
	}
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Parse parses a configuration document.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a configuration document from r. Unknown keys are errors.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.DSN = os.ExpandEnv(c.DSN)
	return &c, nil
}

// Namer returns the naming conventions of the configuration.
func (c *Config) Namer() *naming.Convention {
	var opts []naming.Option
	cv := c.Conventions
	if cv.ModelSuffix != nil {
		opts = append(opts, naming.ModelSuffix(*cv.ModelSuffix))
	}
	if cv.Separator != "" {
		opts = append(opts, naming.Separator(cv.Separator))
	}
	if cv.KeySuffix != "" {
		opts = append(opts, naming.KeySuffix(cv.KeySuffix))
	}
	for singular, plural := range cv.Irregular {
		opts = append(opts, naming.Irregular(singular, plural))
	}
	if len(cv.Uncountable) > 0 {
		opts = append(opts, naming.Uncountable(cv.Uncountable...))
	}
	return naming.New(opts...)
}

// Schemas converts the entities to recordset schemas.
func (c *Config) Schemas() ([]recordset.Schema, error) {
	schemas := make([]recordset.Schema, 0, len(c.Entities))
	for _, e := range c.Entities {
		mode, err := recordset.ParseRepresentation(e.Representation)
		if err != nil {
			return nil, fmt.Errorf("config: entity %q: %w", e.Name, err)
		}
		s := recordset.Schema{
			Name:           e.Name,
			Table:          e.Table,
			NoTable:        e.NoTable,
			PrimaryKey:     e.PrimaryKey,
			Representation: mode,
			CreatedField:   firstNonEmpty(e.Timestamps.Created, c.Timestamps.Created),
			UpdatedField:   firstNonEmpty(e.Timestamps.Updated, c.Timestamps.Updated),
		}
		if s.HasMany, err = relations(recordset.HasManyKind, e.HasMany); err != nil {
			return nil, fmt.Errorf("config: entity %q: %w", e.Name, err)
		}
		if s.BelongsTo, err = relations(recordset.BelongsToKind, e.BelongsTo); err != nil {
			return nil, fmt.Errorf("config: entity %q: %w", e.Name, err)
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func relations(kind recordset.RelationKind, specs []Relation) ([]recordset.Relation, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	rels := make([]recordset.Relation, len(specs))
	for i, spec := range specs {
		r, err := recordset.ParseRelation(kind, spec.Name, spec.Options)
		if err != nil {
			return nil, err
		}
		rels[i] = r
	}
	return rels, nil
}

// DriverOptions returns the driver options of the configuration.
func (c *Config) DriverOptions(log *slog.Logger) ([]sql.Option, error) {
	opts := []sql.Option{sql.WithLogger(log)}
	if c.SyncTimezone != "" {
		loc, err := time.LoadLocation(c.SyncTimezone)
		if err != nil {
			return nil, fmt.Errorf("config: sync_timezone: %w", err)
		}
		opts = append(opts, sql.WithSyncTimezone(loc))
	}
	if c.SlowQuery > 0 {
		opts = append(opts, sql.WithStats(sql.WithSlowThreshold(c.SlowQuery), sql.WithSlowQueryLog(log)))
	}
	return opts, nil
}

// Open opens the configured database and resolves the entities against
// it. The database/sql driver of the dialect must be registered by the
// caller. Closing the client closes the database.
func (c *Config) Open(ctx context.Context, log *slog.Logger, opts ...recordset.Option) (*recordset.Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if c.Dialect == "" {
		return nil, errors.New("config: dialect is required")
	}
	schemas, err := c.Schemas()
	if err != nil {
		return nil, err
	}
	dopts, err := c.DriverOptions(log)
	if err != nil {
		return nil, err
	}
	drv, err := sql.Open(driverName(c.Dialect), c.DSN, dopts...)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", c.Dialect, err)
	}
	opts = append([]recordset.Option{recordset.WithConventions(c.Namer()), recordset.WithLogger(log)}, opts...)
	client, err := recordset.Open(ctx, drv, schemas, opts...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return client, nil
}

// driverName maps a dialect to the database/sql driver registered for it
// by github.com/go-sql-driver/mysql, github.com/lib/pq and
// modernc.org/sqlite.
func driverName(d string) string {
	switch dialect.Normalize(d) {
	case dialect.MySQL:
		return "mysql"
	case dialect.Postgres:
		return "postgres"
	case dialect.SQLite:
		return "sqlite"
	default:
		return d
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
