package recordset

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

type (
	// Condition is a set of field constraints joined with AND. A plain key
	// means equality, a slice value means IN, and a key may carry a trailing
	// operator ("age >", "name !=", "title LIKE").
	Condition = map[string]any

	// Payload holds the column values of an insert or update.
	Payload = map[string]any
)

// skipMarker is the type of Skip.
type skipMarker struct{}

// Skip marks a payload field as explicitly suppressed. Save leaves a field
// set to Skip untouched instead of stamping it, and no Skip value ever
// reaches the executor.
var Skip = skipMarker{}

func isSkip(v any) bool {
	_, ok := v.(skipMarker)
	return ok
}

// Representation selects the shape records are handed out in.
type Representation uint8

const (
	// Structured records are accessed through Record methods.
	Structured Representation = iota + 1
	// Keyed records render as nested maps through Record.Map.
	Keyed
)

// String implements fmt.Stringer.
func (r Representation) String() string {
	switch r {
	case Structured:
		return "structured"
	case Keyed:
		return "keyed"
	default:
		return "unset"
	}
}

// ParseRepresentation parses "structured"/"object" and "keyed"/"array".
func ParseRepresentation(s string) (Representation, error) {
	switch strings.ToLower(s) {
	case "", "structured", "object":
		return Structured, nil
	case "keyed", "array":
		return Keyed, nil
	default:
		return 0, fmt.Errorf("recordset: unknown representation %q", s)
	}
}

// Depth is the recursion budget of eager loading: the number of has-many
// hops to traverse, or Unbounded.
type Depth int

// Unbounded never runs out. Over a cyclic has-many graph it does not
// terminate.
const Unbounded Depth = -1

func (d Depth) normalize() Depth {
	if d < Unbounded {
		return 0
	}
	return d
}

func (d Depth) active() bool { return d == Unbounded || d > 0 }

func (d Depth) next() Depth {
	if d == Unbounded {
		return d
	}
	return d - 1
}

// Order is one ORDER BY directive.
type Order struct {
	Field     string
	Direction string // "asc", "desc" or empty
}

// RelationKind is the kind of a relation.
type RelationKind uint8

// Relation kinds.
const (
	HasManyKind RelationKind = iota + 1
	BelongsToKind
)

// String implements fmt.Stringer.
func (k RelationKind) String() string {
	switch k {
	case HasManyKind:
		return "has_many"
	case BelongsToKind:
		return "belongs_to"
	default:
		return "unknown"
	}
}

// Relation is the static definition of a has-many or belongs-to relation.
// Empty fields fall back to naming conventions or to "none".
type Relation struct {
	Name       string
	Kind       RelationKind
	Target     string // entity type name; defaults to the convention for Name
	ForeignKey string
	Fields     []string
	Limit      int // 0 means no limit
	Offset     int
	Order      []Order
	Scope      Condition
}

// HasMany declares a one-to-many relation by name.
//
//	recordset.HasMany("posts")
//	recordset.HasMany("comments").WithForeignKey("author_id").WithLimit(5, 0)
func HasMany(name string) Relation {
	return Relation{Name: name, Kind: HasManyKind}
}

// BelongsTo declares a many-to-one relation by name.
func BelongsTo(name string) Relation {
	return Relation{Name: name, Kind: BelongsToKind}
}

// WithTarget overrides the target entity.
func (r Relation) WithTarget(entity string) Relation {
	r.Target = entity
	return r
}

// WithForeignKey overrides the foreign key.
func (r Relation) WithForeignKey(key string) Relation {
	r.ForeignKey = key
	return r
}

// WithFields sets the default projection of the related rows.
func (r Relation) WithFields(fields ...string) Relation {
	r.Fields = fields
	return r
}

// WithLimit sets the default window of has-many rows.
func (r Relation) WithLimit(limit, offset int) Relation {
	r.Limit, r.Offset = limit, offset
	return r
}

// WithOrder appends a default order.
func (r Relation) WithOrder(field, direction string) Relation {
	r.Order = append(append([]Order(nil), r.Order...), Order{Field: field, Direction: direction})
	return r
}

// WithScope sets the default condition of has-many rows.
func (r Relation) WithScope(scope Condition) Relation {
	r.Scope = scope
	return r
}

// ParseRelation builds a Relation from the explicit option-map form. The
// recognized keys are foreign_key, model (or target), fields, limit, order
// and scope. A nil map is the shorthand form.
func ParseRelation(kind RelationKind, name string, opts map[string]any) (Relation, error) {
	r := Relation{Name: name, Kind: kind}
	for key, v := range opts {
		var err error
		switch key {
		case "foreign_key":
			r.ForeignKey, err = cast.ToStringE(v)
		case "model", "target":
			r.Target, err = cast.ToStringE(v)
		case "fields":
			r.Fields, err = toStrings(v)
		case "limit":
			r.Limit, r.Offset, err = toWindow(v)
		case "order":
			r.Order, err = toOrders(v)
		case "scope":
			r.Scope, err = cast.ToStringMapE(v)
		default:
			err = fmt.Errorf("unknown key")
		}
		if err != nil {
			return Relation{}, fmt.Errorf("recordset: relation %q: option %q: %w", name, key, err)
		}
	}
	return r, nil
}

// Override holds per-call overrides of a requested relation. Zero fields
// keep the relation defaults; Scope is merged over the default scope.
type Override struct {
	Fields []string
	Limit  int
	Offset int
	Order  []Order
	Scope  Condition
}

// Schema configures one entity type.
type Schema struct {
	// Name is the entity type name, e.g. "UserModel".
	Name string
	// Table defaults to the convention for Name.
	Table string
	// NoTable disables the default table; every call must then pass Table.
	NoTable bool
	// PrimaryKey is introspected from the table when empty.
	PrimaryKey string
	HasMany    []Relation
	BelongsTo  []Relation
	// Representation is the persistent default of fetch operations.
	// Defaults to Structured.
	Representation Representation
	// CreatedField and UpdatedField name the lifecycle timestamp columns.
	// They default to "created" and "modified".
	CreatedField string
	UpdatedField string
	// BeforeSave runs before Save decides between insert and update.
	BeforeSave func(ctx context.Context, payload Payload, table string) (Payload, error)
	// Policy guards the fetches, counts and mutations of the entity,
	// including relation loads that target it.
	Policy Policy
}

// Lifecycle field defaults.
const (
	DefaultCreatedField = "created"
	DefaultUpdatedField = "modified"
)

func toStrings(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	return cast.ToStringSliceE(v)
}

func toWindow(v any) (limit, offset int, err error) {
	vs, ok := v.([]any)
	if !ok {
		limit, err = cast.ToIntE(v)
		return limit, 0, err
	}
	switch len(vs) {
	case 0:
		return 0, 0, nil
	case 1:
		limit, err = cast.ToIntE(vs[0])
		return limit, 0, err
	default:
		if limit, err = cast.ToIntE(vs[0]); err != nil {
			return 0, 0, err
		}
		offset, err = cast.ToIntE(vs[1])
		return limit, offset, err
	}
}

// toOrders accepts "field", "field desc", ["field", "desc"] or a list of
// either.
func toOrders(v any) ([]Order, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		f := strings.Fields(v)
		switch len(f) {
		case 0:
			return nil, nil
		case 1:
			return []Order{{Field: f[0]}}, nil
		default:
			return []Order{{Field: f[0], Direction: f[1]}}, nil
		}
	case []any:
		if len(v) == 2 {
			if dir, ok := v[1].(string); ok && isDirection(dir) {
				field, err := cast.ToStringE(v[0])
				return []Order{{Field: field, Direction: dir}}, err
			}
		}
		var orders []Order
		for _, e := range v {
			o, err := toOrders(e)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o...)
		}
		return orders, nil
	case []string:
		vs := make([]any, len(v))
		for i := range v {
			vs[i] = v[i]
		}
		return toOrders(vs)
	default:
		return nil, fmt.Errorf("unable to cast %#v of type %T to order", v, v)
	}
}

func isDirection(s string) bool {
	switch strings.ToLower(s) {
	case "asc", "desc", "random":
		return true
	}
	return false
}
