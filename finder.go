package recordset

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FinderKind tells whether a dynamic finder returns many records or one.
type FinderKind uint8

// Finder kinds.
const (
	FindMany FinderKind = iota + 1
	FindOne
)

// Finder is a parsed dynamic finder name such as "FindByUserName".
type Finder struct {
	Method string
	Kind   FinderKind
	Field  string
}

// finderTable lists the recognized prefixes. "FindOneBy" must precede
// "FindBy": the first match wins.
var finderTable = []struct {
	prefix string
	kind   FinderKind
}{
	{"FindOneBy", FindOne},
	{"FindBy", FindMany},
}

func finderPrefixes() []string {
	ps := make([]string, len(finderTable))
	for i, f := range finderTable {
		ps[i] = f.prefix
	}
	return ps
}

// ParseFinder splits a finder method name into its kind and the normalized
// field it filters on. Method names starting with a lower case letter
// ("findByEmail") are accepted as well.
func ParseFinder(method string, namer Namer) (Finder, error) {
	name := upperFirst(method)
	for _, f := range finderTable {
		fragment, ok := strings.CutPrefix(name, f.prefix)
		if !ok {
			continue
		}
		if fragment == "" {
			break
		}
		return Finder{Method: method, Kind: f.kind, Field: namer.FieldName(fragment)}, nil
	}
	return Finder{}, &UnsupportedOperationError{Method: method}
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// finder returns the parsed finder of method, parsing each name once per
// client.
func (c *Client) finder(method string) (Finder, error) {
	if f, ok := c.finders.Load(method); ok {
		return f.(Finder), nil
	}
	f, err := ParseFinder(method, c.namer)
	if err != nil {
		return Finder{}, err
	}
	c.finders.Store(method, f)
	return f, nil
}

// Dispatch calls a dynamic finder by name. The first argument is the value
// the field must equal; the remaining ones are passed on as query options.
// It returns []*Record for FindBy... and *Record for FindOneBy... methods.
//
//	s.Dispatch(ctx, "FindByUserName", "alice")          // FindBy(ctx, Condition{"user_name": "alice"})
//	s.Dispatch(ctx, "FindOneByEmail", "a@b.com", Fields("id"))
func (s *Session) Dispatch(ctx context.Context, method string, args ...any) (any, error) {
	f, err := s.client.finder(method)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, &InvalidArgumentError{Method: method, Msg: "missing the value to match " + f.Field + " against"}
	}
	opts := make([]QueryOption, 0, len(args)-1)
	for i, a := range args[1:] {
		opt, ok := a.(QueryOption)
		if !ok {
			return nil, &InvalidArgumentError{Method: method, Msg: fmt.Sprintf("argument %d: expected a QueryOption, got %T", i+2, a)}
		}
		opts = append(opts, opt)
	}
	cond := Condition{f.Field: args[0]}
	if f.Kind == FindOne {
		rec, err := s.FindOneBy(ctx, cond, opts...)
		if rec == nil {
			return nil, err
		}
		return rec, err
	}
	return s.FindBy(ctx, cond, opts...)
}
