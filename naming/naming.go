// Package naming derives table, foreign-key, entity and field names from
// Go-side identifiers.
//
// The rules are project specific, so the package exposes a Convention value
// rather than package-level state. A Convention is safe for concurrent use once
// built; none of its methods mutate it.
//
//	c := naming.New(naming.ModelSuffix("Model"))
//	c.TableName("UserModel")     // users
//	c.ForeignKey("users")        // user_id
//	c.TargetEntity("posts")      // PostModel
//	c.FieldName("UserName")      // user_name
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Convention holds the naming rules of a project.
type Convention struct {
	modelSuffix string
	separator   string
	keySuffix   string
	rules       *inflect.Ruleset
}

// Option configures a Convention.
type Option func(*Convention)

// ModelSuffix sets the suffix carried by entity type names (e.g. "Model").
// It is stripped when deriving table names and appended when deriving
// target entity names.
func ModelSuffix(s string) Option {
	return func(c *Convention) { c.modelSuffix = s }
}

// Separator sets the word separator used in field names. Defaults to "_".
func Separator(s string) Option {
	return func(c *Convention) { c.separator = s }
}

// KeySuffix sets the suffix appended to singular names to form a
// foreign key. Defaults to "_id".
func KeySuffix(s string) Option {
	return func(c *Convention) { c.keySuffix = s }
}

// Irregular registers an irregular singular/plural pair.
func Irregular(singular, plural string) Option {
	return func(c *Convention) { c.rules.AddIrregular(singular, plural) }
}

// Uncountable registers words that have no plural form.
func Uncountable(words ...string) Option {
	return func(c *Convention) {
		for _, w := range words {
			c.rules.AddUncountable(w)
		}
	}
}

// New returns a Convention configured with the given options.
func New(opts ...Option) *Convention {
	c := &Convention{
		modelSuffix: "Model",
		separator:   "_",
		keySuffix:   "_id",
		rules:       inflect.NewDefaultRuleset(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns the default Convention: entity names end in "Model",
// words are separated by "_" and foreign keys end in "_id".
func Default() *Convention { return New() }

// TableName derives the table of an entity type: the model suffix is
// stripped, the rest lowercased and pluralized.
func (c *Convention) TableName(entity string) string {
	name := strings.ToLower(entity)
	if sfx := strings.ToLower(c.modelSuffix); sfx != "" && name != sfx {
		name = strings.TrimSuffix(name, sfx)
		name = strings.TrimSuffix(name, c.separator)
	}
	if name == "" {
		return ""
	}
	return c.rules.Pluralize(name)
}

// ForeignKey derives the default foreign key for a table or relation name.
func (c *Convention) ForeignKey(name string) string {
	if name == "" {
		return ""
	}
	return c.rules.Singularize(name) + c.keySuffix
}

// TargetEntity derives the entity type name a relation points at.
func (c *Convention) TargetEntity(relation string) string {
	if relation == "" {
		return ""
	}
	return c.rules.Camelize(c.rules.Singularize(relation)) + c.modelSuffix
}

// FieldName normalizes a method-name fragment into a field name. A separator
// is inserted before every uppercase letter that follows a word character,
// whitespace and hyphens become separators, and the result is lowercased.
func (c *Convention) FieldName(fragment string) string {
	var (
		b    strings.Builder
		prev rune
	)
	b.Grow(len(fragment) + 4)
	for i, r := range fragment {
		switch {
		case unicode.IsSpace(r) || r == '-':
			b.WriteString(c.separator)
		case i > 0 && unicode.IsUpper(r) && isWord(prev):
			b.WriteString(c.separator)
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return b.String()
}

// CamelCase is the inverse of FieldName: words split on whitespace, hyphens
// or underscores are joined with their first letter uppercased, and the
// result starts lowercase.
func (c *Convention) CamelCase(field string) string {
	words := strings.FieldsFunc(field, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	if len(words) == 0 {
		return ""
	}
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(lowerFirst(w))
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

// Pluralize exposes the plural rules of the convention.
func (c *Convention) Pluralize(word string) string { return c.rules.Pluralize(word) }

// Singularize exposes the singular rules of the convention.
func (c *Convention) Singularize(word string) string { return c.rules.Singularize(word) }

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
