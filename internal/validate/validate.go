// Package validate checks blueprint identifiers. Model names are PascalCase;
// member names and aliases start with a lowercase letter or underscore. Names
// whose storage form is a SQL reserved word are allowed, since every
// identifier is quoted, but the composer reports them.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// MaxLength is the PostgreSQL identifier limit.
const MaxLength = 63

// rule is one kind of blueprint identifier.
type rule struct {
	kind    string
	pattern *regexp.Regexp
	hint    string
}

var (
	modelRule  = rule{"model", regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`), "must be PascalCase"}
	memberRule = rule{"member", regexp.MustCompile(`^[a-z_][A-Za-z0-9_]*$`), "must start with a lowercase letter or underscore"}
	aliasRule  = rule{"alias", memberRule.pattern, memberRule.hint}
)

func (r rule) check(s string) error {
	switch {
	case s == "":
		return alerr.New(alerr.ErrInvalidIdentifier, r.kind+" name cannot be empty")
	case len(s) > MaxLength:
		return alerr.New(alerr.ErrInvalidIdentifier,
			fmt.Sprintf("%s name exceeds maximum length of %d characters", r.kind, MaxLength)).
			With("got", s).
			With("length", len(s))
	case !r.pattern.MatchString(s):
		return alerr.New(alerr.ErrInvalidIdentifier, r.kind+" name "+r.hint).With("got", s)
	case strings.HasPrefix(s, "__"):
		return alerr.New(alerr.ErrInvalidIdentifier, "names starting with '__' are reserved").With("got", s)
	}
	return nil
}

// ModelName validates a model name such as "Org" or "AuthUser".
func ModelName(s string) error { return modelRule.check(s) }

// MemberName validates a field, reference, relation, query, computed or hook
// name. Names starting with "__" are reserved for internal columns.
func MemberName(s string) error { return memberRule.check(s) }

// Alias validates an entrypoint, action or iterator alias.
func Alias(s string) error { return aliasRule.check(s) }

// reservedWords covers the keywords PostgreSQL and SQLite reject as bare
// identifiers, plus type names that read ambiguously as column names.
var reservedWords = wordSet(`
	add all alter and any array as asc between by case cast check column
	constraint create cross current database default delete desc distinct do
	drop else end except exists false fetch for foreign from full grant group
	having if ilike in index inner insert intersect into is isnull join key
	lateral leading left like limit localtime natural not notnull null offset
	on only or order outer placing primary references returning revoke right
	row select set similar some symmetric table then to trailing true union
	unique update user using values variadic view when where window with

	abort action after analyze attach begin commit conflict copy detach
	explain fail freeze glob indexed instead lock plan pragma query raise
	reindex rollback savepoint temp temporary truncate vacuum verbose virtual

	bigserial bool boolean date enum json jsonb serial uuid
`)

func wordSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// IsReservedWord reports whether s is a SQL reserved word, ignoring case.
func IsReservedWord(s string) bool {
	return reservedWords[strings.ToLower(s)]
}
