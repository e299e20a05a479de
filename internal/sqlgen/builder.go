// Package sqlgen renders the queries and writes of a Definition as SQL.
//
// Statements carry named parameters (:name) rather than placeholders. Bind
// resolves them against request values and rewrites them to the dialect's
// positional placeholders, so generated SQL can be inspected and tested
// without any runtime data.
package sqlgen

import (
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
)

// Builder renders SQL for the models of one Definition.
type Builder struct {
	def *definition.Definition
	d   dialect.Dialect
}

// New creates a Builder for def in dialect d.
func New(def *definition.Definition, d dialect.Dialect) *Builder {
	return &Builder{def: def, d: d}
}

// Dialect returns the dialect of this builder.
func (b *Builder) Dialect() dialect.Dialect {
	return b.d
}

// ----------------------------------------------------------------------------
// Statement buffer
// ----------------------------------------------------------------------------

// stmt provides fluent SQL construction with dialect-aware quoting.
type stmt struct {
	d   dialect.Dialect
	buf strings.Builder
}

func newStmt(d dialect.Dialect) *stmt {
	return &stmt{d: d}
}

// Raw appends raw SQL to the buffer without any modification.
func (s *stmt) Raw(sql string) *stmt {
	s.buf.WriteString(sql)
	return s
}

// Ident appends a quoted identifier.
func (s *stmt) Ident(name string) *stmt {
	s.buf.WriteString(s.d.QuoteIdent(name))
	return s
}

// Column appends "table"."column".
func (s *stmt) Column(table, column string) *stmt {
	s.buf.WriteString(qualified(s.d, table, column))
	return s
}

// Idents appends a comma-separated list of quoted identifiers.
func (s *stmt) Idents(names ...string) *stmt {
	for i, name := range names {
		if i > 0 {
			s.buf.WriteString(", ")
		}
		s.Ident(name)
	}
	return s
}

// Param appends the named parameter :name.
func (s *stmt) Param(name string) *stmt {
	s.buf.WriteString(":")
	s.buf.WriteString(name)
	return s
}

// Params appends a comma-separated list of named parameters.
func (s *stmt) Params(names ...string) *stmt {
	for i, name := range names {
		if i > 0 {
			s.buf.WriteString(", ")
		}
		s.Param(name)
	}
	return s
}

// List appends items separated by sep.
func (s *stmt) List(items []string, sep string) *stmt {
	s.buf.WriteString(strings.Join(items, sep))
	return s
}

// String returns the accumulated SQL string.
func (s *stmt) String() string {
	return s.buf.String()
}

// qualified returns "table"."column".
func qualified(d dialect.Dialect, table, column string) string {
	return d.QuoteIdent(table) + "." + d.QuoteIdent(column)
}
