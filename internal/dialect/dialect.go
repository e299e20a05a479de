// Package dialect provides database-specific SQL generation.
// Each dialect maps scalar types to column types, quotes identifiers,
// binds placeholders and renders schema operations as DDL.
package dialect

import "github.com/gauditech/gaudi-sub004/internal/schema"

// TypeMapper maps the Definition's scalar types to column types.
//
//	          postgres          sqlite
//	id        BIGSERIAL         INTEGER (rowid alias)
//	text      TEXT              TEXT
//	integer   BIGINT            INTEGER
//	float     DOUBLE PRECISION  REAL
//	boolean   BOOLEAN           INTEGER (0/1)
type TypeMapper interface {
	IDType() string
	TextType() string
	IntegerType() string
	FloatType() string
	BooleanType() string
}

// SQLFormatter renders the fragments the query builder interpolates.
type SQLFormatter interface {
	QuoteIdent(name string) string

	// Placeholder returns the bind marker for the 1-based index: $n or ?.
	Placeholder(index int) string

	Literal(value any) string

	// CurrentTimestamp evaluates to epoch milliseconds.
	CurrentTimestamp() string

	// LimitOffset renders the paging clause. Nil values are omitted.
	LimitOffset(limit, offset *int) string
}

// FeatureDetector reports dialect capabilities.
type FeatureDetector interface {
	SupportsTransactionalDDL() bool

	// DefersForeignKeys reports whether references to tables created later
	// are added with ALTER TABLE afterwards instead of inline.
	DefersForeignKeys() bool
}

// DDLGenerator renders schema operations.
type DDLGenerator interface {
	CreateTableSQL(op *schema.CreateTable) (string, error)
	DropTableSQL(op *schema.DropTable) (string, error)
	CreateIndexSQL(op *schema.CreateIndex) (string, error)
	AddForeignKeySQL(op *schema.AddForeignKey) (string, error)
}

// Dialect is the full set of database-specific behavior.
type Dialect interface {
	Name() string

	// DriverName is the database/sql driver registered for the dialect.
	DriverName() string

	TypeMapper
	SQLFormatter
	FeatureDetector
	DDLGenerator
}

// Get returns the dialect for name, accepting the aliases postgresql and
// sqlite3, or nil if it is not supported.
func Get(name string) Dialect {
	switch name {
	case "postgres", "postgresql":
		return Postgres()
	case "sqlite", "sqlite3":
		return SQLite()
	}
	return nil
}

// Names returns the supported dialect names.
func Names() []string {
	return []string{"postgres", "sqlite"}
}
