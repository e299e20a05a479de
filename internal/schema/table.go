// Package schema describes the storage tables a Definition needs.
// Tables are derived from models and rendered to DDL by a dialect.
package schema

import (
	"regexp"
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// Column types. Serial is the auto-incrementing primary key.
const (
	TypeSerial  = "serial"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeString  = "string"
	TypeBoolean = "boolean"
)

var columnTypes = []string{TypeSerial, TypeInteger, TypeFloat, TypeString, TypeBoolean}

// fkActions are the referential actions a foreign key may declare.
// Empty leaves the database default.
var fkActions = []string{"", "CASCADE", "SET NULL", "RESTRICT", "NO ACTION"}

// identPattern matches the lowercase snake_case names derived for tables
// and columns.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func invalid(format string, args ...any) *alerr.Error {
	return alerr.Newf(alerr.ErrSchemaInvalid, format, args...)
}

// identifiers checks that at least one name is given and that every name is
// a safe SQL identifier. what names the role in error messages.
func identifiers(what string, names ...string) error {
	if len(names) == 0 || (len(names) == 1 && names[0] == "") {
		return invalid("%s is required", what)
	}
	for _, name := range names {
		if !identPattern.MatchString(name) {
			return invalid("invalid %s %q; must match [a-z_][a-z0-9_]*", what, name)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Tables
// -----------------------------------------------------------------------------

// TableDef is the storage of one model.
type TableDef struct {
	Name        string
	Model       string
	Columns     []*ColumnDef
	Indexes     []*IndexDef
	ForeignKeys []*ForeignKeyDef
}

// GetColumn returns the column with the given name, or nil if not found.
func (t *TableDef) GetColumn(name string) *ColumnDef {
	i := slices.IndexFunc(t.Columns, func(c *ColumnDef) bool { return c.Name == name })
	if i < 0 {
		return nil
	}
	return t.Columns[i]
}

// References returns the distinct tables t points at, excluding itself, in
// foreign key order.
func (t *TableDef) References() []string {
	var out []string
	for _, fk := range t.ForeignKeys {
		if fk.RefTable != t.Name && !slices.Contains(out, fk.RefTable) {
			out = append(out, fk.RefTable)
		}
	}
	return out
}

// Validate checks names, column types and constraints. A table needs exactly
// the columns it lists, one of them the primary key.
func (t *TableDef) Validate() error {
	if err := identifiers("table name", t.Name); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return invalid("table must have at least one column").WithTable(t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	hasKey := false
	for _, col := range t.Columns {
		if seen[col.Name] {
			return invalid("duplicate column name").WithTable(t.Name).WithColumn(col.Name)
		}
		seen[col.Name] = true
		hasKey = hasKey || col.PrimaryKey
		if err := col.Validate(); err != nil {
			return alerr.Wrap(alerr.ErrSchemaInvalid, err, "invalid column").WithTable(t.Name).WithColumn(col.Name)
		}
	}
	if !hasKey {
		return invalid("table has no primary key").WithTable(t.Name)
	}

	for _, idx := range t.Indexes {
		if err := idx.Validate(); err != nil {
			return alerr.Wrap(alerr.ErrSchemaInvalid, err, "invalid index").WithTable(t.Name)
		}
	}
	for _, fk := range t.ForeignKeys {
		if err := fk.Validate(); err != nil {
			return alerr.Wrap(alerr.ErrSchemaInvalid, err, "invalid foreign key").WithTable(t.Name)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Columns, indexes and foreign keys
// -----------------------------------------------------------------------------

// ColumnDef is one stored field. Columns are NOT NULL unless Nullable.
type ColumnDef struct {
	Name       string
	Type       string // one of the Type constants
	Nullable   bool
	Unique     bool
	PrimaryKey bool

	Default    any // int64, float64, string or bool
	DefaultSet bool
}

func (c *ColumnDef) Validate() error {
	if err := identifiers("column name", c.Name); err != nil {
		return err
	}
	switch {
	case c.Type == "":
		return invalid("column type is required").WithColumn(c.Name)
	case !slices.Contains(columnTypes, c.Type):
		return invalid("unknown column type %q", c.Type).WithColumn(c.Name)
	case c.Type == TypeSerial && !c.PrimaryKey:
		return invalid("serial columns must be the primary key").WithColumn(c.Name)
	}
	return nil
}

// HasDefault returns true if a default value is set.
func (c *ColumnDef) HasDefault() bool {
	return c.DefaultSet && c.Default != nil
}

// IndexDef is a secondary index. Name is generated by the dialect when empty.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

func (i *IndexDef) Validate() error {
	return identifiers("index column", i.Columns...)
}

// ForeignKeyDef is a constraint from Columns to RefColumns of RefTable.
type ForeignKeyDef struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
}

func (fk *ForeignKeyDef) Validate() error {
	if err := identifiers("foreign key column", fk.Columns...); err != nil {
		return err
	}
	if err := identifiers("referenced table", fk.RefTable); err != nil {
		return err
	}
	if err := identifiers("referenced column", fk.RefColumns...); err != nil {
		return err
	}
	if len(fk.Columns) != len(fk.RefColumns) {
		return invalid("foreign key column count must match referenced column count").
			With("columns", len(fk.Columns)).
			With("ref_columns", len(fk.RefColumns))
	}
	if !slices.Contains(fkActions, strings.ToUpper(strings.TrimSpace(fk.OnDelete))) {
		return invalid("invalid foreign key action %q; must be one of CASCADE, SET NULL, RESTRICT, NO ACTION", fk.OnDelete)
	}
	return nil
}
