package sqlgen

import (
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Parameter names used by the write statements.
const (
	IDParam    = "@id"
	ValueParam = "value"
)

// InsertSQL inserts one row of m. Each column is bound from the parameter of
// the same name. The new id is returned.
func (b *Builder) InsertSQL(m *definition.ModelDef, columns []string) string {
	s := newStmt(b.d).Raw("INSERT INTO ").Ident(m.DBName)
	if len(columns) == 0 {
		return s.Raw(" DEFAULT VALUES RETURNING ").Ident("id").String()
	}
	return s.Raw(" (").Idents(columns...).
		Raw(") VALUES (").Params(columns...).
		Raw(") RETURNING ").Ident("id").
		String()
}

// UpdateSQL sets columns of the row of m whose id is bound to "@id".
// It returns "" when there is nothing to set.
func (b *Builder) UpdateSQL(m *definition.ModelDef, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	s := newStmt(b.d).Raw("UPDATE ").Ident(m.DBName).Raw(" SET ")
	for i, col := range columns {
		if i > 0 {
			s.Raw(", ")
		}
		s.Ident(col).Raw(" = ").Param(col)
	}
	return s.Raw(" WHERE ").Ident("id").Raw(" = ").Param(IDParam).String()
}

// DeleteSQL deletes the row of m whose id is bound to "@id".
func (b *Builder) DeleteSQL(m *definition.ModelDef) string {
	return newStmt(b.d).
		Raw("DELETE FROM ").Ident(m.DBName).
		Raw(" WHERE ").Ident("id").Raw(" = ").Param(IDParam).
		String()
}

// ReferenceLookupSQL finds the ids of m whose column equals "value". Two rows
// at most are read so that callers can tell a unique match from an
// ambiguous one.
func (b *Builder) ReferenceLookupSQL(m *definition.ModelDef, column string) string {
	return newStmt(b.d).
		Raw("SELECT ").Ident("id").
		Raw(" FROM ").Ident(m.DBName).
		Raw(" WHERE ").Ident(column).Raw(" = ").Param(ValueParam).
		Raw(" LIMIT 2").
		String()
}

// DeleteByColumnSQL deletes the rows of m whose column equals "value".
func (b *Builder) DeleteByColumnSQL(m *definition.ModelDef, column string) string {
	return newStmt(b.d).
		Raw("DELETE FROM ").Ident(m.DBName).
		Raw(" WHERE ").Ident(column).Raw(" = ").Param(ValueParam).
		String()
}
