package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/schema"
)

// base holds what PostgreSQL and SQLite render identically. Dialects embed it
// and point types back at themselves.
type base struct {
	types TypeMapper

	// true and false literals
	yes, no string

	// noLimit is written before a bare OFFSET when the dialect requires a
	// LIMIT clause; empty when OFFSET may stand alone.
	noLimit string
}

// QuoteIdent wraps name in double quotes, doubling embedded ones.
func (base) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal renders a scalar value as an inline SQL literal.
func (b base) Literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return b.yes
		}
		return b.no
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return quoteString(v)
	}
	return quoteString(fmt.Sprint(value))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (b base) LimitOffset(limit, offset *int) string {
	var clause []string
	if limit != nil {
		clause = append(clause, "LIMIT", strconv.Itoa(*limit))
	} else if offset != nil && b.noLimit != "" {
		clause = append(clause, "LIMIT", b.noLimit)
	}
	if offset != nil {
		clause = append(clause, "OFFSET", strconv.Itoa(*offset))
	}
	return strings.Join(clause, " ")
}

// columnType maps a scalar column type through the dialect's type mapper.
func (b base) columnType(col *schema.ColumnDef) (string, bool) {
	switch col.Type {
	case schema.TypeSerial:
		return b.types.IDType(), true
	case schema.TypeString:
		return b.types.TextType(), true
	case schema.TypeInteger:
		return b.types.IntegerType(), true
	case schema.TypeFloat:
		return b.types.FloatType(), true
	case schema.TypeBoolean:
		return b.types.BooleanType(), true
	}
	return "", false
}

func (b base) CreateTableSQL(op *schema.CreateTable) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}

	s := b.stmt("CREATE TABLE")
	if op.IfNotExists {
		s.kw("IF NOT EXISTS")
	}
	s.ident(op.Name).raw(" (")

	sep := "\n  "
	for _, col := range op.Columns {
		s.raw(sep)
		if err := b.column(s, op.Name, col); err != nil {
			return "", err
		}
		sep = ",\n  "
	}
	for _, fk := range op.ForeignKeys {
		s.raw(sep)
		s.foreignKey(fk)
	}
	return s.raw("\n)").String(), nil
}

// column writes a column definition in the order: type, PRIMARY KEY,
// NOT NULL, UNIQUE, DEFAULT.
func (b base) column(s *stmt, table string, col *schema.ColumnDef) error {
	typ, ok := b.columnType(col)
	if !ok {
		return alerr.New(alerr.ErrSchemaInvalid, fmt.Sprintf("no SQL type for column type %q", col.Type)).
			WithTable(table).
			WithColumn(col.Name)
	}

	s.raw(s.quote(col.Name)).kw(typ)
	switch {
	case col.PrimaryKey:
		s.kw("PRIMARY KEY")
	default:
		if !col.Nullable {
			s.kw("NOT NULL")
		}
		if col.Unique {
			s.kw("CONSTRAINT").ident(indexName(table, true, col.Name)).kw("UNIQUE")
		}
	}
	if col.HasDefault() {
		s.kw("DEFAULT").kw(b.Literal(col.Default))
	}
	return nil
}

func (b base) DropTableSQL(op *schema.DropTable) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	s := b.stmt("DROP TABLE")
	if op.IfExists {
		s.kw("IF EXISTS")
	}
	return s.ident(op.Name).String(), nil
}

func (b base) CreateIndexSQL(op *schema.CreateIndex) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}

	s := b.stmt("CREATE")
	if op.Unique {
		s.kw("UNIQUE")
	}
	s.kw("INDEX")
	if op.IfNotExists {
		s.kw("IF NOT EXISTS")
	}
	name := op.Name
	if name == "" {
		name = indexName(op.Table(), op.Unique, op.Columns...)
	}
	return s.ident(name).kw("ON").ident(op.Table()).raw(" ").list(op.Columns).String(), nil
}

func (b base) AddForeignKeySQL(op *schema.AddForeignKey) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	s := b.stmt("ALTER TABLE").ident(op.Table()).kw("ADD").raw(" ")
	s.foreignKey(&op.ForeignKeyDef)
	return s.String(), nil
}

// indexName is the default index name: idx_table_cols, or uniq_table_cols
// for unique indexes and constraints.
func indexName(table string, unique bool, cols ...string) string {
	prefix := "idx_"
	if unique {
		prefix = "uniq_"
	}
	return prefix + table + "_" + strings.Join(cols, "_")
}

// -----------------------------------------------------------------------------
// Statement writer
// -----------------------------------------------------------------------------

// stmt accumulates a single DDL statement.
type stmt struct {
	strings.Builder
	quote func(string) string
}

func (b base) stmt(keyword string) *stmt {
	s := &stmt{quote: b.QuoteIdent}
	s.WriteString(keyword)
	return s
}

// kw writes a space followed by keyword.
func (s *stmt) kw(keyword string) *stmt {
	s.WriteByte(' ')
	s.WriteString(keyword)
	return s
}

// ident writes a space followed by a quoted identifier.
func (s *stmt) ident(name string) *stmt {
	s.WriteByte(' ')
	s.WriteString(s.quote(name))
	return s
}

func (s *stmt) raw(text string) *stmt {
	s.WriteString(text)
	return s
}

// list writes a parenthesized list of quoted identifiers.
func (s *stmt) list(names []string) *stmt {
	s.WriteByte('(')
	for i, name := range names {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(s.quote(name))
	}
	s.WriteByte(')')
	return s
}

func (s *stmt) foreignKey(fk *schema.ForeignKeyDef) {
	if fk.Name != "" {
		s.raw("CONSTRAINT").ident(fk.Name).raw(" ")
	}
	s.raw("FOREIGN KEY ").list(fk.Columns).kw("REFERENCES").ident(fk.RefTable).raw(" ").list(fk.RefColumns)
	if fk.OnDelete != "" {
		s.kw("ON DELETE").kw(fk.OnDelete)
	}
}
