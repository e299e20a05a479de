package dialect

import "github.com/gauditech/gaudi-sub004/internal/schema"

// sqlite renders SQL for SQLite. Columns use the TEXT, INTEGER and REAL
// affinities.
type sqlite struct{ base }

// SQLite returns the SQLite dialect implementation.
func SQLite() Dialect {
	d := &sqlite{}
	// OFFSET requires a LIMIT; -1 means no limit.
	d.base = base{types: d, yes: "1", no: "0", noLimit: "-1"}
	return d
}

func (d *sqlite) Name() string       { return "sqlite" }
func (d *sqlite) DriverName() string { return "sqlite" }

// IDType is INTEGER, which as a PRIMARY KEY aliases the rowid.
func (d *sqlite) IDType() string      { return "INTEGER" }
func (d *sqlite) TextType() string    { return "TEXT" }
func (d *sqlite) IntegerType() string { return "INTEGER" }
func (d *sqlite) FloatType() string   { return "REAL" }

// BooleanType is INTEGER holding 0 or 1.
func (d *sqlite) BooleanType() string { return "INTEGER" }

func (d *sqlite) Placeholder(int) string { return "?" }

func (d *sqlite) CurrentTimestamp() string {
	return "CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)"
}

func (d *sqlite) SupportsTransactionalDDL() bool { return true }

// DefersForeignKeys is false: SQLite accepts references to tables that do
// not exist yet and cannot add constraints afterwards.
func (d *sqlite) DefersForeignKeys() bool { return false }

func (d *sqlite) AddForeignKeySQL(op *schema.AddForeignKey) (string, error) {
	return unsupported(d, "ALTER TABLE ADD FOREIGN KEY", op.Table())
}
