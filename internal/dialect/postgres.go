package dialect

import "strconv"

// postgres renders SQL for PostgreSQL.
type postgres struct{ base }

// Postgres returns the PostgreSQL dialect implementation.
func Postgres() Dialect {
	d := &postgres{}
	d.base = base{types: d, yes: "TRUE", no: "FALSE"}
	return d
}

func (d *postgres) Name() string       { return "postgres" }
func (d *postgres) DriverName() string { return "postgres" }

func (d *postgres) IDType() string   { return "BIGSERIAL" }
func (d *postgres) TextType() string { return "TEXT" }

// IntegerType is BIGINT: now() yields epoch milliseconds, which overflow
// INTEGER.
func (d *postgres) IntegerType() string { return "BIGINT" }
func (d *postgres) FloatType() string   { return "DOUBLE PRECISION" }
func (d *postgres) BooleanType() string { return "BOOLEAN" }

func (d *postgres) Placeholder(index int) string { return "$" + strconv.Itoa(index) }

func (d *postgres) CurrentTimestamp() string {
	return "CAST(EXTRACT(EPOCH FROM NOW()) * 1000 AS BIGINT)"
}

func (d *postgres) SupportsTransactionalDDL() bool { return true }
func (d *postgres) DefersForeignKeys() bool        { return true }
