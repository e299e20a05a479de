package schema

// Operation is a single DDL statement for a dialect to render.
type Operation interface {
	Table() string
	Validate() error
}

// CreateTable creates a table with its columns and inline constraints.
type CreateTable struct {
	Name        string
	Columns     []*ColumnDef
	ForeignKeys []*ForeignKeyDef
	IfNotExists bool // If true, generates CREATE TABLE IF NOT EXISTS
}

func (op *CreateTable) Table() string { return op.Name }

func (op *CreateTable) Validate() error {
	t := &TableDef{Name: op.Name, Columns: op.Columns, ForeignKeys: op.ForeignKeys}
	return t.Validate()
}

// DropTable removes a table.
type DropTable struct {
	Name     string
	IfExists bool
}

func (op *DropTable) Table() string { return op.Name }

func (op *DropTable) Validate() error {
	return identifiers("table name", op.Name)
}

// CreateIndex creates an index on existing columns.
type CreateIndex struct {
	Table_      string
	Name        string
	Columns     []string
	Unique      bool
	IfNotExists bool
}

func (op *CreateIndex) Table() string { return op.Table_ }

func (op *CreateIndex) Validate() error {
	if err := identifiers("table name", op.Table_); err != nil {
		return err
	}
	return (&IndexDef{Name: op.Name, Columns: op.Columns, Unique: op.Unique}).Validate()
}

// AddForeignKey adds a constraint to an existing table. Used when a table
// points at one created after it.
type AddForeignKey struct {
	Table_ string
	ForeignKeyDef
}

func (op *AddForeignKey) Table() string { return op.Table_ }

func (op *AddForeignKey) Validate() error {
	if err := identifiers("table name", op.Table_); err != nil {
		return err
	}
	return op.ForeignKeyDef.Validate()
}
