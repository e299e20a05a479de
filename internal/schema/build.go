package schema

import (
	"slices"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

var onDeleteActions = map[string]string{
	definition.OnDeleteNone:    "",
	definition.OnDeleteCascade: "CASCADE",
	definition.OnDeleteSetNull: "SET NULL",
}

// FromDefinition returns one table per model, in model order.
func FromDefinition(def *definition.Definition) ([]*TableDef, error) {
	out := make([]*TableDef, 0, len(def.Models))
	for _, m := range def.Models {
		t, err := FromModel(def, m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// FromModel derives the table storing m.
func FromModel(def *definition.Definition, m *definition.ModelDef) (*TableDef, error) {
	t := &TableDef{Name: m.DBName, Model: m.Name}
	for _, f := range m.Fields {
		col := &ColumnDef{
			Name:     f.DBName,
			Type:     string(f.Type),
			Nullable: f.Nullable,
			Unique:   f.Unique && !f.Primary,
		}
		if f.Primary {
			col.Type, col.PrimaryKey = TypeSerial, true
		}
		if f.Default != nil && f.Default.Type != definition.TypeNull {
			col.Default, col.DefaultSet = f.Default.Value, true
		}
		t.Columns = append(t.Columns, col)
	}

	for _, r := range m.References {
		to, err := def.GetModel(r.ToModelRefKey)
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrSchemaInvalid, err, "reference points at an unknown model").
				WithModel(m.Name)
		}
		field := m.FieldByRefKey(r.FieldRefKey)
		if field == nil {
			return nil, alerr.Newf(alerr.ErrSchemaInvalid, "reference %s has no field", r.RefKey).WithModel(m.Name)
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKeyDef{
			Name:       "fk_" + t.Name + "_" + field.DBName,
			Columns:    []string{field.DBName},
			RefTable:   to.DBName,
			RefColumns: []string{"id"},
			OnDelete:   onDeleteActions[r.OnDelete],
		})
		if !r.Unique {
			t.Indexes = append(t.Indexes, &IndexDef{Columns: []string{field.DBName}})
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Plan returns the statements creating tables. Tables are created after the
// tables they reference where possible. When deferForward is set, foreign
// keys pointing at a table that does not exist yet become AddForeignKey
// operations after every table is created; otherwise they stay inline.
func Plan(tables []*TableDef, deferForward bool) []Operation {
	ordered := orderTables(tables)

	var creates, indexes, deferred []Operation
	created := map[string]bool{}
	for _, t := range ordered {
		op := &CreateTable{Name: t.Name, Columns: t.Columns, IfNotExists: true}
		for _, fk := range t.ForeignKeys {
			if deferForward && fk.RefTable != t.Name && !created[fk.RefTable] {
				deferred = append(deferred, &AddForeignKey{Table_: t.Name, ForeignKeyDef: *fk})
				continue
			}
			op.ForeignKeys = append(op.ForeignKeys, fk)
		}
		created[t.Name] = true
		creates = append(creates, op)
		for _, idx := range t.Indexes {
			indexes = append(indexes, &CreateIndex{
				Table_:      t.Name,
				Name:        idx.Name,
				Columns:     idx.Columns,
				Unique:      idx.Unique,
				IfNotExists: true,
			})
		}
	}
	return slices.Concat(creates, indexes, deferred)
}

// orderTables sorts tables so that referenced tables come first, using
// Kahn's algorithm. Ties keep declaration order. Tables caught in a cycle
// are appended in declaration order.
func orderTables(tables []*TableDef) []*TableDef {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		index[t.Name] = i
	}
	inDegree := make([]int, len(tables))
	dependents := make([][]int, len(tables))
	for i, t := range tables {
		for _, ref := range t.References() {
			j, ok := index[ref]
			if !ok {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	done := make([]bool, len(tables))
	out := make([]*TableDef, 0, len(tables))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		done[i] = true
		out = append(out, tables[i])
		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
				slices.Sort(queue)
			}
		}
	}
	for i, t := range tables {
		if !done[i] {
			out = append(out, t)
		}
	}
	return out
}
