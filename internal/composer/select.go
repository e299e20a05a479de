package composer

import (
	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/validate"
)

// defaultSelect selects every field of m, including reference id fields.
func defaultSelect(m *definition.ModelDef, namePath []string) []definition.SelectItem {
	out := make([]definition.SelectItem, 0, len(m.Fields))
	for _, f := range m.Fields {
		out = append(out, fieldSelect(f, f.Name, namePath))
	}
	return out
}

func fieldSelect(f *definition.FieldDef, alias string, namePath []string) *definition.ValueSelect {
	return &definition.ValueSelect{
		Kind:     definition.SelectField,
		Alias:    alias,
		NamePath: concat(namePath, []string{f.Name}),
		RefKey:   f.RefKey,
		Type:     f.Type,
	}
}

// composeSelect resolves select items of model m. Every NamePath starts
// with namePath.
func (c *composer) composeSelect(s *scope, m *definition.ModelDef, namePath []string, items []*ast.SelectItem) ([]definition.SelectItem, error) {
	out := make([]definition.SelectItem, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		alias := it.Alias
		if alias == "" {
			alias = it.Name
		}
		if seen[alias] {
			return nil, errorAt(alerr.ErrDuplicateName, it.Pos, "%q is selected twice", alias).
				WithHelp("rename one of them with as")
		}
		seen[alias] = true
		if it.Alias != "" {
			if err := validate.Alias(it.Alias); err != nil {
				return nil, at(err, it.Pos)
			}
		}

		refs, _, err := c.walk(m, []string{it.Name}, it.Pos)
		if err != nil {
			return nil, err
		}
		ref := refs[0]
		path := concat(namePath, []string{it.Name})

		switch ref.Kind {
		case definition.RefField, definition.RefComputed:
			if len(it.Select) > 0 {
				return nil, errorAt(alerr.ErrTypeMismatch, it.Pos, "%s is a %s and has no members to select", it.Name, ref.Kind)
			}
			vs := &definition.ValueSelect{Kind: definition.SelectField, Alias: alias, NamePath: path, RefKey: ref.RefKey()}
			if ref.Kind == definition.RefField {
				vs.Type = ref.Field.Type
			} else {
				vs.Kind, vs.Type = definition.SelectComputed, ref.Computed.Type
			}
			out = append(out, vs)

		case definition.RefHook:
			out = append(out, hookSelect(ref, alias, namePath))

		case definition.RefQuery:
			if ref.Query.Aggregate != nil {
				out = append(out, &definition.ValueSelect{
					Kind:     definition.SelectAggregate,
					Alias:    alias,
					NamePath: path,
					RefKey:   ref.RefKey(),
					Type:     definition.ScalarType(ref.Query.RetType),
				})
				continue
			}
			fallthrough

		default:
			q := c.memberQuery(m, ref)
			if len(it.Select) > 0 {
				target := c.targetModel(ref)
				if q.Select, err = c.composeSelect(s, target, q.FromPath, it.Select); err != nil {
					return nil, err
				}
			}
			out = append(out, &definition.NestedSelect{Alias: alias, NamePath: path, RefKey: ref.RefKey(), Query: q})
		}
	}
	return out, nil
}

func hookSelect(ref definition.Ref, alias string, namePath []string) *definition.HookSelect {
	h := ref.Hook
	args := make([]*definition.HookArgDef, len(h.Args))
	for i, a := range h.Args {
		args[i] = &definition.HookArgDef{
			Name: a.Name,
			Expr: definition.RebasePaths(a.Expr, []string{ref.Model.Name}, namePath),
		}
	}
	return &definition.HookSelect{
		Alias:    alias,
		NamePath: concat(namePath, []string{h.Name}),
		RefKey:   ref.RefKey(),
		Args:     args,
		Code:     h.Code,
	}
}

// memberQuery returns the query fetching a reference, relation or query
// member of m, rooted at m and selecting every field of the target.
func (c *composer) memberQuery(m *definition.ModelDef, ref definition.Ref) *definition.QueryDef {
	if ref.Kind == definition.RefQuery {
		q := *ref.Query
		q.Select = defaultSelect(c.models[q.ModelRefKey].def, q.FromPath)
		return &q
	}
	target := c.targetModel(ref)
	fromPath := []string{m.Name, ref.Name()}
	return &definition.QueryDef{
		Name:           ref.Name(),
		ModelRefKey:    target.Name,
		RetType:        target.Name,
		RetCardinality: refCardinality(ref),
		FromPath:       fromPath,
		Select:         defaultSelect(target, fromPath),
		OrderBy:        []*definition.OrderByDef{},
	}
}

// -----------------------------------------------------------------------------
// Select dependencies
// -----------------------------------------------------------------------------

// accessSelect returns the select reading access from a record of model m
// whose paths start with namePath. The id is always selected.
func (c *composer) accessSelect(m *definition.ModelDef, namePath, access []string) []definition.SelectItem {
	out := []definition.SelectItem{fieldSelect(m.Field("id"), "id", namePath)}
	if len(access) == 0 {
		return out
	}
	ref := m.Member(access[0])
	switch ref.Kind {
	case definition.RefField:
		return definition.MergeSelects(out, []definition.SelectItem{fieldSelect(ref.Field, ref.Field.Name, namePath)})
	case definition.RefComputed:
		return definition.MergeSelects(out, []definition.SelectItem{&definition.ValueSelect{
			Kind:     definition.SelectComputed,
			Alias:    access[0],
			NamePath: concat(namePath, access[:1]),
			RefKey:   ref.RefKey(),
			Type:     ref.Computed.Type,
		}})
	case definition.RefQuery:
		if ref.Query.Aggregate != nil {
			return definition.MergeSelects(out, []definition.SelectItem{&definition.ValueSelect{
				Kind:     definition.SelectAggregate,
				Alias:    access[0],
				NamePath: concat(namePath, access[:1]),
				RefKey:   ref.RefKey(),
				Type:     definition.ScalarType(ref.Query.RetType),
			}})
		}
	case definition.RefHook:
		return definition.MergeSelects(out, []definition.SelectItem{hookSelect(ref, access[0], namePath)})
	case definition.RefNone:
		return out
	}
	q := c.memberQuery(m, ref)
	q.Select = c.accessSelect(c.targetModel(ref), q.FromPath, access[1:])
	return definition.MergeSelects(out, []definition.SelectItem{&definition.NestedSelect{
		Alias:    access[0],
		NamePath: concat(namePath, access[:1]),
		RefKey:   ref.RefKey(),
		Query:    q,
	}})
}

// selectDeps collects, per record variable, the select every read of that
// variable in exprs and setters needs.
type selectDeps struct {
	c    *composer
	deps map[string][]definition.SelectItem
}

func newSelectDeps(c *composer) *selectDeps {
	return &selectDeps{c: c, deps: map[string][]definition.SelectItem{}}
}

func (d *selectDeps) add(v *contextVar, access []string) {
	if v == nil || v.kind != varRecord {
		return
	}
	sel := d.c.accessSelect(v.model, []string{v.model.Name}, access)
	d.deps[v.name] = definition.MergeSelects(d.deps[v.name], sel)
}

func (d *selectDeps) expr(s *scope, e definition.TypedExpr) {
	for _, ve := range definition.CollectVariables(e) {
		d.add(s.vars[ve.Name], ve.Access)
	}
}

func (d *selectDeps) setter(s *scope, st definition.Setter) {
	switch st := st.(type) {
	case *definition.ReferenceValueSetter:
		d.add(s.vars[st.Alias], st.Access)
	case *definition.FieldsetInputSetter:
		d.setter(s, st.Default)
	case *definition.FunctionSetter:
		for _, a := range st.Args {
			d.setter(s, a)
		}
	case *definition.ArraySetter:
		for _, e := range st.Elements {
			d.setter(s, e)
		}
	case *definition.HookSetter:
		d.changeset(s, st.Hook.Args)
	case *definition.QuerySetter:
		d.query(s, st.Query)
	}
}

func (d *selectDeps) changeset(s *scope, cs definition.Changeset) {
	for _, op := range cs {
		d.setter(s, op.Setter)
	}
}

func (d *selectDeps) query(s *scope, q *definition.QueryDef) {
	if q == nil {
		return
	}
	d.expr(s, q.Filter)
	for _, o := range q.OrderBy {
		d.expr(s, o.Expr)
	}
}

// get returns the select of variable name, rebased to namePath.
func (d *selectDeps) get(name string, model *definition.ModelDef, namePath []string) []definition.SelectItem {
	sel := d.deps[name]
	if len(sel) == 0 {
		sel = d.c.accessSelect(model, []string{model.Name}, nil)
	}
	return definition.RebaseSelect(sel, []string{model.Name}, namePath)
}
