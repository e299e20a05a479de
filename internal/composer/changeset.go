package composer

import (
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// changesetNode orders changeset operations by the names they read.
type changesetNode struct {
	op    *definition.ChangesetOperation
	reads []string
}

func (n changesetNode) ID() string             { return n.op.Name }
func (n changesetNode) Dependencies() []string { return n.reads }

// composeChangeset partitions the set, input, reference and deny rules of a
// create or update action into a changeset. Primary actions also receive an
// implicit input for every field no rule mentions; creates fill the rest
// with field defaults.
func (c *composer) composeChangeset(b *actionBlock, s *scope, p *actionPlan) (definition.Changeset, error) {
	a, m := p.node, p.model
	create := a.Kind == ast.ActionCreate
	populate := b.kind == blockPopulate

	var base []string
	if !p.primary {
		base = []string{p.alias}
	}
	needsFieldset := func(pos ast.Pos) error {
		if populate {
			return errorAt(alerr.ErrBlueprintInvalid, pos, "populate blocks have no request input")
		}
		if !p.primary && p.alias == "" {
			return errorAt(alerr.ErrBlueprintInvalid, pos, "%s action with inputs needs an alias (as)", a.Kind)
		}
		return nil
	}

	var nodes []changesetNode
	covered := map[string]bool{}
	var dups []string
	cover := func(name string) {
		if covered[name] && !slices.Contains(dups, name) {
			dups = append(dups, name)
		}
		covered[name] = true
	}
	field := func(name string, pos ast.Pos) (*definition.FieldDef, error) {
		fieldName, _, ok := changesetName(m, name)
		if !ok {
			return nil, errorAt(alerr.ErrUnresolvedPath, pos, "%q is not a field or reference of model %s", name, m.Name).
				WithModel(m.Name).
				WithHelp(alerr.SuggestSimilar(name, m.MemberNames()))
		}
		if fieldName == "id" {
			return nil, errorAt(alerr.ErrBlueprintInvalid, pos, "%s.id cannot be set", m.Name)
		}
		return m.Field(fieldName), nil
	}

	for _, r := range a.References {
		ref := m.Reference(r.Field)
		if ref == nil {
			return nil, errorAt(alerr.ErrUnresolvedPath, r.Pos, "%q is not a reference of model %s", r.Field, m.Name).
				WithHelp(alerr.SuggestSimilar(r.Field, referenceNames(m)))
		}
		if err := needsFieldset(r.Pos); err != nil {
			return nil, err
		}
		to := c.models[ref.ToModelRefKey].def
		through := to.Field(r.Through)
		if through == nil {
			return nil, errorAt(alerr.ErrUnresolvedPath, r.Pos, "%q is not a field of model %s", r.Through, to.Name).
				WithHelp(alerr.SuggestSimilar(r.Through, to.MemberNames()))
		}
		if !through.Unique {
			return nil, errorAt(alerr.ErrBlueprintInvalid, r.Pos, "reference %s is looked up through %s.%s, which is not unique",
				r.Field, to.Name, through.Name)
		}
		f := m.FieldByRefKey(ref.FieldRefKey)
		access := concat(base, []string{ref.Name + "_" + through.Name})
		if err := b.fieldset.add(access, &definition.FieldsetField{
			Type:       through.Type,
			Required:   create && !ref.Nullable,
			Nullable:   ref.Nullable,
			Validators: []*definition.ValidatorDef{},
		}, r.Pos); err != nil {
			return nil, err
		}
		cover(f.Name)
		nodes = append(nodes, changesetNode{op: &definition.ChangesetOperation{
			Name:   f.Name,
			Setter: &definition.FieldsetReferenceInputSetter{FieldsetAccess: access, ThroughRefKey: through.RefKey, Type: through.Type},
		}})
	}

	for _, in := range a.Inputs {
		f, err := field(in.Field, in.Pos)
		if err != nil {
			return nil, err
		}
		if err := needsFieldset(in.Pos); err != nil {
			return nil, err
		}
		var def definition.Setter
		var reads []string
		if in.Default != nil {
			ts, r, err := c.composeSetter(s, m, in.Default)
			if err != nil {
				return nil, err
			}
			if err := checkAssign(f, ts.typ, in.Pos); err != nil {
				return nil, err
			}
			def, reads = ts.setter, r
		}
		access := concat(base, []string{f.Name})
		required := !in.Optional && in.Default == nil
		if err := b.fieldset.add(access, inputField(f, required), in.Pos); err != nil {
			return nil, err
		}
		cover(f.Name)
		nodes = append(nodes, changesetNode{op: &definition.ChangesetOperation{
			Name:   f.Name,
			Setter: &definition.FieldsetInputSetter{Type: f.Type, FieldsetAccess: access, Required: required, Default: def},
		}, reads: reads})
	}

	for _, set := range a.Set {
		f, err := field(set.Field, set.Pos)
		if err != nil {
			return nil, err
		}
		var node changesetNode
		switch {
		case set.Hook != nil:
			hook, err := c.composeHookCall(s, set.Hook)
			if err != nil {
				return nil, err
			}
			node.op = &definition.ChangesetOperation{Name: f.Name, Setter: &definition.HookSetter{Hook: hook}}
		case set.Query != nil:
			q, err := c.composeContextQuery(s, set.Query)
			if err != nil {
				return nil, err
			}
			if q.Aggregate != nil {
				if err := checkAssign(f, definition.ScalarType(q.RetType), set.Pos); err != nil {
					return nil, err
				}
			}
			node.op = &definition.ChangesetOperation{Name: f.Name, Setter: &definition.QuerySetter{Query: q}}
		default:
			ts, reads, err := c.composeSetter(s, m, set.Expr)
			if err != nil {
				return nil, err
			}
			if err := checkAssign(f, ts.typ, set.Pos); err != nil {
				return nil, err
			}
			node = changesetNode{op: &definition.ChangesetOperation{Name: f.Name, Setter: ts.setter}, reads: reads}
		}
		cover(f.Name)
		nodes = append(nodes, node)
	}

	denyAll := false
	denied := map[string]bool{}
	for _, d := range a.Deny {
		if d == "*" {
			denyAll = true
			continue
		}
		f, err := field(d, a.Pos)
		if err != nil {
			return nil, err
		}
		cover(f.Name)
		denied[f.Name] = true
	}
	if denyAll && len(a.Deny) > 1 {
		return nil, errorAt(alerr.ErrInvalidDeny, a.Pos, "deny * cannot be combined with other deny rules")
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		return nil, errorAt(alerr.ErrDuplicateSetter, a.Pos, "fields of %s are targeted by more than one rule: %s", m.Name, strings.Join(dups, ", ")).
			WithModel(m.Name).
			With("fields", dups)
	}

	if p.parent != nil && !covered[p.parent.field] {
		covered[p.parent.field] = true
		nodes = append([]changesetNode{{op: &definition.ChangesetOperation{
			Name:   p.parent.field,
			Setter: &definition.ReferenceValueSetter{Alias: p.parent.alias, Access: []string{"id"}},
		}}}, nodes...)
	}

	for _, f := range m.Fields {
		if f.Primary || covered[f.Name] {
			continue
		}
		switch {
		case p.primary && !populate && !denyAll:
			st := &definition.FieldsetInputSetter{Type: f.Type, FieldsetAccess: []string{f.Name}}
			if create {
				st.Required = !f.Nullable && f.Default == nil
				if f.Default != nil {
					st.Default = &definition.LiteralSetter{Type: f.Default.Type, Value: f.Default.Value}
				}
			}
			if err := b.fieldset.add([]string{f.Name}, inputField(f, st.Required), a.Pos); err != nil {
				return nil, err
			}
			nodes = append(nodes, changesetNode{op: &definition.ChangesetOperation{Name: f.Name, Setter: st}})
		case create:
			st, err := c.fieldDefault(m, f, populate, a.Pos)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, changesetNode{op: &definition.ChangesetOperation{Name: f.Name, Setter: st}})
		}
	}

	// a denied field is still written on create, with its default
	if create {
		for _, f := range m.Fields {
			if !denied[f.Name] {
				continue
			}
			st, err := c.fieldDefault(m, f, populate, a.Pos)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, changesetNode{op: &definition.ChangesetOperation{Name: f.Name, Setter: st}})
		}
	}

	names := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		names[n.op.Name] = true
	}
	for _, n := range nodes {
		for _, r := range n.reads {
			if !names[r] {
				return nil, errorAt(alerr.ErrUnresolvedPath, a.Pos, "%s reads %s, which this action does not set", n.op.Name, r).
					WithModel(m.Name)
			}
		}
	}
	sorted, err := topoSort(nodes)
	if err != nil {
		return nil, at(err, a.Pos)
	}
	cs := make(definition.Changeset, len(sorted))
	for i, n := range sorted {
		cs[i] = n.op
	}
	return cs, nil
}

// fieldDefault is the value a create writes to a field no rule sets.
// Populate blocks fall back to the zero value of non-nullable fields.
func (c *composer) fieldDefault(m *definition.ModelDef, f *definition.FieldDef, populate bool, pos ast.Pos) (definition.Setter, error) {
	switch {
	case f.Default != nil:
		return &definition.LiteralSetter{Type: f.Default.Type, Value: f.Default.Value}, nil
	case f.Nullable:
		return &definition.LiteralSetter{Type: definition.TypeNull}, nil
	case populate && m.ReferenceByField(f.Name) == nil:
		return zeroValue(f.Type), nil
	}
	what := "field"
	if m.ReferenceByField(f.Name) != nil {
		what = "reference"
	}
	return nil, errorAt(alerr.ErrBlueprintInvalid, pos, "create of %s does not set required %s %s", m.Name, what, f.Name).
		WithModel(m.Name).
		WithHelp("set it, make it an input, or give the field a default")
}

func zeroValue(t definition.ScalarType) *definition.LiteralSetter {
	switch t {
	case definition.TypeInteger:
		return &definition.LiteralSetter{Type: t, Value: int64(0)}
	case definition.TypeFloat:
		return &definition.LiteralSetter{Type: t, Value: float64(0)}
	case definition.TypeBoolean:
		return &definition.LiteralSetter{Type: t, Value: false}
	default:
		return &definition.LiteralSetter{Type: definition.TypeString, Value: ""}
	}
}

func inputField(f *definition.FieldDef, required bool) *definition.FieldsetField {
	return &definition.FieldsetField{Type: f.Type, Required: required, Nullable: f.Nullable, Validators: f.Validators}
}

func checkAssign(f *definition.FieldDef, t definition.ScalarType, pos ast.Pos) error {
	if t == definition.TypeNull && !f.Nullable {
		return errorAt(alerr.ErrTypeMismatch, pos, "%s is not nullable", f.Name)
	}
	if !assignable(f.Type, t) {
		return errorAt(alerr.ErrTypeMismatch, pos, "%s is %s, got %s", f.Name, f.Type, t)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Fieldsets
// -----------------------------------------------------------------------------

// fieldsetBuilder accumulates the request body shape of an endpoint.
type fieldsetBuilder struct {
	root *definition.FieldsetRecord
}

func newFieldsetBuilder() *fieldsetBuilder {
	return &fieldsetBuilder{root: &definition.FieldsetRecord{Record: map[string]definition.Fieldset{}}}
}

func (b *fieldsetBuilder) add(access []string, f *definition.FieldsetField, pos ast.Pos) error {
	rec := b.root
	for _, seg := range access[:len(access)-1] {
		next, ok := rec.Record[seg]
		if !ok {
			nr := &definition.FieldsetRecord{Record: map[string]definition.Fieldset{}}
			rec.Record[seg] = nr
			rec = nr
			continue
		}
		nr, ok := next.(*definition.FieldsetRecord)
		if !ok {
			return errorAt(alerr.ErrDuplicateName, pos, "input %s is both a field and a record", seg)
		}
		rec = nr
	}
	last := access[len(access)-1]
	if _, ok := rec.Record[last]; ok {
		return errorAt(alerr.ErrDuplicateName, pos, "input %s is declared twice", strings.Join(access, "."))
	}
	rec.Record[last] = f
	return nil
}

// fieldset returns the built fieldset, nil when the endpoint takes no input.
func (b *fieldsetBuilder) fieldset() definition.Fieldset {
	if len(b.root.Record) == 0 {
		return nil
	}
	return b.root
}
