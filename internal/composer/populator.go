package composer

import (
	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/strutil"
)

func (c *composer) composePopulators() error {
	seen := map[string]bool{}
	for _, p := range c.doc.Populators {
		if seen[p.Name] {
			return errorAt(alerr.ErrDuplicateName, p.Pos, "populator %s is declared twice", p.Name)
		}
		seen[p.Name] = true
		def := &definition.PopulatorDef{Name: p.Name, Populates: []*definition.PopulateDef{}}
		s := &scope{vars: map[string]*contextVar{}, aliases: map[string][]string{}}
		for _, item := range p.Populates {
			pd, err := c.composePopulate(s, nil, nil, item)
			if err != nil {
				return err
			}
			def.Populates = append(def.Populates, pd)
		}
		c.def.Populators = append(c.def.Populators, def)
	}
	return nil
}

// composePopulate composes one populate block. Below the top level the
// target is a relation of the parent and every created row points at the
// parent row of the current iteration.
func (c *composer) composePopulate(s *scope, parent *definition.TargetDef, parentModel *definition.ModelDef,
	p *ast.Populate) (*definition.PopulateDef, error) {

	target, model, link, err := c.populateTarget(parent, parentModel, p)
	if err != nil {
		return nil, err
	}
	if err := c.checkAlias(s, target.Alias, p.Pos); err != nil {
		return nil, err
	}

	repeater, err := composeRepeater(p.Repeat)
	if err != nil {
		return nil, err
	}
	if repeater.Alias != "" {
		if err := c.checkAlias(s, repeater.Alias, p.Repeat.Pos); err != nil {
			return nil, err
		}
		if repeater.Alias == target.Alias {
			return nil, errorAt(alerr.ErrDuplicateName, p.Repeat.Pos, "alias %q is already in use", repeater.Alias)
		}
		s = s.withVar(&contextVar{name: repeater.Alias, kind: varIterator})
	}

	block := &actionBlock{
		kind:        blockPopulate,
		scope:       s,
		target:      target,
		targetModel: model,
		parent:      link,
		fieldset:    newFieldsetBuilder(),
		deps:        newSelectDeps(c),
		pos:         p.Pos,
	}
	create := &ast.Action{Kind: ast.ActionCreate, Set: p.Set, Pos: p.Pos}
	actions, err := c.composeActions(block, []*ast.Action{create})
	if err != nil {
		return nil, err
	}

	out := &definition.PopulateDef{
		Target:    target,
		Actions:   actions,
		Repeater:  repeater,
		Populates: []*definition.PopulateDef{},
	}
	child := s.withVar(&contextVar{name: target.Alias, kind: varRecord, model: model})
	var children []*definition.PopulateDef
	for _, sub := range p.Populates {
		cd, err := c.composePopulate(child, target, model, sub)
		if err != nil {
			return nil, err
		}
		children = append(children, cd)
	}
	if len(children) > 0 {
		out.Populates = children
		// children read the parent row through its alias
		deps := newSelectDeps(c)
		collectPopulateReads(deps, child, children)
		for _, a := range actions {
			if ca, ok := a.(*definition.CreateOneAction); ok {
				ca.Select = definition.MergeSelects(ca.Select, deps.get(target.Alias, model, []string{model.Name}))
			}
		}
	}
	return out, nil
}

func collectPopulateReads(deps *selectDeps, s *scope, populates []*definition.PopulateDef) {
	for _, p := range populates {
		for _, a := range p.Actions {
			if ca, ok := a.(*definition.CreateOneAction); ok {
				deps.changeset(s, ca.Changeset)
			}
		}
		collectPopulateReads(deps, s, p.Populates)
	}
}

func (c *composer) populateTarget(parent *definition.TargetDef, parentModel *definition.ModelDef,
	p *ast.Populate) (*definition.TargetDef, *definition.ModelDef, *parentLink, error) {

	alias := p.As
	if alias == "" {
		alias = strutil.LowerFirst(p.Target)
	}
	if parent == nil {
		entry, ok := c.models[p.Target]
		if !ok {
			return nil, nil, nil, c.unknownModel(p.Target, p.Pos)
		}
		return &definition.TargetDef{
			Kind:           definition.TargetModel,
			Name:           p.Target,
			NamePath:       []string{p.Target},
			RetType:        p.Target,
			RetCardinality: definition.Many,
			RefKey:         p.Target,
			Alias:          alias,
		}, entry.def, nil, nil
	}

	refs, m, err := c.walk(parentModel, []string{p.Target}, p.Pos)
	if err != nil {
		return nil, nil, nil, err
	}
	if refs[0].Kind != definition.RefRelation {
		return nil, nil, nil, errorAt(alerr.ErrUnsupported, p.Pos, "nested populate target %s.%s must be a relation, not a %s",
			parentModel.Name, p.Target, refs[0].Kind)
	}
	field, err := c.throughField(refs[0].Relation)
	if err != nil {
		return nil, nil, nil, err
	}
	return &definition.TargetDef{
		Kind:           definition.TargetRelation,
		Name:           p.Target,
		NamePath:       concat(parent.NamePath, []string{p.Target}),
		RetType:        m.Name,
		RetCardinality: refCardinality(refs[0]),
		RefKey:         refs[0].RefKey(),
		Alias:          alias,
	}, m, &parentLink{field: field, alias: parent.Alias}, nil
}

// composeRepeater resolves repeat bounds: "repeat n" is 1..n, explicit
// bounds default to 1, no repeater runs once.
func composeRepeater(r *ast.Repeat) (*definition.RepeaterDef, error) {
	out := &definition.RepeaterDef{Start: 1, End: 1}
	if r == nil {
		return out, nil
	}
	out.Alias = r.As
	switch {
	case r.Count != nil:
		out.End = *r.Count
	default:
		if r.Start != nil {
			out.Start = *r.Start
		}
		if r.End != nil {
			out.End = *r.End
		}
	}
	if out.Start <= 0 || out.Start > out.End {
		return nil, errorAt(alerr.ErrInvalidRepeater, r.Pos, "invalid repeat bounds %d..%d", out.Start, out.End).
			WithHelp("start must be at least 1 and not greater than end")
	}
	return out, nil
}
