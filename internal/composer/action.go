package composer

import (
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// blockPopulate is the kind of an action block owned by a populate.
const blockPopulate = "populate"

// actionBlock is what the actions of one endpoint or populate share.
type actionBlock struct {
	kind        string // endpoint kind or blockPopulate
	scope       *scope
	target      *definition.TargetDef
	targetModel *definition.ModelDef
	// set when the target is reached through a relation of its parent
	parent   *parentLink
	fieldset *fieldsetBuilder
	deps     *selectDeps
	pos      ast.Pos
}

// parentLink is the implicit setter of the reference pointing at the parent.
type parentLink struct {
	field string
	alias string
}

// actionPlan is an action between target resolution and composition.
type actionPlan struct {
	node       *ast.Action
	alias      string
	produces   string // alias bound by this action, empty when it binds nothing new
	model      *definition.ModelDef
	targetPath []string
	primary    bool
	parent     *parentLink
	query      *definition.QueryDef
	def        definition.ActionDef
	reads      []string
}

func (p *actionPlan) ID() string             { return p.produces }
func (p *actionPlan) Dependencies() []string { return p.reads }

func (b *actionBlock) custom() bool {
	return b.kind == definition.EndpointCustomOne || b.kind == definition.EndpointCustomMany
}

// primaryKind is the action kind an endpoint performs on its target.
func (b *actionBlock) primaryKind() string {
	switch b.kind {
	case definition.EndpointCreate, blockPopulate:
		return ast.ActionCreate
	case definition.EndpointUpdate:
		return ast.ActionUpdate
	case definition.EndpointDelete:
		return ast.ActionDelete
	}
	return ""
}

func (b *actionBlock) isPrimary(a *ast.Action) bool {
	if b.target == nil || a.Kind != b.primaryKind() {
		return false
	}
	return len(a.Target) == 0 || (len(a.Target) == 1 && a.Target[0] == b.target.Alias)
}

// composeActions composes the actions of a block and orders them so that
// every action runs after the actions whose aliases it reads. Create, update
// and delete endpoints without an explicit action on their target get one.
func (c *composer) composeActions(b *actionBlock, actions []*ast.Action) ([]definition.ActionDef, error) {
	for _, a := range actions {
		if len(a.Nested) > 0 {
			return nil, errorAt(alerr.ErrUnsupported, a.Pos, "nested actions are not supported")
		}
	}
	if kind := b.primaryKind(); kind != "" && !slices.ContainsFunc(actions, b.isPrimary) {
		actions = append([]*ast.Action{{Kind: kind, Pos: b.pos}}, actions...)
	}

	// pass 1: resolve targets and declare aliases
	s := b.scope
	plans := make([]*actionPlan, 0, len(actions))
	primaries := 0
	for _, a := range actions {
		p, err := c.planAction(b, s, a)
		if err != nil {
			return nil, err
		}
		if p.primary {
			primaries++
			if primaries > 1 {
				return nil, errorAt(alerr.ErrDuplicateName, a.Pos, "more than one %s action targets %s", a.Kind, b.target.Alias)
			}
		}
		if v := c.actionVar(p); v != nil {
			s = s.withVar(v)
		}
		plans = append(plans, p)
	}

	// pass 2: compose bodies with every alias of the block visible
	responds := 0
	for _, p := range plans {
		if err := c.composeAction(b, s, p); err != nil {
			return nil, err
		}
		if respondsAction(p.def) {
			responds++
			if !b.custom() {
				return nil, errorAt(alerr.ErrRespondsMisuse, p.node.Pos, "only custom endpoints can respond from an action")
			}
			if responds > 1 {
				return nil, errorAt(alerr.ErrRespondsMisuse, p.node.Pos, "more than one action responds")
			}
		}
	}

	sorted, err := topoSort(plans)
	if err != nil {
		return nil, at(err, b.pos)
	}

	// every alias needs the fields later actions read from it
	out := make([]definition.ActionDef, 0, len(sorted))
	for _, p := range sorted {
		switch def := p.def.(type) {
		case *definition.CreateOneAction:
			def.Select = b.deps.get(def.Alias, p.model, []string{p.model.Name})
		case *definition.UpdateOneAction:
			def.Select = b.deps.get(def.Alias, p.model, []string{p.model.Name})
		}
		out = append(out, p.def)
	}
	return out, nil
}

func respondsAction(a definition.ActionDef) bool {
	switch a := a.(type) {
	case *definition.ExecuteHookAction:
		return a.Responds
	case *definition.RespondAction:
		return true
	}
	return false
}

// actionVar is the variable an action binds for the actions after it.
func (c *composer) actionVar(p *actionPlan) *contextVar {
	if p.produces == "" {
		return nil
	}
	switch p.node.Kind {
	case ast.ActionCreate, ast.ActionUpdate:
		return &contextVar{name: p.produces, kind: varRecord, model: p.model}
	case ast.ActionFetch:
		if p.query.Aggregate != nil {
			return &contextVar{name: p.produces, kind: varScalar, typ: definition.ScalarType(p.query.RetType)}
		}
		if p.query.RetCardinality == definition.Many {
			return &contextVar{name: p.produces, kind: varList, model: p.model}
		}
		return &contextVar{name: p.produces, kind: varRecord, model: p.model}
	case ast.ActionExecute:
		return &contextVar{name: p.produces, kind: varScalar}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Targets
// -----------------------------------------------------------------------------

func (c *composer) planAction(b *actionBlock, s *scope, a *ast.Action) (*actionPlan, error) {
	p := &actionPlan{node: a}
	switch a.Kind {
	case ast.ActionCreate:
		if err := c.planCreate(b, s, p); err != nil {
			return nil, err
		}
	case ast.ActionUpdate, ast.ActionDelete:
		if err := c.planUpdate(b, s, p); err != nil {
			return nil, err
		}
	case ast.ActionFetch:
		if a.Query == nil {
			return nil, errorAt(alerr.ErrBlueprintInvalid, a.Pos, "fetch action has no query")
		}
		if a.As == "" {
			return nil, errorAt(alerr.ErrBlueprintInvalid, a.Pos, "fetch action needs an alias (as)")
		}
		q, err := c.composeContextQuery(s, a.Query)
		if err != nil {
			return nil, err
		}
		p.query = q
		p.model = c.models[q.ModelRefKey].def
		p.alias = a.As
	case ast.ActionExecute:
		if a.Hook == nil {
			return nil, errorAt(alerr.ErrBlueprintInvalid, a.Pos, "execute action has no hook")
		}
		p.alias = a.As
	case ast.ActionRespond, ast.ActionValidate:
		if a.As != "" {
			return nil, errorAt(alerr.ErrBlueprintInvalid, a.Pos, "%s action cannot have an alias", a.Kind)
		}
	default:
		return nil, errorAt(alerr.ErrUnsupported, a.Pos, "unknown action %q", a.Kind)
	}

	if p.alias != "" && !(p.primary && s.bound(p.alias)) {
		if err := c.checkAlias(s, p.alias, a.Pos); err != nil {
			return nil, err
		}
		p.produces = p.alias
	}
	return p, nil
}

func (c *composer) planCreate(b *actionBlock, s *scope, p *actionPlan) error {
	a := p.node
	path := a.Target
	if len(path) == 0 {
		if b.target == nil || (b.kind != definition.EndpointCreate && b.kind != definition.EndpointCustomMany && b.kind != blockPopulate) {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "create action needs a target")
		}
		path = []string{b.target.Alias}
	}
	p.targetPath = path
	p.alias = a.As
	head := path[0]

	switch {
	case len(path) == 1 && b.target != nil && head == b.target.Alias:
		if b.kind != definition.EndpointCreate && b.kind != definition.EndpointCustomMany && b.kind != blockPopulate {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "cannot create %s in a %s endpoint", head, b.kind)
		}
		p.model = b.targetModel
		p.parent = b.parent
		p.targetPath = b.target.NamePath
		p.primary = b.isPrimary(a)
		if p.primary {
			if a.As != "" && a.As != b.target.Alias {
				return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "the %s action on %s is bound to %s and cannot be renamed",
					a.Kind, b.target.Alias, b.target.Alias)
			}
			p.alias = b.target.Alias
		}

	case s.vars[head] != nil:
		v := s.vars[head]
		if v.kind != varRecord || len(path) != 2 {
			return errorAt(alerr.ErrUnsupported, a.Pos, "create target %s must be a relation of a record", strings.Join(path, ".")).
				WithHelp("use alias.relation, for example org.repos")
		}
		refs, m, err := c.walk(v.model, path[1:], a.Pos)
		if err != nil {
			return err
		}
		if refs[0].Kind != definition.RefRelation {
			return errorAt(alerr.ErrUnsupported, a.Pos, "create target %s is a %s, not a relation", strings.Join(path, "."), refs[0].Kind)
		}
		through, err := c.throughField(refs[0].Relation)
		if err != nil {
			return err
		}
		p.model = m
		p.parent = &parentLink{field: through, alias: head}

	case len(path) == 1 && c.models[head] != nil:
		p.model = c.models[head].def

	default:
		return errorAt(alerr.ErrUnresolvedPath, a.Pos, "cannot resolve create target %q", strings.Join(path, ".")).
			WithHelp(alerr.SuggestSimilar(head, c.recordNames(s)))
	}
	return nil
}

func (c *composer) planUpdate(b *actionBlock, s *scope, p *actionPlan) error {
	a := p.node
	path := a.Target
	if len(path) == 0 {
		if b.target == nil || s.vars[b.target.Alias] == nil {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "%s action needs a target", a.Kind)
		}
		path = []string{b.target.Alias}
	}
	head := path[0]
	v := s.vars[head]
	if v == nil || v.kind != varRecord {
		return errorAt(alerr.ErrUnresolvedPath, a.Pos, "%s target %q is not a record alias", a.Kind, head).
			WithHelp(alerr.SuggestSimilar(head, c.recordNames(s)))
	}
	refs, m, err := c.walk(v.model, path[1:], a.Pos)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.Kind != definition.RefReference {
			return errorAt(alerr.ErrUnsupported, a.Pos, "%s target %s must follow references only", a.Kind, strings.Join(path, "."))
		}
	}
	if m == nil {
		m = v.model
	}
	p.model = m
	p.targetPath = path
	p.primary = b.isPrimary(a)
	if a.Kind == ast.ActionDelete {
		if a.As != "" {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "delete action cannot have an alias")
		}
		return nil
	}
	p.alias = a.As
	if p.primary {
		if a.As != "" && a.As != b.target.Alias {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "the update action on %s cannot be renamed", b.target.Alias)
		}
		p.alias = b.target.Alias
	}
	// read the target id when the action runs
	b.deps.add(v, concat(path[1:], []string{"id"}))
	return nil
}

// throughField returns the changeset name of the reference behind relation r.
func (c *composer) throughField(r *definition.RelationDef) (string, error) {
	from := c.models[r.FromModelRefKey].def
	for _, ref := range from.References {
		if ref.RefKey == r.ThroughRefKey {
			return from.FieldByRefKey(ref.FieldRefKey).Name, nil
		}
	}
	return "", alerr.Newf(alerr.ErrUnresolvedPath, "relation %s has no reference", r.RefKey)
}

func (c *composer) recordNames(s *scope) []string {
	var out []string
	for n, v := range s.vars {
		if v.kind == varRecord {
			out = append(out, n)
		}
	}
	for n := range c.models {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// -----------------------------------------------------------------------------
// Bodies
// -----------------------------------------------------------------------------

func (c *composer) composeAction(b *actionBlock, s *scope, p *actionPlan) error {
	a := p.node
	reads := newReadSet(s)
	switch a.Kind {
	case ast.ActionCreate, ast.ActionUpdate:
		cs, err := c.composeChangeset(b, s, p)
		if err != nil {
			return err
		}
		reads.changeset(cs)
		b.deps.changeset(s, cs)
		if p.parent != nil {
			reads.add(p.parent.alias)
		}
		if a.Kind == ast.ActionCreate {
			p.def = &definition.CreateOneAction{Alias: p.alias, Model: p.model.Name, TargetPath: p.targetPath, Changeset: cs, IsPrimary: p.primary}
		} else {
			reads.add(p.targetPath[0])
			p.def = &definition.UpdateOneAction{Alias: p.alias, Model: p.model.Name, TargetPath: p.targetPath, Changeset: cs, IsPrimary: p.primary}
		}

	case ast.ActionDelete:
		if len(a.Set)+len(a.Inputs)+len(a.References)+len(a.Deny) > 0 {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "delete action cannot set fields")
		}
		reads.add(p.targetPath[0])
		p.def = &definition.DeleteOneAction{Model: p.model.Name, TargetPath: p.targetPath, IsPrimary: p.primary}

	case ast.ActionExecute:
		hook, err := c.composeHookCall(s, a.Hook)
		if err != nil {
			return err
		}
		reads.changeset(hook.Args)
		b.deps.changeset(s, hook.Args)
		p.def = &definition.ExecuteHookAction{Alias: p.alias, Hook: hook, Responds: a.Responds}

	case ast.ActionFetch:
		reads.query(p.query)
		b.deps.query(s, p.query)
		p.def = &definition.FetchAction{Alias: p.alias, Query: p.query}

	case ast.ActionRespond:
		if a.Body == nil {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "respond action has no body")
		}
		body, err := c.composeExpr(s, a.Body)
		if err != nil {
			return err
		}
		status, err := c.composeExpr(s, a.HTTPStatus)
		if err != nil {
			return err
		}
		if status != nil && status.ExprType() != definition.TypeInteger && status.ExprType() != "" {
			return errorAt(alerr.ErrTypeMismatch, a.Pos, "httpStatus must be an integer, got %s", status.ExprType())
		}
		reads.expr(body)
		reads.expr(status)
		b.deps.expr(s, body)
		b.deps.expr(s, status)
		p.def = &definition.RespondAction{Body: body, HTTPStatus: status}

	case ast.ActionValidate:
		if a.Key == "" || a.Expr == nil {
			return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "validate action needs a key and an expr")
		}
		e, err := c.composeExpr(s, a.Expr)
		if err != nil {
			return err
		}
		if err := expectBoolean(e, a.Pos, "validate expr"); err != nil {
			return err
		}
		reads.expr(e)
		b.deps.expr(s, e)
		p.def = &definition.ValidateAction{Key: a.Key, Expr: e}
	}
	p.reads = reads.names
	return nil
}

// readSet collects the variables an action reads.
type readSet struct {
	s     *scope
	names []string
}

func newReadSet(s *scope) *readSet { return &readSet{s: s} }

func (r *readSet) add(name string) {
	if !slices.Contains(r.names, name) {
		r.names = append(r.names, name)
	}
}

func (r *readSet) expr(e definition.TypedExpr) {
	for _, v := range definition.CollectVariables(e) {
		r.add(v.Name)
	}
}

func (r *readSet) query(q *definition.QueryDef) {
	if q == nil {
		return
	}
	r.expr(q.Filter)
	for _, o := range q.OrderBy {
		r.expr(o.Expr)
	}
}

func (r *readSet) changeset(cs definition.Changeset) {
	for _, op := range cs {
		r.setter(op.Setter)
	}
}

func (r *readSet) setter(st definition.Setter) {
	switch st := st.(type) {
	case *definition.ReferenceValueSetter:
		r.add(st.Alias)
	case *definition.FieldsetInputSetter:
		r.setter(st.Default)
	case *definition.FunctionSetter:
		for _, a := range st.Args {
			r.setter(a)
		}
	case *definition.ArraySetter:
		for _, e := range st.Elements {
			r.setter(e)
		}
	case *definition.HookSetter:
		r.changeset(st.Hook.Args)
	case *definition.QuerySetter:
		r.query(st.Query)
	}
}
