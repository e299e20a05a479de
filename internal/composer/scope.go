package composer

import (
	"maps"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

type varKind int

const (
	// a record of a model: entrypoint and action aliases, @auth
	varRecord varKind = iota
	// a list of records: fetch aliases with cardinality many
	varList
	// a scalar value: @requestAuthToken, hook results
	varScalar
	// a repeater iteration: {current, total}
	varIterator
)

// contextVar is a name bound at runtime in the executor's Vars.
type contextVar struct {
	name  string
	kind  varKind
	model *definition.ModelDef
	typ   definition.ScalarType
}

// scope decides what the first segment of a path refers to. Lookup order:
// context variables, query from-aliases, then members of the scope model.
type scope struct {
	vars map[string]*contextVar
	// unqualified paths resolve against model; the resulting alias path
	// is prefixed with path
	model *definition.ModelDef
	path  []string
	// query from-aliases: alias name to alias path
	aliases map[string][]string
	// sql expressions cannot call runtime-only functions or read whole records
	sql bool
}

// staticScope is the scope of model-level declarations: only the
// authenticator variables are visible.
func (c *composer) staticScope() *scope {
	s := &scope{vars: map[string]*contextVar{}, aliases: map[string][]string{}}
	if c.def.Authenticator != nil {
		s.vars[AuthVar] = &contextVar{name: AuthVar, kind: varRecord, model: c.models[AuthUserModel].def}
		s.vars[RequestAuthTokenVar] = &contextVar{name: RequestAuthTokenVar, kind: varScalar, typ: definition.TypeString}
	}
	return s
}

func (s *scope) clone() *scope {
	return &scope{
		vars:    maps.Clone(s.vars),
		model:   s.model,
		path:    s.path,
		aliases: maps.Clone(s.aliases),
		sql:     s.sql,
	}
}

func (s *scope) withModel(m *definition.ModelDef, path []string) *scope {
	out := s.clone()
	out.model = m
	out.path = path
	return out
}

func (s *scope) withVar(v *contextVar) *scope {
	out := s.clone()
	out.vars[v.name] = v
	return out
}

// bound reports whether name is already used by a variable or query alias.
func (s *scope) bound(name string) bool {
	_, isVar := s.vars[name]
	_, isAlias := s.aliases[name]
	return isVar || isAlias
}

// -----------------------------------------------------------------------------
// Path resolution
// -----------------------------------------------------------------------------

// walk resolves segs starting at model m, resolving lazy members on the way.
// The returned model is the one reached after the last segment, nil when the
// path ends at a value.
func (c *composer) walk(m *definition.ModelDef, segs []string, pos ast.Pos) ([]definition.Ref, *definition.ModelDef, error) {
	refs := make([]definition.Ref, 0, len(segs))
	cur := m
	for i, seg := range segs {
		if cur == nil {
			return nil, nil, errorAt(alerr.ErrUnresolvedPath, pos, "cannot access %q: %s is not a model",
				seg, strings.Join(segs[:i], ".")).WithPath(segs)
		}
		ref := cur.Member(seg)
		if ref.Kind == definition.RefNone {
			return nil, nil, errorAt(alerr.ErrUnresolvedPath, pos, "%q is not a member of model %s", seg, cur.Name).
				WithModel(cur.Name).
				WithPath(segs).
				WithHelp(alerr.SuggestSimilar(seg, cur.MemberNames()))
		}
		if err := c.ensure(cur, seg); err != nil {
			return nil, nil, err
		}
		ref = cur.Member(seg)
		refs = append(refs, ref)
		cur = c.targetModel(ref)
	}
	return refs, cur, nil
}

// targetModel returns the model a member leads to, nil for value members.
func (c *composer) targetModel(ref definition.Ref) *definition.ModelDef {
	switch ref.Kind {
	case definition.RefReference:
		return c.models[ref.Reference.ToModelRefKey].def
	case definition.RefRelation:
		return c.models[ref.Relation.FromModelRefKey].def
	case definition.RefQuery:
		if ref.Query.Aggregate != nil {
			return nil
		}
		return c.models[ref.Query.ModelRefKey].def
	}
	return nil
}

// valueType returns the type of the value a path ends at. Paths ending at a
// model (references, relations, record queries) or a hook have no value type.
func valueType(refs []definition.Ref) (definition.ScalarType, bool) {
	if len(refs) == 0 {
		return "", false
	}
	last := refs[len(refs)-1]
	switch last.Kind {
	case definition.RefField:
		return last.Field.Type, true
	case definition.RefComputed:
		return last.Computed.Type, true
	case definition.RefQuery:
		if last.Query.Aggregate != nil {
			return definition.ScalarType(last.Query.RetType), true
		}
	}
	return "", false
}

// resolvedPath is a path classified by scope.
type resolvedPath struct {
	// set for context variable paths
	variable *contextVar
	access   []string
	// set for model paths
	namePath []string
	refs     []definition.Ref
	// model reached by the path, nil when it ends at a value
	model *definition.ModelDef
}

func (c *composer) resolvePath(s *scope, p *ast.Path) (*resolvedPath, error) {
	head, rest := p.Segments[0], p.Segments[1:]

	if v, ok := s.vars[head]; ok {
		out := &resolvedPath{variable: v, access: rest}
		switch v.kind {
		case varRecord:
			refs, m, err := c.walk(v.model, rest, p.Pos)
			if err != nil {
				return nil, err
			}
			if pathCardinality(refs) == definition.Many {
				return nil, errorAt(alerr.ErrTypeMismatch, p.Pos, "%s reads through a collection", p.String()).
					WithHelp("use a fetch action with a query instead")
			}
			out.refs, out.model = refs, m
			if len(rest) == 0 {
				out.model = v.model
			}
		case varIterator:
			if len(rest) != 1 || (rest[0] != "current" && rest[0] != "total") {
				return nil, errorAt(alerr.ErrUnresolvedPath, p.Pos, "repeater %s only has current and total", head)
			}
		case varList:
			if len(rest) > 0 {
				return nil, errorAt(alerr.ErrUnresolvedPath, p.Pos, "%s is a list and has no member %q", head, rest[0])
			}
		}
		return out, nil
	}

	if base, ok := s.aliases[head]; ok {
		m, err := c.modelAt(base)
		if err != nil {
			return nil, err
		}
		refs, end, err := c.walk(m, rest, p.Pos)
		if err != nil {
			return nil, err
		}
		out := &resolvedPath{namePath: concat(base, rest), refs: refs, model: end}
		if len(rest) == 0 {
			out.model = m
		}
		return out, nil
	}

	if s.model == nil {
		return nil, c.unresolvedName(s, head, p)
	}
	if s.model.Member(head).Kind == definition.RefNone {
		return nil, c.unresolvedName(s, head, p)
	}
	refs, end, err := c.walk(s.model, p.Segments, p.Pos)
	if err != nil {
		return nil, err
	}
	return &resolvedPath{namePath: concat(s.path, p.Segments), refs: refs, model: end}, nil
}

func (c *composer) unresolvedName(s *scope, name string, p *ast.Path) error {
	var options []string
	for n := range s.vars {
		options = append(options, n)
	}
	for n := range s.aliases {
		options = append(options, n)
	}
	if s.model != nil {
		options = append(options, s.model.MemberNames()...)
	}
	err := errorAt(alerr.ErrUnresolvedPath, p.Pos, "cannot resolve %q in %s", name, p.String()).WithPath(p.Segments)
	if s.model != nil {
		err = err.WithModel(s.model.Name)
	}
	return err.WithHelp(alerr.SuggestSimilar(name, options))
}

// modelAt returns the model an alias path (starting with a model name) leads to.
func (c *composer) modelAt(path []string) (*definition.ModelDef, error) {
	root, ok := c.models[path[0]]
	if !ok {
		return nil, alerr.Newf(alerr.ErrUnresolvedPath, "unknown model %q", path[0])
	}
	_, m, err := c.walk(root.def, path[1:], ast.Pos{})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, alerr.Newf(alerr.ErrUnresolvedPath, "%s does not lead to a model", strings.Join(path, "."))
	}
	return m, nil
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
