package composer

import (
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/validate"
)

// composeQuery composes a model query: q.From walks from the record of root.
// The aliases in q.FromAlias name the from segments in order.
func (c *composer) composeQuery(s *scope, rootPath []string, root *definition.ModelDef, q *ast.Query) (*definition.QueryDef, error) {
	return c.composeRootedQuery(s, rootPath, root, q.From, q.FromAlias, definition.One, q)
}

func (c *composer) composeRootedQuery(s *scope, rootPath []string, root *definition.ModelDef, from, fromAlias []string,
	card definition.Cardinality, q *ast.Query) (*definition.QueryDef, error) {

	refs, target, err := c.walk(root, from, q.Pos)
	if err != nil {
		return nil, err
	}
	if len(from) == 0 {
		target = root
	}
	if target == nil {
		return nil, errorAt(alerr.ErrTypeMismatch, q.Pos, "query source %s does not lead to a model", strings.Join(from, ".")).
			WithPath(from)
	}
	card = combineCardinality(card, pathCardinality(refs))

	fromPath := concat(rootPath, from)
	qs := s.withModel(target, fromPath)
	qs.sql = true
	if len(fromAlias) > 0 {
		// aliases name the last len(fromAlias) prefixes of fromPath
		offset := len(fromPath) - len(fromAlias)
		for i, alias := range fromAlias {
			if alias == "" {
				continue
			}
			if err := c.checkAlias(qs, alias, q.Pos); err != nil {
				return nil, err
			}
			qs.aliases[alias] = fromPath[:offset+i+1]
		}
	}

	out := &definition.QueryDef{
		Name:           q.Name,
		ModelRefKey:    target.Name,
		RetType:        target.Name,
		RetCardinality: card,
		FromPath:       fromPath,
		OrderBy:        []*definition.OrderByDef{},
		Limit:          q.Limit,
		Offset:         q.Offset,
	}

	if out.Filter, err = c.composeExpr(qs, q.Filter); err != nil {
		return nil, err
	}
	if err := expectBoolean(out.Filter, q.Pos, "filter"); err != nil {
		return nil, err
	}

	if out.OrderBy, err = c.composeOrder(qs, q.OrderBy); err != nil {
		return nil, err
	}

	for _, n := range []*int{q.Limit, q.Offset} {
		if n != nil && *n < 0 {
			return nil, errorAt(alerr.ErrBlueprintInvalid, q.Pos, "limit and offset cannot be negative")
		}
	}

	if q.First {
		if q.Aggregate != nil {
			return nil, errorAt(alerr.ErrBlueprintInvalid, q.Pos, "first cannot be combined with %s", q.Aggregate.Name)
		}
		one := 1
		out.Limit = &one
		out.RetCardinality = definition.One
	}

	if q.Aggregate != nil {
		if len(q.Select) > 0 {
			return nil, errorAt(alerr.ErrBlueprintInvalid, q.Pos, "an aggregate query cannot have a select")
		}
		if err := c.composeAggregate(out, target, q.Aggregate); err != nil {
			return nil, err
		}
		return out, nil
	}

	if len(q.Select) > 0 {
		out.Select, err = c.composeSelect(s, target, fromPath, q.Select)
	} else {
		out.Select = defaultSelect(target, fromPath)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *composer) composeAggregate(out *definition.QueryDef, target *definition.ModelDef, a *ast.Aggregate) error {
	switch a.Name {
	case definition.AggregateCount:
		out.Aggregate = &definition.AggregateDef{Name: definition.AggregateCount}
		out.RetType = string(definition.TypeInteger)
	case definition.AggregateSum:
		f := target.Field(a.Field)
		if f == nil {
			return errorAt(alerr.ErrUnresolvedPath, a.Pos, "%q is not a field of model %s", a.Field, target.Name).
				WithHelp(alerr.SuggestSimilar(a.Field, target.MemberNames()))
		}
		if f.Type != definition.TypeInteger && f.Type != definition.TypeFloat {
			return errorAt(alerr.ErrTypeMismatch, a.Pos, "sum expects a number field, %s.%s is %s", target.Name, f.Name, f.Type)
		}
		out.Aggregate = &definition.AggregateDef{Name: definition.AggregateSum, NamePath: concat(out.FromPath, []string{f.Name})}
		out.RetType = string(f.Type)
	default:
		return errorAt(alerr.ErrUnsupported, a.Pos, "unknown aggregate %q", a.Name)
	}
	out.RetCardinality = definition.One
	return nil
}

// composeContextQuery composes a query written inside an action. Its source
// starts either at a model name (every row) or at a record alias in scope,
// in which case the query is restricted to that record.
func (c *composer) composeContextQuery(s *scope, q *ast.Query) (*definition.QueryDef, error) {
	if len(q.From) == 0 {
		return nil, errorAt(alerr.ErrBlueprintInvalid, q.Pos, "query has no source")
	}
	head := q.From[0]
	if v, ok := s.vars[head]; ok {
		if v.kind != varRecord {
			return nil, errorAt(alerr.ErrTypeMismatch, q.Pos, "query source %s is not a record", head)
		}
		root := []string{v.model.Name}
		out, err := c.composeRootedQuery(s, root, v.model, q.From[1:], q.FromAlias, definition.One, q)
		if err != nil {
			return nil, err
		}
		scoped := definition.Eq(
			&definition.AliasExpr{NamePath: concat(root, []string{"id"}), Type: definition.TypeInteger},
			&definition.VariableExpr{Name: v.name, Access: []string{"id"}, Type: definition.TypeInteger},
		)
		out.Filter = definition.And(scoped, out.Filter)
		return out, nil
	}
	entry, ok := c.models[head]
	if !ok {
		var options []string
		for n, v := range s.vars {
			if v.kind == varRecord {
				options = append(options, n)
			}
		}
		for n := range c.models {
			options = append(options, n)
		}
		return nil, errorAt(alerr.ErrUnresolvedPath, q.Pos, "query source %q is neither a model nor a record alias", head).
			WithHelp(alerr.SuggestSimilar(head, options))
	}
	return c.composeRootedQuery(s, []string{head}, entry.def, q.From[1:], q.FromAlias, definition.Many, q)
}

// composeOrder composes order entries. A member reached through a
// collection has no single value per record and cannot be ordered by.
func (c *composer) composeOrder(s *scope, orders []*ast.OrderBy) ([]*definition.OrderByDef, error) {
	out := []*definition.OrderByDef{}
	for _, o := range orders {
		p := &ast.Path{Segments: o.Path, Pos: o.Pos}
		if rp, err := c.resolvePath(s, p); err == nil && fansOut(rp.refs) {
			return nil, errorAt(alerr.ErrTypeMismatch, o.Pos, "cannot order by %s: it reads through a collection", p.String()).
				WithHelp("order by an aggregate query such as a count instead")
		}
		e, err := c.composeExpr(s, p)
		if err != nil {
			return nil, err
		}
		out = append(out, &definition.OrderByDef{Expr: e, Desc: o.Desc})
	}
	return out, nil
}

// fansOut reports whether refs reach several records per starting record.
// A final aggregate query yields one value and does not.
func fansOut(refs []definition.Ref) bool {
	for i, r := range refs {
		if i == len(refs)-1 && r.Kind == definition.RefQuery && r.Query.Aggregate != nil {
			break
		}
		if refCardinality(r) == definition.Many {
			return true
		}
	}
	return false
}

// pathCardinality combines the cardinality of every step of a path.
func pathCardinality(refs []definition.Ref) definition.Cardinality {
	card := definition.One
	for _, r := range refs {
		card = combineCardinality(card, refCardinality(r))
	}
	return card
}

func refCardinality(r definition.Ref) definition.Cardinality {
	switch r.Kind {
	case definition.RefReference:
		if r.Reference.Nullable {
			return definition.Nullable
		}
	case definition.RefRelation:
		if r.Relation.Unique {
			return definition.Nullable
		}
		return definition.Many
	case definition.RefQuery:
		return r.Query.RetCardinality
	}
	return definition.One
}

func combineCardinality(a, b definition.Cardinality) definition.Cardinality {
	switch {
	case a == definition.Many || b == definition.Many:
		return definition.Many
	case a == definition.Nullable || b == definition.Nullable:
		return definition.Nullable
	}
	return definition.One
}

func (c *composer) checkAlias(s *scope, alias string, pos ast.Pos) error {
	if err := validate.Alias(alias); err != nil {
		return at(err, pos)
	}
	if s.bound(alias) {
		return errorAt(alerr.ErrDuplicateName, pos, "alias %q is already in use", alias)
	}
	return nil
}
