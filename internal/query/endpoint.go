package query

import (
	"slices"

	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// ContextQuery fetches the record bound to Alias before actions run.
type ContextQuery struct {
	Alias string
	Query *definition.QueryDef
}

// EndpointQueries are the queries serving one endpoint.
type EndpointQueries struct {
	// Parents fetch the ancestors of the target, outermost first. Each one
	// repeats the identity filters of the levels above it, so a missing or
	// foreign parent yields no row.
	Parents []*ContextQuery
	// Target fetches the record the endpoint works on. Set for get, update,
	// delete and custom-one endpoints.
	Target *ContextQuery
	// List fetches the response of list endpoints.
	List *definition.QueryDef
	// Response fetches the response of one record by the id bound to
	// "@target_id". Set for get, create, update and custom-one endpoints.
	Response *definition.QueryDef
}

// BuildEndpointQueries derives the queries of ep.
func BuildEndpointQueries(ep *definition.EndpointDef) *EndpointQueries {
	levels := make([]*definition.TargetWithSelect, 0, len(ep.Parents)+1)
	levels = append(levels, ep.Parents...)
	levels = append(levels, ep.Target)

	out := &EndpointQueries{}
	for i, p := range ep.Parents {
		out.Parents = append(out.Parents, &ContextQuery{
			Alias: p.Alias,
			Query: levelQuery(p, levels[:i+1], p.Select),
		})
	}

	target := ep.Target.TargetDef
	switch ep.Kind {
	case definition.EndpointGet, definition.EndpointUpdate, definition.EndpointDelete, definition.EndpointCustomOne:
		out.Target = &ContextQuery{Alias: target.Alias, Query: levelQuery(ep.Target, levels, ep.Target.Select)}
	case definition.EndpointList:
		// the listed records are not identified, only their parents
		q := levelQuery(ep.Target, ep.Parents, ep.Response)
		q.RetCardinality = definition.Many
		q.Filter = definition.And(q.Filter, ep.Filter)
		q.OrderBy = ep.OrderBy
		out.List = q
	}

	switch ep.Kind {
	case definition.EndpointGet, definition.EndpointCreate, definition.EndpointUpdate, definition.EndpointCustomOne:
		out.Response = ResponseQuery(target, ep.Response)
	}
	return out
}

// levelQuery fetches last, filtered by the identity of every level in
// identified.
func levelQuery(last *definition.TargetWithSelect, identified []*definition.TargetWithSelect, sel []definition.SelectItem) *definition.QueryDef {
	var filters []definition.TypedExpr
	for _, l := range identified {
		id := l.IdentifyWith
		if id == nil {
			continue
		}
		filters = append(filters, definition.Eq(
			&definition.AliasExpr{NamePath: append(slices.Clone(l.NamePath), id.Name), Type: id.Type},
			&definition.VariableExpr{Name: id.ParamName, Type: id.Type},
		))
	}
	return &definition.QueryDef{
		Name:           last.Name,
		ModelRefKey:    last.RetType,
		RetType:        last.RetType,
		RetCardinality: definition.One,
		FromPath:       last.NamePath,
		Filter:         definition.And(filters...),
		Select:         sel,
	}
}

// ResponseQuery fetches sel for the record of target whose id is bound to
// "@target_id". sel is rooted at target.NamePath.
func ResponseQuery(target *definition.TargetDef, sel []definition.SelectItem) *definition.QueryDef {
	root := []string{target.RetType}
	return &definition.QueryDef{
		Name:           target.Name,
		ModelRefKey:    target.RetType,
		RetType:        target.RetType,
		RetCardinality: definition.One,
		FromPath:       root,
		Filter: definition.Eq(
			&definition.AliasExpr{NamePath: []string{target.RetType, "id"}, Type: definition.TypeInteger},
			&definition.VariableExpr{Name: TargetIDParam, Type: definition.TypeInteger},
		),
		Select: definition.RebaseSelect(sel, target.NamePath, root),
	}
}
