// Package query turns the queries of a Definition into query trees and runs
// them. A tree is one SQL query per nesting level: the rows of a level are
// fetched for all parent rows at once and stitched back by parent id.
package query

import (
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Parameter names bound by the executor.
const (
	ParentIDsParam = "@parent_ids"
	TargetIDParam  = "@target_id"
)

// hookArgPrefix starts the column alias carrying a hook argument.
const hookArgPrefix = "__hook."

// QueryTree is a query with its nested selects split into child trees.
type QueryTree struct {
	// Alias is the select alias the rows are stored under in the parent
	// record. Empty at the root.
	Alias string
	// Query selects the scalar values of this level. Nested children carry
	// the parent filter and the join connection column.
	Query *definition.QueryDef
	// Many is false when a parent row holds at most one child row.
	Many     bool
	Hooks    []*definition.HookSelect
	Children []*QueryTree
	nested   bool
}

// BuildQueryTree splits q into a tree. q is not modified.
func BuildQueryTree(q *definition.QueryDef) *QueryTree {
	return buildTree("", q, false)
}

func buildTree(alias string, q *definition.QueryDef, nested bool) *QueryTree {
	t := &QueryTree{
		Alias:  alias,
		Many:   q.RetCardinality == definition.Many,
		nested: nested,
	}
	cp := *q
	cp.Select = nil
	for _, item := range q.Select {
		switch it := item.(type) {
		case *definition.NestedSelect:
			t.Children = append(t.Children, buildTree(it.Alias, it.Query, true))
		case *definition.HookSelect:
			t.Hooks = append(t.Hooks, it)
			for _, a := range it.Args {
				cp.Select = append(cp.Select, &definition.ExpressionSelect{
					Alias: hookArgAlias(it.Alias, a.Name),
					Expr:  a.Expr,
					Type:  a.Expr.ExprType(),
				})
			}
		default:
			cp.Select = append(cp.Select, item)
		}
	}

	if nested {
		root := []string{q.FromPath[0], "id"}
		cp.Filter = definition.And(cp.Filter, &definition.FunctionExpr{
			Name: definition.FnIn,
			Args: []definition.TypedExpr{
				&definition.AliasExpr{NamePath: root, Type: definition.TypeInteger},
				&definition.VariableExpr{Name: ParentIDsParam, Type: definition.TypeInteger},
			},
			Type: definition.TypeBoolean,
		})
		cp.Select = append(cp.Select, &definition.ExpressionSelect{
			Alias: definition.JoinConnectionColumn,
			Expr:  &definition.AliasExpr{NamePath: root, Type: definition.TypeInteger},
			Type:  definition.TypeInteger,
		})
	}
	t.Query = &cp
	return t
}

func hookArgAlias(hook, arg string) string {
	return hookArgPrefix + hook + "." + arg
}

// Paged returns a copy of q limited to one page. Pages start at 1.
func Paged(q *definition.QueryDef, page, pageSize int) *definition.QueryDef {
	limit, offset := definition.PagingToLimit(page, pageSize)
	cp := *q
	cp.Limit, cp.Offset = &limit, &offset
	return &cp
}
