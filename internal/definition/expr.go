package definition

import "strings"

// TypedExpr is a resolved expression.
// Paths are fully qualified: AliasExpr paths start at a query root model,
// VariableExpr paths start at a context alias.
type TypedExpr interface {
	ExprType() ScalarType
	dispatch(d exprDispatcher)
}

// ExprVisitor handles every TypedExpr variant.
type ExprVisitor[R any] interface {
	VisitLiteral(e *LiteralExpr) (R, error)
	VisitAlias(e *AliasExpr) (R, error)
	VisitVariable(e *VariableExpr) (R, error)
	VisitFunction(e *FunctionExpr) (R, error)
	VisitArray(e *ArrayExpr) (R, error)
}

// VisitExpr dispatches e to the matching method of v.
func VisitExpr[R any](e TypedExpr, v ExprVisitor[R]) (R, error) {
	a := &exprAdapter[R]{v: v}
	e.dispatch(a)
	return a.out, a.err
}

type exprDispatcher interface {
	literal(e *LiteralExpr)
	alias(e *AliasExpr)
	variable(e *VariableExpr)
	function(e *FunctionExpr)
	array(e *ArrayExpr)
}

type exprAdapter[R any] struct {
	v   ExprVisitor[R]
	out R
	err error
}

func (a *exprAdapter[R]) literal(e *LiteralExpr)   { a.out, a.err = a.v.VisitLiteral(e) }
func (a *exprAdapter[R]) alias(e *AliasExpr)       { a.out, a.err = a.v.VisitAlias(e) }
func (a *exprAdapter[R]) variable(e *VariableExpr) { a.out, a.err = a.v.VisitVariable(e) }
func (a *exprAdapter[R]) function(e *FunctionExpr) { a.out, a.err = a.v.VisitFunction(e) }
func (a *exprAdapter[R]) array(e *ArrayExpr)       { a.out, a.err = a.v.VisitArray(e) }

// LiteralExpr is a constant of a declared scalar type.
type LiteralExpr struct {
	Type  ScalarType `json:"type"`
	Value any        `json:"value"`
}

// AliasExpr reads a model member through a fully qualified alias path.
type AliasExpr struct {
	NamePath []string   `json:"namePath"`
	Type     ScalarType `json:"type"`
}

// VariableExpr reads a context alias (entrypoint or action alias, @auth,
// iterator) at runtime.
type VariableExpr struct {
	Name   string     `json:"name"`
	Access []string   `json:"access"`
	Type   ScalarType `json:"type"`
}

// Key returns the dotted variable path used as a named SQL parameter.
func (e *VariableExpr) Key() string {
	return strings.Join(append([]string{e.Name}, e.Access...), ".")
}

// FunctionExpr applies a builtin function or operator.
type FunctionExpr struct {
	Name string      `json:"name"`
	Args []TypedExpr `json:"args"`
	Type ScalarType  `json:"type"`
}

// ArrayExpr is a literal list.
type ArrayExpr struct {
	Elements []TypedExpr `json:"elements"`
	Type     ScalarType  `json:"type"`
}

func (e *LiteralExpr) ExprType() ScalarType  { return e.Type }
func (e *AliasExpr) ExprType() ScalarType    { return e.Type }
func (e *VariableExpr) ExprType() ScalarType { return e.Type }
func (e *FunctionExpr) ExprType() ScalarType { return e.Type }
func (e *ArrayExpr) ExprType() ScalarType    { return e.Type }

func (e *LiteralExpr) dispatch(d exprDispatcher)  { d.literal(e) }
func (e *AliasExpr) dispatch(d exprDispatcher)    { d.alias(e) }
func (e *VariableExpr) dispatch(d exprDispatcher) { d.variable(e) }
func (e *FunctionExpr) dispatch(d exprDispatcher) { d.function(e) }
func (e *ArrayExpr) dispatch(d exprDispatcher)    { d.array(e) }

// And joins the non-nil expressions with "and".
func And(exprs ...TypedExpr) TypedExpr {
	var out TypedExpr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = &FunctionExpr{Name: FnAnd, Args: []TypedExpr{out, e}, Type: TypeBoolean}
	}
	return out
}

// Eq builds "left is right".
func Eq(left, right TypedExpr) TypedExpr {
	return &FunctionExpr{Name: FnIs, Args: []TypedExpr{left, right}, Type: TypeBoolean}
}

// RebasePaths returns a copy of e with every alias path starting with from
// rewritten to start with to. Other nodes are shared.
func RebasePaths(e TypedExpr, from, to []string) TypedExpr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *AliasExpr:
		return &AliasExpr{NamePath: RebasePath(e.NamePath, from, to), Type: e.Type}
	case *FunctionExpr:
		args := make([]TypedExpr, len(e.Args))
		for i, a := range e.Args {
			args[i] = RebasePaths(a, from, to)
		}
		return &FunctionExpr{Name: e.Name, Args: args, Type: e.Type}
	case *ArrayExpr:
		elems := make([]TypedExpr, len(e.Elements))
		for i, a := range e.Elements {
			elems[i] = RebasePaths(a, from, to)
		}
		return &ArrayExpr{Elements: elems, Type: e.Type}
	default:
		return e
	}
}

// RebasePath rewrites the prefix from of path to to. Paths not starting with
// from are returned unchanged.
func RebasePath(path, from, to []string) []string {
	if !HasPrefix(path, from) {
		return path
	}
	out := make([]string, 0, len(to)+len(path)-len(from))
	out = append(out, to...)
	return append(out, path[len(from):]...)
}

// HasPrefix reports whether path starts with prefix.
func HasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// CollectVariables returns every variable read by e.
func CollectVariables(e TypedExpr) []*VariableExpr {
	var out []*VariableExpr
	walkExpr(e, func(n TypedExpr) {
		if v, ok := n.(*VariableExpr); ok {
			out = append(out, v)
		}
	})
	return out
}

// CollectAliases returns every alias path read by e.
func CollectAliases(e TypedExpr) []*AliasExpr {
	var out []*AliasExpr
	walkExpr(e, func(n TypedExpr) {
		if a, ok := n.(*AliasExpr); ok {
			out = append(out, a)
		}
	})
	return out
}

func walkExpr(e TypedExpr, fn func(TypedExpr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *FunctionExpr:
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case *ArrayExpr:
		for _, a := range e.Elements {
			walkExpr(a, fn)
		}
	}
}
