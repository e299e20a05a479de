package composer

import (
	"slices"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// binaryFunctions maps blueprint operators to builtin function names.
var binaryFunctions = map[string]string{
	"+":      definition.FnAdd,
	"-":      definition.FnSub,
	"*":      definition.FnMul,
	"/":      definition.FnDiv,
	"%":      definition.FnMod,
	"==":     definition.FnIs,
	"!=":     definition.FnIsNot,
	"<":      definition.FnLt,
	"<=":     definition.FnLte,
	">":      definition.FnGt,
	">=":     definition.FnGte,
	"and":    definition.FnAnd,
	"or":     definition.FnOr,
	"in":     definition.FnIn,
	"not in": definition.FnNotIn,
}

// composeExpr resolves e in scope s. A nil expression composes to nil.
func (c *composer) composeExpr(s *scope, e ast.Expr) (definition.TypedExpr, error) {
	if e == nil {
		return nil, nil
	}
	return ast.Visit[definition.TypedExpr](e, &exprComposer{c: c, s: s})
}

type exprComposer struct {
	c *composer
	s *scope
}

func (x *exprComposer) sub(e ast.Expr) (definition.TypedExpr, error) {
	return ast.Visit[definition.TypedExpr](e, x)
}

func (x *exprComposer) VisitBinary(e *ast.Binary) (definition.TypedExpr, error) {
	name, ok := binaryFunctions[e.Op]
	if !ok {
		return nil, errorAt(alerr.ErrUnsupported, e.Pos, "unsupported operator %q", e.Op)
	}
	left, err := x.sub(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := x.sub(e.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := left.ExprType(), right.ExprType()
	if name == definition.FnAdd && (lt == definition.TypeString || rt == definition.TypeString) {
		name = definition.FnConcat
	}
	if err := checkOperands(name, e.Pos, lt, rt); err != nil {
		return nil, err
	}
	return x.call(name, e.Pos, []definition.TypedExpr{left, right})
}

func (x *exprComposer) VisitUnary(e *ast.Unary) (definition.TypedExpr, error) {
	operand, err := x.sub(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "not":
		if err := checkOperands(definition.FnNot, e.Pos, operand.ExprType()); err != nil {
			return nil, err
		}
		return x.call(definition.FnNot, e.Pos, []definition.TypedExpr{operand})
	case "-":
		if err := checkOperands(definition.FnSub, e.Pos, operand.ExprType()); err != nil {
			return nil, err
		}
		zero := &definition.LiteralExpr{Type: definition.TypeInteger, Value: int64(0)}
		return x.call(definition.FnSub, e.Pos, []definition.TypedExpr{zero, operand})
	}
	return nil, errorAt(alerr.ErrUnsupported, e.Pos, "unsupported operator %q", e.Op)
}

func (x *exprComposer) VisitPath(e *ast.Path) (definition.TypedExpr, error) {
	rp, err := x.c.resolvePath(x.s, e)
	if err != nil {
		return nil, err
	}
	if rp.variable != nil {
		return x.variable(e, rp)
	}
	typ, ok := valueType(rp.refs)
	if !ok {
		return nil, errorAt(alerr.ErrTypeMismatch, e.Pos, "%s is not a value", e.String()).
			WithHelp("select a field, for example " + e.String() + ".id")
	}
	return &definition.AliasExpr{NamePath: rp.namePath, Type: typ}, nil
}

func (x *exprComposer) variable(e *ast.Path, rp *resolvedPath) (definition.TypedExpr, error) {
	v := rp.variable
	out := &definition.VariableExpr{Name: v.name, Access: rp.access}
	switch v.kind {
	case varScalar:
		out.Type = v.typ
	case varIterator:
		out.Type = definition.TypeInteger
	case varRecord:
		if len(rp.access) == 0 {
			if x.s.sql {
				return nil, errorAt(alerr.ErrTypeMismatch, e.Pos, "%s is a record and cannot be used in a query", v.name).
					WithHelp("use " + v.name + ".id")
			}
			return out, nil
		}
		typ, ok := valueType(rp.refs)
		if !ok {
			return nil, errorAt(alerr.ErrTypeMismatch, e.Pos, "%s is not a value", e.String())
		}
		out.Type = typ
	case varList:
		if x.s.sql {
			return nil, errorAt(alerr.ErrTypeMismatch, e.Pos, "%s is a list and cannot be used in a query", v.name)
		}
	}
	return out, nil
}

func (x *exprComposer) VisitLiteral(e *ast.Literal) (definition.TypedExpr, error) {
	return literalExpr(e), nil
}

func (x *exprComposer) VisitCall(e *ast.Call) (definition.TypedExpr, error) {
	args := make([]definition.TypedExpr, 0, len(e.Args))
	for _, a := range e.Args {
		arg, err := x.sub(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return x.call(e.Name, e.Pos, args)
}

func (x *exprComposer) call(name string, pos ast.Pos, args []definition.TypedExpr) (definition.TypedExpr, error) {
	spec, ok := definition.LookupFunction(name)
	if !ok {
		names := definition.FunctionNames()
		slices.Sort(names)
		return nil, errorAt(alerr.ErrUnresolvedPath, pos, "unknown function %q", name).
			WithHelp(alerr.SuggestSimilar(name, names))
	}
	if len(args) != spec.Arity {
		return nil, errorAt(alerr.ErrTypeMismatch, pos, "%s expects %d arguments, got %d", name, spec.Arity, len(args))
	}
	if spec.RuntimeOnly && x.s.sql {
		return nil, errorAt(alerr.ErrUnsupported, pos, "%s cannot be evaluated in a query", name)
	}
	types := make([]definition.ScalarType, len(args))
	for i, a := range args {
		types[i] = a.ExprType()
	}
	return &definition.FunctionExpr{Name: name, Args: args, Type: spec.Result(types)}, nil
}

func (x *exprComposer) VisitArray(e *ast.Array) (definition.TypedExpr, error) {
	out := &definition.ArrayExpr{Elements: make([]definition.TypedExpr, 0, len(e.Elements))}
	for _, el := range e.Elements {
		sub, err := x.sub(el)
		if err != nil {
			return nil, err
		}
		if out.Type == "" || out.Type == definition.TypeNull {
			out.Type = sub.ExprType()
		} else if t := sub.ExprType(); !assignable(out.Type, t) && !assignable(t, out.Type) {
			return nil, errorAt(alerr.ErrTypeMismatch, el.Position(), "array mixes %s and %s", out.Type, t)
		}
		out.Elements = append(out.Elements, sub)
	}
	return out, nil
}

// checkOperands rejects operands that can never fit an operator. Unknown
// types ("") pass.
func checkOperands(fn string, pos ast.Pos, types ...definition.ScalarType) error {
	for _, t := range types {
		if t == "" || t == definition.TypeNull {
			continue
		}
		switch fn {
		case definition.FnAdd, definition.FnSub, definition.FnMul, definition.FnDiv, definition.FnMod:
			if t != definition.TypeInteger && t != definition.TypeFloat {
				return errorAt(alerr.ErrTypeMismatch, pos, "operator %s expects numbers, got %s", fn, t)
			}
		case definition.FnAnd, definition.FnOr, definition.FnNot:
			if t != definition.TypeBoolean {
				return errorAt(alerr.ErrTypeMismatch, pos, "operator %s expects booleans, got %s", fn, t)
			}
		case definition.FnLt, definition.FnLte, definition.FnGt, definition.FnGte:
			if t == definition.TypeBoolean {
				return errorAt(alerr.ErrTypeMismatch, pos, "operator %s cannot compare booleans", fn)
			}
		}
	}
	return nil
}

// expectBoolean checks the type of a filter or condition.
func expectBoolean(e definition.TypedExpr, pos ast.Pos, what string) error {
	if e == nil {
		return nil
	}
	switch e.ExprType() {
	case definition.TypeBoolean, "":
		return nil
	}
	return errorAt(alerr.ErrTypeMismatch, pos, "%s must be a boolean expression, got %s", what, e.ExprType())
}
