package sqlgen

import (
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

var binaryOperators = map[string]string{
	definition.FnAdd:    "+",
	definition.FnSub:    "-",
	definition.FnMul:    "*",
	definition.FnMod:    "%",
	definition.FnLt:     "<",
	definition.FnLte:    "<=",
	definition.FnGt:     ">",
	definition.FnGte:    ">=",
	definition.FnAnd:    "AND",
	definition.FnOr:     "OR",
	definition.FnConcat: "||",
}

var unaryFunctions = map[string]string{
	definition.FnLength: "LENGTH",
	definition.FnLower:  "LOWER",
	definition.FnUpper:  "UPPER",
}

// expr renders e with alias paths resolved through f.
func (qb *queryBuilder) expr(f *frame, e definition.TypedExpr) (string, error) {
	return definition.VisitExpr[string](e, &exprWriter{qb: qb, frame: f})
}

// exprWriter renders expressions as SQL. Variables become named parameters.
type exprWriter struct {
	qb    *queryBuilder
	frame *frame
}

func (w *exprWriter) VisitLiteral(e *definition.LiteralExpr) (string, error) {
	if e.Type == definition.TypeNull || e.Value == nil {
		return "NULL", nil
	}
	return w.qb.b.d.Literal(e.Value), nil
}

func (w *exprWriter) VisitAlias(e *definition.AliasExpr) (string, error) {
	return w.qb.value(w.frame, e.NamePath)
}

func (w *exprWriter) VisitVariable(e *definition.VariableExpr) (string, error) {
	return ":" + e.Key(), nil
}

func (w *exprWriter) VisitArray(e *definition.ArrayExpr) (string, error) {
	if len(e.Elements) == 0 {
		return "(NULL)", nil
	}
	items, err := w.all(e.Elements)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(items, ", ") + ")", nil
}

func (w *exprWriter) VisitFunction(e *definition.FunctionExpr) (string, error) {
	spec, ok := definition.LookupFunction(e.Name)
	if !ok {
		return "", alerr.Newf(alerr.EInternalError, "unknown function %q", e.Name)
	}
	if spec.RuntimeOnly {
		return "", alerr.Newf(alerr.ErrUnsupported, "function %s cannot be used in a query", e.Name).
			WithHelp("compute the value in an action and pass it as a variable")
	}
	if spec.Arity >= 0 && len(e.Args) != spec.Arity {
		return "", alerr.Newf(alerr.EInternalError, "function %s takes %d arguments, got %d",
			e.Name, spec.Arity, len(e.Args))
	}

	switch e.Name {
	case definition.FnIs, definition.FnIsNot:
		return w.equality(e)
	case definition.FnIn, definition.FnNotIn:
		return w.membership(e)
	case definition.FnNow:
		return w.qb.b.d.CurrentTimestamp(), nil
	}

	args, err := w.all(e.Args)
	if err != nil {
		return "", err
	}
	switch e.Name {
	case definition.FnDiv:
		return "(CAST(" + args[0] + " AS " + w.qb.b.d.FloatType() + ") / " + args[1] + ")", nil
	case definition.FnNot:
		return "(NOT " + args[0] + ")", nil
	case definition.FnStringify:
		return "CAST(" + args[0] + " AS " + w.qb.b.d.TextType() + ")", nil
	}
	if op, ok := binaryOperators[e.Name]; ok {
		return "(" + args[0] + " " + op + " " + args[1] + ")", nil
	}
	if fn, ok := unaryFunctions[e.Name]; ok {
		return fn + "(" + args[0] + ")", nil
	}
	return "", alerr.Newf(alerr.ErrUnsupported, "function %s has no SQL form", e.Name)
}

// equality renders is / is not. Comparing with a null literal uses IS NULL.
func (w *exprWriter) equality(e *definition.FunctionExpr) (string, error) {
	not := e.Name == definition.FnIsNot
	left, right := e.Args[0], e.Args[1]
	if isNullLiteral(left) {
		left, right = right, left
	}
	l, err := w.qb.expr(w.frame, left)
	if err != nil {
		return "", err
	}
	if isNullLiteral(right) {
		if not {
			return "(" + l + " IS NOT NULL)", nil
		}
		return "(" + l + " IS NULL)", nil
	}
	r, err := w.qb.expr(w.frame, right)
	if err != nil {
		return "", err
	}
	op := " = "
	if not {
		op = " <> "
	}
	return "(" + l + op + r + ")", nil
}

// membership renders in / not in against an array or a list variable.
func (w *exprWriter) membership(e *definition.FunctionExpr) (string, error) {
	l, err := w.qb.expr(w.frame, e.Args[0])
	if err != nil {
		return "", err
	}
	var list string
	switch r := e.Args[1].(type) {
	case *definition.ArrayExpr:
		list, err = w.VisitArray(r)
	case *definition.VariableExpr:
		list = "(:" + r.Key() + ")"
	default:
		return "", alerr.Newf(alerr.EInternalError, "%s needs a list on the right", e.Name)
	}
	if err != nil {
		return "", err
	}
	op := " IN "
	if e.Name == definition.FnNotIn {
		op = " NOT IN "
	}
	return "(" + l + op + list + ")", nil
}

func (w *exprWriter) all(exprs []definition.TypedExpr) ([]string, error) {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := w.qb.expr(w.frame, e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func isNullLiteral(e definition.TypedExpr) bool {
	lit, ok := e.(*definition.LiteralExpr)
	return ok && (lit.Type == definition.TypeNull || lit.Value == nil)
}
