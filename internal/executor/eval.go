package executor

import (
	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// EvalExpr evaluates e over vars. Model paths only exist inside queries, so
// an alias expression here is an internal error.
func EvalExpr(e definition.TypedExpr, vars *Vars) (any, error) {
	if e == nil {
		return nil, nil
	}
	return definition.VisitExpr[any](e, &evaluator{vars: vars})
}

type evaluator struct {
	vars *Vars
}

func (ev *evaluator) VisitLiteral(e *definition.LiteralExpr) (any, error) {
	return FormatFieldValue(e.Value, e.Type), nil
}

func (ev *evaluator) VisitAlias(e *definition.AliasExpr) (any, error) {
	return nil, alerr.New(alerr.EInternalError, "model path cannot be evaluated outside a query").
		WithPath(e.NamePath)
}

func (ev *evaluator) VisitVariable(e *definition.VariableExpr) (any, error) {
	return ev.vars.Access(e.Name, e.Access)
}

func (ev *evaluator) VisitFunction(e *definition.FunctionExpr) (any, error) {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := EvalExpr(a, ev.vars)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return Apply(e.Name, args)
}

func (ev *evaluator) VisitArray(e *definition.ArrayExpr) (any, error) {
	out := make([]any, len(e.Elements))
	for i, el := range e.Elements {
		v, err := EvalExpr(el, ev.vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
