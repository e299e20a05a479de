package composer

import (
	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// typedSetter is a setter with its inferred result type ("" when unknown).
type typedSetter struct {
	setter definition.Setter
	typ    definition.ScalarType
}

// setterComposer lowers a runtime expression to a setter. Paths starting at
// a context variable read that variable; a single-segment path naming a
// field of model reads the value computed earlier in the same changeset.
type setterComposer struct {
	c     *composer
	s     *scope
	model *definition.ModelDef
	// changeset names read by the setter
	reads []string
}

func (c *composer) composeSetter(s *scope, model *definition.ModelDef, e ast.Expr) (typedSetter, []string, error) {
	sc := &setterComposer{c: c, s: s, model: model}
	out, err := ast.Visit[typedSetter](e, sc)
	return out, sc.reads, err
}

func (x *setterComposer) sub(e ast.Expr) (typedSetter, error) {
	return ast.Visit[typedSetter](e, x)
}

func (x *setterComposer) VisitLiteral(e *ast.Literal) (typedSetter, error) {
	lit := literalExpr(e)
	return typedSetter{&definition.LiteralSetter{Type: lit.Type, Value: lit.Value}, lit.Type}, nil
}

func (x *setterComposer) VisitPath(e *ast.Path) (typedSetter, error) {
	head := e.Segments[0]
	if _, ok := x.s.vars[head]; ok {
		rp, err := x.c.resolvePath(x.s, e)
		if err != nil {
			return typedSetter{}, err
		}
		var typ definition.ScalarType
		switch rp.variable.kind {
		case varScalar:
			typ = rp.variable.typ
		case varIterator:
			typ = definition.TypeInteger
		case varRecord:
			typ, _ = valueType(rp.refs)
		}
		return typedSetter{&definition.ReferenceValueSetter{Alias: head, Access: rp.access}, typ}, nil
	}
	if x.model != nil {
		if name, typ, ok := changesetName(x.model, head); ok {
			if len(e.Segments) > 1 {
				return typedSetter{}, errorAt(alerr.ErrUnsupported, e.Pos, "cannot read %s through the changeset", e.String()).
					WithHelp("read it from a context alias instead")
			}
			x.reads = append(x.reads, name)
			return typedSetter{&definition.ChangesetReferenceSetter{ReferenceName: name}, typ}, nil
		}
	}
	return typedSetter{}, x.c.unresolvedName(x.s, head, e)
}

func (x *setterComposer) VisitBinary(e *ast.Binary) (typedSetter, error) {
	name, ok := binaryFunctions[e.Op]
	if !ok {
		return typedSetter{}, errorAt(alerr.ErrUnsupported, e.Pos, "unsupported operator %q", e.Op)
	}
	left, err := x.sub(e.Left)
	if err != nil {
		return typedSetter{}, err
	}
	right, err := x.sub(e.Right)
	if err != nil {
		return typedSetter{}, err
	}
	if name == definition.FnAdd && (left.typ == definition.TypeString || right.typ == definition.TypeString) {
		name = definition.FnConcat
	}
	if err := checkOperands(name, e.Pos, left.typ, right.typ); err != nil {
		return typedSetter{}, err
	}
	return x.call(name, e.Pos, []typedSetter{left, right})
}

func (x *setterComposer) VisitUnary(e *ast.Unary) (typedSetter, error) {
	operand, err := x.sub(e.Operand)
	if err != nil {
		return typedSetter{}, err
	}
	switch e.Op {
	case "not":
		if err := checkOperands(definition.FnNot, e.Pos, operand.typ); err != nil {
			return typedSetter{}, err
		}
		return x.call(definition.FnNot, e.Pos, []typedSetter{operand})
	case "-":
		if err := checkOperands(definition.FnSub, e.Pos, operand.typ); err != nil {
			return typedSetter{}, err
		}
		zero := typedSetter{&definition.LiteralSetter{Type: definition.TypeInteger, Value: int64(0)}, definition.TypeInteger}
		return x.call(definition.FnSub, e.Pos, []typedSetter{zero, operand})
	}
	return typedSetter{}, errorAt(alerr.ErrUnsupported, e.Pos, "unsupported operator %q", e.Op)
}

func (x *setterComposer) VisitCall(e *ast.Call) (typedSetter, error) {
	args := make([]typedSetter, 0, len(e.Args))
	for _, a := range e.Args {
		arg, err := x.sub(a)
		if err != nil {
			return typedSetter{}, err
		}
		args = append(args, arg)
	}
	return x.call(e.Name, e.Pos, args)
}

func (x *setterComposer) call(name string, pos ast.Pos, args []typedSetter) (typedSetter, error) {
	spec, ok := definition.LookupFunction(name)
	if !ok {
		return typedSetter{}, errorAt(alerr.ErrUnresolvedPath, pos, "unknown function %q", name).
			WithHelp(alerr.SuggestSimilar(name, definition.FunctionNames()))
	}
	if len(args) != spec.Arity {
		return typedSetter{}, errorAt(alerr.ErrTypeMismatch, pos, "%s expects %d arguments, got %d", name, spec.Arity, len(args))
	}
	setters := make([]definition.Setter, len(args))
	types := make([]definition.ScalarType, len(args))
	for i, a := range args {
		setters[i], types[i] = a.setter, a.typ
	}
	return typedSetter{&definition.FunctionSetter{Name: name, Args: setters}, spec.Result(types)}, nil
}

func (x *setterComposer) VisitArray(e *ast.Array) (typedSetter, error) {
	out := &definition.ArraySetter{Elements: make([]definition.Setter, 0, len(e.Elements))}
	for _, el := range e.Elements {
		sub, err := x.sub(el)
		if err != nil {
			return typedSetter{}, err
		}
		out.Elements = append(out.Elements, sub.setter)
	}
	return typedSetter{out, ""}, nil
}

// changesetName maps a field or reference name of m to its changeset name.
func changesetName(m *definition.ModelDef, name string) (string, definition.ScalarType, bool) {
	if f := m.Field(name); f != nil {
		return f.Name, f.Type, true
	}
	if r := m.Reference(name); r != nil {
		f := m.FieldByRefKey(r.FieldRefKey)
		return f.Name, f.Type, true
	}
	return "", "", false
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

// composeHookCall builds a hook call whose arguments form their own
// changeset. Arguments never read the surrounding changeset.
func (c *composer) composeHookCall(s *scope, h *ast.HookCall) (*definition.HookDef, error) {
	code, err := c.hookCode(h.Code)
	if err != nil {
		return nil, err
	}
	args := definition.Changeset{}
	seen := map[string]bool{}
	for _, a := range h.Args {
		if seen[a.Name] {
			return nil, errorAt(alerr.ErrDuplicateName, a.Pos, "hook argument %s is declared twice", a.Name)
		}
		seen[a.Name] = true
		var st definition.Setter
		if a.Query != nil {
			q, err := c.composeContextQuery(s, a.Query)
			if err != nil {
				return nil, err
			}
			st = &definition.QuerySetter{Query: q}
		} else {
			ts, _, err := c.composeSetter(s, nil, a.Expr)
			if err != nil {
				return nil, err
			}
			st = ts.setter
		}
		args = append(args, &definition.ChangesetOperation{Name: a.Name, Setter: st})
	}
	return &definition.HookDef{Code: code, Args: args}, nil
}
