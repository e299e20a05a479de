package ast

import (
	"strconv"
	"strings"
)

// Expr is a blueprint expression.
// The set of variants is closed: every variant dispatches to a dedicated
// ExprVisitor method, so adding a variant breaks every visitor at compile time.
type Expr interface {
	Position() Pos
	dispatch(d exprDispatcher)
}

// ExprVisitor handles every expression variant.
type ExprVisitor[R any] interface {
	VisitBinary(e *Binary) (R, error)
	VisitUnary(e *Unary) (R, error)
	VisitPath(e *Path) (R, error)
	VisitLiteral(e *Literal) (R, error)
	VisitCall(e *Call) (R, error)
	VisitArray(e *Array) (R, error)
}

// Visit dispatches e to the matching method of v.
func Visit[R any](e Expr, v ExprVisitor[R]) (R, error) {
	a := &visitAdapter[R]{v: v}
	e.dispatch(a)
	return a.out, a.err
}

type exprDispatcher interface {
	binary(e *Binary)
	unary(e *Unary)
	path(e *Path)
	literal(e *Literal)
	call(e *Call)
	array(e *Array)
}

type visitAdapter[R any] struct {
	v   ExprVisitor[R]
	out R
	err error
}

func (a *visitAdapter[R]) binary(e *Binary)   { a.out, a.err = a.v.VisitBinary(e) }
func (a *visitAdapter[R]) unary(e *Unary)     { a.out, a.err = a.v.VisitUnary(e) }
func (a *visitAdapter[R]) path(e *Path)       { a.out, a.err = a.v.VisitPath(e) }
func (a *visitAdapter[R]) literal(e *Literal) { a.out, a.err = a.v.VisitLiteral(e) }
func (a *visitAdapter[R]) call(e *Call)       { a.out, a.err = a.v.VisitCall(e) }
func (a *visitAdapter[R]) array(e *Array)     { a.out, a.err = a.v.VisitArray(e) }

// Binary is "left op right". Op uses blueprint operator names:
// + - * / % == != < <= > >= and or in "not in".
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Pos
}

// Unary is "op operand"; Op is "not" or "-".
type Unary struct {
	Op      string
	Operand Expr
	Pos     Pos
}

// Path is a dotted identifier path. Context variables start with "@".
type Path struct {
	Segments []string
	Pos      Pos
}

// IsContext reports whether the path starts at a context variable.
func (p *Path) IsContext() bool {
	return len(p.Segments) > 0 && strings.HasPrefix(p.Segments[0], "@")
}

func (p *Path) String() string {
	return strings.Join(p.Segments, ".")
}

// Literal kinds.
const (
	LitInteger = "integer"
	LitFloat   = "float"
	LitString  = "string"
	LitBoolean = "boolean"
	LitNull    = "null"
)

// Literal is a constant. Value holds int64, float64, string, bool or nil.
type Literal struct {
	Kind  string
	Value any
	Pos   Pos
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return "?"
	}
}

// Call is a builtin function call such as lower(name).
type Call struct {
	Name string
	Args []Expr
	Pos  Pos
}

// Array is a literal list, used on the right side of "in".
type Array struct {
	Elements []Expr
	Pos      Pos
}

func (e *Binary) Position() Pos  { return e.Pos }
func (e *Unary) Position() Pos   { return e.Pos }
func (e *Path) Position() Pos    { return e.Pos }
func (e *Literal) Position() Pos { return e.Pos }
func (e *Call) Position() Pos    { return e.Pos }
func (e *Array) Position() Pos   { return e.Pos }

func (e *Binary) dispatch(d exprDispatcher)  { d.binary(e) }
func (e *Unary) dispatch(d exprDispatcher)   { d.unary(e) }
func (e *Path) dispatch(d exprDispatcher)    { d.path(e) }
func (e *Literal) dispatch(d exprDispatcher) { d.literal(e) }
func (e *Call) dispatch(d exprDispatcher)    { d.call(e) }
func (e *Array) dispatch(d exprDispatcher)   { d.array(e) }

// Paths collects every path referenced by e, in source order.
func Paths(e Expr) []*Path {
	if e == nil {
		return nil
	}
	var out []*Path
	collectPaths(e, &out)
	return out
}

func collectPaths(e Expr, out *[]*Path) {
	switch e := e.(type) {
	case *Binary:
		collectPaths(e.Left, out)
		collectPaths(e.Right, out)
	case *Unary:
		collectPaths(e.Operand, out)
	case *Path:
		*out = append(*out, e)
	case *Call:
		for _, a := range e.Args {
			collectPaths(a, out)
		}
	case *Array:
		for _, a := range e.Elements {
			collectPaths(a, out)
		}
	}
}
