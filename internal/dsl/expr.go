package dsl

import (
	"errors"
	"strings"

	jsast "github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
)

// contextSigil replaces "@" before the source reaches the JS parser,
// since "@" cannot start a JS identifier.
const contextSigil = '$'

var binaryOps = map[token.Token]string{
	token.PLUS:             "+",
	token.MINUS:            "-",
	token.MULTIPLY:         "*",
	token.SLASH:            "/",
	token.REMAINDER:        "%",
	token.EQUAL:            "==",
	token.STRICT_EQUAL:     "==",
	token.NOT_EQUAL:        "!=",
	token.STRICT_NOT_EQUAL: "!=",
	token.LESS:             "<",
	token.LESS_OR_EQUAL:    "<=",
	token.GREATER:          ">",
	token.GREATER_OR_EQUAL: ">=",
	token.LOGICAL_AND:      "and",
	token.LOGICAL_OR:       "or",
	token.IN:               "in",
}

// ParseExpr parses a blueprint expression written in JavaScript expression
// syntax. pos is the location of the expression string in its file and is
// used for error reporting and node positions.
func ParseExpr(src string, pos ast.Pos) (ast.Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(pos, "empty expression")
	}
	prog, err := parser.ParseFile(nil, "", rewriteSigils(src), 0)
	if err != nil {
		return nil, convertParseError(err, pos)
	}
	if len(prog.Body) != 1 {
		return nil, syntaxError(pos, "expected a single expression")
	}
	stmt, ok := prog.Body[0].(*jsast.ExpressionStatement)
	if !ok {
		return nil, syntaxError(pos, "expected an expression, not a statement")
	}
	c := &exprConverter{base: pos}
	return c.convert(stmt.Expression)
}

// rewriteSigils replaces "@" with the sigil outside of string literals.
func rewriteSigils(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	var quote rune
	escaped := false
	for _, r := range src {
		switch {
		case quote != 0:
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == '@':
			r = contextSigil
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func restoreSigil(name string) string {
	if strings.HasPrefix(name, string(contextSigil)) {
		return "@" + name[1:]
	}
	return name
}

func convertParseError(err error, pos ast.Pos) error {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		at := pos
		if first.Position.Line <= 1 {
			at.Column = pos.Column + max(first.Position.Column-1, 0)
		} else {
			at.Line = pos.Line + first.Position.Line - 1
			at.Column = first.Position.Column
		}
		return syntaxError(at, first.Message)
	}
	return syntaxError(pos, err.Error())
}

func syntaxError(pos ast.Pos, msg string) *alerr.Error {
	return alerr.New(alerr.ErrBlueprintSyntax, msg).WithLocation(pos.File, pos.Line, pos.Column)
}

type exprConverter struct {
	base ast.Pos
}

func (c *exprConverter) at(idx file.Idx) ast.Pos {
	p := c.base
	if idx > 0 {
		p.Column = c.base.Column + int(idx) - 1
	}
	return p
}

func (c *exprConverter) convert(n jsast.Expression) (ast.Expr, error) {
	switch e := n.(type) {
	case *jsast.BinaryExpression:
		op, ok := binaryOps[e.Operator]
		if !ok {
			return nil, syntaxError(c.at(e.Idx0()), "unsupported operator "+e.Operator.String())
		}
		left, err := c.convert(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.convert(e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, Left: left, Right: right, Pos: c.at(e.Idx0())}, nil

	case *jsast.UnaryExpression:
		return c.convertUnary(e)

	case *jsast.Identifier:
		return &ast.Path{Segments: []string{restoreSigil(e.Name.String())}, Pos: c.at(e.Idx)}, nil

	case *jsast.DotExpression:
		left, err := c.convert(e.Left)
		if err != nil {
			return nil, err
		}
		p, ok := left.(*ast.Path)
		if !ok {
			return nil, syntaxError(c.at(e.Idx0()), "member access is only allowed on identifiers")
		}
		segs := append(append([]string{}, p.Segments...), e.Identifier.Name.String())
		return &ast.Path{Segments: segs, Pos: p.Pos}, nil

	case *jsast.CallExpression:
		callee, ok := e.Callee.(*jsast.Identifier)
		if !ok {
			return nil, syntaxError(c.at(e.Idx0()), "only builtin function calls are allowed")
		}
		call := &ast.Call{Name: callee.Name.String(), Pos: c.at(e.Idx0())}
		for _, a := range e.ArgumentList {
			arg, err := c.convert(a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil

	case *jsast.ArrayLiteral:
		arr := &ast.Array{Pos: c.at(e.Idx0())}
		for _, el := range e.Value {
			if el == nil {
				return nil, syntaxError(c.at(e.Idx0()), "array holes are not allowed")
			}
			v, err := c.convert(el)
			if err != nil {
				return nil, err
			}
			arr.Elements = append(arr.Elements, v)
		}
		return arr, nil

	case *jsast.StringLiteral:
		return &ast.Literal{Kind: ast.LitString, Value: e.Value.String(), Pos: c.at(e.Idx)}, nil

	case *jsast.NumberLiteral:
		switch v := e.Value.(type) {
		case int64:
			return &ast.Literal{Kind: ast.LitInteger, Value: v, Pos: c.at(e.Idx)}, nil
		case float64:
			return &ast.Literal{Kind: ast.LitFloat, Value: v, Pos: c.at(e.Idx)}, nil
		}
		return nil, syntaxError(c.at(e.Idx), "unsupported number literal "+e.Literal)

	case *jsast.BooleanLiteral:
		return &ast.Literal{Kind: ast.LitBoolean, Value: e.Value, Pos: c.at(e.Idx)}, nil

	case *jsast.NullLiteral:
		return &ast.Literal{Kind: ast.LitNull, Pos: c.at(e.Idx)}, nil
	}
	return nil, syntaxError(c.at(n.Idx0()), "unsupported expression syntax")
}

func (c *exprConverter) convertUnary(e *jsast.UnaryExpression) (ast.Expr, error) {
	pos := c.at(e.Idx)
	switch e.Operator {
	case token.NOT:
		// !(a in b) is the blueprint "not in" operator.
		if bin, ok := e.Operand.(*jsast.BinaryExpression); ok && bin.Operator == token.IN {
			left, err := c.convert(bin.Left)
			if err != nil {
				return nil, err
			}
			right, err := c.convert(bin.Right)
			if err != nil {
				return nil, err
			}
			return &ast.Binary{Op: "not in", Left: left, Right: right, Pos: pos}, nil
		}
		operand, err := c.convert(e.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "not", Operand: operand, Pos: pos}, nil

	case token.MINUS:
		operand, err := c.convert(e.Operand)
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(*ast.Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &ast.Literal{Kind: ast.LitInteger, Value: -v, Pos: pos}, nil
			case float64:
				return &ast.Literal{Kind: ast.LitFloat, Value: -v, Pos: pos}, nil
			}
		}
		return &ast.Unary{Op: "-", Operand: operand, Pos: pos}, nil

	case token.PLUS:
		return c.convert(e.Operand)
	}
	return nil, syntaxError(pos, "unsupported operator "+e.Operator.String())
}
