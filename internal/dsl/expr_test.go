package dsl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
)

// sexpr renders an expression as an s-expression for compact assertions.
type sexpr struct{}

func (sexpr) VisitBinary(e *ast.Binary) (string, error) {
	l, _ := ast.Visit[string](e.Left, sexpr{})
	r, _ := ast.Visit[string](e.Right, sexpr{})
	return fmt.Sprintf("(%s %s %s)", e.Op, l, r), nil
}

func (sexpr) VisitUnary(e *ast.Unary) (string, error) {
	o, _ := ast.Visit[string](e.Operand, sexpr{})
	return fmt.Sprintf("(%s %s)", e.Op, o), nil
}

func (sexpr) VisitPath(e *ast.Path) (string, error) { return e.String(), nil }

func (sexpr) VisitLiteral(e *ast.Literal) (string, error) { return e.String(), nil }

func (sexpr) VisitCall(e *ast.Call) (string, error) {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i], _ = ast.Visit[string](a, sexpr{})
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", ")), nil
}

func (sexpr) VisitArray(e *ast.Array) (string, error) {
	els := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		els[i], _ = ast.Visit[string](el, sexpr{})
	}
	return "[" + strings.Join(els, ", ") + "]", nil
}

// -----------------------------------------------------------------------------
// ParseExpr
// -----------------------------------------------------------------------------

func TestParseExpr(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"name", "name"},
		{"org.name", "org.name"},
		{"@auth.id", "@auth.id"},
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"a == b", "(== a b)"},
		{"a === b", "(== a b)"},
		{"a !== b", "(!= a b)"},
		{"a <= 1 && b > 2", "(and (<= a 1) (> b 2))"},
		{"a || b && c", "(or a (and b c))"},
		{"!is_public", "(not is_public)"},
		{"name in ['a', 'b']", `(in name ["a", "b"])`},
		{"!(name in ['a'])", `(not in name ["a"])`},
		{"-5", "-5"},
		{"-1.5", "-1.5"},
		{"-stars", "(- stars)"},
		{"+stars", "stars"},
		{"lower(name)", "lower(name)"},
		{"concat(name, ' ', org.name)", `concat(name, " ", org.name)`},
		{"now()", "now()"},
		{"null", "null"},
		{"true", "true"},
		{"'@not-a-var'", `"@not-a-var"`},
		{`"it's @here"`, `"it's @here"`},
		{"@auth.id == org.owner_id", "(== @auth.id org.owner_id)"},
		{"stars % 2", "(% stars 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := ParseExpr(tt.src, ast.Pos{File: "x.yaml", Line: 1, Column: 1})
			if err != nil {
				t.Fatalf("ParseExpr(%q) error: %v", tt.src, err)
			}
			got, _ := ast.Visit[string](e, sexpr{})
			if got != tt.want {
				t.Errorf("ParseExpr(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseExprLiteralKinds(t *testing.T) {
	tests := []struct {
		src  string
		kind string
		want any
	}{
		{"42", ast.LitInteger, int64(42)},
		{"4.5", ast.LitFloat, 4.5},
		{"'x'", ast.LitString, "x"},
		{"false", ast.LitBoolean, false},
		{"null", ast.LitNull, nil},
	}
	for _, tt := range tests {
		e, err := ParseExpr(tt.src, ast.Pos{})
		if err != nil {
			t.Fatalf("ParseExpr(%q) error: %v", tt.src, err)
		}
		lit, ok := e.(*ast.Literal)
		if !ok {
			t.Fatalf("ParseExpr(%q) = %T, want *ast.Literal", tt.src, e)
		}
		if lit.Kind != tt.kind || lit.Value != tt.want {
			t.Errorf("ParseExpr(%q) = %s %v, want %s %v", tt.src, lit.Kind, lit.Value, tt.kind, tt.want)
		}
	}
}

func TestParseExprErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "   "},
		{"statement", "var x = 1"},
		{"two_statements", "a; b"},
		{"bracket_access", "a[0]"},
		{"method_call", "a.b()"},
		{"conditional", "a ? b : c"},
		{"assignment", "a = 1"},
		{"bitwise", "a & b"},
		{"object", "({a: 1})"},
		{"syntax", "a +"},
		{"increment", "a++"},
		{"word_operator", "repo.is_public or admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.src, ast.Pos{File: "api.yaml", Line: 7, Column: 3})
			if err == nil {
				t.Fatalf("ParseExpr(%q) expected error", tt.src)
			}
			if !alerr.Is(err, alerr.ErrBlueprintSyntax) {
				t.Errorf("ParseExpr(%q) code = %s, want %s", tt.src, alerr.GetErrorCode(err), alerr.ErrBlueprintSyntax)
			}
			var ae *alerr.Error
			if e, ok := err.(*alerr.Error); ok {
				ae = e
			}
			if ae == nil {
				t.Fatalf("error is %T, want *alerr.Error", err)
			}
			file, line, _, ok := ae.Location()
			if !ok || file != "api.yaml" || line != 7 {
				t.Errorf("location = %s:%d, want api.yaml:7", file, line)
			}
		})
	}
}

func TestParseExprPositions(t *testing.T) {
	e, err := ParseExpr("a == bcd", ast.Pos{File: "f.yaml", Line: 3, Column: 10})
	if err != nil {
		t.Fatal(err)
	}
	bin := e.(*ast.Binary)
	if got := bin.Right.Position(); got.Line != 3 || got.Column != 15 {
		t.Errorf("right operand position = %s, want f.yaml:3:15", got)
	}
}

func TestRewriteSigils(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"@auth", "$auth"},
		{"'@auth'", "'@auth'"},
		{`"a\"@b" + @c`, `"a\"@b" + $c`},
		{"`@x` + @y", "`@x` + $y"},
	}
	for _, tt := range tests {
		if got := rewriteSigils(tt.in); got != tt.want {
			t.Errorf("rewriteSigils(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
