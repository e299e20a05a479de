package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
)

// decoder walks yaml.Node trees of one file. Node positions are kept so
// that every AST node and every error points back to the source.
type decoder struct {
	file string
}

type entry struct {
	key string
	kn  *yaml.Node
	val *yaml.Node
}

func (d *decoder) pos(n *yaml.Node) ast.Pos {
	return ast.Pos{File: d.file, Line: n.Line, Column: n.Column}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) *alerr.Error {
	p := d.pos(n)
	return alerr.Newf(alerr.ErrBlueprintInvalid, format, args...).WithLocation(p.File, p.Line, p.Column)
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// mapping returns the entries of a mapping node in source order.
// A null node is an empty mapping.
func (d *decoder) mapping(n *yaml.Node, what string) ([]entry, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "%s must be a mapping", what)
	}
	out := make([]entry, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, d.errorf(k, "%s keys must be scalars", what)
		}
		if seen[k.Value] {
			return nil, alerr.New(alerr.ErrDuplicateName, fmt.Sprintf("duplicate key %q in %s", k.Value, what)).
				WithLocation(d.file, k.Line, k.Column)
		}
		seen[k.Value] = true
		out = append(out, entry{key: k.Value, kn: k, val: v})
	}
	return out, nil
}

// sequence returns the items of a sequence node. A null node is empty.
func (d *decoder) sequence(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "%s must be a list", what)
	}
	return n.Content, nil
}

// single unpacks a one-key mapping such as "- create: {...}".
func (d *decoder) single(n *yaml.Node, what string) (entry, error) {
	if n.Kind == yaml.ScalarNode {
		return entry{key: n.Value, kn: n, val: nil}, nil
	}
	entries, err := d.mapping(n, what)
	if err != nil {
		return entry{}, err
	}
	if len(entries) != 1 {
		return entry{}, d.errorf(n, "%s must have exactly one key, found %d", what, len(entries))
	}
	return entries[0], nil
}

// checkKeys rejects keys outside allowed, suggesting the closest match.
func (d *decoder) checkKeys(entries []entry, what string, allowed ...string) error {
	for _, e := range entries {
		ok := false
		for _, a := range allowed {
			if e.key == a {
				ok = true
				break
			}
		}
		if ok {
			continue
		}
		err := d.errorf(e.kn, "unknown key %q in %s", e.key, what)
		if hint := alerr.SuggestSimilar(e.key, allowed); hint != "" {
			err = err.WithHelp(hint)
		}
		return err
	}
	return nil
}

func (d *decoder) str(n *yaml.Node, what string) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", d.errorf(orNode(n), "%s must be a string", what)
	}
	return n.Value, nil
}

func (d *decoder) boolean(n *yaml.Node, what string) (bool, error) {
	var b bool
	if n.Kind != yaml.ScalarNode || n.Decode(&b) != nil {
		return false, d.errorf(n, "%s must be true or false", what)
	}
	return b, nil
}

func (d *decoder) integer(n *yaml.Node, what string) (*int, error) {
	var i int
	if n.Kind != yaml.ScalarNode || n.Tag != "!!int" || n.Decode(&i) != nil {
		return nil, d.errorf(n, "%s must be an integer", what)
	}
	return &i, nil
}

// path splits a dotted name like "org.repos".
func (d *decoder) path(n *yaml.Node, what string) ([]string, error) {
	s, err := d.str(n, what)
	if err != nil {
		return nil, err
	}
	segs := strings.Split(s, ".")
	for _, seg := range segs {
		if strings.TrimSpace(seg) == "" {
			return nil, d.errorf(n, "invalid %s %q", what, s)
		}
	}
	return segs, nil
}

func (d *decoder) strList(n *yaml.Node, what string) ([]string, error) {
	if n != nil && n.Kind == yaml.ScalarNode && !isNull(n) {
		return []string{n.Value}, nil
	}
	items, err := d.sequence(n, what)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, err := d.str(it, what)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// literal converts a non-string scalar (or a string, verbatim) to a Literal.
func (d *decoder) literal(n *yaml.Node) (*ast.Literal, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, d.errorf(n, "expected a scalar value")
	}
	p := d.pos(n)
	switch n.Tag {
	case "!!null":
		return &ast.Literal{Kind: ast.LitNull, Pos: p}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, d.errorf(n, "invalid boolean %q", n.Value)
		}
		return &ast.Literal{Kind: ast.LitBoolean, Value: b, Pos: p}, nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid integer %q", n.Value)
		}
		return &ast.Literal{Kind: ast.LitInteger, Value: i, Pos: p}, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid float %q", n.Value)
		}
		return &ast.Literal{Kind: ast.LitFloat, Value: f, Pos: p}, nil
	}
	return &ast.Literal{Kind: ast.LitString, Value: n.Value, Pos: p}, nil
}

// expr parses a string scalar as an expression; other scalars are literals.
func (d *decoder) expr(n *yaml.Node) (ast.Expr, error) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return nil, d.errorf(orNode(n), "expected an expression")
	}
	if n.Tag != "!!str" {
		lit, err := d.literal(n)
		if err != nil {
			return nil, err
		}
		return lit, nil
	}
	p := d.pos(n)
	switch {
	case n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0:
		p.Column++
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		p.Line++
	}
	return ParseExpr(n.Value, p)
}

func orNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{}
	}
	return n
}
