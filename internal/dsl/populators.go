package dsl

import (
	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/internal/ast"
)

func (d *decoder) populators(n *yaml.Node) ([]*ast.Populator, error) {
	entries, err := d.mapping(n, "populators")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Populator, 0, len(entries))
	for _, e := range entries {
		p := &ast.Populator{Name: e.key, Pos: d.pos(e.kn)}
		p.Populates, err = d.populates(e.val)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *decoder) populates(n *yaml.Node) ([]*ast.Populate, error) {
	items, err := d.sequence(n, "populates")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Populate, 0, len(items))
	for _, it := range items {
		p, err := d.populate(it)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *decoder) populate(n *yaml.Node) (*ast.Populate, error) {
	entries, err := d.mapping(n, "populate")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "populate", "populate", "as", "repeat", "set", "populates"); err != nil {
		return nil, err
	}
	p := &ast.Populate{Pos: d.pos(n)}
	for _, e := range entries {
		switch e.key {
		case "populate":
			p.Target, err = d.str(e.val, "populate target")
		case "as":
			p.As, err = d.str(e.val, "populate alias")
		case "repeat":
			p.Repeat, err = d.repeat(e.kn, e.val)
		case "set":
			p.Set, err = d.setAtoms(e.val)
		case "populates":
			p.Populates, err = d.populates(e.val)
		}
		if err != nil {
			return nil, err
		}
	}
	if p.Target == "" {
		return nil, d.errorf(n, "populate block has no target")
	}
	return p, nil
}

// repeat decodes "repeat: 5" or {as, count | start, end}.
func (d *decoder) repeat(kn, n *yaml.Node) (*ast.Repeat, error) {
	r := &ast.Repeat{Pos: d.pos(kn)}
	if n != nil && n.Kind == yaml.ScalarNode {
		count, err := d.integer(n, "repeat")
		if err != nil {
			return nil, err
		}
		r.Count = count
		return r, nil
	}
	entries, err := d.mapping(n, "repeat")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "repeat", "as", "count", "start", "end"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "as":
			r.As, err = d.str(e.val, "repeat alias")
		case "count":
			r.Count, err = d.integer(e.val, "repeat count")
		case "start":
			r.Start, err = d.integer(e.val, "repeat start")
		case "end":
			r.End, err = d.integer(e.val, "repeat end")
		}
		if err != nil {
			return nil, err
		}
	}
	if r.Count != nil && (r.Start != nil || r.End != nil) {
		return nil, d.errorf(kn, "repeat takes either count or start/end")
	}
	return r, nil
}

func (d *decoder) runtimes(n *yaml.Node) ([]*ast.Runtime, error) {
	items, err := d.sequence(n, "runtimes")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Runtime, 0, len(items))
	for _, it := range items {
		entries, err := d.mapping(it, "runtime")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys(entries, "runtime", "name", "sourcePath", "default"); err != nil {
			return nil, err
		}
		rt := &ast.Runtime{Pos: d.pos(it)}
		for _, e := range entries {
			switch e.key {
			case "name":
				rt.Name, err = d.str(e.val, "runtime name")
			case "sourcePath":
				rt.SourcePath, err = d.str(e.val, "runtime sourcePath")
			case "default":
				rt.Default, err = d.boolean(e.val, "default")
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, rt)
	}
	return out, nil
}

func (d *decoder) generators(n *yaml.Node) ([]*ast.Generator, error) {
	items, err := d.sequence(n, "generators")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Generator, 0, len(items))
	for _, it := range items {
		entries, err := d.mapping(it, "generator")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys(entries, "generator", "kind", "target", "output"); err != nil {
			return nil, err
		}
		g := &ast.Generator{Pos: d.pos(it)}
		for _, e := range entries {
			switch e.key {
			case "kind":
				g.Kind, err = d.str(e.val, "generator kind")
			case "target":
				g.Target, err = d.str(e.val, "generator target")
			case "output":
				g.Output, err = d.str(e.val, "generator output")
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, g)
	}
	return out, nil
}

// authenticator accepts "authenticator:", "authenticator: basic" or
// {method: basic}.
func (d *decoder) authenticator(kn, n *yaml.Node) (*ast.Authenticator, error) {
	a := &ast.Authenticator{Pos: d.pos(kn)}
	if isNull(n) {
		return a, nil
	}
	if n.Kind == yaml.ScalarNode {
		a.Method = n.Value
		return a, nil
	}
	entries, err := d.mapping(n, "authenticator")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "authenticator", "method"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		a.Method, err = d.str(e.val, "authenticator method")
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}
