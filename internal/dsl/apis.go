package dsl

import (
	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/internal/ast"
)

func (d *decoder) apis(n *yaml.Node) ([]*ast.API, error) {
	items, err := d.sequence(n, "apis")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.API, 0, len(items))
	for _, it := range items {
		entries, err := d.mapping(it, "api")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys(entries, "api", "name", "entrypoints"); err != nil {
			return nil, err
		}
		api := &ast.API{Pos: d.pos(it)}
		for _, e := range entries {
			switch e.key {
			case "name":
				api.Name, err = d.str(e.val, "api name")
			case "entrypoints":
				api.Entrypoints, err = d.entrypoints(e.val)
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, api)
	}
	return out, nil
}

func (d *decoder) entrypoints(n *yaml.Node) ([]*ast.Entrypoint, error) {
	items, err := d.sequence(n, "entrypoints")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Entrypoint, 0, len(items))
	for _, it := range items {
		ep, err := d.entrypoint(it)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

func (d *decoder) entrypoint(n *yaml.Node) (*ast.Entrypoint, error) {
	entries, err := d.mapping(n, "entrypoint")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "entrypoint",
		"target", "as", "identify", "response", "authorize", "endpoints", "entrypoints"); err != nil {
		return nil, err
	}
	ep := &ast.Entrypoint{Pos: d.pos(n)}
	for _, e := range entries {
		switch e.key {
		case "target":
			ep.Target, err = d.str(e.val, "entrypoint target")
		case "as":
			ep.As, err = d.str(e.val, "entrypoint alias")
		case "identify":
			ep.Identify, err = d.str(e.val, "identify field")
		case "response":
			ep.Response, err = d.selectItems(e.val)
		case "authorize":
			ep.Authorize, err = d.expr(e.val)
		case "endpoints":
			ep.Endpoints, err = d.endpoints(e.val)
		case "entrypoints":
			ep.Entrypoints, err = d.entrypoints(e.val)
		}
		if err != nil {
			return nil, err
		}
	}
	if ep.Target == "" {
		return nil, d.errorf(n, "entrypoint has no target")
	}
	return ep, nil
}

var endpointKinds = []string{
	ast.EndpointList, ast.EndpointGet, ast.EndpointCreate,
	ast.EndpointUpdate, ast.EndpointDelete, ast.EndpointCustom,
}

// endpoints decodes "- list" or "- create: {actions: [...]}".
func (d *decoder) endpoints(n *yaml.Node) ([]*ast.Endpoint, error) {
	items, err := d.sequence(n, "endpoints")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Endpoint, 0, len(items))
	for _, it := range items {
		ke, err := d.single(it, "endpoint")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys([]entry{ke}, "endpoint kind", endpointKinds...); err != nil {
			return nil, err
		}
		ep := &ast.Endpoint{Kind: ke.key, Pos: d.pos(ke.kn)}
		entries, err := d.mapping(ke.val, ke.key+" endpoint")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys(entries, ke.key+" endpoint",
			"method", "path", "cardinality", "actions", "authorize",
			"pageable", "orderBy", "filter", "response"); err != nil {
			return nil, err
		}
		for _, e := range entries {
			switch e.key {
			case "method":
				ep.Method, err = d.str(e.val, "method")
			case "path":
				ep.Path, err = d.str(e.val, "path")
			case "cardinality":
				ep.Cardinality, err = d.str(e.val, "cardinality")
			case "actions":
				ep.Actions, err = d.actions(e.val)
			case "authorize":
				ep.Authorize, err = d.expr(e.val)
			case "pageable":
				ep.Pageable, err = d.boolean(e.val, "pageable")
			case "orderBy":
				ep.OrderBy, err = d.orderBy(e.val)
			case "filter":
				ep.Filter, err = d.expr(e.val)
			case "response":
				ep.Response, err = d.selectItems(e.val)
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, ep)
	}
	return out, nil
}

var actionKinds = []string{
	ast.ActionCreate, ast.ActionUpdate, ast.ActionDelete, ast.ActionExecute,
	ast.ActionFetch, ast.ActionRespond, ast.ActionValidate,
}

// actions decodes a list of single-key action blocks. A scalar value is
// shorthand for the target ("- delete: repo").
func (d *decoder) actions(n *yaml.Node) ([]*ast.Action, error) {
	items, err := d.sequence(n, "actions")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Action, 0, len(items))
	for _, it := range items {
		ke, err := d.single(it, "action")
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys([]entry{ke}, "action kind", actionKinds...); err != nil {
			return nil, err
		}
		a, err := d.action(ke)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *decoder) action(ke entry) (*ast.Action, error) {
	a := &ast.Action{Kind: ke.key, Pos: d.pos(ke.kn)}
	if ke.val != nil && ke.val.Kind == yaml.ScalarNode && !isNull(ke.val) {
		target, err := d.path(ke.val, "action target")
		if err != nil {
			return nil, err
		}
		a.Target = target
		return a, nil
	}
	what := ke.key + " action"
	entries, err := d.mapping(ke.val, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what,
		"target", "as", "set", "input", "reference", "deny", "hook", "responds",
		"query", "body", "httpStatus", "key", "expr", "actions"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "target":
			a.Target, err = d.path(e.val, "action target")
		case "as":
			a.As, err = d.str(e.val, "action alias")
		case "set":
			a.Set, err = d.setAtoms(e.val)
		case "input":
			a.Inputs, err = d.inputs(e.val)
		case "reference":
			a.References, err = d.referenceAtoms(e.val)
		case "deny":
			a.Deny, err = d.strList(e.val, "deny")
		case "hook":
			a.Hook, err = d.hookCall(e.kn, e.val)
		case "responds":
			a.Responds, err = d.boolean(e.val, "responds")
		case "query":
			a.Query, err = d.query("", e.kn, e.val)
		case "body":
			a.Body, err = d.expr(e.val)
		case "httpStatus":
			a.HTTPStatus, err = d.expr(e.val)
		case "key":
			a.Key, err = d.str(e.val, "validation key")
		case "expr":
			a.Expr, err = d.expr(e.val)
		case "actions":
			a.Nested, err = d.actions(e.val)
		}
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// setAtoms decodes {field: expr | {hook: {...}} | {query: {...}}} in order.
func (d *decoder) setAtoms(n *yaml.Node) ([]*ast.SetAtom, error) {
	entries, err := d.mapping(n, "set")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.SetAtom, 0, len(entries))
	for _, e := range entries {
		s := &ast.SetAtom{Field: e.key, Pos: d.pos(e.kn)}
		if e.val != nil && e.val.Kind == yaml.MappingNode {
			ve, err := d.single(e.val, "setter "+e.key)
			if err != nil {
				return nil, err
			}
			switch ve.key {
			case "hook":
				s.Hook, err = d.hookCall(ve.kn, ve.val)
			case "query":
				s.Query, err = d.query("", ve.kn, ve.val)
			default:
				err = d.errorf(ve.kn, "setter %s: expected an expression, a hook or a query", e.key)
			}
			if err != nil {
				return nil, err
			}
		} else {
			s.Expr, err = d.expr(e.val)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// inputs decodes "- name" or "- name: {optional: true, default: expr}".
func (d *decoder) inputs(n *yaml.Node) ([]*ast.InputAtom, error) {
	items, err := d.sequence(n, "input")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.InputAtom, 0, len(items))
	for _, it := range items {
		ie, err := d.single(it, "input")
		if err != nil {
			return nil, err
		}
		in := &ast.InputAtom{Field: ie.key, Pos: d.pos(ie.kn)}
		entries, err := d.mapping(ie.val, "input "+ie.key)
		if err != nil {
			return nil, err
		}
		if err := d.checkKeys(entries, "input "+ie.key, "optional", "default"); err != nil {
			return nil, err
		}
		for _, e := range entries {
			switch e.key {
			case "optional":
				in.Optional, err = d.boolean(e.val, "optional")
			case "default":
				in.Default, err = d.expr(e.val)
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, in)
	}
	return out, nil
}

// referenceAtoms decodes {reference: throughField}.
func (d *decoder) referenceAtoms(n *yaml.Node) ([]*ast.ReferenceAtom, error) {
	entries, err := d.mapping(n, "reference")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.ReferenceAtom, 0, len(entries))
	for _, e := range entries {
		through, err := d.str(e.val, "reference lookup field")
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.ReferenceAtom{Field: e.key, Through: through, Pos: d.pos(e.kn)})
	}
	return out, nil
}
