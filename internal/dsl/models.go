package dsl

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/internal/ast"
)

func (d *decoder) models(n *yaml.Node) ([]*ast.Model, error) {
	entries, err := d.mapping(n, "models")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.Model, 0, len(entries))
	for _, e := range entries {
		m, err := d.model(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *decoder) model(me entry) (*ast.Model, error) {
	m := &ast.Model{Name: me.key, Pos: d.pos(me.kn)}
	what := "model " + me.key
	entries, err := d.mapping(me.val, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what,
		"fields", "references", "relations", "queries", "computed", "hooks"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		members, err := d.mapping(e.val, what+" "+e.key)
		if err != nil {
			return nil, err
		}
		for _, me := range members {
			switch e.key {
			case "fields":
				f, err := d.field(me)
				if err != nil {
					return nil, err
				}
				m.Fields = append(m.Fields, f)
			case "references":
				r, err := d.reference(me)
				if err != nil {
					return nil, err
				}
				m.References = append(m.References, r)
			case "relations":
				r, err := d.relation(me)
				if err != nil {
					return nil, err
				}
				m.Relations = append(m.Relations, r)
			case "queries":
				q, err := d.query(me.key, me.kn, me.val)
				if err != nil {
					return nil, err
				}
				m.Queries = append(m.Queries, q)
			case "computed":
				x, err := d.expr(me.val)
				if err != nil {
					return nil, err
				}
				m.Computeds = append(m.Computeds, &ast.Computed{Name: me.key, Expr: x, Pos: d.pos(me.kn)})
			case "hooks":
				h, err := d.modelHook(me)
				if err != nil {
					return nil, err
				}
				m.Hooks = append(m.Hooks, h)
			}
		}
	}
	return m, nil
}

// field accepts "name: string" or a mapping with type and modifiers.
func (d *decoder) field(fe entry) (*ast.Field, error) {
	f := &ast.Field{Name: fe.key, Pos: d.pos(fe.kn)}
	if fe.val != nil && fe.val.Kind == yaml.ScalarNode {
		t, err := d.str(fe.val, "field type")
		if err != nil {
			return nil, err
		}
		f.Type = t
		return f, nil
	}
	what := "field " + fe.key
	entries, err := d.mapping(fe.val, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what, "type", "nullable", "unique", "default", "validate"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "type":
			f.Type, err = d.str(e.val, "field type")
		case "nullable":
			f.Nullable, err = d.boolean(e.val, "nullable")
		case "unique":
			f.Unique, err = d.boolean(e.val, "unique")
		case "default":
			f.Default, err = d.literal(e.val)
		case "validate":
			f.Validators, err = d.validators(e.val)
		}
		if err != nil {
			return nil, err
		}
	}
	if f.Type == "" {
		return nil, d.errorf(fe.kn, "field %s has no type", fe.key)
	}
	return f, nil
}

// validators decodes a list of "isEmail", {minLength: 4}, {isIn: [a, b]}
// or {hook: {...}}.
func (d *decoder) validators(n *yaml.Node) ([]*ast.Validator, error) {
	items, err := d.sequence(n, "validate")
	if err != nil {
		return nil, err
	}
	var out []*ast.Validator
	for _, it := range items {
		e, err := d.single(it, "validator")
		if err != nil {
			return nil, err
		}
		v := &ast.Validator{Name: e.key, Pos: d.pos(e.kn)}
		switch {
		case e.key == "hook":
			v.Hook, err = d.hookCodeNode(e.val)
			if err != nil {
				return nil, err
			}
		case isNull(e.val):
		case e.val.Kind == yaml.SequenceNode:
			for _, a := range e.val.Content {
				lit, err := d.literal(a)
				if err != nil {
					return nil, err
				}
				v.Args = append(v.Args, lit)
			}
		default:
			lit, err := d.literal(e.val)
			if err != nil {
				return nil, err
			}
			v.Args = append(v.Args, lit)
		}
		out = append(out, v)
	}
	return out, nil
}

// reference accepts "org: Org" or {to, nullable, unique, onDelete}.
func (d *decoder) reference(re entry) (*ast.Reference, error) {
	r := &ast.Reference{Name: re.key, Pos: d.pos(re.kn)}
	if re.val != nil && re.val.Kind == yaml.ScalarNode {
		to, err := d.str(re.val, "reference target")
		if err != nil {
			return nil, err
		}
		r.To = to
		return r, nil
	}
	what := "reference " + re.key
	entries, err := d.mapping(re.val, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what, "to", "nullable", "unique", "onDelete"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "to":
			r.To, err = d.str(e.val, "reference target")
		case "nullable":
			r.Nullable, err = d.boolean(e.val, "nullable")
		case "unique":
			r.Unique, err = d.boolean(e.val, "unique")
		case "onDelete":
			r.OnDelete, err = d.str(e.val, "onDelete")
		}
		if err != nil {
			return nil, err
		}
	}
	if r.To == "" {
		return nil, d.errorf(re.kn, "reference %s has no target model", re.key)
	}
	return r, nil
}

func (d *decoder) relation(re entry) (*ast.Relation, error) {
	r := &ast.Relation{Name: re.key, Pos: d.pos(re.kn)}
	what := "relation " + re.key
	entries, err := d.mapping(re.val, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what, "from", "through"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "from":
			r.From, err = d.str(e.val, "relation source model")
		case "through":
			r.Through, err = d.str(e.val, "relation reference")
		}
		if err != nil {
			return nil, err
		}
	}
	if r.From == "" || r.Through == "" {
		return nil, d.errorf(re.kn, "relation %s needs both from and through", re.key)
	}
	return r, nil
}

// query decodes a named or inline query block.
func (d *decoder) query(name string, kn, n *yaml.Node) (*ast.Query, error) {
	q := &ast.Query{Name: name, Pos: d.pos(kn)}
	what := "query"
	if name != "" {
		what += " " + name
	}
	entries, err := d.mapping(n, what)
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, what,
		"from", "as", "filter", "orderBy", "limit", "offset", "select", "first", "count", "sum"); err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.key {
		case "from":
			q.From, err = d.path(e.val, "query source")
		case "as":
			q.FromAlias, err = d.path(e.val, "query alias")
		case "filter":
			q.Filter, err = d.expr(e.val)
		case "orderBy":
			q.OrderBy, err = d.orderBy(e.val)
		case "limit":
			q.Limit, err = d.integer(e.val, "limit")
		case "offset":
			q.Offset, err = d.integer(e.val, "offset")
		case "select":
			q.Select, err = d.selectItems(e.val)
		case "first":
			q.First, err = d.boolean(e.val, "first")
		case "count":
			var on bool
			on, err = d.boolean(e.val, "count")
			if on {
				err = d.setAggregate(q, e, &ast.Aggregate{Name: "count", Pos: d.pos(e.kn)})
			}
		case "sum":
			var field string
			field, err = d.str(e.val, "summed field")
			if err == nil {
				err = d.setAggregate(q, e, &ast.Aggregate{Name: "sum", Field: field, Pos: d.pos(e.kn)})
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if len(q.From) == 0 {
		return nil, d.errorf(kn, "%s has no source", what)
	}
	if len(q.FromAlias) > 0 && len(q.FromAlias) != len(q.From) {
		return nil, d.errorf(kn, "%s: alias %q does not match source %q",
			what, strings.Join(q.FromAlias, "."), strings.Join(q.From, "."))
	}
	return q, nil
}

func (d *decoder) setAggregate(q *ast.Query, e entry, agg *ast.Aggregate) error {
	if q.Aggregate != nil {
		return d.errorf(e.kn, "query has more than one aggregate")
	}
	q.Aggregate = agg
	return nil
}

// orderBy decodes entries such as "name", "name desc" or "org.name asc".
func (d *decoder) orderBy(n *yaml.Node) ([]*ast.OrderBy, error) {
	items, err := d.sequence(n, "orderBy")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.OrderBy, 0, len(items))
	for _, it := range items {
		s, err := d.str(it, "orderBy entry")
		if err != nil {
			return nil, err
		}
		parts := strings.Fields(s)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, d.errorf(it, "invalid orderBy entry %q", s)
		}
		ob := &ast.OrderBy{Path: strings.Split(parts[0], "."), Pos: d.pos(it)}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				ob.Desc = true
			default:
				return nil, d.errorf(it, "invalid order direction %q", parts[1])
			}
		}
		out = append(out, ob)
	}
	return out, nil
}

// selectItems decodes "name", {repos: [name, ...]} or
// {label: {field: name}} / {repos: {as: projects, select: [...]}}.
func (d *decoder) selectItems(n *yaml.Node) ([]*ast.SelectItem, error) {
	items, err := d.sequence(n, "select")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.SelectItem, 0, len(items))
	for _, it := range items {
		e, err := d.single(it, "select item")
		if err != nil {
			return nil, err
		}
		s := &ast.SelectItem{Name: e.key, Pos: d.pos(e.kn)}
		switch {
		case isNull(e.val):
		case e.val.Kind == yaml.SequenceNode:
			s.Select, err = d.selectItems(e.val)
		default:
			var entries []entry
			entries, err = d.mapping(e.val, "select item "+e.key)
			if err == nil {
				err = d.checkKeys(entries, "select item "+e.key, "as", "field", "select")
			}
			for _, se := range entries {
				if err != nil {
					break
				}
				switch se.key {
				case "as":
					s.Alias, err = d.str(se.val, "select alias")
				case "field":
					// {label: {field: name}} selects name under the alias label.
					s.Alias = e.key
					s.Name, err = d.str(se.val, "selected field")
				case "select":
					s.Select, err = d.selectItems(se.val)
				}
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) modelHook(he entry) (*ast.ModelHook, error) {
	call, err := d.hookCall(he.kn, he.val)
	if err != nil {
		return nil, err
	}
	return &ast.ModelHook{Name: he.key, Args: call.Args, Code: call.Code, Pos: d.pos(he.kn)}, nil
}

// hookCall decodes {args: {...}, inline | file + function, runtime}.
func (d *decoder) hookCall(kn, n *yaml.Node) (*ast.HookCall, error) {
	entries, err := d.mapping(n, "hook")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "hook", "args", "inline", "file", "function", "runtime"); err != nil {
		return nil, err
	}
	call := &ast.HookCall{Pos: d.pos(kn)}
	for _, e := range entries {
		if e.key == "args" {
			call.Args, err = d.hookArgs(e.val)
			if err != nil {
				return nil, err
			}
		}
	}
	call.Code, err = d.hookCode(kn, entries)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func (d *decoder) hookCodeNode(n *yaml.Node) (*ast.HookCode, error) {
	entries, err := d.mapping(n, "hook")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "hook", "inline", "file", "function", "runtime"); err != nil {
		return nil, err
	}
	return d.hookCode(orNode(n), entries)
}

func (d *decoder) hookCode(kn *yaml.Node, entries []entry) (*ast.HookCode, error) {
	code := &ast.HookCode{Pos: d.pos(kn)}
	var err error
	for _, e := range entries {
		switch e.key {
		case "inline":
			code.Inline, err = d.str(e.val, "inline hook source")
		case "file":
			code.File, err = d.str(e.val, "hook file")
		case "function":
			code.Function, err = d.str(e.val, "hook function")
		case "runtime":
			code.Runtime, err = d.str(e.val, "hook runtime")
		}
		if err != nil {
			return nil, err
		}
	}
	switch {
	case code.Inline == "" && code.File == "":
		return nil, d.errorf(kn, "hook needs either inline source or a file")
	case code.Inline != "" && code.File != "":
		return nil, d.errorf(kn, "hook cannot have both inline source and a file")
	case code.File != "" && code.Function == "":
		return nil, d.errorf(kn, "hook file %s needs a function name", code.File)
	}
	return code, nil
}

// hookArgs decodes {name: expr} or {name: {query: {...}}}.
func (d *decoder) hookArgs(n *yaml.Node) ([]*ast.HookArg, error) {
	entries, err := d.mapping(n, "hook args")
	if err != nil {
		return nil, err
	}
	out := make([]*ast.HookArg, 0, len(entries))
	for _, e := range entries {
		arg := &ast.HookArg{Name: e.key, Pos: d.pos(e.kn)}
		if e.val != nil && e.val.Kind == yaml.MappingNode {
			qe, err := d.single(e.val, "hook arg "+e.key)
			if err != nil {
				return nil, err
			}
			if qe.key != "query" {
				return nil, d.errorf(qe.kn, "hook arg %s: expected an expression or a query", e.key)
			}
			arg.Query, err = d.query("", qe.kn, qe.val)
			if err != nil {
				return nil, err
			}
		} else {
			arg.Expr, err = d.expr(e.val)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, arg)
	}
	return out, nil
}
