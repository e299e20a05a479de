package executor

import (
	"context"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// BuildChangeset evaluates cs in order and returns the values by operation
// name. An optional input missing from the request is left out, so updates
// only touch what the client sent.
func (x *Executor) BuildChangeset(ctx context.Context, st *State, cs definition.Changeset) (map[string]any, error) {
	out := make(map[string]any, len(cs))
	for _, op := range cs {
		v, set, err := x.evalSetter(ctx, st, op.Setter, out)
		if err != nil {
			return nil, err
		}
		if set {
			out[op.Name] = v
		}
	}
	return out, nil
}

// evalSetter returns the value of s and whether it is set at all.
func (x *Executor) evalSetter(ctx context.Context, st *State, s definition.Setter, done map[string]any) (any, bool, error) {
	switch s := s.(type) {
	case nil:
		return nil, false, nil

	case *definition.LiteralSetter:
		return FormatFieldValue(s.Value, s.Type), true, nil

	case *definition.FieldsetInputSetter:
		v, ok := inputAt(st.Input, s.FieldsetAccess)
		if !ok {
			if s.Default != nil {
				return x.evalSetter(ctx, st, s.Default, done)
			}
			if s.Required {
				return nil, false, alerr.Newf(alerr.EInternalError, "required input %s was not validated",
					strings.Join(s.FieldsetAccess, "."))
			}
			return nil, false, nil
		}
		return FormatFieldValue(v, s.Type), true, nil

	case *definition.FieldsetReferenceInputSetter:
		key := strings.Join(s.FieldsetAccess, ".")
		if id, ok := st.References[key]; ok {
			return id, true, nil
		}
		v, present := inputAt(st.Input, s.FieldsetAccess)
		if !present {
			return nil, false, nil
		}
		if v == nil {
			return nil, true, nil
		}
		return nil, false, alerr.Newf(alerr.EInternalError, "reference input %s was not resolved", key)

	case *definition.ReferenceValueSetter:
		v, err := st.Vars.Access(s.Alias, s.Access)
		return v, err == nil, err

	case *definition.ChangesetReferenceSetter:
		v, ok := done[s.ReferenceName]
		if !ok {
			return nil, true, nil
		}
		return v, true, nil

	case *definition.FunctionSetter:
		args := make([]any, len(s.Args))
		for i, a := range s.Args {
			v, _, err := x.evalSetter(ctx, st, a, done)
			if err != nil {
				return nil, false, err
			}
			args[i] = v
		}
		v, err := Apply(s.Name, args)
		return v, err == nil, err

	case *definition.ArraySetter:
		out := make([]any, len(s.Elements))
		for i, e := range s.Elements {
			v, _, err := x.evalSetter(ctx, st, e, done)
			if err != nil {
				return nil, false, err
			}
			out[i] = v
		}
		return out, true, nil

	case *definition.HookSetter:
		v, err := x.callHook(ctx, st, s.Hook)
		return v, err == nil, err

	case *definition.QuerySetter:
		v, err := x.fetch(ctx, st.DB, s.Query, st.Vars)
		return v, err == nil, err
	}
	return nil, false, alerr.Newf(alerr.EInternalError, "unknown setter %T", s)
}

// callHook builds the argument changeset of h and invokes its code.
func (x *Executor) callHook(ctx context.Context, st *State, h *definition.HookDef) (any, error) {
	if x.hooks == nil {
		return nil, alerr.New(alerr.EInternalError, "blueprint calls a hook but no hook runner is configured")
	}
	args, err := x.BuildChangeset(ctx, st, h.Args)
	if err != nil {
		return nil, err
	}
	return x.hooks.Invoke(ctx, h.Code, args)
}

// inputAt reads the request body at access and reports whether the key is
// present. A present null is (nil, true).
func inputAt(input map[string]any, access []string) (any, bool) {
	var cur any = input
	for _, key := range access {
		rec, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = rec[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// columns maps changeset values of m to db column parameters, in field order.
func columns(m *definition.ModelDef, values map[string]any) ([]string, map[string]any, error) {
	cols := make([]string, 0, len(values))
	params := make(map[string]any, len(values))
	for _, f := range m.Fields {
		v, ok := values[f.Name]
		if !ok || f.Primary {
			continue
		}
		cols = append(cols, f.DBName)
		params[f.DBName] = v
	}
	if len(cols) != len(values) {
		for name := range values {
			if f := m.Field(name); f == nil || f.Primary {
				return nil, nil, alerr.Newf(alerr.EInternalError, "%s is not a writable field of %s", name, m.Name).
					WithModel(m.Name)
			}
		}
	}
	return cols, params, nil
}
