package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/query"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
)

// Response is what a responding action produced.
type Response struct {
	Status int
	Body   any
}

// ExecuteActions runs actions in their composed order against st. The caller
// owns the transaction behind st.DB; the first error aborts the run.
func (x *Executor) ExecuteActions(ctx context.Context, st *State, actions []definition.ActionDef) (*Response, error) {
	var resp *Response
	for _, a := range actions {
		r, err := x.executeAction(ctx, st, a)
		if err != nil {
			return nil, err
		}
		if r != nil {
			resp = r
		}
	}
	return resp, nil
}

func (x *Executor) executeAction(ctx context.Context, st *State, a definition.ActionDef) (*Response, error) {
	switch a := a.(type) {
	case *definition.CreateOneAction:
		return nil, x.createOne(ctx, st, a)

	case *definition.UpdateOneAction:
		return nil, x.updateOne(ctx, st, a)

	case *definition.DeleteOneAction:
		return nil, x.deleteOne(ctx, st, a)

	case *definition.ExecuteHookAction:
		v, err := x.callHook(ctx, st, a.Hook)
		if err != nil {
			return nil, err
		}
		if a.Responds {
			return hookResponse(v), nil
		}
		if a.Alias != "" {
			st.Vars.Set(a.Alias, v)
		}
		return nil, nil

	case *definition.FetchAction:
		v, err := x.fetch(ctx, st.DB, a.Query, st.Vars)
		if err != nil {
			return nil, err
		}
		st.Vars.Set(a.Alias, v)
		return nil, nil

	case *definition.RespondAction:
		body, err := EvalExpr(a.Body, st.Vars)
		if err != nil {
			return nil, err
		}
		status := http.StatusOK
		if a.HTTPStatus != nil {
			v, err := EvalExpr(a.HTTPStatus, st.Vars)
			if err != nil {
				return nil, err
			}
			n, ok := toInt64(v)
			if !ok || n < 100 || n > 599 {
				return nil, alerr.Newf(alerr.EInternalError, "respond status %v is not an HTTP status", v)
			}
			status = int(n)
		}
		return &Response{Status: status, Body: body}, nil

	case *definition.ValidateAction:
		v, err := EvalExpr(a.Expr, st.Vars)
		if err != nil {
			return nil, err
		}
		if v != true {
			var issues alerr.ValidationErrors
			issues.Add([]string{a.Key}, IssueValidate, fmt.Sprintf("%s is not valid", a.Key))
			return nil, issues.Err()
		}
		return nil, nil
	}
	return nil, alerr.Newf(alerr.EInternalError, "unknown action %T", a)
}

func (x *Executor) createOne(ctx context.Context, st *State, a *definition.CreateOneAction) error {
	m, err := x.model(a.Model)
	if err != nil {
		return err
	}
	values, err := x.BuildChangeset(ctx, st, a.Changeset)
	if err != nil {
		return err
	}
	cols, params, err := columns(m, values)
	if err != nil {
		return err
	}
	id, err := x.insert(ctx, st.DB, x.b.InsertSQL(m, cols), sqlgen.MapLookup(params))
	if err != nil {
		return err
	}
	slog.Debug("created", "model", m.Name, "id", id)
	return x.bind(ctx, st, a.Alias, m, a.Select, id)
}

func (x *Executor) updateOne(ctx context.Context, st *State, a *definition.UpdateOneAction) error {
	m, err := x.model(a.Model)
	if err != nil {
		return err
	}
	id, err := st.Vars.recordID(a.TargetPath)
	if err != nil {
		return err
	}
	values, err := x.BuildChangeset(ctx, st, a.Changeset)
	if err != nil {
		return err
	}
	cols, params, err := columns(m, values)
	if err != nil {
		return err
	}
	if stmt := x.b.UpdateSQL(m, cols); stmt != "" {
		params[sqlgen.IDParam] = id
		res, err := x.exec(ctx, st.DB, stmt, sqlgen.MapLookup(params))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return alerr.Newf(alerr.ErrNotFound, "%s not found", m.Name).WithModel(m.Name)
		}
	}
	return x.bind(ctx, st, a.Alias, m, a.Select, id)
}

func (x *Executor) deleteOne(ctx context.Context, st *State, a *definition.DeleteOneAction) error {
	m, err := x.model(a.Model)
	if err != nil {
		return err
	}
	id, err := st.Vars.recordID(a.TargetPath)
	if err != nil {
		return err
	}
	res, err := x.exec(ctx, st.DB, x.b.DeleteSQL(m), sqlgen.MapLookup(map[string]any{sqlgen.IDParam: id}))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return alerr.WrapSQL(err, "count deleted rows", "")
	}
	if n == 0 {
		return alerr.Newf(alerr.ErrNotFound, "%s not found", m.Name).WithModel(m.Name)
	}
	return nil
}

// bind fetches sel for the written row and binds it to alias.
func (x *Executor) bind(ctx context.Context, st *State, alias string, m *definition.ModelDef,
	sel []definition.SelectItem, id int64) error {

	if alias == "" {
		return nil
	}
	if len(sel) == 0 {
		st.Vars.Set(alias, query.Record{"id": id})
		return nil
	}
	target := &definition.TargetDef{Name: m.Name, NamePath: []string{m.Name}, RetType: m.Name}
	rec, err := x.q.FetchOne(ctx, st.DB, query.ResponseQuery(target, sel), query.WithTargetID(st.Vars.Lookup, id), m.Name)
	if err != nil {
		return err
	}
	rec["id"] = id
	st.Vars.Set(alias, rec)
	return nil
}

// hookResponse reads the response of a responding hook. A result of the form
// {status, body} sets the status; anything else is the body.
func hookResponse(v any) *Response {
	if obj, ok := v.(map[string]any); ok && len(obj) <= 2 {
		if status, ok := toInt64(obj["status"]); ok && status >= 100 && status <= 599 {
			if body, ok := obj["body"]; ok || len(obj) == 1 {
				return &Response{Status: int(status), Body: body}
			}
		}
	}
	return &Response{Status: http.StatusOK, Body: v}
}
