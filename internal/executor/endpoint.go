package executor

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/composer"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/query"
)

// Paging defaults of pageable list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Endpoint is an endpoint with its queries derived once.
type Endpoint struct {
	Def     *definition.EndpointDef
	Queries *query.EndpointQueries
}

// PrepareEndpoint derives the queries of ep.
func PrepareEndpoint(ep *definition.EndpointDef) *Endpoint {
	return &Endpoint{Def: ep, Queries: query.BuildEndpointQueries(ep)}
}

// Request is one call of an endpoint.
type Request struct {
	// Params holds the raw path parameters by parameter name.
	Params map[string]string
	// Input is the decoded request body.
	Input map[string]any
	// Page and PageSize select a page of a pageable list. Zero picks the
	// defaults.
	Page     int
	PageSize int
	// Token is the bearer access token, empty for anonymous requests.
	Token string
}

// Page is the response of a pageable list endpoint.
type Page struct {
	Data       []query.Record `json:"data"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalCount int64          `json:"totalCount"`
	TotalPages int64          `json:"totalPages"`
}

// RunEndpoint serves one request in a single transaction: it fetches the
// context records, authorizes, validates the input, executes the actions and
// fetches the response.
func (x *Executor) RunEndpoint(ctx context.Context, db *sql.DB, ep *Endpoint, req *Request) (*Response, error) {
	var resp *Response
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		resp, err = x.runEndpoint(ctx, tx, ep, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (x *Executor) runEndpoint(ctx context.Context, tx *sql.Tx, ep *Endpoint, req *Request) (*Response, error) {
	def := ep.Def
	st := &State{DB: tx, Vars: NewVars(), Input: req.Input, References: map[string]int64{}}
	if st.Input == nil {
		st.Input = map[string]any{}
	}

	if err := x.bindParams(st.Vars, def, req.Params); err != nil {
		return nil, err
	}
	if x.def.Authenticator != nil {
		if err := x.Authenticate(ctx, tx, st.Vars, req.Token, def.AuthSelect); err != nil {
			return nil, err
		}
	}

	for _, cq := range ep.Queries.Parents {
		rec, err := x.q.FetchOne(ctx, tx, cq.Query, st.Vars.Lookup, cq.Alias)
		if err != nil {
			return nil, err
		}
		st.Vars.Set(cq.Alias, rec)
	}
	if cq := ep.Queries.Target; cq != nil {
		rec, err := x.q.FetchOne(ctx, tx, cq.Query, st.Vars.Lookup, cq.Alias)
		if err != nil {
			return nil, err
		}
		st.Vars.Set(cq.Alias, rec)
	}

	if err := x.authorize(def, st.Vars); err != nil {
		return nil, err
	}

	var issues alerr.ValidationErrors
	if err := x.ValidateFieldset(ctx, def.Fieldset, st.Input, &issues); err != nil {
		return nil, err
	}
	if err := x.ValidateReferences(ctx, st, def.Actions, &issues); err != nil {
		return nil, err
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}

	resp, err := x.ExecuteActions(ctx, st, def.Actions)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	return x.respond(ctx, tx, ep, st, req)
}

// bindParams binds every path parameter, coerced to the type of the field
// identifying its level.
func (x *Executor) bindParams(vars *Vars, def *definition.EndpointDef, params map[string]string) error {
	levels := append([]*definition.TargetWithSelect(nil), def.Parents...)
	levels = append(levels, def.Target)
	for _, l := range levels {
		id := l.IdentifyWith
		if id == nil {
			continue
		}
		raw, ok := params[id.ParamName]
		if !ok {
			continue
		}
		v := FormatFieldValue(raw, id.Type)
		if id.Type == definition.TypeInteger {
			if _, valid := toInt64(raw); !valid {
				return alerr.Newf(alerr.ErrNotFound, "%s not found", l.Alias).With("param", id.ParamName)
			}
		}
		vars.Set(id.ParamName, v)
	}
	return nil
}

// authorize evaluates the authorize expression of def. A failure is
// unauthorized for anonymous requests and forbidden otherwise.
func (x *Executor) authorize(def *definition.EndpointDef, vars *Vars) error {
	if def.Authorize == nil {
		return nil
	}
	ok, err := EvalExpr(def.Authorize, vars)
	if err != nil {
		return err
	}
	if ok == true {
		return nil
	}
	if auth, _ := vars.Get(composer.AuthVar); auth == nil {
		return alerr.New(alerr.ErrUnauthorized, "authentication required")
	}
	return alerr.New(alerr.ErrForbidden, "not allowed")
}

// respond fetches the default response of the endpoint kind.
func (x *Executor) respond(ctx context.Context, tx *sql.Tx, ep *Endpoint, st *State, req *Request) (*Response, error) {
	def := ep.Def
	switch def.Kind {
	case definition.EndpointList:
		q := ep.Queries.List
		if !def.Pageable {
			recs, err := x.q.Fetch(ctx, tx, q, st.Vars.Lookup)
			if err != nil {
				return nil, err
			}
			return &Response{Status: http.StatusOK, Body: recs}, nil
		}
		page, size := paging(req.Page, req.PageSize)
		recs, err := x.q.Fetch(ctx, tx, query.Paged(q, page, size), st.Vars.Lookup)
		if err != nil {
			return nil, err
		}
		total, err := x.q.Count(ctx, tx, q, st.Vars.Lookup)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Body: &Page{
			Data:       recs,
			Page:       page,
			PageSize:   size,
			TotalCount: total,
			TotalPages: (total + int64(size) - 1) / int64(size),
		}}, nil

	case definition.EndpointGet, definition.EndpointCreate, definition.EndpointUpdate, definition.EndpointCustomOne:
		alias := def.Target.Alias
		id, err := st.Vars.recordID([]string{alias})
		if err != nil {
			return nil, err
		}
		rec, err := x.q.FetchOne(ctx, tx, ep.Queries.Response, query.WithTargetID(st.Vars.Lookup, id), alias)
		if err != nil {
			return nil, err
		}
		status := http.StatusOK
		if def.Kind == definition.EndpointCreate {
			status = http.StatusCreated
		}
		return &Response{Status: status, Body: rec}, nil
	}
	return &Response{Status: http.StatusNoContent}, nil
}

// paging clamps a requested page to valid bounds.
func paging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}
