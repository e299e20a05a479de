package query

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
)

// Querier runs a query. *sql.DB and *sql.Tx implement it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// HookRunner invokes model hook code with named arguments.
type HookRunner interface {
	Invoke(ctx context.Context, code *definition.HookCode, args map[string]any) (any, error)
}

// Executor runs queries of one Definition.
type Executor struct {
	b     *sqlgen.Builder
	hooks HookRunner
}

// NewExecutor creates an Executor. hooks may be nil when no query selects a
// model hook.
func NewExecutor(b *sqlgen.Builder, hooks HookRunner) *Executor {
	return &Executor{b: b, hooks: hooks}
}

// Builder returns the SQL builder of the executor.
func (e *Executor) Builder() *sqlgen.Builder {
	return e.b
}

// Fetch runs q with its nested selects and returns the records with
// internal columns removed.
func (e *Executor) Fetch(ctx context.Context, db Querier, q *definition.QueryDef, params sqlgen.Lookup) ([]Record, error) {
	recs, err := e.run(ctx, db, BuildQueryTree(q), params, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		r.Strip()
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// FetchOne runs q and returns its single record. No row is a not found
// error naming what, more than one an internal error.
func (e *Executor) FetchOne(ctx context.Context, db Querier, q *definition.QueryDef, params sqlgen.Lookup, what string) (Record, error) {
	recs, err := e.Fetch(ctx, db, q, params)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, alerr.Newf(alerr.ErrNotFound, "%s not found", what)
	case 1:
		return recs[0], nil
	}
	return nil, alerr.Newf(alerr.EInternalError, "%s matched %d records", what, len(recs))
}

// Count returns the number of records q fetches regardless of paging.
func (e *Executor) Count(ctx context.Context, db Querier, q *definition.QueryDef, params sqlgen.Lookup) (int64, error) {
	query, err := e.b.CountSQL(q)
	if err != nil {
		return 0, err
	}
	recs, err := e.query(ctx, db, query, params, nil)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	n, _ := toInt64(recs[0][sqlgen.AggregateColumn])
	return n, nil
}

// Value runs an aggregate query and returns its scalar.
func (e *Executor) Value(ctx context.Context, db Querier, q *definition.QueryDef, params sqlgen.Lookup) (any, error) {
	query, err := e.b.QueryToSQL(q, sqlgen.Options{})
	if err != nil {
		return nil, err
	}
	recs, err := e.query(ctx, db, query, params, nil)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0][sqlgen.AggregateColumn], nil
}

// run fetches one level of t and then its children for all fetched rows.
// Internal columns are kept for the caller to stitch on.
func (e *Executor) run(ctx context.Context, db Querier, t *QueryTree, params sqlgen.Lookup, parentIDs []int64) ([]Record, error) {
	var opts sqlgen.Options
	if t.nested {
		opts.PartitionBy = []string{t.Query.FromPath[0], "id"}
		params = withParam(params, ParentIDsParam, parentIDs)
	}
	query, err := e.b.QueryToSQL(t.Query, opts)
	if err != nil {
		return nil, err
	}
	recs, err := e.query(ctx, db, query, params, selectTypes(t.Query.Select))
	if err != nil {
		return nil, err
	}
	recs = dedupe(recs, t.nested)

	if len(t.Children) > 0 && len(recs) > 0 {
		ids := make([]int64, 0, len(recs))
		seen := map[int64]bool{}
		for _, r := range recs {
			if id, ok := toInt64(r[definition.IDColumn]); ok && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		for _, child := range t.Children {
			rows, err := e.run(ctx, db, child, params, ids)
			if err != nil {
				return nil, err
			}
			stitch(recs, child, rows)
		}
	}

	if err := e.runHooks(ctx, t, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (e *Executor) query(ctx context.Context, db Querier, query string, params sqlgen.Lookup,
	types map[string]definition.ScalarType) ([]Record, error) {

	if params == nil {
		params = sqlgen.MapLookup(nil)
	}
	bound, args, err := sqlgen.Bind(e.b.Dialect(), query, params)
	if err != nil {
		return nil, err
	}
	slog.Debug("query", "sql", bound, "args", len(args))
	rows, err := db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, alerr.WrapSQL(err, "run query", bound)
	}
	defer rows.Close()
	return scanRecords(rows, types)
}

// stitch stores the child rows on the parent records they belong to.
func stitch(parents []Record, child *QueryTree, rows []Record) {
	byParent := map[int64][]Record{}
	for _, r := range rows {
		pid, _ := toInt64(r[definition.JoinConnectionColumn])
		byParent[pid] = append(byParent[pid], r)
	}
	for _, p := range parents {
		id, _ := toInt64(p[definition.IDColumn])
		matched := byParent[id]
		for _, m := range matched {
			m.Strip()
		}
		if child.Many {
			if matched == nil {
				matched = []Record{}
			}
			p[child.Alias] = matched
			continue
		}
		if len(matched) == 0 {
			p[child.Alias] = nil
		} else {
			p[child.Alias] = matched[0]
		}
	}
}

// dedupe drops repeated rows of the same record, which a from path ending in
// a reference shared by several records produces. Nested rows are unique per
// parent.
func dedupe(recs []Record, nested bool) []Record {
	type key struct{ parent, id int64 }
	seen := map[key]bool{}
	out := recs[:0]
	for _, r := range recs {
		id, ok := toInt64(r[definition.IDColumn])
		if !ok {
			out = append(out, r)
			continue
		}
		k := key{id: id}
		if nested {
			k.parent, _ = toInt64(r[definition.JoinConnectionColumn])
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// runHooks evaluates the hook selects of t for every record.
func (e *Executor) runHooks(ctx context.Context, t *QueryTree, recs []Record) error {
	if len(t.Hooks) == 0 {
		return nil
	}
	if e.hooks == nil {
		return alerr.New(alerr.EInternalError, "query selects a model hook but no hook runner is configured")
	}
	for _, r := range recs {
		for _, h := range t.Hooks {
			args := make(map[string]any, len(h.Args))
			for _, a := range h.Args {
				args[a.Name] = r[hookArgAlias(h.Alias, a.Name)]
			}
			v, err := e.hooks.Invoke(ctx, h.Code, args)
			if err != nil {
				return err
			}
			r[h.Alias] = v
		}
	}
	return nil
}

// withParam adds one parameter to params.
func withParam(params sqlgen.Lookup, name string, value any) sqlgen.Lookup {
	return func(n string) (any, bool) {
		if n == name {
			return value, true
		}
		if params == nil {
			return nil, false
		}
		return params(n)
	}
}

// WithTargetID binds "@target_id" for a ResponseQuery.
func WithTargetID(params sqlgen.Lookup, id int64) sqlgen.Lookup {
	return withParam(params, TargetIDParam, id)
}
