// Package executor runs the actions of endpoints and populators against a
// database: it builds changesets, validates request input and executes every
// action of a request inside one transaction.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/query"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
)

// DB runs statements. *sql.DB and *sql.Tx implement it.
type DB interface {
	query.Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor runs the actions of one Definition.
type Executor struct {
	def   *definition.Definition
	b     *sqlgen.Builder
	q     *query.Executor
	hooks query.HookRunner
}

// New creates an Executor. hooks may be nil when the Definition has no hooks.
func New(def *definition.Definition, d dialect.Dialect, hooks query.HookRunner) *Executor {
	b := sqlgen.New(def, d)
	return &Executor{def: def, b: b, q: query.NewExecutor(b, hooks), hooks: hooks}
}

// Definition returns the Definition the executor runs.
func (x *Executor) Definition() *definition.Definition {
	return x.def
}

// Queries returns the query executor.
func (x *Executor) Queries() *query.Executor {
	return x.q
}

// State is what one request or populate iteration runs against.
type State struct {
	DB   DB
	Vars *Vars
	// Input is the decoded request body.
	Input map[string]any
	// References holds the ids resolved by ValidateReferences, keyed by the
	// dotted fieldset path of the reference input.
	References map[string]int64
}

// InTx runs fn in a transaction that is committed when fn succeeds and
// rolled back otherwise, including when ctx is canceled.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit transaction")
	}
	committed = true
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (x *Executor) model(name string) (*definition.ModelDef, error) {
	m := x.def.Model(name)
	if m == nil {
		return nil, alerr.Newf(alerr.EInternalError, "model %s is not defined", name)
	}
	return m, nil
}

// exec binds and runs a write statement.
func (x *Executor) exec(ctx context.Context, db DB, stmt string, params sqlgen.Lookup) (sql.Result, error) {
	bound, args, err := sqlgen.Bind(x.b.Dialect(), stmt, params)
	if err != nil {
		return nil, err
	}
	slog.Debug("exec", "sql", bound, "args", len(args))
	res, err := db.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, alerr.WrapSQL(err, "execute statement", bound)
	}
	return res, nil
}

// insert binds and runs an INSERT ... RETURNING id.
func (x *Executor) insert(ctx context.Context, db DB, stmt string, params sqlgen.Lookup) (int64, error) {
	bound, args, err := sqlgen.Bind(x.b.Dialect(), stmt, params)
	if err != nil {
		return 0, err
	}
	slog.Debug("exec", "sql", bound, "args", len(args))
	var id int64
	if err := db.QueryRowContext(ctx, bound, args...).Scan(&id); err != nil {
		return 0, alerr.WrapSQL(err, "insert record", bound)
	}
	return id, nil
}

// fetch runs q with params drawn from vars and returns what an alias of q
// holds: a scalar for aggregates, a list for many and a record (or nil)
// otherwise.
func (x *Executor) fetch(ctx context.Context, db DB, q *definition.QueryDef, vars *Vars) (any, error) {
	if q.Aggregate != nil {
		return x.q.Value(ctx, db, q, vars.Lookup)
	}
	recs, err := x.q.Fetch(ctx, db, q, vars.Lookup)
	if err != nil {
		return nil, err
	}
	if q.RetCardinality == definition.Many {
		return recs, nil
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}
