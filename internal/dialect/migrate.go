package dialect

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/schema"
)

// OperationSQL renders a single schema operation.
func OperationSQL(d Dialect, op schema.Operation) (string, error) {
	switch op := op.(type) {
	case *schema.CreateTable:
		return d.CreateTableSQL(op)
	case *schema.DropTable:
		return d.DropTableSQL(op)
	case *schema.CreateIndex:
		return d.CreateIndexSQL(op)
	case *schema.AddForeignKey:
		return d.AddForeignKeySQL(op)
	default:
		return "", alerr.Newf(alerr.EInternalError, "unknown schema operation %T", op)
	}
}

// Statements renders ops in order.
func Statements(d Dialect, ops []schema.Operation) ([]string, error) {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		stmt, err := OperationSQL(d, op)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

// Apply executes ops against db. The whole batch runs in one transaction
// when the dialect supports transactional DDL.
func Apply(ctx context.Context, db *sql.DB, d Dialect, ops []schema.Operation) error {
	stmts, err := Statements(d, ops)
	if err != nil {
		return err
	}
	if !d.SupportsTransactionalDDL() {
		return execAll(ctx, db, stmts)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := execAll(ctx, tx, stmts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit transaction")
	}
	committed = true
	slog.Info("schema applied", "dialect", d.Name(), "statements", len(stmts))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAll(ctx context.Context, db execer, stmts []string) error {
	for _, stmt := range stmts {
		slog.Debug("exec", "sql", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return alerr.WrapSQL(err, "execute statement", stmt)
		}
	}
	return nil
}

// unsupported returns a standardized error for operations a dialect cannot render.
func unsupported(d Dialect, what, table string) (string, error) {
	return "", alerr.Newf(alerr.ErrSQLExecution, "%s does not support %s", d.Name(), what).
		WithTable(table)
}
