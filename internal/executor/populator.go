package executor

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Iterator is the value a repeater alias is bound to.
type Iterator struct {
	Current int64
	Total   int64
}

func (it Iterator) record() map[string]any {
	return map[string]any{"current": it.Current, "total": it.Total}
}

// RunPopulator runs the populator name in one transaction and returns the
// number of rows it created.
func (x *Executor) RunPopulator(ctx context.Context, db *sql.DB, name string) (int, error) {
	var p *definition.PopulatorDef
	for _, candidate := range x.def.Populators {
		if candidate.Name == name {
			p = candidate
			break
		}
	}
	if p == nil {
		names := make([]string, 0, len(x.def.Populators))
		for _, candidate := range x.def.Populators {
			names = append(names, candidate.Name)
		}
		return 0, alerr.Newf(alerr.ErrNotFound, "populator %q is not defined", name).
			WithHelp(alerr.SuggestSimilar(name, names))
	}

	created := 0
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		for _, pop := range p.Populates {
			n, err := x.populate(ctx, tx, NewVars(), pop)
			if err != nil {
				return err
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("populated", "populator", name, "rows", created)
	return created, nil
}

// populate runs p once per repeater iteration, each in its own scope so that
// nested populates see the row created by their iteration.
func (x *Executor) populate(ctx context.Context, db DB, parent *Vars, p *definition.PopulateDef) (int, error) {
	start, end := 1, 1
	alias := ""
	if p.Repeater != nil {
		start, end, alias = p.Repeater.Start, p.Repeater.End, p.Repeater.Alias
	}
	total := end - start + 1

	created := 0
	for i := start; i <= end; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		vars := parent.Child()
		if alias != "" {
			vars.Set(alias, Iterator{Current: int64(i), Total: int64(total)}.record())
		}
		st := &State{DB: db, Vars: vars}
		if _, err := x.ExecuteActions(ctx, st, p.Actions); err != nil {
			var e *alerr.Error
			if errors.As(err, &e) {
				e.With("populate", p.Target.Alias).With("iteration", i)
			}
			return 0, err
		}
		created++
		for _, child := range p.Populates {
			n, err := x.populate(ctx, db, vars, child)
			if err != nil {
				return 0, err
			}
			created += n
		}
	}
	return created, nil
}
