package sqlgen

import (
	"strconv"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Column aliases added by the query renderer.
const (
	AggregateColumn = "value"
	rowNumberColumn = "__row_number"
)

// Options adjust how QueryToSQL renders a query.
type Options struct {
	// PartitionBy applies the limit and offset of the query to each group of
	// rows sharing this value instead of to the whole result. It is an alias
	// path rooted at the query's root model, typically [Root, id] when one
	// query fetches the children of many parents.
	PartitionBy []string
}

// QueryToSQL renders q as a SELECT with named parameters.
//
// The first entry of q.FromPath is the root model, joined with INNER joins
// along the rest of the path. Any other path read by the select, filter or
// order adds LEFT joins. Scalar selects are returned under their alias and
// the id of the fetched record under "__id". Nested and hook selects are not
// rendered; the caller fetches them separately.
//
// An aggregate query renders a single row with one column named "value".
func (b *Builder) QueryToSQL(q *definition.QueryDef, opts Options) (string, error) {
	qb, err := b.newQuery(q, nil)
	if err != nil {
		return "", err
	}
	if q.Aggregate != nil {
		return qb.aggregateSQL()
	}
	return qb.selectSQL(opts)
}

// CountSQL renders the number of distinct records q fetches, ignoring its
// order, limit and offset.
func (b *Builder) CountSQL(q *definition.QueryDef) (string, error) {
	qb, err := b.newQuery(q, nil)
	if err != nil {
		return "", err
	}
	conds, err := qb.conditions()
	if err != nil {
		return "", err
	}
	id := qualified(b.d, qb.from.target(), "id") + " AS " + b.d.QuoteIdent(definition.IDColumn)
	inner := qb.assemble([]string{id}, conds, "", "")
	return newStmt(b.d).
		Raw("SELECT COUNT(DISTINCT ").Ident(definition.IDColumn).Raw(") AS ").Ident(AggregateColumn).
		Raw(" FROM (").Raw(inner).Raw(") AS ").Ident("__counted").
		String(), nil
}

// ----------------------------------------------------------------------------
// Query state
// ----------------------------------------------------------------------------

// table is a joined table: its SQL alias and the model stored in it.
type table struct {
	alias string
	model *definition.ModelDef
}

// frame maps alias paths rooted at a from path onto joined tables. Entry k
// of tables is the record reached through from[:k+1].
type frame struct {
	from   []string
	tables []table
}

func (f *frame) target() string {
	return f.tables[len(f.tables)-1].alias
}

// start returns the deepest joined table on path and the segments left
// to walk from it.
func (f *frame) start(path []string) (table, []string, error) {
	k := 0
	for k < len(path) && k < len(f.from) && path[k] == f.from[k] {
		k++
	}
	if k == 0 {
		return table{}, nil, alerr.Newf(alerr.EInternalError, "path %s is not rooted at %s",
			strings.Join(path, "."), f.from[0]).WithPath(path)
	}
	return f.tables[k-1], path[k:], nil
}

type queryBuilder struct {
	b    *Builder
	q    *definition.QueryDef
	root table
	from *frame

	joins []string
	where []string
	// joined tables keyed by the alias requested for them
	tables map[string]table
	// set once a join can repeat rows of the target record
	fanout bool
}

// newQuery starts rendering q with its root table aliased as the dotted
// form of base, or as the root model when base is empty.
func (b *Builder) newQuery(q *definition.QueryDef, base []string) (*queryBuilder, error) {
	if len(q.FromPath) == 0 {
		return nil, alerr.Newf(alerr.EInternalError, "query %s has no source", q.Name)
	}
	if len(base) == 0 {
		base = q.FromPath[:1]
	}
	m, err := b.def.GetModel(q.FromPath[0])
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "unknown query root")
	}
	qb := &queryBuilder{
		b:      b,
		q:      q,
		root:   table{alias: strings.Join(base, "."), model: m},
		tables: map[string]table{},
	}
	qb.from, err = qb.frame(qb.root, q.FromPath, "", true)
	if err != nil {
		return nil, err
	}
	return qb, nil
}

// frame joins from[1:] starting at t. With end empty, every step is
// aliased after its parent (Org, Org.repos, ...); otherwise the last step is
// aliased end and intermediate steps are derived from it.
func (qb *queryBuilder) frame(t table, from []string, end string, inner bool) (*frame, error) {
	f := &frame{from: from, tables: []table{t}}
	for i, seg := range from[1:] {
		alias := t.alias + "." + seg
		if end != "" {
			alias = end
			if i < len(from)-2 {
				alias = end + "~" + strconv.Itoa(i)
			}
		}
		next, err := qb.step(t, seg, alias, inner)
		if err != nil {
			return nil, err
		}
		f.tables = append(f.tables, next)
		t = next
	}
	return f, nil
}

// walk joins segs starting at t and returns the table they lead to.
func (qb *queryBuilder) walk(t table, segs []string, inner bool) (table, error) {
	for _, seg := range segs {
		next, err := qb.step(t, seg, t.alias+"."+seg, inner)
		if err != nil {
			return table{}, err
		}
		t = next
	}
	return t, nil
}

// step joins the member seg of the record in t under alias. A non-aggregate
// query member is inlined: its from path is joined and its filter added to
// the WHERE clause. Its order and limit do not apply.
func (qb *queryBuilder) step(t table, seg, alias string, inner bool) (table, error) {
	if done, ok := qb.tables[alias]; ok {
		return done, nil
	}
	d := qb.b.d
	ref := t.model.Member(seg)

	switch ref.Kind {
	case definition.RefReference:
		target, err := qb.b.def.GetTargetModel(ref)
		if err != nil {
			return table{}, alerr.Wrap(alerr.EInternalError, err, "unknown reference target")
		}
		fk := t.model.FieldByRefKey(ref.Reference.FieldRefKey)
		if fk == nil {
			return table{}, alerr.Newf(alerr.EInternalError, "reference %s has no field", ref.Reference.RefKey)
		}
		qb.join(target.DBName, alias, qualified(d, alias, "id")+" = "+qualified(d, t.alias, fk.DBName), inner)
		qb.tables[alias] = table{alias: alias, model: target}
		// many records can share the referenced one
		qb.fanout = qb.fanout || inner

	case definition.RefRelation:
		target, err := qb.b.def.GetTargetModel(ref)
		if err != nil {
			return table{}, alerr.Wrap(alerr.EInternalError, err, "unknown relation source")
		}
		through, err := qb.b.def.GetRef(ref.Relation.ThroughRefKey)
		if err != nil || through.Kind != definition.RefReference {
			return table{}, alerr.Newf(alerr.EInternalError, "relation %s has no reference", ref.Relation.RefKey)
		}
		fk := target.FieldByRefKey(through.Reference.FieldRefKey)
		if fk == nil {
			return table{}, alerr.Newf(alerr.EInternalError, "reference %s has no field", through.Reference.RefKey)
		}
		qb.join(target.DBName, alias, qualified(d, alias, fk.DBName)+" = "+qualified(d, t.alias, "id"), inner)
		qb.tables[alias] = table{alias: alias, model: target}
		// outside the from path every related record adds a row
		qb.fanout = qb.fanout || (!inner && !ref.Relation.Unique)

	case definition.RefQuery:
		if ref.Query.Aggregate != nil {
			return table{}, alerr.Newf(alerr.EInternalError, "%s.%s is a value, not a record", t.model.Name, seg)
		}
		f, err := qb.frame(t, ref.Query.FromPath, alias, inner)
		if err != nil {
			return table{}, err
		}
		qb.tables[alias] = f.tables[len(f.tables)-1]
		if ref.Query.Filter != nil {
			cond, err := qb.expr(f, ref.Query.Filter)
			if err != nil {
				return table{}, err
			}
			qb.where = append(qb.where, cond)
		}

	default:
		return table{}, alerr.Newf(alerr.EInternalError, "%s.%s does not lead to a record", t.model.Name, seg)
	}
	return qb.tables[alias], nil
}

func (qb *queryBuilder) join(dbname, alias, on string, inner bool) {
	kind := "LEFT JOIN "
	if inner {
		kind = "INNER JOIN "
	}
	d := qb.b.d
	qb.joins = append(qb.joins, kind+d.QuoteIdent(dbname)+" AS "+d.QuoteIdent(alias)+" ON "+on)
}

// value renders the scalar member path reads.
func (qb *queryBuilder) value(f *frame, path []string) (string, error) {
	t, rest, err := f.start(path)
	if err != nil {
		return "", err
	}
	if len(rest) == 0 {
		return "", alerr.Newf(alerr.EInternalError, "path %s is a record, not a value", strings.Join(path, ".")).
			WithPath(path)
	}
	t, err = qb.walk(t, rest[:len(rest)-1], false)
	if err != nil {
		return "", err
	}
	return qb.member(t, rest[len(rest)-1])
}

// member renders the scalar member name of the record in t.
func (qb *queryBuilder) member(t table, name string) (string, error) {
	ref := t.model.Member(name)
	switch ref.Kind {
	case definition.RefField:
		return qualified(qb.b.d, t.alias, ref.Field.DBName), nil
	case definition.RefComputed:
		// computeds are rooted at their model
		f := &frame{from: []string{t.model.Name}, tables: []table{t}}
		return qb.expr(f, ref.Computed.Expr)
	case definition.RefQuery:
		if ref.Query.Aggregate != nil {
			return qb.correlated(t, ref.Query)
		}
	}
	return "", alerr.Newf(alerr.EInternalError, "%s.%s is not a value", t.model.Name, name)
}

// correlated renders aggregate query aq of the record in t as a scalar
// subquery matched on the record id.
func (qb *queryBuilder) correlated(t table, aq *definition.QueryDef) (string, error) {
	sub, err := qb.b.newQuery(aq, []string{t.alias, aq.Name})
	if err != nil {
		return "", err
	}
	d := qb.b.d
	sql, err := sub.aggregateSQL(qualified(d, sub.root.alias, "id") + " = " + qualified(d, t.alias, "id"))
	if err != nil {
		return "", err
	}
	return "(" + sql + ")", nil
}

// ----------------------------------------------------------------------------
// Rendering
// ----------------------------------------------------------------------------

func (qb *queryBuilder) selectSQL(opts Options) (string, error) {
	d := qb.b.d
	var cols []string
	hasID := false
	for _, item := range qb.q.Select {
		var (
			v   string
			err error
		)
		switch it := item.(type) {
		case *definition.ValueSelect:
			v, err = qb.value(qb.from, it.NamePath)
		case *definition.ExpressionSelect:
			v, err = qb.expr(qb.from, it.Expr)
		default:
			continue
		}
		if err != nil {
			return "", err
		}
		if item.GetAlias() == definition.IDColumn {
			hasID = true
		}
		cols = append(cols, v+" AS "+d.QuoteIdent(item.GetAlias()))
	}
	if !hasID {
		cols = append(cols, qualified(d, qb.from.target(), "id")+" AS "+d.QuoteIdent(definition.IDColumn))
	}

	order, err := qb.orderBy()
	if err != nil {
		return "", err
	}

	partitioned := len(opts.PartitionBy) > 0 && (qb.q.Limit != nil || qb.q.Offset != nil)
	if partitioned {
		p, err := qb.value(qb.from, opts.PartitionBy)
		if err != nil {
			return "", err
		}
		cols = append(cols, "ROW_NUMBER() OVER (PARTITION BY "+p+" ORDER BY "+order+") AS "+d.QuoteIdent(rowNumberColumn))
	}

	conds, err := qb.conditions()
	if err != nil {
		return "", err
	}

	if !partitioned {
		return qb.assemble(cols, conds, order, d.LimitOffset(qb.q.Limit, qb.q.Offset)), nil
	}

	offset := 0
	if qb.q.Offset != nil {
		offset = *qb.q.Offset
	}
	rn := d.QuoteIdent(rowNumberColumn)
	bounds := []string{rn + " > " + strconv.Itoa(offset)}
	if qb.q.Limit != nil {
		bounds = append(bounds, rn+" <= "+strconv.Itoa(offset+*qb.q.Limit))
	}
	return newStmt(d).
		Raw("SELECT * FROM (").Raw(qb.assemble(cols, conds, "", "")).Raw(") AS ").Ident("__ranked").
		Raw("\nWHERE ").List(bounds, " AND ").
		Raw("\nORDER BY ").Raw(rn).
		String(), nil
}

// aggregateSQL renders the aggregate of the query as a single value.
func (qb *queryBuilder) aggregateSQL(extra ...string) (string, error) {
	d := qb.b.d
	var col string
	switch qb.q.Aggregate.Name {
	case definition.AggregateCount:
		col = "COUNT(DISTINCT " + qualified(d, qb.from.target(), "id") + ")"
	case definition.AggregateSum:
		v, err := qb.value(qb.from, qb.q.Aggregate.NamePath)
		if err != nil {
			return "", err
		}
		col = "COALESCE(SUM(" + v + "), 0)"
	default:
		return "", alerr.Newf(alerr.EInternalError, "unknown aggregate %q", qb.q.Aggregate.Name)
	}
	conds, err := qb.conditions()
	if err != nil {
		return "", err
	}
	return qb.assemble([]string{col + " AS " + d.QuoteIdent(AggregateColumn)}, append(extra, conds...), "", ""), nil
}

// conditions renders the filter plus the filters of inlined queries.
// It must run after every other part has been rendered.
//
// A filter reading through a to-many member would repeat the target row
// once per matching related record, breaking limits and aggregates. Such a
// filter is rendered in a separate query and matched by target id, so the
// query keeps one row per record.
func (qb *queryBuilder) conditions() ([]string, error) {
	if qb.q.Filter == nil {
		return qb.where, nil
	}

	fb, err := qb.b.newQuery(qb.q, nil)
	if err != nil {
		return nil, err
	}
	fb.fanout = false
	cond, err := fb.expr(fb.from, qb.q.Filter)
	if err != nil {
		return nil, err
	}
	if !fb.fanout {
		inline, err := qb.expr(qb.from, qb.q.Filter)
		if err != nil {
			return nil, err
		}
		return append(qb.where, inline), nil
	}

	d := qb.b.d
	ids := fb.assemble([]string{qualified(d, fb.from.target(), "id")}, append(fb.where, cond), "", "")
	return append(qb.where, qualified(d, qb.from.target(), "id")+" IN ("+ids+")"), nil
}

// orderBy renders the order clause, ending with the target id so that
// results are stable.
func (qb *queryBuilder) orderBy() (string, error) {
	var parts []string
	for _, o := range qb.q.OrderBy {
		v, err := qb.expr(qb.from, o.Expr)
		if err != nil {
			return "", err
		}
		if o.Desc {
			v += " DESC"
		}
		parts = append(parts, v)
	}
	parts = append(parts, qualified(qb.b.d, qb.from.target(), "id"))
	return strings.Join(parts, ", "), nil
}

func (qb *queryBuilder) assemble(cols, conds []string, order, tail string) string {
	s := newStmt(qb.b.d).
		Raw("SELECT ").List(cols, ", ").
		Raw("\nFROM ").Ident(qb.root.model.DBName).Raw(" AS ").Ident(qb.root.alias)
	for _, j := range qb.joins {
		s.Raw("\n").Raw(j)
	}
	if len(conds) > 0 {
		s.Raw("\nWHERE ").List(conds, " AND ")
	}
	if order != "" {
		s.Raw("\nORDER BY ").Raw(order)
	}
	if tail != "" {
		s.Raw("\n").Raw(tail)
	}
	return s.String()
}
