package query

import (
	"database/sql"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Record is one fetched row keyed by select alias. Nested selects hold a
// Record, nil or a []Record.
type Record map[string]any

// ID returns the id of a fetched record and whether it is set.
func (r Record) ID() (int64, bool) {
	for _, key := range []string{definition.IDColumn, "id"} {
		if id, ok := toInt64(r[key]); ok {
			return id, true
		}
	}
	return 0, false
}

// Strip removes internal columns, recursively.
func (r Record) Strip() Record {
	for k, v := range r {
		if definition.IsInternalAlias(k) {
			delete(r, k)
			continue
		}
		switch v := v.(type) {
		case Record:
			v.Strip()
		case []Record:
			for _, c := range v {
				c.Strip()
			}
		}
	}
	return r
}

// scanRecords reads every row, converting values by their select type.
func scanRecords(rows *sql.Rows, types map[string]definition.ScalarType) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, alerr.WrapSQL(err, "read columns", "")
	}
	var out []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, alerr.WrapSQL(err, "scan row", "")
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			rec[c] = convert(vals[i], types[c])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "read rows", "")
	}
	return out, nil
}

// convert normalizes a driver value. SQLite stores booleans as integers and
// some drivers return text as bytes.
func convert(v any, t definition.ScalarType) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t {
	case definition.TypeBoolean:
		switch x := v.(type) {
		case int64:
			return x != 0
		case string:
			return strings.EqualFold(x, "true") || x == "1"
		}
	case definition.TypeFloat:
		if x, ok := v.(int64); ok {
			return float64(x)
		}
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

// selectTypes maps the aliases of sel to their value types.
func selectTypes(sel []definition.SelectItem) map[string]definition.ScalarType {
	out := map[string]definition.ScalarType{
		definition.IDColumn:             definition.TypeInteger,
		definition.JoinConnectionColumn: definition.TypeInteger,
	}
	for _, item := range sel {
		switch it := item.(type) {
		case *definition.ValueSelect:
			out[it.Alias] = it.Type
		case *definition.ExpressionSelect:
			out[it.Alias] = it.Type
		}
	}
	return out
}
