package sqlgen

import (
	"reflect"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
)

// Lookup resolves the value of a named parameter.
type Lookup func(name string) (any, bool)

// MapLookup resolves parameters from a map.
func MapLookup(values map[string]any) Lookup {
	return func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}
}

// Bind rewrites the named parameters of sql to dialect placeholders and
// returns the arguments in placeholder order.
//
// Parameters are written :name where name may contain letters, digits, '_',
// '@' and '.'. Text inside single-quoted literals and double-quoted
// identifiers is copied unchanged. Slice values expand to one placeholder per
// element; an empty slice renders NULL so that IN (NULL) matches nothing.
func Bind(d dialect.Dialect, sql string, lookup Lookup) (string, []any, error) {
	var (
		out  strings.Builder
		args []any
	)
	out.Grow(len(sql))

	placeholder := func(v any) {
		args = append(args, v)
		out.WriteString(d.Placeholder(len(args)))
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(sql, i)
			out.WriteString(sql[i:end])
			i = end - 1

		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			out.WriteString("::")
			i++

		case c == ':' && i+1 < len(sql) && isParamStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isParamChar(sql[j]) {
				j++
			}
			for j > i+2 && sql[j-1] == '.' {
				j--
			}
			name := sql[i+1 : j]
			v, ok := lookup(name)
			if !ok {
				return "", nil, alerr.Newf(alerr.EInternalError, "no value for query parameter %q", name).
					WithSQL(sql)
			}
			if elems, ok := sliceElems(v); ok {
				if len(elems) == 0 {
					out.WriteString("NULL")
				}
				for k, e := range elems {
					if k > 0 {
						out.WriteString(", ")
					}
					placeholder(e)
				}
			} else {
				placeholder(v)
			}
			i = j - 1

		default:
			out.WriteByte(c)
		}
	}
	return out.String(), args, nil
}

// closingQuote returns the index after the quoted section starting at i.
// Doubled quote characters are escapes.
func closingQuote(sql string, i int) int {
	q := sql[i]
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != q {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

func isParamStart(c byte) bool {
	return c == '@' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isParamChar(c byte) bool {
	return isParamStart(c) || c == '.' || (c >= '0' && c <= '9')
}

// sliceElems returns the elements of v when it is a slice other than []byte.
func sliceElems(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
