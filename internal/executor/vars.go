package executor

import (
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/query"
)

// Vars holds the values bound while one request or populate iteration runs:
// path parameters, context records, action results, @auth and repeater
// iterators. A child scope sees the values of its parent.
type Vars struct {
	values map[string]any
	parent *Vars
}

// NewVars creates an empty scope.
func NewVars() *Vars {
	return &Vars{values: map[string]any{}}
}

// Child creates a scope whose reads fall through to v.
func (v *Vars) Child() *Vars {
	return &Vars{values: map[string]any{}, parent: v}
}

// Set binds name in this scope.
func (v *Vars) Set(name string, value any) {
	v.values[name] = value
}

// Get returns the value bound to name in this scope or an ancestor.
func (v *Vars) Get(name string) (any, bool) {
	for s := v; s != nil; s = s.parent {
		if val, ok := s.values[name]; ok {
			return val, true
		}
	}
	return nil, false
}

// Access reads name and follows access through nested records. A nil record
// along the way reads as nil. An unbound name means an action ran before the
// one producing it.
func (v *Vars) Access(name string, access []string) (any, error) {
	val, ok := v.Get(name)
	if !ok {
		return nil, alerr.Newf(alerr.ErrBadOrder, "%s is read before it is bound", name).
			WithPath(append([]string{name}, access...))
	}
	for i, key := range access {
		if val == nil {
			return nil, nil
		}
		var (
			next  any
			found bool
		)
		switch rec := val.(type) {
		case query.Record:
			next, found = rec[key]
		case map[string]any:
			next, found = rec[key]
		default:
			return nil, alerr.Newf(alerr.EInternalError, "%s is not a record", strings.Join(append([]string{name}, access[:i]...), ".")).
				With("type", typeName(val))
		}
		if !found {
			return nil, alerr.Newf(alerr.EInternalError, "%s was not fetched", strings.Join(append([]string{name}, access[:i+1]...), "."))
		}
		val = next
	}
	return val, nil
}

// Lookup resolves a dotted query parameter such as "org.id". It satisfies
// sqlgen.Lookup.
func (v *Vars) Lookup(name string) (any, bool) {
	head, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		return v.Get(name)
	}
	val, err := v.Access(head, strings.Split(rest, "."))
	if err != nil {
		return nil, false
	}
	return val, true
}

// recordID reads the id of the record at name + access.
func (v *Vars) recordID(path []string) (int64, error) {
	val, err := v.Access(path[0], append(append([]string(nil), path[1:]...), "id"))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, alerr.Newf(alerr.ErrNotFound, "%s not found", strings.Join(path, "."))
	}
	id, ok := toInt64(val)
	if !ok {
		return 0, alerr.Newf(alerr.EInternalError, "%s.id is not an integer", strings.Join(path, ".")).
			With("type", typeName(val))
	}
	return id, nil
}
