package definition

// SelectItem is one entry of a select list. Variants: ValueSelect,
// ExpressionSelect, NestedSelect and HookSelect.
type SelectItem interface {
	GetAlias() string
	selectItem()
}

// Value select kinds.
const (
	SelectField     = "field"
	SelectComputed  = "computed"
	SelectAggregate = "aggregate"
)

// ValueSelect reads a field, computed or aggregate query through NamePath.
type ValueSelect struct {
	Kind     string     `json:"-"`
	Alias    string     `json:"alias"`
	NamePath []string   `json:"namePath"`
	RefKey   string     `json:"refKey"`
	Type     ScalarType `json:"type"`
}

// ExpressionSelect evaluates an arbitrary expression. Aliases starting with
// "__" are internal and removed from results.
type ExpressionSelect struct {
	Alias string     `json:"alias"`
	Expr  TypedExpr  `json:"exp"`
	Type  ScalarType `json:"type"`
}

// NestedSelect fetches a related reference, relation or query.
// Query is rooted at the parent's target model.
type NestedSelect struct {
	Alias    string    `json:"alias"`
	NamePath []string  `json:"namePath"`
	RefKey   string    `json:"refKey"`
	Query    *QueryDef `json:"query"`
}

// HookSelect runs a model hook for every fetched row. Args are rooted at
// NamePath without its last segment.
type HookSelect struct {
	Alias    string        `json:"alias"`
	NamePath []string      `json:"namePath"`
	RefKey   string        `json:"refKey"`
	Args     []*HookArgDef `json:"args"`
	Code     *HookCode     `json:"code"`
}

func (s *ValueSelect) GetAlias() string      { return s.Alias }
func (s *ExpressionSelect) GetAlias() string { return s.Alias }
func (s *NestedSelect) GetAlias() string     { return s.Alias }
func (s *HookSelect) GetAlias() string       { return s.Alias }

func (*ValueSelect) selectItem()      {}
func (*ExpressionSelect) selectItem() {}
func (*NestedSelect) selectItem()     {}
func (*HookSelect) selectItem()       {}

// Internal select aliases.
const (
	IDColumn             = "__id"
	JoinConnectionColumn = "__join_connection"
)

// IsInternalAlias reports whether alias is stripped from results.
func IsInternalAlias(alias string) bool {
	return len(alias) >= 2 && alias[:2] == "__"
}

// MergeSelects appends the items of extra whose alias is not yet present,
// merging nested selects of the same alias recursively.
func MergeSelects(base, extra []SelectItem) []SelectItem {
	out := append([]SelectItem(nil), base...)
	for _, item := range extra {
		idx := -1
		for i, existing := range out {
			if existing.GetAlias() == item.GetAlias() {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, item)
			continue
		}
		a, aok := out[idx].(*NestedSelect)
		b, bok := item.(*NestedSelect)
		if aok && bok && a.Query != nil && b.Query != nil {
			q := *a.Query
			q.Select = MergeSelects(a.Query.Select, b.Query.Select)
			merged := *a
			merged.Query = &q
			out[idx] = &merged
		}
	}
	return out
}

// RebaseSelect rewrites the top-level name paths of sel from one root to
// another. Nested queries are rooted at their parent model and stay as is.
func RebaseSelect(sel []SelectItem, from, to []string) []SelectItem {
	out := make([]SelectItem, len(sel))
	for i, item := range sel {
		switch it := item.(type) {
		case *ValueSelect:
			cp := *it
			cp.NamePath = RebasePath(it.NamePath, from, to)
			out[i] = &cp
		case *NestedSelect:
			cp := *it
			cp.NamePath = RebasePath(it.NamePath, from, to)
			out[i] = &cp
		case *HookSelect:
			cp := *it
			cp.NamePath = RebasePath(it.NamePath, from, to)
			cp.Args = make([]*HookArgDef, len(it.Args))
			for j, a := range it.Args {
				cp.Args[j] = &HookArgDef{Name: a.Name, Expr: RebasePaths(a.Expr, from, to)}
			}
			out[i] = &cp
		case *ExpressionSelect:
			cp := *it
			cp.Expr = RebasePaths(it.Expr, from, to)
			out[i] = &cp
		}
	}
	return out
}
