package definition

import (
	"fmt"
	"strings"
)

// RefKind classifies a model member.
type RefKind int

const (
	RefNone RefKind = iota
	RefField
	RefReference
	RefRelation
	RefQuery
	RefComputed
	RefHook
)

func (k RefKind) String() string {
	switch k {
	case RefField:
		return "field"
	case RefReference:
		return "reference"
	case RefRelation:
		return "relation"
	case RefQuery:
		return "query"
	case RefComputed:
		return "computed"
	case RefHook:
		return "hook"
	default:
		return "none"
	}
}

// Ref is a resolved model member. Exactly one pointer matching Kind is set.
type Ref struct {
	Kind      RefKind
	Model     *ModelDef
	Field     *FieldDef
	Reference *ReferenceDef
	Relation  *RelationDef
	Query     *QueryDef
	Computed  *ComputedDef
	Hook      *ModelHookDef
}

// Name returns the member name.
func (r Ref) Name() string {
	switch r.Kind {
	case RefField:
		return r.Field.Name
	case RefReference:
		return r.Reference.Name
	case RefRelation:
		return r.Relation.Name
	case RefQuery:
		return r.Query.Name
	case RefComputed:
		return r.Computed.Name
	case RefHook:
		return r.Hook.Name
	}
	return ""
}

// RefKey returns the member refKey ("Model.member").
func (r Ref) RefKey() string {
	if r.Model == nil {
		return ""
	}
	return r.Model.Name + "." + r.Name()
}

// Model returns the model named name, or nil.
func (d *Definition) Model(name string) *ModelDef {
	for _, m := range d.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// GetModel returns the model named name or an error.
func (d *Definition) GetModel(name string) (*ModelDef, error) {
	if m := d.Model(name); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("model %q not found", name)
}

// GetRef resolves a refKey of the form "Model.member".
func (d *Definition) GetRef(refKey string) (Ref, error) {
	modelName, member, ok := strings.Cut(refKey, ".")
	if !ok {
		return Ref{}, fmt.Errorf("invalid refKey %q", refKey)
	}
	m, err := d.GetModel(modelName)
	if err != nil {
		return Ref{}, err
	}
	ref := m.Member(member)
	if ref.Kind == RefNone {
		return Ref{}, fmt.Errorf("member %q not found in model %s", member, modelName)
	}
	return ref, nil
}

// GetTargetModel returns the model a member points at. Fields, computeds
// and hooks point at their own model.
func (d *Definition) GetTargetModel(ref Ref) (*ModelDef, error) {
	switch ref.Kind {
	case RefReference:
		return d.GetModel(ref.Reference.ToModelRefKey)
	case RefRelation:
		return d.GetModel(ref.Relation.FromModelRefKey)
	case RefQuery:
		return d.GetModel(ref.Query.ModelRefKey)
	case RefNone:
		return nil, fmt.Errorf("unresolved reference")
	default:
		return ref.Model, nil
	}
}

// WalkPath resolves every segment of path after the root model name.
func (d *Definition) WalkPath(path []string) ([]Ref, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	model, err := d.GetModel(path[0])
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(path)-1)
	for _, seg := range path[1:] {
		if model == nil {
			return nil, fmt.Errorf("path %s continues past a leaf", strings.Join(path, "."))
		}
		ref := model.Member(seg)
		if ref.Kind == RefNone {
			return nil, fmt.Errorf("member %q not found in model %s", seg, model.Name)
		}
		refs = append(refs, ref)
		switch ref.Kind {
		case RefReference, RefRelation:
			model, err = d.GetTargetModel(ref)
			if err != nil {
				return nil, err
			}
		case RefQuery:
			if ref.Query.Aggregate != nil {
				model = nil
				continue
			}
			model, err = d.GetTargetModel(ref)
			if err != nil {
				return nil, err
			}
		default:
			model = nil
		}
	}
	return refs, nil
}

// Member returns the member named name.
func (m *ModelDef) Member(name string) Ref {
	for _, f := range m.Fields {
		if f.Name == name {
			return Ref{Kind: RefField, Model: m, Field: f}
		}
	}
	for _, r := range m.References {
		if r.Name == name {
			return Ref{Kind: RefReference, Model: m, Reference: r}
		}
	}
	for _, r := range m.Relations {
		if r.Name == name {
			return Ref{Kind: RefRelation, Model: m, Relation: r}
		}
	}
	for _, q := range m.Queries {
		if q.Name == name {
			return Ref{Kind: RefQuery, Model: m, Query: q}
		}
	}
	for _, c := range m.Computeds {
		if c.Name == name {
			return Ref{Kind: RefComputed, Model: m, Computed: c}
		}
	}
	for _, h := range m.Hooks {
		if h.Name == name {
			return Ref{Kind: RefHook, Model: m, Hook: h}
		}
	}
	return Ref{Model: m}
}

// MemberNames lists every member name, used for suggestions.
func (m *ModelDef) MemberNames() []string {
	var out []string
	for _, f := range m.Fields {
		out = append(out, f.Name)
	}
	for _, r := range m.References {
		out = append(out, r.Name)
	}
	for _, r := range m.Relations {
		out = append(out, r.Name)
	}
	for _, q := range m.Queries {
		out = append(out, q.Name)
	}
	for _, c := range m.Computeds {
		out = append(out, c.Name)
	}
	for _, h := range m.Hooks {
		out = append(out, h.Name)
	}
	return out
}

// Field returns the field named name, or nil.
func (m *ModelDef) Field(name string) *FieldDef {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldByRefKey returns the field with the given refKey, or nil.
func (m *ModelDef) FieldByRefKey(refKey string) *FieldDef {
	for _, f := range m.Fields {
		if f.RefKey == refKey {
			return f
		}
	}
	return nil
}

// Reference returns the reference named name, or nil.
func (m *ModelDef) Reference(name string) *ReferenceDef {
	for _, r := range m.References {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// ReferenceByField returns the reference stored in field fieldName, or nil.
func (m *ModelDef) ReferenceByField(fieldName string) *ReferenceDef {
	key := m.Name + "." + fieldName
	for _, r := range m.References {
		if r.FieldRefKey == key {
			return r
		}
	}
	return nil
}

// DBColumn returns the storage name of field name, or name itself.
func (m *ModelDef) DBColumn(name string) string {
	if f := m.Field(name); f != nil {
		return f.DBName
	}
	return name
}

// PagingToLimit converts a 1-based page and a page size into limit and
// offset. Negative sizes clamp to zero and pages below 1 clamp to the first.
func PagingToLimit(page, pageSize int) (limit, offset int) {
	limit = max(pageSize, 0)
	offset = max(page-1, 0) * limit
	return limit, offset
}
