package composer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

func intp(n int) *int { return &n }

// -----------------------------------------------------------------------------
// Repeaters
// -----------------------------------------------------------------------------

func TestComposeRepeater(t *testing.T) {
	tests := []struct {
		name    string
		repeat  *ast.Repeat
		want    *definition.RepeaterDef
		wantErr bool
	}{
		{
			name: "none",
			want: &definition.RepeaterDef{Start: 1, End: 1},
		},
		{
			name:   "count",
			repeat: &ast.Repeat{Count: intp(5)},
			want:   &definition.RepeaterDef{Start: 1, End: 5},
		},
		{
			name:   "end_only",
			repeat: &ast.Repeat{End: intp(3), As: "i"},
			want:   &definition.RepeaterDef{Start: 1, End: 3, Alias: "i"},
		},
		{
			name:   "explicit_bounds",
			repeat: &ast.Repeat{Start: intp(20), End: intp(2000)},
			want:   &definition.RepeaterDef{Start: 20, End: 2000},
		},
		{
			name:    "start_after_end",
			repeat:  &ast.Repeat{Start: intp(5), End: intp(1)},
			wantErr: true,
		},
		{
			name:    "zero_count",
			repeat:  &ast.Repeat{Count: intp(0)},
			wantErr: true,
		},
		{
			name:    "start_zero",
			repeat:  &ast.Repeat{Start: intp(0), End: intp(3)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := composeRepeater(tt.repeat)
			if tt.wantErr {
				if !alerr.Is(err, alerr.ErrInvalidRepeater) {
					t.Errorf("error = %v, want %s", err, alerr.ErrInvalidRepeater)
				}
				return
			}
			if err != nil {
				t.Fatalf("composeRepeater() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("repeater mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Populators
// -----------------------------------------------------------------------------

func TestComposePopulators(t *testing.T) {
	def := mustCompose(t, orgModels+`
populators:
  dev:
    - populate: Org
      as: org
      repeat: {as: i, start: 1, end: 3}
      set:
        name: "concat('org', stringify(i.current))"
        slug: "concat('org-', stringify(i.current))"
      populates:
        - populate: repos
          repeat: 2
          set: {name: "org.name + '-repo'"}
`)
	if len(def.Populators) != 1 {
		t.Fatalf("populators = %d, want 1", len(def.Populators))
	}
	org := def.Populators[0].Populates[0]

	t.Run("target", func(t *testing.T) {
		if org.Target.Alias != "org" || org.Target.RetCardinality != definition.Many {
			t.Errorf("target = %+v", org.Target)
		}
		if diff := cmp.Diff(&definition.RepeaterDef{Start: 1, End: 3, Alias: "i"}, org.Repeater); diff != "" {
			t.Errorf("repeater mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("iterator_setter", func(t *testing.T) {
		create := org.Actions[0].(*definition.CreateOneAction)
		fn := create.Changeset.Get("name").Setter.(*definition.FunctionSetter)
		inner := fn.Args[1].(*definition.FunctionSetter)
		ref := inner.Args[0].(*definition.ReferenceValueSetter)
		if ref.Alias != "i" || ref.Access[0] != "current" {
			t.Errorf("iterator read = %+v", ref)
		}
		desc := create.Changeset.Get("description").Setter.(*definition.LiteralSetter)
		if desc.Type != definition.TypeNull {
			t.Errorf("description = %+v, want null", desc)
		}
	})

	t.Run("parent_select", func(t *testing.T) {
		create := org.Actions[0].(*definition.CreateOneAction)
		want := [][]string{{"Org", "id"}, {"Org", "name"}}
		if diff := cmp.Diff(want, selectPaths(create.Select)); diff != "" {
			t.Errorf("org select mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested", func(t *testing.T) {
		repos := org.Populates[0]
		if repos.Target.Kind != definition.TargetRelation || repos.Target.Alias != "repos" {
			t.Errorf("nested target = %+v", repos.Target)
		}
		if repos.Repeater.End != 2 {
			t.Errorf("nested repeater = %+v", repos.Repeater)
		}
		create := repos.Actions[0].(*definition.CreateOneAction)
		parent := create.Changeset.Get("org_id").Setter.(*definition.ReferenceValueSetter)
		if parent.Alias != "org" {
			t.Errorf("org_id setter = %+v", parent)
		}
		if st := create.Changeset.Get("stars").Setter.(*definition.LiteralSetter); st.Value != int64(0) {
			t.Errorf("stars = %+v", st)
		}
	})
}

func TestPopulateZeroValues(t *testing.T) {
	def := mustCompose(t, orgModels+`
populators:
  min:
    - populate: Org
`)
	create := def.Populators[0].Populates[0].Actions[0].(*definition.CreateOneAction)
	want := map[string]definition.Setter{
		"name":        &definition.LiteralSetter{Type: definition.TypeString, Value: ""},
		"slug":        &definition.LiteralSetter{Type: definition.TypeString, Value: ""},
		"description": &definition.LiteralSetter{Type: definition.TypeNull},
	}
	for name, st := range want {
		if diff := cmp.Diff(st, create.Changeset.Get(name).Setter); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
	if fs := create.Changeset.Get("id"); fs != nil {
		t.Error("id must not be part of the changeset")
	}
}

func TestPopulatorErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		code     alerr.Code
		contains string
	}{
		{
			name:     "bad_repeat",
			src:      "populators:\n  dev:\n    - populate: Org\n      repeat: {start: 5, end: 1}",
			code:     alerr.ErrInvalidRepeater,
			contains: "invalid repeat bounds 5..1",
		},
		{
			name:     "reference_without_parent",
			src:      "populators:\n  dev:\n    - populate: Repo",
			code:     alerr.ErrBlueprintInvalid,
			contains: "required reference org_id",
		},
		{
			name:     "nested_reference",
			src:      "populators:\n  dev:\n    - populate: Repo\n      set: {org_id: \"1\"}\n      populates:\n        - populate: org",
			code:     alerr.ErrUnsupported,
			contains: "must be a relation",
		},
		{
			name:     "auth_not_visible",
			src:      "authenticator: {method: basic}\npopulators:\n  dev:\n    - populate: Org\n      set: {name: \"@auth.name\"}",
			code:     alerr.ErrUnresolvedPath,
			contains: "@auth",
		},
		{
			name:     "repeater_alias_clash",
			src:      "populators:\n  dev:\n    - populate: Org\n      as: org\n      repeat: {as: org, count: 2}",
			code:     alerr.ErrDuplicateName,
			contains: "already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, orgModels+tt.src, tt.code, tt.contains)
		})
	}
}
