package executor

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// hookFunc adapts a function to query.HookRunner.
type hookFunc func(args map[string]any) (any, error)

func (f hookFunc) Invoke(_ context.Context, _ *definition.HookCode, args map[string]any) (any, error) {
	return f(args)
}

func builtin(name string, args ...any) *definition.ValidatorDef {
	return &definition.ValidatorDef{Kind: "builtin", Name: name, Args: args}
}

func orgFieldset() definition.Fieldset {
	return &definition.FieldsetRecord{Record: map[string]definition.Fieldset{
		"name": &definition.FieldsetField{
			Type: definition.TypeString, Required: true,
			Validators: []*definition.ValidatorDef{builtin("minLength", int64(2)), builtin("maxLength", int64(8))},
		},
		"email":       &definition.FieldsetField{Type: definition.TypeString, Validators: []*definition.ValidatorDef{builtin("isEmail")}},
		"description": &definition.FieldsetField{Type: definition.TypeString, Nullable: true},
		"stars": &definition.FieldsetField{
			Type:       definition.TypeInteger,
			Validators: []*definition.ValidatorDef{builtin("min", int64(0)), builtin("max", int64(100))},
		},
		"ratio": &definition.FieldsetField{Type: definition.TypeFloat},
		"plan":  &definition.FieldsetField{Type: definition.TypeString, Validators: []*definition.ValidatorDef{builtin("isIn", "free", "pro")}},
		"owner": &definition.FieldsetRecord{Nullable: true, Record: map[string]definition.Fieldset{
			"login": &definition.FieldsetField{Type: definition.TypeString, Required: true},
		}},
	}}
}

func issueKeys(issues *alerr.ValidationErrors) []string {
	var keys []string
	for _, i := range issues.Issues() {
		keys = append(keys, i.Key()+":"+i.Code)
	}
	slices.Sort(keys)
	return keys
}

func TestValidateFieldset(t *testing.T) {
	x := &Executor{}

	tests := []struct {
		name  string
		input map[string]any
		want  []string
	}{
		{"valid", map[string]any{"name": "Acme", "email": "a@b.io", "stars": float64(3), "ratio": 0.5, "plan": "pro"}, nil},
		{"missing_required", map[string]any{}, []string{"name:required"}},
		{"too_short", map[string]any{"name": "A"}, []string{"name:minLength"}},
		{"too_long", map[string]any{"name": "Acme Corp"}, []string{"name:maxLength"}},
		{"wrong_type", map[string]any{"name": float64(12)}, []string{"name:type"}},
		{"null_not_allowed", map[string]any{"name": nil}, []string{"name:notNull"}},
		{"null_allowed", map[string]any{"name": "Acme", "description": nil}, nil},
		{"integer_fraction", map[string]any{"name": "Acme", "stars": 1.5}, []string{"stars:type"}},
		{"integer_string", map[string]any{"name": "Acme", "stars": "3"}, []string{"stars:type"}},
		{"float_bool", map[string]any{"name": "Acme", "ratio": true}, []string{"ratio:type"}},
		{"out_of_range", map[string]any{"name": "Acme", "stars": float64(101)}, []string{"stars:max"}},
		{"below_range", map[string]any{"name": "Acme", "stars": float64(-1)}, []string{"stars:min"}},
		{"bad_email", map[string]any{"name": "Acme", "email": "nope"}, []string{"email:isEmail"}},
		{"not_in_list", map[string]any{"name": "Acme", "plan": "gold"}, []string{"plan:isIn"}},
		{"nested_missing", map[string]any{"name": "Acme", "owner": map[string]any{}}, []string{"owner.login:required"}},
		{"nested_null", map[string]any{"name": "Acme", "owner": nil}, nil},
		{"nested_wrong_type", map[string]any{"name": "Acme", "owner": "bob"}, []string{"owner:type"}},
		{"all_issues_collected", map[string]any{"name": "A", "email": "x", "stars": float64(500)},
			[]string{"email:isEmail", "name:minLength", "stars:max"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issues alerr.ValidationErrors
			if err := x.ValidateFieldset(context.Background(), orgFieldset(), tt.input, &issues); err != nil {
				t.Fatalf("ValidateFieldset() error: %v", err)
			}
			got := issueKeys(&issues)
			if !slices.Equal(got, tt.want) {
				t.Errorf("issues = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFieldsetIssueParams(t *testing.T) {
	x := &Executor{}
	var issues alerr.ValidationErrors
	err := x.ValidateFieldset(context.Background(), orgFieldset(), map[string]any{"name": true}, &issues)
	if err != nil {
		t.Fatalf("ValidateFieldset() error: %v", err)
	}
	got := issues.Issues()
	if len(got) != 1 {
		t.Fatalf("issues = %v, want one", got)
	}
	if got[0].Params["type"] != "string" {
		t.Errorf("type issue params = %v", got[0].Params)
	}
	if !alerr.Is(issues.Err(), alerr.ErrValidation) {
		t.Errorf("Err() = %v, want a validation error", issues.Err())
	}
}

// -----------------------------------------------------------------------------
// Hook validators
// -----------------------------------------------------------------------------

func TestValidateFieldsetHook(t *testing.T) {
	fs := &definition.FieldsetRecord{Record: map[string]definition.Fieldset{
		"slug": &definition.FieldsetField{
			Type: definition.TypeString,
			Validators: []*definition.ValidatorDef{{
				Kind: "hook",
				Name: "lowercase",
				Hook: &definition.HookCode{Kind: "inline", Inline: "value === value.toLowerCase()"},
			}},
		},
	}}
	hooks := hookFunc(func(args map[string]any) (any, error) {
		s := args["value"].(string)
		if s == "boom" {
			return nil, errors.New("hook crashed")
		}
		if s == "truthy" {
			return "yes", nil
		}
		return s == strings.ToLower(s), nil
	})
	x := &Executor{hooks: hooks}

	tests := []struct {
		slug string
		want []string
	}{
		{"acme", nil},
		{"Acme", []string{"slug:hook"}},
		{"truthy", []string{"slug:hook"}},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			var issues alerr.ValidationErrors
			if err := x.ValidateFieldset(context.Background(), fs, map[string]any{"slug": tt.slug}, &issues); err != nil {
				t.Fatalf("ValidateFieldset() error: %v", err)
			}
			if got := issueKeys(&issues); !slices.Equal(got, tt.want) {
				t.Errorf("issues = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("hook_error", func(t *testing.T) {
		var issues alerr.ValidationErrors
		err := x.ValidateFieldset(context.Background(), fs, map[string]any{"slug": "boom"}, &issues)
		if err == nil {
			t.Error("expected the hook error to be returned")
		}
	})

	t.Run("no_runner", func(t *testing.T) {
		var issues alerr.ValidationErrors
		err := (&Executor{}).ValidateFieldset(context.Background(), fs, map[string]any{"slug": "acme"}, &issues)
		if !alerr.Is(err, alerr.EInternalError) {
			t.Errorf("error = %v, want %s", err, alerr.EInternalError)
		}
	})
}

func TestPaging(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{3, 10, 3, 10},
		{-2, 500, 1, MaxPageSize},
	}
	for _, tt := range tests {
		page, size := paging(tt.page, tt.size)
		if page != tt.wantPage || size != tt.wantSize {
			t.Errorf("paging(%d, %d) = %d, %d; want %d, %d", tt.page, tt.size, page, size, tt.wantPage, tt.wantSize)
		}
	}
}
