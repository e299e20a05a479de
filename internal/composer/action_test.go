package composer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// orgEndpoint composes orgModels with a single endpoint on an Org
// entrypoint and returns that endpoint.
func orgEndpoint(t *testing.T, endpointSrc string) *definition.EndpointDef {
	t.Helper()
	def := mustCompose(t, orgModels+"entrypoints:\n  - target: Org\n    endpoints:\n"+endpointSrc)
	return def.APIs[0].Entrypoints[0].Endpoints[0]
}

func orgEndpointError(t *testing.T, endpointSrc string, code alerr.Code, contains string) {
	t.Helper()
	expectError(t, orgModels+"entrypoints:\n  - target: Org\n    endpoints:\n"+endpointSrc, code, contains)
}

func actionKinds(actions []definition.ActionDef) []string {
	var out []string
	for _, a := range actions {
		switch a.(type) {
		case *definition.CreateOneAction:
			out = append(out, "create")
		case *definition.UpdateOneAction:
			out = append(out, "update")
		case *definition.DeleteOneAction:
			out = append(out, "delete")
		case *definition.FetchAction:
			out = append(out, "fetch")
		case *definition.ExecuteHookAction:
			out = append(out, "execute")
		case *definition.RespondAction:
			out = append(out, "respond")
		case *definition.ValidateAction:
			out = append(out, "validate")
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Changesets
// -----------------------------------------------------------------------------

func TestChangesetRules(t *testing.T) {
	ep := orgEndpoint(t, `
      - create:
          actions:
            - create:
                set:
                  slug: "lower(name)"
                input:
                  - name
                  - description: {optional: true}
`)
	action := ep.Actions[0].(*definition.CreateOneAction)
	if !action.IsPrimary {
		t.Fatal("explicit create on the target should be primary")
	}

	t.Run("ordered_by_reads", func(t *testing.T) {
		if diff := cmp.Diff([]string{"name", "description", "slug"}, changesetNames(action.Changeset)); diff != "" {
			t.Errorf("changeset mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("setter_reads_changeset", func(t *testing.T) {
		fn := action.Changeset.Get("slug").Setter.(*definition.FunctionSetter)
		ref, ok := fn.Args[0].(*definition.ChangesetReferenceSetter)
		if fn.Name != definition.FnLower || !ok || ref.ReferenceName != "name" {
			t.Errorf("slug setter = %#v", fn)
		}
	})

	t.Run("fieldset", func(t *testing.T) {
		fs := ep.Fieldset.(*definition.FieldsetRecord)
		if _, ok := fs.Record["slug"]; ok {
			t.Error("slug is set and must not be an input")
		}
		if d := fs.Record["description"].(*definition.FieldsetField); d.Required {
			t.Error("optional input should not be required")
		}
	})
}

func TestChangesetDefaults(t *testing.T) {
	ep := orgEndpoint(t, `
      - custom:
          method: POST
          path: seed
          cardinality: many
          actions:
            - create:
                target: Repo
                as: repo
                set: {name: "'seed'", org_id: "1"}
`)
	action := ep.Actions[0].(*definition.CreateOneAction)
	if action.IsPrimary {
		t.Error("create of another model should not be primary")
	}
	want := map[string]*definition.LiteralSetter{
		"is_public": {Type: definition.TypeBoolean, Value: false},
		"stars":     {Type: definition.TypeInteger, Value: int64(0)},
		"owner_id":  {Type: definition.TypeNull},
	}
	for name, lit := range want {
		op := action.Changeset.Get(name)
		if op == nil {
			t.Errorf("changeset has no %s", name)
			continue
		}
		if diff := cmp.Diff(lit, op.Setter); diff != "" {
			t.Errorf("%s setter mismatch (-want +got):\n%s", name, diff)
		}
	}
	if ep.Fieldset != nil {
		t.Errorf("fieldset = %+v, want none", ep.Fieldset)
	}
}

func TestChangesetReferenceInput(t *testing.T) {
	def := mustCompose(t, orgModels+`
entrypoints:
  - target: Repo
    endpoints:
      - create:
          actions:
            - create:
                reference: {org: slug}
`)
	ep := def.APIs[0].Entrypoints[0].Endpoints[0]
	action := ep.Actions[0].(*definition.CreateOneAction)
	st, ok := action.Changeset.Get("org_id").Setter.(*definition.FieldsetReferenceInputSetter)
	if !ok {
		t.Fatalf("org_id setter = %#v", action.Changeset.Get("org_id").Setter)
	}
	if st.ThroughRefKey != "Org.slug" || st.FieldsetAccess[0] != "org_slug" {
		t.Errorf("reference setter = %+v", st)
	}
	fs := ep.Fieldset.(*definition.FieldsetRecord)
	if f := fs.Record["org_slug"].(*definition.FieldsetField); !f.Required || f.Type != definition.TypeString {
		t.Errorf("org_slug input = %+v", f)
	}
	if _, ok := fs.Record["org_id"]; ok {
		t.Error("org_id should not be an implicit input")
	}
}

func TestDenyAll(t *testing.T) {
	ep := orgEndpoint(t, `
      - create:
          actions:
            - create:
                set: {name: "'fixed'", slug: "'fixed'"}
                deny: ["*"]
`)
	action := ep.Actions[0].(*definition.CreateOneAction)
	desc := action.Changeset.Get("description")
	if desc == nil {
		t.Fatal("description should default to null")
	}
	if lit := desc.Setter.(*definition.LiteralSetter); lit.Type != definition.TypeNull {
		t.Errorf("description = %+v, want null", lit)
	}
	if ep.Fieldset != nil {
		t.Errorf("fieldset = %+v, want none", ep.Fieldset)
	}
}

func TestNonPrimaryInputsNested(t *testing.T) {
	ep := orgEndpoint(t, `
      - custom:
          method: POST
          path: quick
          cardinality: many
          actions:
            - create:
                target: Repo
                as: extra
                input: [name]
                set: {org_id: "1"}
`)
	fs := ep.Fieldset.(*definition.FieldsetRecord)
	nested, ok := fs.Record["extra"].(*definition.FieldsetRecord)
	if !ok {
		t.Fatalf("fieldset = %+v, want inputs under extra", fs.Record)
	}
	if _, ok := nested.Record["name"]; !ok {
		t.Error("extra.name input missing")
	}
	in := ep.Actions[0].(*definition.CreateOneAction).Changeset.Get("name").Setter.(*definition.FieldsetInputSetter)
	if diff := cmp.Diff([]string{"extra", "name"}, in.FieldsetAccess); diff != "" {
		t.Errorf("fieldset access mismatch (-want +got):\n%s", diff)
	}
}

func TestChangesetErrors(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		code     alerr.Code
		contains string
	}{
		{
			name: "duplicate_setter",
			endpoint: `
      - create:
          actions:
            - create:
                set: {name: "'a'"}
                input: [name, slug]
                deny: [slug]`,
			code:     alerr.ErrDuplicateSetter,
			contains: "name, slug",
		},
		{
			name: "deny_all_combined",
			endpoint: `
      - create:
          actions:
            - create:
                deny: ["*", name]`,
			code:     alerr.ErrInvalidDeny,
			contains: "cannot be combined",
		},
		{
			name: "missing_required",
			endpoint: `
      - create:
          actions:
            - create:
                set: {name: "'a'"}
                deny: ["*"]`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "does not set required field slug",
		},
		{
			name: "type_mismatch",
			endpoint: `
      - create:
          actions:
            - create:
                set: {name: "1 + 2"}`,
			code:     alerr.ErrTypeMismatch,
			contains: "name is string, got integer",
		},
		{
			name: "set_id",
			endpoint: `
      - create:
          actions:
            - create:
                set: {id: "1"}`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "Org.id cannot be set",
		},
		{
			name: "unknown_field",
			endpoint: `
      - create:
          actions:
            - create:
                set: {nmae: "'a'"}`,
			code:     alerr.ErrUnresolvedPath,
			contains: `"nmae" is not a field or reference`,
		},
		{
			name: "reads_unset_name",
			endpoint: `
      - update:
          actions:
            - update:
                set: {slug: "lower(name)"}
                deny: ["*"]`,
			code:     alerr.ErrUnresolvedPath,
			contains: "slug reads name",
		},
		{
			name: "setter_cycle",
			endpoint: `
      - update:
          actions:
            - update:
                set: {name: "slug", slug: "name"}`,
			code:     alerr.ErrCircularDependency,
			contains: "circular dependency",
		},
		{
			name: "non_unique_reference_lookup",
			endpoint: `
      - custom:
          method: POST
          path: x
          cardinality: many
          actions:
            - create:
                target: Repo
                as: r
                reference: {org: name}
                set: {name: "'a'"}`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "which is not unique",
		},
		{
			name: "inputs_without_alias",
			endpoint: `
      - custom:
          method: POST
          path: x
          cardinality: many
          actions:
            - create:
                target: Repo
                input: [name]
                set: {org_id: "1"}`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "needs an alias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgEndpointError(t, tt.endpoint, tt.code, tt.contains)
		})
	}
}

// -----------------------------------------------------------------------------
// Action order
// -----------------------------------------------------------------------------

func TestActionOrder(t *testing.T) {
	ep := orgEndpoint(t, `
      - custom:
          method: POST
          path: copy
          cardinality: many
          actions:
            - create:
                target: Repo
                as: dup
                set: {name: "src.name + ' copy'", org_id: "src.org_id"}
            - validate: {key: stars, expr: "dup.stars >= 0"}
            - fetch:
                as: src
                query: {from: Repo, filter: "stars > 10", first: true}
`)
	if diff := cmp.Diff([]string{"fetch", "create", "validate"}, actionKinds(ep.Actions)); diff != "" {
		t.Errorf("action order mismatch (-want +got):\n%s", diff)
	}

	fetch := ep.Actions[0].(*definition.FetchAction)
	if fetch.Query.RetCardinality != definition.One || fetch.Query.ModelRefKey != "Repo" {
		t.Errorf("fetch query = %+v", fetch.Query)
	}
	create := ep.Actions[1].(*definition.CreateOneAction)
	want := [][]string{{"Repo", "id"}, {"Repo", "stars"}}
	if diff := cmp.Diff(want, selectPaths(create.Select)); diff != "" {
		t.Errorf("create select mismatch (-want +got):\n%s", diff)
	}
}

func TestActionCycle(t *testing.T) {
	orgEndpointError(t, `
      - custom:
          method: POST
          path: pair
          cardinality: many
          actions:
            - create:
                target: Repo
                as: one
                set: {name: "two.name", org_id: "two.org_id"}
            - create:
                target: Repo
                as: two
                set: {name: "one.name", org_id: "one.org_id"}
`, alerr.ErrCircularDependency, "one, two")
}

func TestFetchScopedToRecord(t *testing.T) {
	ep := orgEndpoint(t, `
      - custom:
          method: GET
          path: top
          actions:
            - fetch:
                as: top
                query: {from: org.repos, orderBy: [stars desc], first: true}
            - respond: {body: "top.name", httpStatus: 200}
`)
	if !ep.Responds {
		t.Error("endpoint should respond")
	}
	fetch := ep.Actions[0].(*definition.FetchAction)
	eq, ok := fetch.Query.Filter.(*definition.FunctionExpr)
	if !ok || eq.Name != definition.FnIs {
		t.Fatalf("filter = %#v, want an id match", fetch.Query.Filter)
	}
	v := eq.Args[1].(*definition.VariableExpr)
	if v.Name != "org" || v.Key() != "org.id" {
		t.Errorf("scoping variable = %+v", v)
	}
	if diff := cmp.Diff([]string{"Org", "repos"}, fetch.Query.FromPath); diff != "" {
		t.Errorf("fromPath mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteHook(t *testing.T) {
	ep := orgEndpoint(t, `
      - custom:
          method: POST
          path: notify
          actions:
            - execute:
                as: sent
                responds: true
                hook:
                  args: {who: "org.name", count: {query: {from: org.repos, count: true}}}
                  inline: "return args.who + args.count"
`)
	exec := ep.Actions[0].(*definition.ExecuteHookAction)
	if !exec.Responds || exec.Alias != "sent" {
		t.Errorf("execute = %+v", exec)
	}
	if _, ok := exec.Hook.Args.Get("count").Setter.(*definition.QuerySetter); !ok {
		t.Errorf("count arg = %#v, want a query", exec.Hook.Args.Get("count").Setter)
	}
	want := [][]string{{"Org", "id"}, {"Org", "name"}}
	if diff := cmp.Diff(want, selectPaths(ep.Target.Select)); diff != "" {
		t.Errorf("target select mismatch (-want +got):\n%s", diff)
	}
}

func TestActionErrors(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		code     alerr.Code
		contains string
	}{
		{
			name: "responds_outside_custom",
			endpoint: `
      - create:
          actions:
            - execute: {responds: true, hook: {inline: "return 1"}}`,
			code:     alerr.ErrRespondsMisuse,
			contains: "only custom endpoints",
		},
		{
			name: "two_responses",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - respond: {body: "1"}
            - respond: {body: "2"}`,
			code:     alerr.ErrRespondsMisuse,
			contains: "more than one action responds",
		},
		{
			name: "fetch_without_alias",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - fetch: {query: {from: Repo}}`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "needs an alias",
		},
		{
			name: "alias_reused",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - fetch: {as: org, query: {from: Repo}}`,
			code:     alerr.ErrDuplicateName,
			contains: `alias "org" is already in use`,
		},
		{
			name: "read_through_list",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - respond: {body: "org.repos.name"}`,
			code:     alerr.ErrTypeMismatch,
			contains: "reads through a collection",
		},
		{
			name: "list_member",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - fetch: {as: all, query: {from: Repo}}
            - respond: {body: "all.name"}`,
			code:     alerr.ErrUnresolvedPath,
			contains: "is a list",
		},
		{
			name: "nested_actions",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - create: {target: Repo, actions: [{delete: org}]}`,
			code:     alerr.ErrUnsupported,
			contains: "nested actions",
		},
		{
			name: "renamed_primary",
			endpoint: `
      - update:
          actions:
            - update: {as: renamed}`,
			code:     alerr.ErrBlueprintInvalid,
			contains: "cannot be renamed",
		},
		{
			name: "status_type",
			endpoint: `
      - custom:
          method: GET
          path: x
          actions:
            - respond: {body: "1", httpStatus: "'ok'"}`,
			code:     alerr.ErrTypeMismatch,
			contains: "httpStatus must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgEndpointError(t, tt.endpoint, tt.code, tt.contains)
		})
	}
}
