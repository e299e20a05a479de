package sqlgen_test

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
	"github.com/gauditech/gaudi-sub004/internal/testutil"
)

// seedOrgs inserts two orgs through InsertSQL: acme with three repos and
// empty with none. It returns the org ids.
func seedOrgs(t *testing.T, b *sqlgen.Builder, def *definition.Definition, db *sql.DB) (acme, empty int64) {
	t.Helper()

	insert := func(model string, values map[string]any) int64 {
		t.Helper()
		cols := make([]string, 0, len(values))
		for _, f := range def.Model(model).Fields {
			if _, ok := values[f.DBName]; ok {
				cols = append(cols, f.DBName)
			}
		}
		query, args, err := sqlgen.Bind(b.Dialect(), b.InsertSQL(def.Model(model), cols), sqlgen.MapLookup(values))
		if err != nil {
			t.Fatalf("Bind() error: %v", err)
		}
		return testutil.QueryValue[int64](t, db, query, args...)
	}

	acme = insert("Org", map[string]any{"name": "Acme", "slug": "acme"})
	empty = insert("Org", map[string]any{"name": "Empty", "slug": "empty"})
	insert("Repo", map[string]any{"name": "api", "is_public": true, "stars": 5, "org_id": acme})
	insert("Repo", map[string]any{"name": "web", "is_public": false, "stars": 9, "org_id": acme})
	insert("Repo", map[string]any{"name": "cli", "is_public": true, "stars": 1, "org_id": acme})
	return acme, empty
}

// run binds and executes query, returning each row as a column map.
func run(t *testing.T, b *sqlgen.Builder, db *sql.DB, query string, values map[string]any) []map[string]any {
	t.Helper()

	bound, args, err := sqlgen.Bind(b.Dialect(), query, sqlgen.MapLookup(values))
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	rows, err := db.Query(bound, args...)
	if err != nil {
		t.Fatalf("query failed:\n%s\nerror: %v", bound, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatal(err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestQueriesOnSQLite(t *testing.T) {
	def, db := testutil.SetupDatabase(t, testutil.OrgModels)
	b := sqlgen.New(def, dialect.SQLite())
	acme, empty := seedOrgs(t, b, def, db)

	t.Run("aggregates", func(t *testing.T) {
		q := &definition.QueryDef{
			FromPath: []string{"Org"},
			Select: []definition.SelectItem{
				field("slug", "Org", "slug"),
				&definition.ValueSelect{Kind: definition.SelectAggregate, Alias: "repo_count", NamePath: []string{"Org", "repo_count"}},
				&definition.ValueSelect{Kind: definition.SelectAggregate, Alias: "total_stars", NamePath: []string{"Org", "total_stars"}},
			},
			OrderBy: []*definition.OrderByDef{{Expr: alias(definition.TypeString, "Org", "slug")}},
		}
		query, err := b.QueryToSQL(q, sqlgen.Options{})
		if err != nil {
			t.Fatalf("QueryToSQL() error: %v", err)
		}
		want := []map[string]any{
			{"slug": "acme", "repo_count": int64(3), "total_stars": int64(15), "__id": acme},
			{"slug": "empty", "repo_count": int64(0), "total_stars": int64(0), "__id": empty},
		}
		if diff := cmp.Diff(want, run(t, b, db, query, nil)); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("inlined_query_filters", func(t *testing.T) {
		q := &definition.QueryDef{
			FromPath: []string{"Org", "public_repos"},
			Select:   []definition.SelectItem{field("name", "Org", "public_repos", "name")},
			OrderBy:  []*definition.OrderByDef{{Expr: alias(definition.TypeString, "Org", "public_repos", "name")}},
		}
		query, err := b.QueryToSQL(q, sqlgen.Options{})
		if err != nil {
			t.Fatalf("QueryToSQL() error: %v", err)
		}
		var got []any
		for _, row := range run(t, b, db, query, nil) {
			got = append(got, row["name"])
		}
		if diff := cmp.Diff([]any{"api", "cli"}, got); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("partitioned_limit", func(t *testing.T) {
		q := &definition.QueryDef{
			FromPath: []string{"Org", "repos"},
			Filter: &definition.FunctionExpr{
				Name: definition.FnIn,
				Args: []definition.TypedExpr{
					alias(definition.TypeInteger, "Org", "id"),
					&definition.VariableExpr{Name: "@parent_ids", Type: definition.TypeInteger},
				},
				Type: definition.TypeBoolean,
			},
			Select: []definition.SelectItem{
				field("name", "Org", "repos", "name"),
				&definition.ExpressionSelect{Alias: definition.JoinConnectionColumn, Expr: alias(definition.TypeInteger, "Org", "id")},
			},
			OrderBy: []*definition.OrderByDef{{Expr: alias(definition.TypeInteger, "Org", "repos", "stars"), Desc: true}},
			Limit:   intp(2),
		}
		query, err := b.QueryToSQL(q, sqlgen.Options{PartitionBy: []string{"Org", "id"}})
		if err != nil {
			t.Fatalf("QueryToSQL() error: %v", err)
		}
		var got []any
		for _, row := range run(t, b, db, query, map[string]any{"@parent_ids": []int64{acme, empty}}) {
			got = append(got, row["name"])
		}
		if diff := cmp.Diff([]any{"web", "api"}, got); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("count", func(t *testing.T) {
		q := &definition.QueryDef{FromPath: []string{"Org", "repos"}, Limit: intp(1)}
		query, err := b.CountSQL(q)
		if err != nil {
			t.Fatalf("CountSQL() error: %v", err)
		}
		if got := testutil.QueryValue[int64](t, db, query); got != 3 {
			t.Errorf("count = %d, want 3", got)
		}
	})

	t.Run("update_and_delete", func(t *testing.T) {
		repo := def.Model("Repo")
		query, args, err := sqlgen.Bind(b.Dialect(), b.UpdateSQL(repo, []string{"stars"}),
			sqlgen.MapLookup(map[string]any{"stars": 100, "@id": int64(1)}))
		if err != nil {
			t.Fatalf("Bind() error: %v", err)
		}
		testutil.ExecSQL(t, db, query, args...)
		if got := testutil.QueryValue[int64](t, db, `SELECT "stars" FROM "repo" WHERE "id" = 1`); got != 100 {
			t.Errorf("stars = %d, want 100", got)
		}

		query, args, err = sqlgen.Bind(b.Dialect(), b.DeleteSQL(repo), sqlgen.MapLookup(map[string]any{"@id": int64(1)}))
		if err != nil {
			t.Fatalf("Bind() error: %v", err)
		}
		testutil.ExecSQL(t, db, query, args...)
		testutil.AssertRowCount(t, db, "repo", 2)
	})

	t.Run("reference_lookup", func(t *testing.T) {
		rows := run(t, b, db, b.ReferenceLookupSQL(def.Model("Org"), "slug"), map[string]any{"value": "empty"})
		if len(rows) != 1 || rows[0]["id"] != empty {
			t.Errorf("lookup rows = %v, want id %d", rows, empty)
		}
	})
}
