package sqlgen_test

import (
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
	"github.com/gauditech/gaudi-sub004/internal/testutil"
)

func intp(v int) *int { return &v }

func alias(t definition.ScalarType, path ...string) *definition.AliasExpr {
	return &definition.AliasExpr{NamePath: path, Type: t}
}

func field(name string, path ...string) *definition.ValueSelect {
	return &definition.ValueSelect{Kind: definition.SelectField, Alias: name, NamePath: path}
}

// publicRepoFilter matches orgs with at least one public repo.
func publicRepoFilter() definition.TypedExpr {
	return definition.Eq(
		alias(definition.TypeBoolean, "Org", "repos", "is_public"),
		&definition.LiteralExpr{Type: definition.TypeBoolean, Value: true},
	)
}

func orgBuilder(t *testing.T, d dialect.Dialect) *sqlgen.Builder {
	t.Helper()
	return sqlgen.New(testutil.Compose(t, testutil.OrgModels), d)
}

// -----------------------------------------------------------------------------
// QueryToSQL
// -----------------------------------------------------------------------------

func TestQueryToSQL(t *testing.T) {
	tests := []struct {
		name    string
		dialect dialect.Dialect
		query   *definition.QueryDef
		opts    sqlgen.Options
		want    string
	}{
		{
			name:    "single_model",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org"},
				Filter: definition.Eq(
					alias(definition.TypeString, "Org", "slug"),
					&definition.VariableExpr{Name: "org_slug", Type: definition.TypeString},
				),
				Select: []definition.SelectItem{field("name", "Org", "name")},
			},
			want: `SELECT "Org"."name" AS "name", "Org"."id" AS "__id"
				FROM "org" AS "Org"
				WHERE ("Org"."slug" = :org_slug)
				ORDER BY "Org"."id"`,
		},
		{
			name:    "relation_path_joins_inner",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
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
					&definition.ExpressionSelect{
						Alias: definition.JoinConnectionColumn,
						Expr:  alias(definition.TypeInteger, "Org", "id"),
						Type:  definition.TypeInteger,
					},
				},
			},
			want: `SELECT "Org.repos"."name" AS "name", "Org"."id" AS "__join_connection", "Org.repos"."id" AS "__id"
				FROM "org" AS "Org"
				INNER JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"
				WHERE ("Org"."id" IN (:@parent_ids))
				ORDER BY "Org.repos"."id"`,
		},
		{
			name:    "reference_path_joins_left",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Issue"},
				Select:   []definition.SelectItem{field("org_name", "Issue", "repo", "org", "name")},
			},
			want: `SELECT "Issue.repo.org"."name" AS "org_name", "Issue"."id" AS "__id"
				FROM "issue" AS "Issue"
				LEFT JOIN "repo" AS "Issue.repo" ON "Issue.repo"."id" = "Issue"."repo_id"
				LEFT JOIN "org" AS "Issue.repo.org" ON "Issue.repo.org"."id" = "Issue.repo"."org_id"
				ORDER BY "Issue"."id"`,
		},
		{
			name:    "order_and_paging",
			dialect: dialect.SQLite(),
			query: &definition.QueryDef{
				FromPath: []string{"Repo"},
				Select:   []definition.SelectItem{field("name", "Repo", "name")},
				OrderBy: []*definition.OrderByDef{
					{Expr: alias(definition.TypeInteger, "Repo", "stars"), Desc: true},
				},
				Limit:  intp(10),
				Offset: intp(20),
			},
			want: `SELECT "Repo"."name" AS "name", "Repo"."id" AS "__id"
				FROM "repo" AS "Repo"
				ORDER BY "Repo"."stars" DESC, "Repo"."id"
				LIMIT 10 OFFSET 20`,
		},
		{
			name:    "partitioned_limit",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org", "repos"},
				Select:   []definition.SelectItem{field("name", "Org", "repos", "name")},
				OrderBy: []*definition.OrderByDef{
					{Expr: alias(definition.TypeInteger, "Org", "repos", "stars"), Desc: true},
				},
				Limit:  intp(2),
				Offset: intp(1),
			},
			opts: sqlgen.Options{PartitionBy: []string{"Org", "id"}},
			want: `SELECT * FROM (SELECT "Org.repos"."name" AS "name", "Org.repos"."id" AS "__id",
				ROW_NUMBER() OVER (PARTITION BY "Org"."id" ORDER BY "Org.repos"."stars" DESC, "Org.repos"."id") AS "__row_number"
				FROM "org" AS "Org"
				INNER JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id") AS "__ranked"
				WHERE "__row_number" > 1 AND "__row_number" <= 3
				ORDER BY "__row_number"`,
		},
		{
			name:    "partition_without_limit_is_plain",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org", "repos"},
				Select:   []definition.SelectItem{field("name", "Org", "repos", "name")},
			},
			opts: sqlgen.Options{PartitionBy: []string{"Org", "id"}},
			want: `SELECT "Org.repos"."name" AS "name", "Org.repos"."id" AS "__id"
				FROM "org" AS "Org"
				INNER JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"
				ORDER BY "Org.repos"."id"`,
		},
		{
			name:    "inlined_query_segment",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org", "public_repos"},
				Select:   []definition.SelectItem{field("name", "Org", "public_repos", "name")},
			},
			want: `SELECT "Org.public_repos"."name" AS "name", "Org.public_repos"."id" AS "__id"
				FROM "org" AS "Org"
				INNER JOIN "repo" AS "Org.public_repos" ON "Org.public_repos"."org_id" = "Org"."id"
				WHERE ("Org.public_repos"."is_public" = TRUE)
				ORDER BY "Org.public_repos"."id"`,
		},
		{
			name:    "computed_is_inlined",
			dialect: dialect.SQLite(),
			query: &definition.QueryDef{
				FromPath: []string{"Repo"},
				Select: []definition.SelectItem{
					&definition.ValueSelect{Kind: definition.SelectComputed, Alias: "full_name", NamePath: []string{"Repo", "full_name"}},
				},
			},
			want: `SELECT (("Repo.org"."slug" || '/') || "Repo"."name") AS "full_name", "Repo"."id" AS "__id"
				FROM "repo" AS "Repo"
				LEFT JOIN "org" AS "Repo.org" ON "Repo.org"."id" = "Repo"."org_id"
				ORDER BY "Repo"."id"`,
		},
		{
			name:    "aggregate_is_correlated",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org"},
				Select: []definition.SelectItem{
					&definition.ValueSelect{Kind: definition.SelectAggregate, Alias: "repo_count", NamePath: []string{"Org", "repo_count"}},
					&definition.ValueSelect{Kind: definition.SelectAggregate, Alias: "total_stars", NamePath: []string{"Org", "total_stars"}},
				},
			},
			want: `SELECT (SELECT COUNT(DISTINCT "Org.repo_count.repos"."id") AS "value"
				FROM "org" AS "Org.repo_count"
				INNER JOIN "repo" AS "Org.repo_count.repos" ON "Org.repo_count.repos"."org_id" = "Org.repo_count"."id"
				WHERE "Org.repo_count"."id" = "Org"."id") AS "repo_count",
				(SELECT COALESCE(SUM("Org.total_stars.repos"."stars"), 0) AS "value"
				FROM "org" AS "Org.total_stars"
				INNER JOIN "repo" AS "Org.total_stars.repos" ON "Org.total_stars.repos"."org_id" = "Org.total_stars"."id"
				WHERE "Org.total_stars"."id" = "Org"."id") AS "total_stars",
				"Org"."id" AS "__id"
				FROM "org" AS "Org"
				ORDER BY "Org"."id"`,
		},
		{
			name:    "aggregate_query",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath:  []string{"Org", "repos"},
				Aggregate: &definition.AggregateDef{Name: definition.AggregateCount},
			},
			want: `SELECT COUNT(DISTINCT "Org.repos"."id") AS "value"
				FROM "org" AS "Org"
				INNER JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"`,
		},
		{
			name:    "to_one_filter_stays_inline",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Repo"},
				Filter: definition.Eq(
					alias(definition.TypeString, "Repo", "org", "slug"),
					&definition.VariableExpr{Name: "org_slug", Type: definition.TypeString},
				),
				Select: []definition.SelectItem{field("name", "Repo", "name")},
			},
			want: `SELECT "Repo"."name" AS "name", "Repo"."id" AS "__id"
				FROM "repo" AS "Repo"
				LEFT JOIN "org" AS "Repo.org" ON "Repo.org"."id" = "Repo"."org_id"
				WHERE ("Repo.org"."slug" = :org_slug)
				ORDER BY "Repo"."id"`,
		},
		{
			name:    "to_many_filter_matches_ids",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath: []string{"Org"},
				Filter:   publicRepoFilter(),
				Select:   []definition.SelectItem{field("name", "Org", "name")},
				Limit:    intp(1),
				Offset:   intp(1),
			},
			want: `SELECT "Org"."name" AS "name", "Org"."id" AS "__id"
				FROM "org" AS "Org"
				WHERE "Org"."id" IN (SELECT "Org"."id"
					FROM "org" AS "Org"
					LEFT JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"
					WHERE ("Org.repos"."is_public" = TRUE))
				ORDER BY "Org"."id"
				LIMIT 1 OFFSET 1`,
		},
		{
			name:    "to_many_filter_in_aggregate",
			dialect: dialect.Postgres(),
			query: &definition.QueryDef{
				FromPath:  []string{"Org"},
				Filter:    publicRepoFilter(),
				Aggregate: &definition.AggregateDef{Name: definition.AggregateCount},
			},
			want: `SELECT COUNT(DISTINCT "Org"."id") AS "value"
				FROM "org" AS "Org"
				WHERE "Org"."id" IN (SELECT "Org"."id"
					FROM "org" AS "Org"
					LEFT JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"
					WHERE ("Org.repos"."is_public" = TRUE))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orgBuilder(t, tt.dialect).QueryToSQL(tt.query, tt.opts)
			if err != nil {
				t.Fatalf("QueryToSQL() error: %v", err)
			}
			testutil.AssertSQL(t, got, tt.want)
		})
	}
}

func TestQueryToSQLExpressions(t *testing.T) {
	name := alias(definition.TypeString, "Org", "name")
	desc := alias(definition.TypeString, "Org", "description")
	null := &definition.LiteralExpr{Type: definition.TypeNull}
	fn := func(op string, args ...definition.TypedExpr) *definition.FunctionExpr {
		return &definition.FunctionExpr{Name: op, Args: args}
	}
	lit := func(v any) *definition.LiteralExpr {
		return &definition.LiteralExpr{Type: definition.TypeString, Value: v}
	}

	tests := []struct {
		name string
		expr definition.TypedExpr
		want string
	}{
		{"is_null", fn(definition.FnIs, desc, null), `("Org"."description" IS NULL)`},
		{"null_on_left", fn(definition.FnIsNot, null, desc), `("Org"."description" IS NOT NULL)`},
		{"is_not", fn(definition.FnIsNot, name, lit("x")), `("Org"."name" <> 'x')`},
		{"division_casts", fn(definition.FnDiv, lit(1), lit(2)), `(CAST(1 AS DOUBLE PRECISION) / 2)`},
		{"not", fn(definition.FnNot, fn(definition.FnLt, lit(1), lit(2))), `(NOT (1 < 2))`},
		{"length", fn(definition.FnLength, name), `LENGTH("Org"."name")`},
		{"stringify", fn(definition.FnStringify, lit(3)), `CAST(3 AS TEXT)`},
		{"now", fn(definition.FnNow), `CAST(EXTRACT(EPOCH FROM NOW()) * 1000 AS BIGINT)`},
		{
			"in_array",
			fn(definition.FnNotIn, name, &definition.ArrayExpr{Elements: []definition.TypedExpr{lit("a"), lit("b")}}),
			`("Org"."name" NOT IN ('a', 'b'))`,
		},
		{"in_empty_array", fn(definition.FnIn, name, &definition.ArrayExpr{}), `("Org"."name" IN (NULL))`},
		{"computed", alias(definition.TypeString, "Org", "name_upper"), `UPPER("Org"."name")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &definition.QueryDef{
				FromPath: []string{"Org"},
				Select: []definition.SelectItem{
					&definition.ExpressionSelect{Alias: "v", Expr: tt.expr},
				},
			}
			got, err := orgBuilder(t, dialect.Postgres()).QueryToSQL(q, sqlgen.Options{})
			if err != nil {
				t.Fatalf("QueryToSQL() error: %v", err)
			}
			testutil.AssertSQLContains(t, got, tt.want+` AS "v"`)
		})
	}
}

func TestQueryToSQLErrors(t *testing.T) {
	tests := []struct {
		name string
		expr definition.TypedExpr
		code alerr.Code
	}{
		{
			name: "runtime_only_function",
			expr: &definition.FunctionExpr{Name: definition.FnCryptoToken},
			code: alerr.ErrUnsupported,
		},
		{
			name: "unknown_member",
			expr: alias(definition.TypeString, "Repo", "nope"),
			code: alerr.EInternalError,
		},
		{
			name: "record_as_value",
			expr: alias(definition.TypeString, "Repo", "org"),
			code: alerr.EInternalError,
		},
		{
			name: "foreign_root",
			expr: alias(definition.TypeString, "Issue", "title"),
			code: alerr.EInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &definition.QueryDef{
				FromPath: []string{"Repo"},
				Select: []definition.SelectItem{
					&definition.ExpressionSelect{Alias: "v", Expr: tt.expr},
				},
			}
			_, err := orgBuilder(t, dialect.Postgres()).QueryToSQL(q, sqlgen.Options{})
			testutil.AssertError(t, err, tt.code)
		})
	}
}

func TestCountSQL(t *testing.T) {
	q := &definition.QueryDef{
		FromPath: []string{"Org"},
		Select:   []definition.SelectItem{field("name", "Org", "name")},
		OrderBy:  []*definition.OrderByDef{{Expr: alias(definition.TypeString, "Org", "name")}},
		Limit:    intp(5),
	}
	got, err := orgBuilder(t, dialect.Postgres()).CountSQL(q)
	if err != nil {
		t.Fatalf("CountSQL() error: %v", err)
	}
	testutil.AssertSQL(t, got, `SELECT COUNT(DISTINCT "__id") AS "value"
		FROM (SELECT "Org"."id" AS "__id" FROM "org" AS "Org") AS "__counted"`)
}

func TestCountSQLToManyFilter(t *testing.T) {
	q := &definition.QueryDef{FromPath: []string{"Org"}, Filter: publicRepoFilter()}
	got, err := orgBuilder(t, dialect.Postgres()).CountSQL(q)
	if err != nil {
		t.Fatalf("CountSQL() error: %v", err)
	}
	testutil.AssertSQL(t, got, `SELECT COUNT(DISTINCT "__id") AS "value"
		FROM (SELECT "Org"."id" AS "__id" FROM "org" AS "Org"
		WHERE "Org"."id" IN (SELECT "Org"."id" FROM "org" AS "Org"
		LEFT JOIN "repo" AS "Org.repos" ON "Org.repos"."org_id" = "Org"."id"
		WHERE ("Org.repos"."is_public" = TRUE))) AS "__counted"`)
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

func TestWriteSQL(t *testing.T) {
	def := testutil.Compose(t, testutil.OrgModels)
	b := sqlgen.New(def, dialect.Postgres())
	repo := def.Model("Repo")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "insert",
			got:  b.InsertSQL(repo, []string{"name", "org_id"}),
			want: `INSERT INTO "repo" ("name", "org_id") VALUES (:name, :org_id) RETURNING "id"`,
		},
		{
			name: "insert_defaults",
			got:  b.InsertSQL(repo, nil),
			want: `INSERT INTO "repo" DEFAULT VALUES RETURNING "id"`,
		},
		{
			name: "update",
			got:  b.UpdateSQL(repo, []string{"name", "stars"}),
			want: `UPDATE "repo" SET "name" = :name, "stars" = :stars WHERE "id" = :@id`,
		},
		{
			name: "update_nothing",
			got:  b.UpdateSQL(repo, nil),
			want: ``,
		},
		{
			name: "delete",
			got:  b.DeleteSQL(repo),
			want: `DELETE FROM "repo" WHERE "id" = :@id`,
		},
		{
			name: "reference_lookup",
			got:  b.ReferenceLookupSQL(def.Model("Org"), "slug"),
			want: `SELECT "id" FROM "org" WHERE "slug" = :value LIMIT 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertSQL(t, tt.got, tt.want)
		})
	}
}
