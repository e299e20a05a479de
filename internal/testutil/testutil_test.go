package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

// recorder captures failures of the assertion under test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper()               {}
func (r *recorder) Errorf(string, ...any) { r.failed = true }

// fails reports whether assert flagged a failure.
func fails(assert func(t testing.TB)) bool {
	r := &recorder{}
	assert(r)
	return r.failed
}

func TestNormalizeSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"simple", "SELECT * FROM org", "SELECT * FROM ORG"},
		{"whitespace", "SELECT  *\n\t FROM  org  ", "SELECT * FROM ORG"},
		{"parens_and_commas", "INSERT INTO \"org\" ( \"name\" , \"slug\" ) VALUES ( $1,$2 )", `INSERT INTO "ORG"("NAME","SLUG")VALUES($1,$2)`},
		{
			"multiline",
			`
				CREATE TABLE IF NOT EXISTS "repo" (
					"id" INTEGER PRIMARY KEY,
					"name" TEXT NOT NULL
				)
			`,
			`CREATE TABLE IF NOT EXISTS "REPO"("ID" INTEGER PRIMARY KEY,"NAME" TEXT NOT NULL)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSQL(tt.sql); got != tt.want {
				t.Errorf("NormalizeSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssertions(t *testing.T) {
	validation := func() error {
		var v alerr.ValidationErrors
		v.Add([]string{"repo", "name"}, "minLength", "too short")
		return v.Err()
	}()
	notFound := alerr.New(alerr.ErrNotFound, "missing")

	tests := []struct {
		name   string
		assert func(t testing.TB)
		fail   bool
	}{
		{"sql_equal", func(t testing.TB) { AssertSQL(t, "SELECT  * FROM org", "select * from ORG") }, false},
		{"sql_different", func(t testing.TB) { AssertSQL(t, "SELECT * FROM org", "SELECT * FROM repo") }, true},
		{"sql_contains", func(t testing.TB) { AssertSQLContains(t, "SELECT * FROM org WHERE id = 1", "from ORG") }, false},
		{"sql_missing", func(t testing.TB) { AssertSQLContains(t, "SELECT * FROM org", "WHERE") }, true},
		{"error_code", func(t testing.TB) { AssertError(t, notFound, alerr.ErrNotFound) }, false},
		{"error_other_code", func(t testing.TB) { AssertError(t, notFound, alerr.ErrForbidden) }, true},
		{"error_nil", func(t testing.TB) { AssertError(t, nil, alerr.ErrNotFound) }, true},
		{"no_error", func(t testing.TB) { AssertNoError(t, nil) }, false},
		{"unexpected_error", func(t testing.TB) { AssertNoError(t, notFound) }, true},
		{"contains", func(t testing.TB) { AssertErrorContains(t, notFound, "miss") }, false},
		{"contains_nil", func(t testing.TB) { AssertErrorContains(t, nil, "miss") }, true},
		{"issue", func(t testing.TB) { AssertIssue(t, validation, "repo.name", "minLength") }, false},
		{"issue_other_code", func(t testing.TB) { AssertIssue(t, validation, "repo.name", "required") }, true},
		{"issue_not_validation", func(t testing.TB) { AssertIssue(t, notFound, "repo.name", "minLength") }, true},
		{"equal", func(t testing.TB) { AssertEqual(t, "acme", "acme") }, false},
		{"not_equal", func(t testing.TB) { AssertEqual(t, 1, 2) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fails(tt.assert); got != tt.fail {
				t.Errorf("failed = %v, want %v", got, tt.fail)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(TempDir(t), "blueprint", "hooks", "greet.js")
	WriteFile(t, path, "function greet() {}")

	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	AssertEqual(t, string(data), "function greet() {}")
}

// -----------------------------------------------------------------------------
// Blueprints and databases
// -----------------------------------------------------------------------------

func TestComposeOrgBlueprint(t *testing.T) {
	def := Compose(t, OrgBlueprint)

	for _, name := range []string{"Org", "Repo", "Issue"} {
		if def.Model(name) == nil {
			t.Errorf("model %s missing", name)
		}
	}
	if len(def.APIs) != 1 || len(def.APIs[0].Entrypoints) != 1 {
		t.Fatalf("apis = %+v", def.APIs)
	}
}

func TestComposeErr(t *testing.T) {
	_, err := ComposeErr(t, "models:\n  Org:\n    fields:\n      name: string\n    queries:\n      q: {from: nope}")
	AssertError(t, err, alerr.ErrUnresolvedPath)
}

func TestSetupDatabase(t *testing.T) {
	_, db := SetupDatabase(t, OrgModels)

	for _, table := range []string{"org", "repo", "issue"} {
		AssertTableExists(t, db, table)
	}

	ExecSQL(t, db, `INSERT INTO "org" ("name", "slug") VALUES ('Acme', 'acme')`)
	AssertRowCount(t, db, "org", 1)

	stars := QueryValue[int64](t, db, `SELECT COUNT(*) FROM "repo"`)
	AssertEqual(t, stars, int64(0))
}

func TestSetupSQLiteForeignKeys(t *testing.T) {
	_, db := SetupDatabase(t, OrgModels)

	_, err := db.Exec(`INSERT INTO "repo" ("name", "org_id") VALUES ('orphan', 42)`)
	if err == nil {
		t.Error("insert with a dangling reference succeeded, want a foreign key error")
	}
}
