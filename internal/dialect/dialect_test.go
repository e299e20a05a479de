package dialect

import (
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/schema"
)

func intp(n int) *int { return &n }

func repoTable() *schema.CreateTable {
	return &schema.CreateTable{
		Name: "repo",
		Columns: []*schema.ColumnDef{
			{Name: "id", Type: schema.TypeSerial, PrimaryKey: true},
			{Name: "name", Type: schema.TypeString, Unique: true},
			{Name: "is_public", Type: schema.TypeBoolean, Default: false, DefaultSet: true},
			{Name: "stars", Type: schema.TypeInteger, Default: int64(0), DefaultSet: true},
			{Name: "score", Type: schema.TypeFloat, Nullable: true},
			{Name: "org_id", Type: schema.TypeInteger},
		},
		ForeignKeys: []*schema.ForeignKeyDef{{
			Name:       "fk_repo_org_id",
			Columns:    []string{"org_id"},
			RefTable:   "org",
			RefColumns: []string{"id"},
			OnDelete:   "CASCADE",
		}},
		IfNotExists: true,
	}
}

// -----------------------------------------------------------------------------
// DDL
// -----------------------------------------------------------------------------

func TestCreateTableSQL(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
		want string
	}{
		{
			name: "postgres",
			d:    Postgres(),
			want: `CREATE TABLE IF NOT EXISTS "repo" (
  "id" BIGSERIAL PRIMARY KEY,
  "name" TEXT NOT NULL CONSTRAINT "uniq_repo_name" UNIQUE,
  "is_public" BOOLEAN NOT NULL DEFAULT FALSE,
  "stars" BIGINT NOT NULL DEFAULT 0,
  "score" DOUBLE PRECISION,
  "org_id" BIGINT NOT NULL,
  CONSTRAINT "fk_repo_org_id" FOREIGN KEY ("org_id") REFERENCES "org" ("id") ON DELETE CASCADE
)`,
		},
		{
			name: "sqlite",
			d:    SQLite(),
			want: `CREATE TABLE IF NOT EXISTS "repo" (
  "id" INTEGER PRIMARY KEY,
  "name" TEXT NOT NULL CONSTRAINT "uniq_repo_name" UNIQUE,
  "is_public" INTEGER NOT NULL DEFAULT 0,
  "stars" INTEGER NOT NULL DEFAULT 0,
  "score" REAL,
  "org_id" INTEGER NOT NULL,
  CONSTRAINT "fk_repo_org_id" FOREIGN KEY ("org_id") REFERENCES "org" ("id") ON DELETE CASCADE
)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.d.CreateTableSQL(repoTable())
			if err != nil {
				t.Fatalf("CreateTableSQL() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CreateTableSQL() =\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestCreateTableSQLValidates(t *testing.T) {
	op := &schema.CreateTable{Name: "Bad Name", Columns: []*schema.ColumnDef{{Name: "id", Type: schema.TypeSerial, PrimaryKey: true}}}
	for _, d := range []Dialect{Postgres(), SQLite()} {
		_, err := d.CreateTableSQL(op)
		if !alerr.Is(err, alerr.ErrSchemaInvalid) {
			t.Errorf("%s: error = %v, want %s", d.Name(), err, alerr.ErrSchemaInvalid)
		}
	}
}

func TestCreateIndexSQL(t *testing.T) {
	tests := []struct {
		name string
		op   *schema.CreateIndex
		want string
	}{
		{
			name: "generated_name",
			op:   &schema.CreateIndex{Table_: "repo", Columns: []string{"org_id"}, IfNotExists: true},
			want: `CREATE INDEX IF NOT EXISTS "idx_repo_org_id" ON "repo" ("org_id")`,
		},
		{
			name: "unique",
			op:   &schema.CreateIndex{Table_: "repo", Columns: []string{"org_id", "name"}, Unique: true},
			want: `CREATE UNIQUE INDEX "uniq_repo_org_id_name" ON "repo" ("org_id", "name")`,
		},
		{
			name: "explicit_name",
			op:   &schema.CreateIndex{Table_: "repo", Name: "repo_lookup", Columns: []string{"name"}},
			want: `CREATE INDEX "repo_lookup" ON "repo" ("name")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Postgres().CreateIndexSQL(tt.op)
			if err != nil {
				t.Fatalf("CreateIndexSQL() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CreateIndexSQL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAddForeignKeySQL(t *testing.T) {
	op := &schema.AddForeignKey{
		Table_: "org",
		ForeignKeyDef: schema.ForeignKeyDef{
			Name:       "fk_org_owner_id",
			Columns:    []string{"owner_id"},
			RefTable:   "repo",
			RefColumns: []string{"id"},
			OnDelete:   "SET NULL",
		},
	}

	got, err := Postgres().AddForeignKeySQL(op)
	if err != nil {
		t.Fatalf("AddForeignKeySQL() error: %v", err)
	}
	want := `ALTER TABLE "org" ADD CONSTRAINT "fk_org_owner_id" FOREIGN KEY ("owner_id") REFERENCES "repo" ("id") ON DELETE SET NULL`
	if got != want {
		t.Errorf("AddForeignKeySQL() = %s, want %s", got, want)
	}

	if _, err := SQLite().AddForeignKeySQL(op); err == nil {
		t.Error("sqlite AddForeignKeySQL() succeeded, want an error")
	}
}

func TestOperationSQL(t *testing.T) {
	stmts, err := Statements(SQLite(), []schema.Operation{
		&schema.DropTable{Name: "repo", IfExists: true},
		&schema.CreateIndex{Table_: "repo", Columns: []string{"name"}},
	})
	if err != nil {
		t.Fatalf("Statements() error: %v", err)
	}
	want := []string{
		`DROP TABLE IF EXISTS "repo"`,
		`CREATE INDEX "idx_repo_name" ON "repo" ("name")`,
	}
	if strings.Join(stmts, "\n") != strings.Join(want, "\n") {
		t.Errorf("Statements() = %q, want %q", stmts, want)
	}
}

// -----------------------------------------------------------------------------
// Query fragments
// -----------------------------------------------------------------------------

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset *int
		postgres      string
		sqlite        string
	}{
		{"none", nil, nil, "", ""},
		{"limit", intp(10), nil, "LIMIT 10", "LIMIT 10"},
		{"both", intp(10), intp(20), "LIMIT 10 OFFSET 20", "LIMIT 10 OFFSET 20"},
		{"offset_only", nil, intp(5), "OFFSET 5", "LIMIT -1 OFFSET 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Postgres().LimitOffset(tt.limit, tt.offset); got != tt.postgres {
				t.Errorf("postgres = %q, want %q", got, tt.postgres)
			}
			if got := SQLite().LimitOffset(tt.limit, tt.offset); got != tt.sqlite {
				t.Errorf("sqlite = %q, want %q", got, tt.sqlite)
			}
		})
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		value    any
		postgres string
		sqlite   string
	}{
		{true, "TRUE", "1"},
		{false, "FALSE", "0"},
		{nil, "NULL", "NULL"},
		{int64(42), "42", "42"},
		{7, "7", "7"},
		{2.0, "2.0", "2.0"},
		{1.5, "1.5", "1.5"},
		{"it's", "'it''s'", "'it''s'"},
	}

	for _, tt := range tests {
		if got := Postgres().Literal(tt.value); got != tt.postgres {
			t.Errorf("postgres Literal(%v) = %s, want %s", tt.value, got, tt.postgres)
		}
		if got := SQLite().Literal(tt.value); got != tt.sqlite {
			t.Errorf("sqlite Literal(%v) = %s, want %s", tt.value, got, tt.sqlite)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Postgres().Placeholder(3); got != "$3" {
		t.Errorf("postgres Placeholder(3) = %s", got)
	}
	if got := SQLite().Placeholder(3); got != "?" {
		t.Errorf("sqlite Placeholder(3) = %s", got)
	}
}
