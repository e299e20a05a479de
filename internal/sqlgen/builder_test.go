package sqlgen

import (
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/dialect"
)

// -----------------------------------------------------------------------------
// Statement buffer
// -----------------------------------------------------------------------------

func TestStmt(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *stmt) *stmt
		want  string
	}{
		{
			name:  "ident_escapes",
			build: func(s *stmt) *stmt { return s.Ident(`user"name`) },
			want:  `"user""name"`,
		},
		{
			name:  "column",
			build: func(s *stmt) *stmt { return s.Column("Org.repos", "name") },
			want:  `"Org.repos"."name"`,
		},
		{
			name:  "idents",
			build: func(s *stmt) *stmt { return s.Idents("a", "b", "c") },
			want:  `"a", "b", "c"`,
		},
		{
			name:  "params",
			build: func(s *stmt) *stmt { return s.Params("name", "@id") },
			want:  `:name, :@id`,
		},
		{
			name: "chained",
			build: func(s *stmt) *stmt {
				return s.Raw("SELECT ").List([]string{"1", "2"}, ", ").Raw(" FROM ").Ident("t")
			},
			want: `SELECT 1, 2 FROM "t"`,
		},
		{
			name:  "empty",
			build: func(s *stmt) *stmt { return s.Idents() },
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.build(newStmt(dialect.Postgres())).String()
			if got != tt.want {
				t.Errorf("stmt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQualified(t *testing.T) {
	for _, d := range []dialect.Dialect{dialect.Postgres(), dialect.SQLite()} {
		if got := qualified(d, "Org", "id"); got != `"Org"."id"` {
			t.Errorf("%s: qualified() = %q", d.Name(), got)
		}
	}
}

func TestBuilderDialect(t *testing.T) {
	d := dialect.SQLite()
	if got := New(nil, d).Dialect(); got != d {
		t.Errorf("Dialect() = %v, want %v", got, d)
	}
}
