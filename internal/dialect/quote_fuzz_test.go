package dialect

import (
	"strings"
	"testing"
)

var fuzzSeeds = []string{
	"users",
	"my_table",
	`col"name`,
	`"already_quoted"`,
	`""`,
	"",
	"it's",
	"'; DROP TABLE users--",
	"SELECT 1; DROP TABLE users--",
	"tab\x00le",
	"hello\nworld",
	"café",
	strings.Repeat("a", 100),
	`a""b""c`,
}

// checkEscaped fails when s is not wrapped in quote or contains an unpaired
// quote inside.
func checkEscaped(t *testing.T, input, s string, quote byte) {
	t.Helper()
	if len(s) < 2 || s[0] != quote || s[len(s)-1] != quote {
		t.Fatalf("%q rendered as %q, not wrapped in %c", input, s, quote)
	}
	inner := s[1 : len(s)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] != quote {
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != quote {
			t.Fatalf("%q rendered as %q, unescaped %c at position %d", input, s, quote, i+1)
		}
		i++
	}
}

// FuzzQuoteIdent checks that identifiers never escape their double quotes.
func FuzzQuoteIdent(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}
	dialects := []Dialect{Postgres(), SQLite()}

	f.Fuzz(func(t *testing.T, name string) {
		for _, d := range dialects {
			checkEscaped(t, name, d.QuoteIdent(name), '"')
		}
	})
}

// FuzzStringLiteral checks that string literals never escape their single quotes.
func FuzzStringLiteral(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, value string) {
		checkEscaped(t, value, Postgres().Literal(value), '\'')
		checkEscaped(t, value, SQLite().Literal(value), '\'')
	})
}
