package dialect_test

import (
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/dialect"
)

// TestNarrowInterfaceUsage verifies that a full Dialect can be passed
// where only a narrow sub-interface is required.
func TestNarrowInterfaceUsage(t *testing.T) {
	pg := dialect.Postgres()
	sq := dialect.SQLite()

	requireFloat := func(m dialect.TypeMapper, expected string) {
		t.Helper()
		if got := m.FloatType(); got != expected {
			t.Errorf("FloatType() = %q, want %q", got, expected)
		}
	}
	requireFloat(pg, "DOUBLE PRECISION")
	requireFloat(sq, "REAL")

	requirePlaceholder := func(f dialect.SQLFormatter, expected string) {
		t.Helper()
		if got := f.Placeholder(2); got != expected {
			t.Errorf("Placeholder(2) = %q, want %q", got, expected)
		}
	}
	requirePlaceholder(pg, "$2")
	requirePlaceholder(sq, "?")

	requireDeferred := func(f dialect.FeatureDetector, expected bool) {
		t.Helper()
		if got := f.DefersForeignKeys(); got != expected {
			t.Errorf("DefersForeignKeys() = %v, want %v", got, expected)
		}
	}
	requireDeferred(pg, true)
	requireDeferred(sq, false)
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dialect.Get(tt.name)
			if d == nil || d.Name() != tt.want {
				t.Errorf("Get(%q) = %v, want %s", tt.name, d, tt.want)
			}
		})
	}
	if d := dialect.Get("mysql"); d != nil {
		t.Errorf("Get(mysql) = %s, want nil", d.Name())
	}
}
