package testutil

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/schema"
)

// openDB opens a single-connection pool, runs the setup statements and
// closes the pool when the test completes. One connection keeps in-memory
// databases and search_path settings visible to every statement.
func openDB(t testing.TB, driver, dsn string, setup ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("ping %s: %v", driver, err)
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return db
}

// SetupSQLite creates an in-memory SQLite database with foreign keys enforced.
func SetupSQLite(t testing.TB) *sql.DB {
	t.Helper()
	return openDB(t, "sqlite", ":memory:", "PRAGMA foreign_keys = ON")
}

// SetupSchema creates the tables of def on db.
func SetupSchema(t testing.TB, db *sql.DB, d dialect.Dialect, def *definition.Definition) {
	t.Helper()

	tables, err := schema.FromDefinition(def)
	if err != nil {
		t.Fatalf("derive tables: %v", err)
	}
	if err := dialect.Apply(context.Background(), db, d, schema.Plan(tables, d.DefersForeignKeys())); err != nil {
		t.Fatalf("create tables: %v", err)
	}
}

// SetupDatabase composes src and creates its tables in a fresh in-memory
// SQLite database.
func SetupDatabase(t testing.TB, src string) (*definition.Definition, *sql.DB) {
	t.Helper()

	def := Compose(t, src)
	db := SetupSQLite(t)
	SetupSchema(t, db, dialect.SQLite(), def)
	return def, db
}

// ExecSQL executes a statement and fails the test on error.
func ExecSQL(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec:\n%s\nerror: %v", query, err)
	}
}

// QueryValue scans the single value returned by query.
func QueryValue[T any](t testing.TB, db *sql.DB, query string, args ...any) T {
	t.Helper()
	var v T
	if err := db.QueryRow(query, args...).Scan(&v); err != nil {
		t.Fatalf("query:\n%s\nerror: %v", query, err)
	}
	return v
}

// AssertTableExists checks that an SQLite database has table.
func AssertTableExists(t testing.TB, db *sql.DB, table string) {
	t.Helper()
	n := QueryValue[int](t, db, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if n == 0 {
		t.Errorf("table %q does not exist", table)
	}
}

// AssertRowCount checks that table holds want rows.
func AssertRowCount(t testing.TB, db *sql.DB, table string, want int) {
	t.Helper()
	got := QueryValue[int](t, db, "SELECT COUNT(*) FROM "+dialect.SQLite().QuoteIdent(table))
	if got != want {
		t.Errorf("rows in %s = %d, want %d", table, got, want)
	}
}
