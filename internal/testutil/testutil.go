package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

var (
	whitespace   = regexp.MustCompile(`\s+`)
	punctSpacing = regexp.MustCompile(`\s*([(),])\s*`)
)

// -----------------------------------------------------------------------------
// SQL assertions
// -----------------------------------------------------------------------------

// NormalizeSQL folds case and whitespace so generated statements compare
// independently of layout: runs of whitespace become one space and spaces
// around parentheses and commas are dropped.
func NormalizeSQL(sql string) string {
	sql = whitespace.ReplaceAllString(strings.TrimSpace(sql), " ")
	sql = punctSpacing.ReplaceAllString(sql, "$1")
	return strings.ToUpper(sql)
}

// AssertSQL compares two statements after NormalizeSQL.
func AssertSQL(t testing.TB, got, want string) {
	t.Helper()
	if g, w := NormalizeSQL(got), NormalizeSQL(want); g != w {
		t.Errorf("SQL mismatch:\ngot:  %s\nwant: %s\n\noriginal got:\n%s", g, w, got)
	}
}

// AssertSQLContains checks that sql contains substr after NormalizeSQL.
func AssertSQLContains(t testing.TB, sql, substr string) {
	t.Helper()
	if s, sub := NormalizeSQL(sql), NormalizeSQL(substr); !strings.Contains(s, sub) {
		t.Errorf("SQL does not contain %s\nsql: %s", sub, s)
	}
}

// -----------------------------------------------------------------------------
// Error assertions
// -----------------------------------------------------------------------------

// AssertError checks that err carries code.
func AssertError(t testing.TB, err error, code alerr.Code) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error with code %s, got nil", code)
		return
	}
	if got := alerr.GetErrorCode(err); got != code {
		t.Errorf("expected error code %s, got %s\nerror: %v", code, got, err)
	}
}

// AssertNoError fails the test when err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

// AssertErrorContains checks that err's message contains substr.
func AssertErrorContains(t testing.TB, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error containing %q, got nil", substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error message does not contain %q\ngot: %v", substr, err)
	}
}

// AssertIssue checks that err is a validation error carrying an issue at the
// dotted fieldset path with the given issue code.
func AssertIssue(t testing.TB, err error, path, code string) {
	t.Helper()
	if !alerr.Is(err, alerr.ErrValidation) {
		t.Errorf("expected validation error, got: %v", err)
		return
	}
	var got []string
	for _, issue := range alerr.Issues(err) {
		if issue.Key() == path && issue.Code == code {
			return
		}
		got = append(got, issue.Key()+":"+issue.Code)
	}
	t.Errorf("no %s issue at %q; issues: %v", code, path, got)
}

// AssertEqual fails the test when got != want.
func AssertEqual[T comparable](t testing.TB, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("values not equal:\ngot:  %v\nwant: %v", got, want)
	}
}

// -----------------------------------------------------------------------------
// Files
// -----------------------------------------------------------------------------

// TempDir returns a directory removed when the test ends.
func TempDir(t testing.TB) string {
	t.Helper()
	return t.TempDir()
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}
