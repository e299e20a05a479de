package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
)

func assertContains(t *testing.T, output string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\ngot:\n%s", want, output)
		}
	}
}

// -----------------------------------------------------------------------------
// FormatError
// -----------------------------------------------------------------------------

func TestFormatErrorSourceContext(t *testing.T) {
	err := alerr.New(alerr.ErrUnresolvedPath, `cannot resolve "titel"`).
		WithLocation("blueprint/repo.yaml", 7, 13).
		WithSource(`    filter: "titel == 'x'"`).
		WithSpan(14, 18).
		WithHelp(`did you mean "title"?`)

	output := FormatError(err)
	assertContains(t, output,
		"error[E1003]: cannot resolve \"titel\"",
		"--> blueprint/repo.yaml:7:13",
		"7 |     filter:",
		"^^^^^",
		"help: did you mean \"title\"?",
	)
	if strings.Contains(output, "span_start") {
		t.Errorf("span keys leaked into details:\n%s", output)
	}
}

func TestFormatErrorReadsBlueprintLine(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "org.yaml")
	content := "models:\n  Org:\n    fields: {name: strng}\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := alerr.New(alerr.ErrBlueprintInvalid, `unknown field type "strng"`).
		WithLocation(file, 3, 20).
		WithModel("Org")

	output := FormatError(err)
	assertContains(t, output,
		"3 |     fields: {name: strng}",
		"  | "+strings.Repeat(" ", 19)+"^\n",
		"= model: Org",
	)
}

func TestFormatErrorFileOnly(t *testing.T) {
	err := alerr.New(alerr.ErrDuplicateName, `model "Org" is declared twice`).
		WithLocation("blueprint/missing.yaml", 0, 0).
		WithModel("Org")

	output := FormatError(err)
	assertContains(t, output, "--> blueprint/missing.yaml\n", "= model: Org")
	if strings.Contains(output, "^") {
		t.Errorf("no pointer expected without a line:\n%s", output)
	}
}

func TestFormatErrorIssues(t *testing.T) {
	var issues alerr.ValidationErrors
	issues.Add([]string{"name"}, "required", "is required")
	issues.Add([]string{"owner", "email"}, "isEmail", "must be an email")

	output := FormatError(issues.Err())
	assertContains(t, output,
		"error[E2001]: request validation failed",
		"= name [required] is required",
		"= owner.email [isEmail] must be an email",
	)
	if strings.Contains(output, "issues:") {
		t.Errorf("issues rendered twice:\n%s", output)
	}
}

func TestFormatErrorCause(t *testing.T) {
	cause := errors.New("TypeError: x is not a function at github.com/dop251/goja.(*vm).run (native)")
	err := alerr.Wrap(alerr.ErrJSExecution, cause, `hook "slugify" failed`).WithNote("hooks run with a timeout")

	output := FormatError(err)
	assertContains(t, output, "note: hooks run with a timeout", "cause: TypeError: x is not a function\n")
}

func TestFormatErrorPlain(t *testing.T) {
	if got := FormatError(errors.New("boom")); got != "error: boom\n" {
		t.Errorf("got %q", got)
	}
	if got := FormatError(nil); got != "" {
		t.Errorf("nil error = %q", got)
	}
	wrapped := errors.Join(alerr.New(alerr.ErrNotFound, "populator \"dev\" not found"))
	assertContains(t, FormatError(wrapped), "error[E3001]")
}

func TestFormatMessages(t *testing.T) {
	if got := FormatSuccess("migrated 3 tables"); got != "success: migrated 3 tables\n" {
		t.Errorf("got %q", got)
	}
	if got := FormatWarning("no populators"); got != "warning: no populators\n" {
		t.Errorf("got %q", got)
	}
}

// -----------------------------------------------------------------------------
// SourceLine
// -----------------------------------------------------------------------------

func TestSourceLine(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.yaml")
	if err := os.WriteFile(file, []byte("one\n\ttwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, ok := SourceLine(file, 2); !ok || got != " two" {
		t.Errorf("SourceLine(2) = %q, %v", got, ok)
	}
	for _, line := range []int{0, 3} {
		if _, ok := SourceLine(file, line); ok {
			t.Errorf("SourceLine(%d) should not be found", line)
		}
	}
	if _, ok := SourceLine(filepath.Join(t.TempDir(), "missing"), 1); ok {
		t.Error("missing file should not be found")
	}
}
