// Package alerr provides standardized error handling for Gaudi.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
// The code category also decides how a runtime error is presented to an HTTP client.
package alerr

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category is 1-9 and number is 001-999.
type Code string

// Error codes organized by category.
const (
	// Blueprint errors (E1xxx) - problems found while composing a blueprint
	ErrBlueprintInvalid   Code = "E1001" // Blueprint file is malformed or invalid
	ErrBlueprintSyntax    Code = "E1002" // Expression or document could not be parsed
	ErrUnresolvedPath     Code = "E1003" // Identifier path does not resolve
	ErrDuplicateName      Code = "E1004" // Name declared more than once
	ErrDuplicateSetter    Code = "E1005" // Model field targeted by more than one rule
	ErrInvalidDeny        Code = "E1006" // Deny-all combined with other deny rules
	ErrInvalidRepeater    Code = "E1007" // Repeater bounds are malformed
	ErrDefaultRuntime     Code = "E1008" // No unique default execution runtime
	ErrRespondsMisuse     Code = "E1009" // Responding action placed where it is not allowed
	ErrTypeMismatch       Code = "E1010" // Expression type does not fit its position
	ErrUnsupported        Code = "E1011" // Construct is valid syntax but not supported
	ErrCircularDependency Code = "E1012" // Actions depend on each other in a cycle

	// Validation errors (E2xxx) - problems with request input
	ErrValidation        Code = "E2001" // Request input failed validation
	ErrInvalidIdentifier Code = "E2002" // Identifier does not match allowed pattern
	ErrReservedWord      Code = "E2003" // Name is a reserved SQL keyword
	ErrInvalidReference  Code = "E2004" // Reference input does not resolve to a record

	// Resource errors (E3xxx) - problems locating or accessing records
	ErrNotFound     Code = "E3001" // Record does not exist
	ErrUnauthorized Code = "E3002" // Request is not authenticated
	ErrForbidden    Code = "E3003" // Request is authenticated but not allowed

	// SQL errors (E4xxx) - problems with database operations
	ErrSQLExecution   Code = "E4001" // SQL statement failed to execute
	ErrSQLConnection  Code = "E4002" // Database connection failed
	ErrSQLTransaction Code = "E4003" // Transaction operation failed
	ErrSchemaInvalid  Code = "E4004" // Generated table schema is invalid

	// Hook errors (E5xxx) - problems with JS hook execution
	ErrJSExecution Code = "E5001" // JavaScript execution failed
	ErrJSTimeout   Code = "E5002" // JavaScript execution timed out
	ErrHookFailed  Code = "E5003" // Hook raised a structured business error

	// Internal errors (E9xxx) - unexpected internal errors
	EInternalError Code = "E9001" // Internal error
	ErrBadOrder    Code = "E9002" // Alias read before the action producing it ran
)

// Error is the standard error type for Gaudi: a code, a message, structured
// context and an optional cause.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
}

func newError(code Code, msg string, cause error) *Error {
	return &Error{code: code, message: msg, context: make(map[string]any), cause: cause}
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return newError(code, msg, nil)
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an Error caused by err. A nil err gives a plain New.
func Wrap(code Code, err error, msg string) *Error {
	return newError(code, msg, err)
}

// WrapSQL creates an ErrSQLExecution error carrying the failed statement.
//
//	alerr.WrapSQL(err, "insert record", `INSERT INTO "org" ...`)
func WrapSQL(err error, op string, sql string) *Error {
	e := Wrap(ErrSQLExecution, err, "failed to "+op)
	if sql != "" {
		e.WithSQL(sql)
	}
	return e
}

// Error renders the code, message, sorted context and cause:
//
//	[E1003] cannot resolve "titel"
//	  model: Repo
//	  path: Repo.titel
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.code, e.message)
	for _, k := range slices.Sorted(maps.Keys(e.context)) {
		fmt.Fprintf(&b, "\n  %s: %v", k, e.context[k])
	}
	if e.cause != nil {
		fmt.Fprintf(&b, "\n  cause: %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.code == e.code
}

func (e *Error) GetCode() Code              { return e.code }
func (e *Error) GetMessage() string         { return e.message }
func (e *Error) GetContext() map[string]any { return e.context }
func (e *Error) GetCause() error            { return e.cause }

// -----------------------------------------------------------------------------
// Context
// -----------------------------------------------------------------------------

// With sets a context value and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

func (e *Error) WithModel(name string) *Error  { return e.With("model", name) }
func (e *Error) WithTable(name string) *Error  { return e.With("table", name) }
func (e *Error) WithColumn(name string) *Error { return e.With("db_column", name) }
func (e *Error) WithSQL(sql string) *Error     { return e.With("sql", sql) }

// WithPath records a dotted identifier path.
func (e *Error) WithPath(path []string) *Error {
	return e.With("path", strings.Join(path, "."))
}

// WithFile records the file and, when known, the line.
func (e *Error) WithFile(path string, line int) *Error {
	return e.WithLocation(path, line, 0)
}

// WithLocation records a blueprint position. Zero parts are left unset.
func (e *Error) WithLocation(file string, line, col int) *Error {
	if file != "" {
		e.With("file", file)
	}
	if line > 0 {
		e.With("line", line)
	}
	if col > 0 {
		e.With("column", col)
	}
	return e
}

// WithSource records the source line shown under the location.
func (e *Error) WithSource(source string) *Error {
	return e.With("source", source)
}

// WithSpan records the highlighted columns of the source line.
func (e *Error) WithSpan(start, end int) *Error {
	return e.With("span_start", start).With("span_end", end)
}

// WithNote appends a "note:" line.
func (e *Error) WithNote(note string) *Error {
	return e.appendText("notes", note)
}

// WithHelp appends a "help:" line. Empty text is ignored so callers can pass
// SuggestSimilar directly.
func (e *Error) WithHelp(help string) *Error {
	return e.appendText("helps", help)
}

func (e *Error) appendText(key, text string) *Error {
	if text == "" {
		return e
	}
	list, _ := e.context[key].([]string)
	return e.With(key, append(list, text))
}

// Location returns the recorded blueprint position; ok is false without a file.
func (e *Error) Location() (file string, line, col int, ok bool) {
	file, _ = e.context["file"].(string)
	line, _ = e.context["line"].(int)
	col, _ = e.context["column"].(int)
	return file, line, col, file != ""
}

func (e *Error) Notes() []string { return e.textList("notes") }
func (e *Error) Helps() []string { return e.textList("helps") }

func (e *Error) textList(key string) []string {
	list, _ := e.context[key].([]string)
	return list
}

// -----------------------------------------------------------------------------
// Inspection
// -----------------------------------------------------------------------------

// GetErrorCode returns the code of the first *Error in err's chain, or "".
func GetErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// Is reports whether err's chain carries code.
func Is(err error, code Code) bool {
	return code != "" && GetErrorCode(err) == code
}
