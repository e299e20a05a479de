// Package gaudi provides the public API of Gaudi: compiling blueprints into a
// Definition, creating its tables, running populators and serving its APIs.
package gaudi

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrMissingDatabaseURL is returned when no database URL is provided.
	ErrMissingDatabaseURL = errors.New("gaudi: database URL required")

	// ErrConnectionFailed is returned when the database connection fails.
	ErrConnectionFailed = errors.New("gaudi: connection failed")

	// ErrUnsupportedDialect is returned when the database dialect is not supported.
	ErrUnsupportedDialect = errors.New("gaudi: unsupported dialect")

	// ErrBlueprintInvalid is returned when the blueprint does not compile.
	ErrBlueprintInvalid = errors.New("gaudi: blueprint invalid")

	// ErrNoDatabase is returned by database operations of a schema-only client.
	ErrNoDatabase = errors.New("gaudi: no database connection")

	// ErrMigrationFailed is returned when the tables could not be created.
	ErrMigrationFailed = errors.New("gaudi: migration failed")
)

// BlueprintError reports a blueprint that failed to load or compile.
// The cause keeps its file location for diagnostics.
type BlueprintError struct {
	// Dir is the blueprint directory or compiled Definition file.
	Dir string

	// Cause is the underlying loader or composer error.
	Cause error
}

// Error returns a formatted error message.
func (e *BlueprintError) Error() string {
	return fmt.Sprintf("gaudi: %s: %v", e.Dir, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *BlueprintError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *BlueprintError) Is(target error) bool {
	return target == ErrBlueprintInvalid
}

// MigrationError provides detailed information about a failed migration.
type MigrationError struct {
	// Dialect is the database dialect (postgres, sqlite).
	Dialect string

	// Cause is the underlying error from the database driver.
	Cause error
}

// Error returns a formatted error message.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("gaudi: failed to create %s tables: %v", e.Dialect, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}

// ConnectionError provides detailed information about a database connection error.
type ConnectionError struct {
	// URL is the database URL (with password redacted).
	URL string

	// Dialect is the database dialect (postgres, sqlite).
	Dialect string

	// Cause is the underlying error from the database driver.
	Cause error
}

// Error returns a formatted error message.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gaudi: failed to connect to %s database %s: %v", e.Dialect, e.URL, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}
