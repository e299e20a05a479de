package alerr

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Class is the runtime classification of an error.
// It decides the HTTP status and whether details may reach a client.
type Class int

const (
	ClassServer Class = iota
	ClassValidation
	ClassNotFound
	ClassUnauthorized
	ClassForbidden
	ClassBusiness
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not-found"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassForbidden:
		return "forbidden"
	case ClassBusiness:
		return "business"
	default:
		return "server"
	}
}

// Classify maps an error chain to its runtime class.
// Anything without a recognised code is a server error.
func Classify(err error) Class {
	switch GetErrorCode(err) {
	case ErrValidation, ErrInvalidReference:
		return ClassValidation
	case ErrNotFound:
		return ClassNotFound
	case ErrUnauthorized:
		return ClassUnauthorized
	case ErrForbidden:
		return ClassForbidden
	case ErrHookFailed:
		return ClassBusiness
	default:
		return ClassServer
	}
}

// HTTPStatus returns the status code a client should see for err.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	case ClassUnauthorized:
		return http.StatusUnauthorized
	case ClassForbidden:
		return http.StatusForbidden
	case ClassBusiness:
		var e *Error
		if errors.As(err, &e) {
			if status, ok := e.context["status"].(int); ok && status >= 400 && status < 600 {
				return status
			}
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client.
// Server errors collapse to an opaque text.
func PublicMessage(err error) string {
	if Classify(err) == ClassServer {
		return "internal server error"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.message
	}
	return err.Error()
}

// NewBusiness creates a hook-raised error carrying an explicit HTTP status.
func NewBusiness(status int, msg string) *Error {
	e := New(ErrHookFailed, msg)
	e.With("status", status)
	return e
}

// IsCanceled reports whether err stems from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// -----------------------------------------------------------------------------
// Validation issues
// -----------------------------------------------------------------------------

// FieldIssue is one problem with a request input, tagged by its fieldset path.
type FieldIssue struct {
	Path    []string       `json:"path"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Key returns the dotted fieldset path.
func (f FieldIssue) Key() string {
	return strings.Join(f.Path, ".")
}

// ValidationErrors collects field issues for one request.
// The zero value is ready to use.
type ValidationErrors struct {
	issues []FieldIssue
}

// Add records an issue at path.
func (v *ValidationErrors) Add(path []string, code, msg string) {
	v.issues = append(v.issues, FieldIssue{Path: append([]string(nil), path...), Code: code, Message: msg})
}

// AddIssue records a prepared issue.
func (v *ValidationErrors) AddIssue(issue FieldIssue) {
	v.issues = append(v.issues, issue)
}

// Merge appends every issue of other.
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other != nil {
		v.issues = append(v.issues, other.issues...)
	}
}

// Len returns the number of collected issues.
func (v *ValidationErrors) Len() int {
	return len(v.issues)
}

// Issues returns the collected issues in insertion order.
func (v *ValidationErrors) Issues() []FieldIssue {
	return v.issues
}

// Err returns nil when no issue was recorded, otherwise an ErrValidation
// error carrying the issues.
func (v *ValidationErrors) Err() error {
	if len(v.issues) == 0 {
		return nil
	}
	e := New(ErrValidation, "request validation failed")
	e.With("issues", v.issues)
	return e
}

// Issues extracts the field issues carried by a validation error.
func Issues(err error) []FieldIssue {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	issues, _ := e.context["issues"].([]FieldIssue)
	return issues
}
