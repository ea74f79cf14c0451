// Package ferrors is the structured error model shared across the
// platform. Every failure that crosses a package boundary is (or wraps)
// an *Error, so the HTTP layer can render a single, consistent
// OperationOutcome without each handler re-deriving issue codes.
package ferrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure the way spec §7 does, independent of any
// particular transport.
type Kind string

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not-found"
	Forbidden    Kind = "forbidden"
	Conflict     Kind = "conflict"
	NotSupported Kind = "not-supported"
	Security     Kind = "security"
	Exception    Kind = "exception"
)

// Severity mirrors FHIR's OperationOutcome.issue.severity values.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Error is the single error type every platform package returns for
// caller-visible failures.
type Error struct {
	Kind       Kind
	Code       string
	Severity   Severity
	Diagnostic string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Diagnostic, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus derives the HTTP status code for e per spec §7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Invalid:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Security:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newErr(kind Kind, code string, severity Severity, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Severity: severity, Diagnostic: fmt.Sprintf(format, args...)}
}

// Invalidf builds an Invalid error with FHIR issue code "invalid" (or a
// more specific one when callers need structure-vs-value granularity).
func Invalidf(code, format string, args ...any) *Error {
	if code == "" {
		code = "invalid"
	}
	return newErr(Invalid, code, SeverityError, format, args...)
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return newErr(NotFound, "not-found", SeverityError, format, args...)
}

// Forbiddenf builds a Forbidden error.
func Forbiddenf(format string, args ...any) *Error {
	return newErr(Forbidden, "forbidden", SeverityError, format, args...)
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return newErr(Conflict, "conflict", SeverityError, format, args...)
}

// NotSupportedf builds a NotSupported error.
func NotSupportedf(format string, args ...any) *Error {
	return newErr(NotSupported, "not-supported", SeverityError, format, args...)
}

// Securityf builds a Security error (weak password, bad credentials).
func Securityf(format string, args ...any) *Error {
	return newErr(Security, "security", SeverityError, format, args...)
}

// InvalidConnectionf builds an Exception-kind error for the indexing
// worker's fatal condition (spec §4.4): a tenant-lock call made outside
// a transaction.
func InvalidConnectionf(format string, args ...any) *Error {
	e := newErr(Exception, "invalid-connection", SeverityFatal, format, args...)
	return e
}

// Wrap converts an arbitrary internal error (driver failure, search
// engine failure) into an Exception-kind *Error, preserving the cause
// for errors.Is/As and logs.
func Wrap(cause error, format string, args ...any) *Error {
	e := newErr(Exception, "exception", SeverityFatal, format, args...)
	e.cause = cause
	return e
}

// As attempts to unwrap err into *Error, the same way errors.As would.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FromError normalizes any error into an *Error, wrapping unrecognized
// ones as Exception.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(err, "unexpected error")
}

// Issue is a single FHIR OperationOutcome.issue entry.
type Issue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// OperationOutcome is the minimal FHIR R4 OperationOutcome envelope this
// platform emits: one issue per error, which is all the pipeline ever
// constructs in practice.
type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue"`
}

// ToOperationOutcome serializes e into the FHIR error envelope.
func (e *Error) ToOperationOutcome() *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []Issue{{
			Severity:    string(e.Severity),
			Code:        e.Code,
			Diagnostics: e.Diagnostic,
		}},
	}
}
