// Package apperr carries the error kinds raised by forms and displays: input
// errors that move focus to a field, query failures with the reporting site,
// not-found conditions and user cancellations.
package apperr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies an operation failure.
type Kind int

const (
	// KindQuery is a SQL error or an unexpected stored procedure result.
	KindQuery Kind = iota
	// KindInput is a missing or invalid field.
	KindInput
	// KindNotFound is an expected row that does not exist.
	KindNotFound
	// KindCanceled is a collaborator that was rejected by the user.
	KindCanceled
	// KindForbidden is an action the caller lacks the privilege for.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is an operation failure reported once to the user.
type Error struct {
	Kind    Kind
	Title   string
	Message string
	// Field receives focus for input errors.
	Field string
	Err   error
	File  string
	Line  int
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Title == "" {
		return msg
	}
	if msg == "" {
		return e.Title
	}
	return e.Title + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Location returns the reporting site as file:line.
func (e *Error) Location() string {
	if e.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.File, e.Line)
}

func newError(kind Kind, title, message, field string, err error) *Error {
	e := &Error{Kind: kind, Title: title, Message: message, Field: field, Err: err}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}

// Input returns a validation error that moves focus to field.
func Input(title, message, field string) *Error {
	return newError(KindInput, title, message, field, nil)
}

// Query wraps a database failure.
func Query(title string, err error) *Error {
	return newError(KindQuery, title, "", "", err)
}

// Queryf reports an unexpected result that carries no underlying error.
func Queryf(title, format string, args ...any) *Error {
	return newError(KindQuery, title, fmt.Sprintf(format, args...), "", nil)
}

// NotFound reports a missing row.
func NotFound(title, message string) *Error {
	return newError(KindNotFound, title, message, "", nil)
}

// Canceled reports a clean abort after the user rejected a collaborator.
func Canceled(title, message string) *Error {
	return newError(KindCanceled, title, message, "", nil)
}

// Forbidden reports a missing privilege.
func Forbidden(privilege string) *Error {
	return newError(KindForbidden, "Permission Denied", "requires privilege "+privilege, "", nil)
}

// KindOf returns the kind of err, or KindQuery when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindQuery
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
