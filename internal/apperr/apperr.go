// Package apperr defines the error taxonomy shared by the job portal services
// and the HTTP layer that maps it onto status codes.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/go-errors/errors"
)

// Type classifies an Error for the transport layer.
type Type string

const (
	// TypeValidation means one or more fields failed schema checks.
	TypeValidation Type = "VALIDATION"
	// TypeNotFound means the referenced record does not exist.
	TypeNotFound Type = "NOT_FOUND"
	// TypeUnauthorized means the caller presented no valid credential.
	TypeUnauthorized Type = "UNAUTHORIZED"
	// TypeStore means the document store was unreachable or rejected the operation.
	TypeStore Type = "STORE"
	// TypeUnavailable means an optional collaborator is not configured or not reachable.
	TypeUnavailable Type = "UNAVAILABLE"
)

// Error is a classified application error.
type Error struct {
	Type    Type
	Message string
	// Fields maps a field name to a human-readable reason. Only set for TypeValidation.
	Fields map[string]string
	Err    error
	Stack  []byte
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error, capturing a stack trace at the caller.
func New(t Type, message string, err error) *Error {
	var stack []byte
	if err != nil {
		var ge *goerrors.Error
		if errors.As(err, &ge) {
			stack = ge.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}
	return &Error{Type: t, Message: message, Err: err, Stack: stack}
}

// Validation returns a validation error carrying per-field reasons.
func Validation(fields map[string]string) *Error {
	return &Error{Type: TypeValidation, Message: "validation failed", Fields: fields}
}

// NotFound returns a not-found error.
func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

// Unauthorized returns an unauthorized error.
func Unauthorized(message string, err error) *Error {
	return &Error{Type: TypeUnauthorized, Message: message, Err: err}
}

// Store wraps a document store failure. The stack is kept for server-side logs.
func Store(message string, err error) *Error {
	return New(TypeStore, message, err)
}

// Unavailable returns an error for a collaborator that cannot serve the request.
func Unavailable(message string, err error) *Error {
	return &Error{Type: TypeUnavailable, Message: message, Err: err}
}

// TypeOf returns the Type of the first *Error in err's chain, or "" when there is none.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether err carries an *Error of type t.
func Is(err error, t Type) bool {
	return TypeOf(err) == t
}

// FieldsOf returns the field reasons of a validation error, or nil.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
