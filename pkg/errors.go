// Package pkg holds cross-cutting error types shared by every layer,
// mirroring the teacher's common/errors.go.
package pkg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kestrelhq/nlsql/pkg/constant"
)

// EntityNotFoundError indicates a lookup (DB, cache, pack store...) came up
// empty for the given entity type.
type EntityNotFoundError struct {
	EntityType string
	Code       string
	Title      string
	Message    string
	Err        error
}

func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}

	if e.EntityType != "" {
		return fmt.Sprintf("entity %s not found", e.EntityType)
	}

	return "entity not found"
}

func (e EntityNotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates the request or configuration failed a semantic
// check (as opposed to struct-tag validation, see ValidationKnownFieldsError).
type ValidationError struct {
	EntityType string
	Code       string
	Title      string
	Message    string
	Err        error
}

func (e ValidationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

func (e ValidationError) Unwrap() error { return e.Err }

// EntityConflictError indicates a uniqueness constraint was violated.
type EntityConflictError struct {
	EntityType string
	Code       string
	Title      string
	Message    string
	Err        error
}

func (e EntityConflictError) Error() string { return e.Message }
func (e EntityConflictError) Unwrap() error { return e.Err }

// UnauthorizedError indicates the caller presented no usable credentials.
type UnauthorizedError struct {
	Code    string
	Title   string
	Message string
}

func (e UnauthorizedError) Error() string { return e.Message }

// ForbiddenError indicates the caller is authenticated but lacks the scope
// or ownership required for the operation.
type ForbiddenError struct {
	Code    string
	Title   string
	Message string
}

func (e ForbiddenError) Error() string { return e.Message }

// UnprocessableOperationError indicates a semantically invalid request that
// isn't a simple validation failure (e.g. deleting a terminal request twice).
type UnprocessableOperationError struct {
	EntityType string
	Code       string
	Title      string
	Message    string
	Err        error
}

func (e UnprocessableOperationError) Error() string { return e.Message }
func (e UnprocessableOperationError) Unwrap() error  { return e.Err }

// InternalServerError wraps an unexpected failure for a uniform 500 body.
type InternalServerError struct {
	EntityType string
	Code       string
	Title      string
	Message    string
	Err        error
}

func (e InternalServerError) Error() string { return e.Message }
func (e InternalServerError) Unwrap() error { return e.Err }

// ValidateInternalError wraps any error as an InternalServerError suitable
// for returning to a caller without leaking internals.
func ValidateInternalError(err error, entityType string) error {
	return InternalServerError{
		EntityType: entityType,
		Code:       constant.ErrInternalServer.Error(),
		Title:      "Internal Server Error",
		Message:    "The server encountered an unexpected error. Please try again later.",
		Err:        err,
	}
}

// ValidateBusinessError maps a sentinel error from pkg/constant to the
// appropriate typed, user-facing error.
//
//nolint:gocyclo
func ValidateBusinessError(err error, entityType string, args ...any) error {
	switch {
	case errors.Is(err, constant.ErrEntityNotFound), errors.Is(err, constant.ErrSessionNotFound),
		errors.Is(err, constant.ErrRequestNotFound), errors.Is(err, constant.ErrQueryNotFound),
		errors.Is(err, constant.ErrChartNotFound):
		return EntityNotFoundError{
			EntityType: entityType,
			Code:       err.Error(),
			Title:      "Entity Not Found",
			Message:    fmt.Sprintf("No %s was found for the given identifier.", entityType),
			Err:        err,
		}
	case errors.Is(err, constant.ErrForbiddenOwnership), errors.Is(err, constant.ErrMissingScope):
		return ForbiddenError{
			Code:    err.Error(),
			Title:   "Forbidden",
			Message: "You do not have permission to access this resource.",
		}
	case errors.Is(err, constant.ErrTokenMissing), errors.Is(err, constant.ErrInvalidToken):
		return UnauthorizedError{
			Code:    err.Error(),
			Title:   "Unauthorized",
			Message: "A valid bearer token is required.",
		}
	case errors.Is(err, constant.ErrSequenceConflict):
		return EntityConflictError{
			EntityType: entityType,
			Code:       err.Error(),
			Title:      "Sequence Conflict",
			Message:    "Another request was concurrently allocated the same sequence number; retry.",
			Err:        err,
		}
	case errors.Is(err, constant.ErrTerminalRequest):
		return UnprocessableOperationError{
			EntityType: entityType,
			Code:       err.Error(),
			Title:      "Request Already Terminal",
			Message:    "This request has already reached a terminal status and cannot be changed.",
			Err:        err,
		}
	case errors.Is(err, constant.ErrNoSQLProduced):
		return ValidationError{
			EntityType: entityType,
			Code:       err.Error(),
			Title:      "No SQL Produced",
			Message:    "The model did not return SQL or a direct result for this request.",
			Err:        err,
		}
	default:
		return ValidateInternalError(err, entityType)
	}
}

// IsNilOrEmpty reports whether a *string is nil or holds only whitespace.
func IsNilOrEmpty(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// IsNotFound reports whether err is (or wraps) an EntityNotFoundError,
// letting callers distinguish "doesn't exist" from other failures (e.g.
// forbidden) without depending on pkg/constant's sentinels directly.
func IsNotFound(err error) bool {
	var notFound EntityNotFoundError
	return errors.As(err, &notFound)
}
