package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindPermission
	KindConflict
	KindExternalService
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindExternalService:
		return "external_service"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Error is returned by every core operation whose failure the caller can act on.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable is true for failures of an external dependency; nothing was committed.
func (e *Error) Retryable() bool { return e.Kind == KindExternalService }

func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func PermissionError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ExternalServiceError(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternalService, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of a service error, or 0 for anything else.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// notFoundOr turns gorm.ErrRecordNotFound into a NotFound error and wraps anything else.
func notFoundOr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError("%s %d not found", what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

// duplicateKeyMessages are the untranslated duplicate-key errors of the
// sqlite, mysql and postgres drivers.
var duplicateKeyMessages = []string{
	"UNIQUE constraint failed",
	"Error 1062",
	"duplicate key value violates unique constraint",
}

// isUniqueViolation detects duplicate-key errors, including drivers that do not translate them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	for _, msg := range duplicateKeyMessages {
		if strings.Contains(s, msg) {
			return true
		}
	}
	return false
}
