package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindIntegrity     Kind = "integrity"
)

// Error is the structured failure returned by every mutating operation.
// Entity names the line, component or sequence that caused it when known.
type Error struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
	Entity string `json:"entity,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Reason, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(entity, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...), Entity: entity}
}

func Authorization(entity, format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Reason: fmt.Sprintf(format, args...), Entity: entity}
}

func Conflict(entity, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...), Entity: entity}
}

func NotFound(entity, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...), Entity: entity}
}

func Integrity(entity, format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Reason: fmt.Sprintf(format, args...), Entity: entity}
}

// FromDB classifies a gorm error. Errors that are already *Error pass through.
func FromDB(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Reason: "record not found", Entity: entity, Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindIntegrity, Reason: "duplicate record", Entity: entity, Err: err}
	}
	return err
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Status maps an error to the HTTP status the controllers answer with.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict, KindIntegrity:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
