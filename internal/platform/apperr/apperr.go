// Package apperr defines the error taxonomy shared by the record engines,
// the store backends and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrUnknownRole is returned when a user authenticates successfully but
	// their role has no dashboard.
	ErrUnknownRole = errors.New("your account has no dashboard assigned, contact the administrator")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError reports user input that is missing or malformed. It is
// always returned before any write is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Required is shorthand for the most common validation failure.
func Required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// StoreError wraps a failure of the record store collaborator.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore wraps err as a StoreError unless it already carries a more
// specific classification.
func WrapStore(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var se *StoreError
	if errors.Is(err, ErrNotFound) || errors.As(err, &ve) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}

// PartialWriteError reports a multi-step write that failed at Step after
// earlier steps were applied and could not be undone.
type PartialWriteError struct {
	Step string
	Err  error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write, failed at %s: %v", e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HTTP maps an error from the service layer to an echo HTTP error.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ve *ValidationError
	var se *StoreError
	var pw *PartialWriteError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownRole):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.As(err, &pw):
		return echo.NewHTTPError(http.StatusConflict, pw.Error())
	case errors.As(err, &se):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "record store unavailable, please retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
