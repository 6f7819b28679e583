package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorType classifies errors surfaced by the engine.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed or missing input.
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound indicates the entity does not exist or belongs to another clinic.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeInvalidTransition indicates a status change not reachable from the current state.
	ErrorTypeInvalidTransition ErrorType = "INVALID_TRANSITION"

	// ErrorTypeConcurrency indicates a write lost a race and may be retried.
	ErrorTypeConcurrency ErrorType = "CONCURRENCY"

	// ErrorTypeInternal indicates an unexpected failure.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error.
type AppError struct {
	Type    ErrorType
	Message string
	Fields  map[string]string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField attaches a per-field detail and returns the same error.
func (e *AppError) WithField(field, msg string) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, msg string) *AppError {
	e := &AppError{Type: ErrorTypeValidation, Message: "validation failed"}
	return e.WithField(field, msg)
}

// NewNotFoundError creates a not-found error for the given entity kind. The
// message is the same whether the row is missing or owned by another clinic.
func NewNotFoundError(entity string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found or does not belong to this clinic", entity),
	}
}

// NewInvalidTransitionError creates an error for a rejected status change.
func NewInvalidTransitionError(entity, from, to string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %q to %q", entity, from, to),
	}
}

// NewInvalidStateError reports a write refused because of the entity's
// current state rather than a specific status edge. It shares the
// invalid-transition type.
func NewInvalidStateError(message string) *AppError {
	return &AppError{Type: ErrorTypeInvalidTransition, Message: message}
}

// NewConcurrencyError creates a retryable concurrency error.
func NewConcurrencyError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeConcurrency, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not an AppError.
func TypeOf(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeInternal
}

func IsNotFound(err error) bool          { return err != nil && TypeOf(err) == ErrorTypeNotFound }
func IsValidation(err error) bool        { return err != nil && TypeOf(err) == ErrorTypeValidation }
func IsInvalidTransition(err error) bool { return err != nil && TypeOf(err) == ErrorTypeInvalidTransition }
func IsConcurrency(err error) bool       { return err != nil && TypeOf(err) == ErrorTypeConcurrency }

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidTransition, ErrorTypeConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts err into an echo.HTTPError. Internal causes are not
// exposed to the client.
func ToHTTPError(err error) *echo.HTTPError {
	var ae *AppError
	if !errors.As(err, &ae) || ae.Type == ErrorTypeInternal {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	body := map[string]interface{}{
		"error": ae.Message,
		"type":  ae.Type,
	}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	if ae.Type == ErrorTypeConcurrency {
		body["retryable"] = true
	}
	return echo.NewHTTPError(HTTPStatus(err), body)
}

// Wrap returns err unchanged when it already is an AppError and wraps it as
// an internal error otherwise.
func Wrap(message string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	return NewInternalError(message, err)
}

// Respond converts err for an echo handler and sets Retry-After on
// concurrency errors.
func Respond(c echo.Context, err error) error {
	if IsConcurrency(err) {
		c.Response().Header().Set("Retry-After", "1")
	}
	return ToHTTPError(err)
}
