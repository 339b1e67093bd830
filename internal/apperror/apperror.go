// Package apperror holds the error kinds shared by the repository, the
// webhook pipeline and the HTTP handlers, plus the normalizer that turns any
// failure value into a stable message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrMissingHeaders   = errors.New("missing headers")
	ErrMalformedBody    = errors.New("malformed body")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrRepository       = errors.New("repository error")
)

// AppError pairs an error kind with a human-readable message.
type AppError struct {
	Err     error // kind, one of the sentinels above
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(message string) *AppError {
	return &AppError{Err: ErrNotFound, Message: message}
}

func Validation(message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message}
}

func Configuration(message string) *AppError {
	return &AppError{Err: ErrConfiguration, Message: message}
}

func MissingHeaders(message string) *AppError {
	return &AppError{Err: ErrMissingHeaders, Message: message}
}

func MalformedBody(cause error) *AppError {
	return &AppError{Err: ErrMalformedBody, Message: "malformed request body", Cause: cause}
}

func SignatureInvalid(cause error) *AppError {
	return &AppError{Err: ErrSignatureInvalid, Message: "signature verification failed", Cause: cause}
}

// Repository wraps a storage failure. The message is the normalized cause so
// callers can report it as data without holding on to driver types.
func Repository(op string, cause error) *AppError {
	return &AppError{Err: ErrRepository, Message: op + ": " + Message(cause), Cause: cause}
}

// Message converts heterogeneous failure values into a stable string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		msgs := make([]string, 0, len(we.WriteErrors))
		for _, e := range we.WriteErrors {
			msgs = append(msgs, e.Message)
		}
		if we.WriteConcernError != nil {
			msgs = append(msgs, we.WriteConcernError.Message)
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingHeaders),
		errors.Is(err, ErrMalformedBody),
		errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
