package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sharebite/auth-service/internal/repository"
)

var (
	// ErrInvalidInput marks caller mistakes: missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("email or username already in use")
	// ErrInvalidCredentials is the single message for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when the target account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnavailable is returned when a dependency timed out; callers may retry.
	ErrUnavailable = errors.New("service temporarily unavailable")
	// ErrInternal hides store and infrastructure failures from clients.
	ErrInternal = errors.New("internal error")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field violation found in a request.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when it holds at least one violation.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// storeError maps a repository failure onto the service taxonomy. The
// original error stays in the chain for logging.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errors.Join(ErrUserNotFound, err)
	case errors.Is(err, repository.ErrDuplicate):
		return errors.Join(ErrConflict, err)
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errors.Join(ErrUnavailable, err)
	default:
		return errors.Join(ErrInternal, err)
	}
}
