package app

import (
	"errors"
	"fmt"

	"github.com/hylla/ewtrail/internal/domain"
)

// Error kinds surfaced by custody operations. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = domain.ErrInvalidTransition
	ErrMismatch           = errors.New("mismatch")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrInvalidInput       = errors.New("invalid input")
)

// Error carries a kind plus the structured detail needed to render a precise message.
type Error struct {
	Kind    error
	Code    string
	Message string
	Details map[string]any
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

func notFound(code, entity, id string) *Error {
	return newError(ErrNotFound, code, entity+" not found", map[string]any{"id": id})
}

// missing turns a repository ErrNotFound into a coded NotFound error.
func missing(err error, code, entity, id string) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(code, entity, id)
	}
	return err
}

// invalidInput maps domain validation failures to ErrInvalidInput.
func invalidInput(err error) error {
	if err == nil {
		return nil
	}
	return newError(ErrInvalidInput, "INVALID_INPUT", err.Error(), nil)
}

// transitionFailed wraps a validator rejection with the pickup identity.
func transitionFailed(pickupID string, err error) error {
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	return newError(ErrInvalidTransition, "INVALID_PICKUP_TRANSITION", te.Error(), map[string]any{
		"pickupId": pickupID,
		"from":     string(te.From),
		"to":       string(te.To),
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind labels returned by KindName.
const (
	KindNotFound           = "not_found"
	KindInvalidTransition  = "invalid_transition"
	KindMismatch           = "mismatch"
	KindPreconditionFailed = "precondition_failed"
	KindIntegrityViolation = "integrity_violation"
	KindInvalidInput       = "invalid_input"
	KindInternal           = "internal"
)

// KindName maps an error onto a stable snake_case kind label. Nil maps to "".
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrMismatch):
		return KindMismatch
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrIntegrityViolation):
		return KindIntegrityViolation
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
