package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrSubmission       = errors.New("submission error")
	ErrProtocol         = errors.New("protocol error")
	ErrPolling          = errors.New("polling error")
	ErrResult           = errors.New("result error")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrTemporary        = errors.New("temporary failure")
)

// Error is a user-facing failure. Error() returns only the message shown in
// the status region; the kind and the cause stay reachable through errors.Is/As.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewError(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the kind of the outermost *Error, falling back to the
// first known kind found in the chain.
func KindOf(err error) error {
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != nil {
		return typed.Kind
	}
	for _, kind := range []error{
		ErrValidation,
		ErrSubmission,
		ErrProtocol,
		ErrPolling,
		ErrResult,
		ErrMalformedPayload,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
