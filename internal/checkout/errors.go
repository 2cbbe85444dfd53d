package checkout

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the visitor. Each carries a localized message.
var (
	ErrIntentCreation   = errors.New("checkout: payment intent could not be created")
	ErrPaymentFailed    = errors.New("checkout: payment failed")
	ErrPaymentCancelled = errors.New("checkout: payment cancelled")
)

// Protocol errors returned when a caller acts on the wrong attempt or state.
var (
	ErrStaleAttempt      = errors.New("checkout: attempt is no longer current")
	ErrInvalidTransition = errors.New("checkout: transition not allowed from current state")
	ErrCaptureInFlight   = errors.New("checkout: capture already in flight")
)

// Error is a visitor-facing checkout failure. errors.Is matches Kind, and
// Unwrap exposes the underlying provider error.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Code is the short machine-readable name of the error kind.
func (e *Error) Code() string {
	switch e.Kind {
	case ErrIntentCreation:
		return "intent_creation_failed"
	case ErrPaymentFailed:
		return "payment_failed"
	case ErrPaymentCancelled:
		return "payment_cancelled"
	}
	return "checkout_error"
}
