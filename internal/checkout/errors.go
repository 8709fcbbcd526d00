package checkout

import (
	"github.com/go-faster/errors"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSubmissionInFlight is returned while a submission or confirmation
	// of the same session is being processed.
	ErrSubmissionInFlight = errors.New("submission already in progress")
	// ErrSessionClosed is returned when the session already finished.
	ErrSessionClosed = errors.New("checkout session is closed")
	// ErrNothingToConfirm is returned by Confirm outside the card flow.
	ErrNothingToConfirm = errors.New("no payment awaiting confirmation")
	// ErrUnknownMethod is returned for a payment method with no strategy.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrUnknownShipping is returned for a shipping option outside the table.
	ErrUnknownShipping = errors.New("unknown shipping option")
	// ErrOwnerRequired is returned when no cart owner is given.
	ErrOwnerRequired = errors.New("owner required")
)

// SubmitError is a failed submission or confirmation. Message is the single
// text shown to the customer.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return "checkout: " + e.Message + ": " + e.Err.Error()
}

func (e *SubmitError) Unwrap() error { return e.Err }
