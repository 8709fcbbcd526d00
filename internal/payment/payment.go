// Package payment implements the card, wallet and bank transfer backends that
// accept an order draft for payment.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

// GenericFailureMessage is shown when a backend fails without a usable message.
const GenericFailureMessage = "Something went wrong while placing your order. Please try again."

// Next tells the checkout what happens after a successful submission.
type Next string

const (
	// NextAwaitConfirmation means the customer must confirm the payment with
	// the processor before the order is paid.
	NextAwaitConfirmation Next = "await_confirmation"
	// NextRedirect means the customer leaves for the provider's approval page.
	NextRedirect Next = "redirect"
	// NextComplete means the order is accepted and nothing else is required.
	NextComplete Next = "complete"
)

// Request is a draft submitted to a backend.
type Request struct {
	Draft          *order.Draft
	IdempotencyKey string
}

// Submission is a backend's acknowledgement of a draft.
type Submission struct {
	OrderID      string
	OrderNumber  string
	PaymentRef   string
	Next         Next
	ClientSecret string
	RedirectURL  string
}

// Strategy submits drafts for one payment method.
type Strategy interface {
	Method() order.Method
	Submit(ctx context.Context, req Request) (*Submission, error)
}

// Confirmer is implemented by strategies with a confirmation step.
type Confirmer interface {
	Confirm(ctx context.Context, sub *Submission, ref string) error
}

// RejectedError is a refusal by a payment backend. Message is safe to show.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return "payment rejected: " + e.Message + ": " + e.Err.Error()
	}
	return "payment rejected: " + e.Message
}

func (e *RejectedError) Unwrap() error { return e.Err }

// UserMessage returns the text to show the customer for err.
func UserMessage(err error) string {
	var re *RejectedError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return GenericFailureMessage
}

// Ledger allocates order identifiers and records accepted orders. Retries with
// the same idempotency key reuse the identifiers of the first attempt.
type Ledger struct {
	orders order.Repository
	ids    order.IDGenerator
	now    func() time.Time
}

// NewLedger creates a Ledger over orders.
func NewLedger(orders order.Repository) *Ledger {
	return &Ledger{orders: orders, now: time.Now}
}

// reserve returns the id and number to use for key.
func (l *Ledger) reserve(ctx context.Context, key string) (id, number string, err error) {
	existing, err := l.orders.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return existing.ID, existing.Number, nil
	case errors.Is(err, order.ErrNotFound):
	default:
		return "", "", errors.Wrap(err, "find order by idempotency key")
	}

	now := l.now()
	id = l.ids.NewID(now)
	return id, order.Number(now, id), nil
}

func (l *Ledger) record(ctx context.Context, o *order.Order) (*order.Order, error) {
	now := l.now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	saved, err := l.orders.Create(ctx, o)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return saved, nil
}
