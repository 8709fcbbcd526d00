package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

// BankTransfer records the order as pending verification. Payment is checked
// by staff when the transfer arrives.
type BankTransfer struct {
	ledger *Ledger
	orders order.Repository
}

// NewBankTransfer creates a BankTransfer strategy.
func NewBankTransfer(ledger *Ledger, orders order.Repository) *BankTransfer {
	return &BankTransfer{ledger: ledger, orders: orders}
}

// Method implements Strategy.
func (b *BankTransfer) Method() order.Method { return order.MethodBankTransfer }

// Submit records the order and completes immediately. The order id is the
// payment reference the customer quotes on the transfer.
func (b *BankTransfer) Submit(ctx context.Context, req Request) (*Submission, error) {
	id, number, err := b.ledger.reserve(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	o := order.NewOrder(id, number, order.MethodBankTransfer, order.StatusPendingVerification, req.Draft, req.IdempotencyKey)
	o.PaymentRef = id
	saved, err := b.ledger.record(ctx, o)
	if err != nil {
		return nil, err
	}

	return &Submission{
		OrderID:     saved.ID,
		OrderNumber: saved.Number,
		PaymentRef:  saved.PaymentRef,
		Next:        NextComplete,
	}, nil
}

// Verify marks a bank transfer order as paid once the money has arrived.
func (b *BankTransfer) Verify(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := b.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Method != order.MethodBankTransfer || !order.CanTransition(o.Status, order.StatusPaid) {
		return nil, errors.Wrapf(order.ErrInvalidTransition, "%s order in status %s", o.Method, o.Status)
	}
	if err := b.orders.UpdateStatus(ctx, o.ID, order.StatusPaid); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	o.Status = order.StatusPaid
	return o, nil
}
