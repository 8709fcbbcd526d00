// Package order assembles checkout drafts and defines the persisted order record.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Currency is the only currency orders are taken in.
const Currency = "GBP"

// Country is the only country orders ship to.
const Country = "GB"

// Method is a payment method.
type Method string

const (
	MethodCard         Method = "card"
	MethodWallet       Method = "wallet"
	MethodBankTransfer Method = "bank_transfer"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodBankTransfer:
		return true
	}
	return false
}

// Status is the lifecycle state of a persisted order.
type Status string

const (
	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusPendingVerification Status = "pending_verification"
	StatusPaid                Status = "paid"
	StatusFailed              Status = "failed"
)

var transitions = map[Status][]Status{
	StatusAwaitingPayment:     {StatusPaid, StatusFailed},
	StatusPendingVerification: {StatusPaid, StatusFailed},
	StatusFailed:              {StatusPaid},
}

// ClaimsCoupon reports whether an order in status has used up its coupon.
// Card and wallet orders awaiting payment have not.
func (s Status) ClaimsCoupon() bool {
	return s == StatusPendingVerification || s == StatusPaid
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Item is an order line. Build service fees appear as an item with
// category BuildServiceCategory.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// LineTotal returns unit price multiplied by quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a submitted checkout as stored by the order backend.
type Order struct {
	ID             string
	Number         string
	Method         Method
	Status         Status
	PaymentRef     string
	Currency       string
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	BuildService   string
	ShippingMethod string
	Email          string
	Items          []Item
	Address        Address
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o. When an order with the same idempotency key already
	// exists, that order is returned instead and nothing is written.
	Create(ctx context.Context, o *Order) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	SetPaymentRef(ctx context.Context, id, ref string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
}
