// Package coupon resolves percentage-off codes into an applied discount.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCoupon is returned when a code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrSuperseded is returned by Resolver.Apply when a newer request was
	// made before this one finished. Its result is discarded.
	ErrSuperseded = errors.New("coupon request superseded")
)

var userMessages = map[error]string{
	ErrInvalidCoupon:           "This coupon code is not valid.",
	ErrCouponExpired:           "This coupon has expired.",
	ErrCouponUsageLimitReached: "This coupon is no longer available.",
}

const genericMessage = "We couldn't check this coupon right now. Please try again."

// Rule is a stored coupon definition.
type Rule struct {
	Code        string
	Percentage  decimal.Decimal
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
	Active      bool
}

// Grant is a successful validation: the percentage a code is worth.
type Grant struct {
	Code        string
	Percentage  decimal.Decimal
	Description string
}

// Repository provides lookup of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Validator is the authority that decides whether a code is valid.
type Validator interface {
	Validate(ctx context.Context, code string) (*Grant, error)
}

// Error is a coupon rejection carrying the text shown to the customer.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return "coupon " + e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NormalizeCode trims and upper-cases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func rejection(code string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	for sentinel, msg := range userMessages {
		if errors.Is(err, sentinel) {
			return &Error{Code: code, Message: msg, Err: err}
		}
	}
	return &Error{Code: code, Message: genericMessage, Err: err}
}
