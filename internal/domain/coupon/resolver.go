package coupon

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Applied is a coupon attached to a checkout.
type Applied struct {
	Code        string
	Percentage  decimal.Decimal
	Description string
	Amount      decimal.Decimal
}

// Amount returns subtotal * percentage / 100 rounded to pence.
func Amount(subtotal, percentage decimal.Decimal) decimal.Decimal {
	if subtotal.IsNegative() {
		return decimal.Zero
	}
	return subtotal.Mul(percentage).Div(hundred).Round(2)
}

// ClampPercentage limits a percentage to [0, 100].
func ClampPercentage(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Resolver holds the applied coupon of one checkout. Requests are ordered by
// when they were made: the response to an older request is discarded once a
// newer one has started.
type Resolver struct {
	validator Validator

	mu      sync.Mutex
	seq     uint64
	applied *Applied
}

// NewResolver creates a Resolver validating codes with v.
func NewResolver(v Validator) *Resolver {
	return &Resolver{validator: v}
}

// Apply validates code and, on success, replaces the applied coupon with it.
// An empty code clears the applied coupon. A rejected code also clears it and
// returns *Error with the message to show.
func (r *Resolver) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (*Applied, error) {
	code = NormalizeCode(code)

	r.mu.Lock()
	r.seq++
	ticket := r.seq
	if code == "" {
		r.applied = nil
		r.mu.Unlock()
		return nil, nil
	}
	r.mu.Unlock()

	grant, err := r.validator.Validate(ctx, code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket != r.seq {
		zctx.From(ctx).Debug("Discarding superseded coupon response", zap.String("code", code))
		return nil, ErrSuperseded
	}
	if err != nil {
		r.applied = nil
		return nil, rejection(code, err)
	}

	pct := ClampPercentage(grant.Percentage)
	if !pct.Equal(grant.Percentage) {
		zctx.From(ctx).Warn("Clamped coupon percentage",
			zap.String("code", code),
			zap.String("percentage", grant.Percentage.String()),
		)
	}
	r.applied = &Applied{
		Code:        code,
		Percentage:  pct,
		Description: grant.Description,
		Amount:      Amount(subtotal, pct),
	}
	applied := *r.applied
	return &applied, nil
}

// Current returns the applied coupon with its amount recomputed for subtotal,
// or nil when no coupon is applied.
func (r *Resolver) Current(subtotal decimal.Decimal) *Applied {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied == nil {
		return nil
	}
	applied := *r.applied
	applied.Amount = Amount(subtotal, applied.Percentage)
	return &applied
}

// Clear removes the applied coupon and discards any in-flight request.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.applied = nil
}
