package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/pricing"
	"github.com/xenking/rig-checkout/internal/domain/shipping"
)

// Quote is the priced view of a session.
type Quote struct {
	SessionID       string
	State           State
	Error           string
	Cart            cart.Result
	Build           buildservice.Selection
	Shipping        shipping.Option
	ShippingOptions []shipping.Option
	Coupon          *coupon.Applied
	Breakdown       pricing.Breakdown
	Outcome         *Outcome
}

// Options are the customer's build service and shipping selections.
type Options struct {
	BuildTier     string
	SelfAssembled bool
	Shipping      string
}

// Quote prices the session against the owner's current cart.
func (s *Service) Quote(ctx context.Context, id string) (*Quote, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, sess)
}

func (s *Service) quote(ctx context.Context, sess *Session) (*Quote, error) {
	raw, err := s.loadCart(ctx, sess.Owner)
	if err != nil {
		return nil, err
	}
	snap := sess.snapshot()
	return price(sess, snap, cart.Normalize(ctx, raw))
}

// price runs the pricing stages in order: build service, coupon, shipping,
// totals.
func price(sess *Session, snap snapshot, c cart.Result) (*Quote, error) {
	build, err := buildservice.Select(c.Items, snap.choice)
	if err != nil {
		return nil, err
	}
	ship := shipping.MustLookup(snap.shipping)

	subtotal := c.Subtotal.Add(build.Fee())
	applied := sess.coupons.Current(subtotal)
	discount := decimal.Zero
	if applied != nil {
		discount = applied.Amount
	}

	return &Quote{
		SessionID:       sess.ID,
		State:           snap.state,
		Error:           snap.lastErr,
		Cart:            c,
		Build:           build,
		Shipping:        ship,
		ShippingOptions: shipping.Options(),
		Coupon:          applied,
		Breakdown: pricing.Calculate(pricing.Input{
			Components:  c.Subtotal,
			BuildFee:    build.Fee(),
			Discount:    discount,
			ShippingFee: ship.Cost,
		}),
		Outcome: snap.outcome,
	}, nil
}

// SetOptions changes the build service and shipping selections. Unknown ids
// are rejected and leave the session unchanged.
func (s *Service) SetOptions(ctx context.Context, id string, opts Options) (*Quote, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	shipID := opts.Shipping
	if shipID == "" {
		shipID = shipping.DefaultID
	}
	if _, ok := shipping.Lookup(shipID); !ok {
		return nil, errors.Wrapf(ErrUnknownShipping, "shipping %q", opts.Shipping)
	}
	choice := buildservice.Choice{TierID: opts.BuildTier, SelfAssembled: opts.SelfAssembled}
	if _, err := buildservice.Select(nil, choice); err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if err := sess.checkMutable(); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.choice = choice
	sess.shipping = shipID
	sess.mu.Unlock()

	return s.quote(ctx, sess)
}

// ApplyCoupon validates code against the current subtotal including the
// build service fee. An empty code removes the coupon. A rejected code
// removes any applied coupon and returns *coupon.Error.
func (s *Service) ApplyCoupon(ctx context.Context, id, code string) (*Quote, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	err = sess.checkMutable()
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	q, err := s.quote(ctx, sess)
	if err != nil {
		return nil, err
	}
	if _, err := sess.coupons.Apply(ctx, code, q.Breakdown.Subtotal); err != nil {
		return nil, err
	}
	return s.quote(ctx, sess)
}
