package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/domain/pricing"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

var _ Confirmer = (*Card)(nil)

// Card takes card payments through Stripe PaymentIntents. The order is
// recorded once the intent exists and is paid after Confirm.
type Card struct {
	intents stripeIntentAPI
	ledger  *Ledger
	orders  order.Repository
}

// NewCard creates a Card strategy using the Stripe secret key.
func NewCard(secretKey string, backends *stripe.Backends, ledger *Ledger, orders order.Repository) (*Card, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	sc := client.New(key, backends)
	return newCard(sc.PaymentIntents, ledger, orders), nil
}

func newCard(intents stripeIntentAPI, ledger *Ledger, orders order.Repository) *Card {
	return &Card{intents: intents, ledger: ledger, orders: orders}
}

// Method implements Strategy.
func (c *Card) Method() order.Method { return order.MethodCard }

// Submit creates a payment intent for the draft and records the order as
// awaiting payment. No order is recorded when Stripe refuses the intent.
func (c *Card) Submit(ctx context.Context, req Request) (*Submission, error) {
	d := req.Draft
	id, number, err := c.ledger.reserve(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pricing.MinorUnits(d.Total)),
		Currency: stripe.String(strings.ToLower(d.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		ReceiptEmail: stripe.String(d.Customer.Email),
		Description:  stripe.String("Order " + number),
		Shipping: &stripe.ShippingDetailsParams{
			Name:  stripe.String(d.Address.Name),
			Phone: stripe.String(d.Address.Phone),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(d.Address.Line1),
				Line2:      optional(d.Address.Line2),
				City:       stripe.String(d.Address.City),
				State:      optional(d.Address.County),
				PostalCode: stripe.String(d.Address.Postcode),
				Country:    stripe.String(d.Address.Country),
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("order_id", id)
	params.AddMetadata("order_number", number)

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, stripeRejection(err)
	}

	o := order.NewOrder(id, number, order.MethodCard, order.StatusAwaitingPayment, d, req.IdempotencyKey)
	o.PaymentRef = pi.ID
	saved, err := c.ledger.record(ctx, o)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Created payment intent",
		zap.String("order_id", saved.ID),
		zap.String("payment_intent", pi.ID),
	)

	return &Submission{
		OrderID:      saved.ID,
		OrderNumber:  saved.Number,
		PaymentRef:   pi.ID,
		Next:         NextAwaitConfirmation,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// Confirm checks the payment intent the customer confirmed in the browser.
// Succeeded, processing and requires_capture count as paid.
func (c *Card) Confirm(ctx context.Context, sub *Submission, intentID string) error {
	if intentID != sub.PaymentRef {
		return &RejectedError{Message: "This payment does not belong to your order."}
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := c.intents.Get(intentID, params)
	if err != nil {
		return stripeRejection(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
	default:
		msg := "Your payment was not completed. Please try again."
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return &RejectedError{Message: msg}
	}

	if err := c.orders.UpdateStatus(ctx, sub.OrderID, order.StatusPaid); err != nil {
		// The customer has paid; the order is reconciled from the intent later.
		zctx.From(ctx).Error("Mark card order paid",
			zap.String("order_id", sub.OrderID),
			zap.Error(err),
		)
	}
	return nil
}

func stripeRejection(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = GenericFailureMessage
		}
		return &RejectedError{Message: msg, Err: err}
	}
	return errors.Wrap(err, "stripe")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}
