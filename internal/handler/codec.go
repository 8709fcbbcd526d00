package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/domain/pricing"
	"github.com/xenking/rig-checkout/internal/domain/shipping"
)

// readBody reads at most h.maxBodyBytes of the request body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		return nil, &badRequestError{err: errors.Wrap(err, "read body")}
	}
	return data, nil
}

// decodeObject calls fn for every field of the JSON object in data. An empty
// body is treated as an empty object.
func decodeObject(data []byte, fn func(d *jx.Decoder, key string) error) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

// addressFields lists the JSON names of the address fields. Password is
// read separately from the submit request.
func addressFields(a *order.Address) []struct {
	name  string
	value *string
} {
	return []struct {
		name  string
		value *string
	}{
		{"name", &a.Name},
		{"email", &a.Email},
		{"phone", &a.Phone},
		{"line1", &a.Line1},
		{"line2", &a.Line2},
		{"city", &a.City},
		{"county", &a.County},
		{"postcode", &a.Postcode},
		{"country", &a.Country},
	}
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	fields := addressFields(&a)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		for _, f := range fields {
			if f.name == key {
				s, err := d.Str()
				*f.value = s
				return err
			}
		}
		return d.Skip()
	})
	return a, err
}

func encodeAddress(e *jx.Encoder, a *order.Address) {
	if a == nil {
		e.Null()
		return
	}
	e.ObjStart()
	for _, f := range addressFields(a) {
		e.FieldStart(f.name)
		e.Str(*f.value)
	}
	e.ObjEnd()
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeCart(e *jx.Encoder, c cart.Result) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range c.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ID)
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("category")
		e.Str(item.Category)
		e.FieldStart("unit_price")
		encodeMoney(e, item.UnitPrice)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("line_total")
		encodeMoney(e, item.LineTotal())
		if item.Image != "" {
			e.FieldStart("image")
			e.Str(item.Image)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("rejected")
	e.ArrStart()
	for _, rej := range c.Rejected {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(rej.Item.ID)
		e.FieldStart("name")
		e.Str(rej.Item.Name)
		e.FieldStart("reason")
		e.Str(rej.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	encodeMoney(e, c.Subtotal)
	e.ObjEnd()
}

func encodeTier(e *jx.Encoder, t buildservice.Tier) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("name")
	e.Str(t.Name)
	e.FieldStart("fee")
	encodeMoney(e, t.Fee)
	e.FieldStart("benefits")
	e.ArrStart()
	for _, b := range t.Benefits {
		e.Str(b)
	}
	e.ArrEnd()
	e.FieldStart("description")
	e.Str(t.Description)
	e.ObjEnd()
}

func encodeBuildService(e *jx.Encoder, s buildservice.Selection) {
	e.ObjStart()
	e.FieldStart("offered")
	e.Bool(s.Offer.Offered)
	if s.Offer.Offered {
		e.FieldStart("default")
		e.Str(s.Offer.DefaultID)
		e.FieldStart("tiers")
		e.ArrStart()
		for _, t := range s.Offer.Tiers {
			encodeTier(e, t)
		}
		e.ArrEnd()
	}
	e.FieldStart("selected")
	if s.Selected != nil {
		e.Str(s.Selected.ID)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func encodeShippingOption(e *jx.Encoder, o shipping.Option) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("estimate")
	e.Str(o.Estimate)
	e.FieldStart("cost")
	encodeMoney(e, o.Cost)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Applied) {
	if c == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("percentage")
	e.Str(c.Percentage.String())
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("amount")
	encodeMoney(e, c.Amount)
	e.ObjEnd()
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.ObjStart()
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"components", b.Components},
		{"build_fee", b.BuildFee},
		{"subtotal", b.Subtotal},
		{"discount", b.Discount},
		{"final_subtotal", b.FinalSubtotal},
		{"shipping", b.Shipping},
		{"total", b.Total},
	} {
		e.FieldStart(f.name)
		encodeMoney(e, f.value)
	}
	e.ObjEnd()
}

func encodeOutcome(e *jx.Encoder, o *checkout.Outcome) {
	if o == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("state")
	e.Str(string(o.State))
	e.FieldStart("method")
	e.Str(string(o.Method))
	e.FieldStart("order_id")
	e.Str(o.OrderID)
	e.FieldStart("order_number")
	e.Str(o.OrderNumber)
	e.FieldStart("payment_ref")
	e.Str(o.PaymentRef)
	if o.ClientSecret != "" {
		e.FieldStart("client_secret")
		e.Str(o.ClientSecret)
	}
	if o.RedirectURL != "" {
		e.FieldStart("redirect_url")
		e.Str(o.RedirectURL)
	}
	e.ObjEnd()
}

func encodeQuote(e *jx.Encoder, q *checkout.Quote) {
	e.ObjStart()
	e.FieldStart("session_id")
	e.Str(q.SessionID)
	e.FieldStart("state")
	e.Str(string(q.State))
	if q.Error != "" {
		e.FieldStart("error")
		e.Str(q.Error)
	}
	e.FieldStart("cart")
	encodeCart(e, q.Cart)
	e.FieldStart("build_service")
	encodeBuildService(e, q.Build)

	e.FieldStart("shipping")
	e.ObjStart()
	e.FieldStart("selected")
	e.Str(q.Shipping.ID)
	e.FieldStart("options")
	e.ArrStart()
	for _, o := range q.ShippingOptions {
		encodeShippingOption(e, o)
	}
	e.ArrEnd()
	e.ObjEnd()

	e.FieldStart("coupon")
	encodeCoupon(e, q.Coupon)
	e.FieldStart("breakdown")
	encodeBreakdown(e, q.Breakdown)
	e.FieldStart("outcome")
	encodeOutcome(e, q.Outcome)
	e.ObjEnd()
}

func encodeOrderRefs(e *jx.Encoder, r *checkout.OrderRefs) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(r.OrderID)
	e.FieldStart("order_number")
	e.Str(r.OrderNumber)
	e.FieldStart("payment_ref")
	e.Str(r.PaymentRef)
	e.FieldStart("method")
	e.Str(string(r.Method))
	e.FieldStart("created_at")
	e.Str(r.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
