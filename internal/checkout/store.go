package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

// Keys under which per-owner storefront state is kept.
const (
	KeyCart            = "cart"
	KeyShippingAddress = "shipping_address"
	KeyOrderRefs       = "order_refs"
)

// ErrStateNotFound is returned by a StateStore for a missing key.
var ErrStateNotFound = errors.New("state not found")

// StateStore is per-owner key-value storage for cart, last address and
// order references.
type StateStore interface {
	Get(ctx context.Context, owner, key string) ([]byte, error)
	Set(ctx context.Context, owner, key string, value []byte) error
	Delete(ctx context.Context, owner, key string) error
}

// OrderRefs identifies the most recent order of an owner for the success page.
type OrderRefs struct {
	OrderID     string
	OrderNumber string
	PaymentRef  string
	Method      order.Method
	CreatedAt   time.Time
}

// Encode writes refs as JSON.
func (r OrderRefs) Encode() []byte {
	var e jx.Encoder
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
	return e.Bytes()
}

// DecodeOrderRefs parses the output of OrderRefs.Encode.
func DecodeOrderRefs(data []byte) (OrderRefs, error) {
	var r OrderRefs
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			r.OrderID, err = d.Str()
		case "order_number":
			r.OrderNumber, err = d.Str()
		case "payment_ref":
			r.PaymentRef, err = d.Str()
		case "method":
			var m string
			m, err = d.Str()
			r.Method = order.Method(m)
		case "created_at":
			var s string
			if s, err = d.Str(); err == nil {
				r.CreatedAt, err = time.Parse(time.RFC3339, s)
			}
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return OrderRefs{}, errors.Wrap(err, "decode order refs")
	}
	return r, nil
}

// encodeAddress writes the address without the password.
func encodeAddress(a order.Address) []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, f := range addressFields(&a) {
		e.FieldStart(f.name)
		e.Str(*f.value)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeAddress(data []byte) (order.Address, error) {
	var a order.Address
	fields := addressFields(&a)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		for _, f := range fields {
			if f.name == key {
				s, err := d.Str()
				*f.value = s
				return err
			}
		}
		return d.Skip()
	})
	if err != nil {
		return order.Address{}, errors.Wrap(err, "decode address")
	}
	return a, nil
}

type addressField struct {
	name  string
	value *string
}

func addressFields(a *order.Address) []addressField {
	return []addressField{
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
