// Package shipping holds the fixed delivery options.
package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Option is a delivery tier.
type Option struct {
	ID       string
	Name     string
	Estimate string
	Cost     decimal.Decimal
}

// DefaultID is the zero-cost tier selected when the customer has not chosen.
const DefaultID = "free"

var options = []Option{
	{ID: "free", Name: "Free Delivery", Estimate: "5-7 working days", Cost: decimal.Zero},
	{ID: "standard", Name: "Standard Delivery", Estimate: "3-5 working days", Cost: decimal.RequireFromString("9.99")},
	{ID: "express", Name: "Express Delivery", Estimate: "Next working day", Cost: decimal.RequireFromString("19.99")},
}

// Options returns the delivery tiers in display order.
func Options() []Option {
	return append([]Option(nil), options...)
}

// Lookup returns the option with the given id. Boundaries use it to reject
// unknown ids before they reach pricing.
func Lookup(id string) (Option, bool) {
	for _, o := range options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// MustLookup is Lookup for ids that were already validated. An unknown id here
// is a bug, so it panics.
func MustLookup(id string) Option {
	o, ok := Lookup(id)
	if !ok {
		panic(fmt.Sprintf("shipping: unknown option %q", id))
	}
	return o
}
