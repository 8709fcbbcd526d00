// Package pricing composes the payable total of a checkout.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Input is everything that contributes to a total.
type Input struct {
	Components  decimal.Decimal
	BuildFee    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
}

// Breakdown is the computed total and its parts, each rounded to pence.
type Breakdown struct {
	Components decimal.Decimal
	BuildFee   decimal.Decimal
	// Subtotal is Components + BuildFee.
	Subtotal decimal.Decimal
	// Discount is the amount actually taken off, never more than Subtotal.
	Discount      decimal.Decimal
	FinalSubtotal decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Calculate returns the breakdown for in. Negative inputs are treated as zero.
// The result depends only on in.
func Calculate(in Input) Breakdown {
	components := nonNegative(in.Components).Round(2)
	buildFee := nonNegative(in.BuildFee).Round(2)
	subtotal := components.Add(buildFee)

	discount := decimal.Min(nonNegative(in.Discount).Round(2), subtotal)
	finalSubtotal := subtotal.Sub(discount)

	shipping := nonNegative(in.ShippingFee).Round(2)

	return Breakdown{
		Components:    components,
		BuildFee:      buildFee,
		Subtotal:      subtotal,
		Discount:      discount,
		FinalSubtotal: finalSubtotal,
		Shipping:      shipping,
		Total:         finalSubtotal.Add(shipping),
	}
}

// MinorUnits converts an amount to integer pence.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
