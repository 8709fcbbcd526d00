package cart

import (
	"context"
	"math"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	reasonPriceNotNumber   = "price is not a number"
	reasonPriceNegative    = "price is negative"
	reasonPriceTooLarge    = "price is too large"
	reasonPriceSubPenny    = "price has more than 2 decimal places"
	reasonQuantityNotWhole = "quantity is not a whole number"
	reasonQuantityTooSmall = "quantity must be at least 1"
	reasonQuantityTooLarge = "quantity is too large"
)

const (
	// maxNumberLen bounds the literal text of a price or quantity.
	maxNumberLen = 32
	// maxExponent bounds the decimal exponent in either direction.
	maxExponent = 16
)

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
	maxPrice    = decimal.NewFromInt(1_000_000)
)

// Normalize validates raw cart lines. Lines whose price is not a non-negative
// amount in whole pence, or whose quantity is not a whole number >= 1, are
// excluded from the subtotal and reported in Result.Rejected. Normalize has no
// side effects other than logging rejected lines.
func Normalize(ctx context.Context, raw []RawItem) Result {
	res := Result{
		Items:    make([]LineItem, 0, len(raw)),
		Subtotal: decimal.Zero,
	}

	for _, r := range raw {
		item, reason := normalizeItem(r)
		if reason != "" {
			zctx.From(ctx).Warn("Excluding invalid cart line",
				zap.String("item_id", r.ID),
				zap.String("price", r.Price),
				zap.String("quantity", r.Quantity),
				zap.String("reason", reason),
			)
			res.Rejected = append(res.Rejected, Rejection{Item: r, Reason: reason})
			continue
		}
		res.Items = append(res.Items, item)
		res.Subtotal = res.Subtotal.Add(item.LineTotal())
	}

	return res
}

func normalizeItem(r RawItem) (LineItem, string) {
	price, ok := parseNumber(r.Price)
	if !ok {
		return LineItem{}, reasonPriceNotNumber
	}
	if price.IsNegative() {
		return LineItem{}, reasonPriceNegative
	}
	if price.GreaterThan(maxPrice) {
		return LineItem{}, reasonPriceTooLarge
	}
	// Prices must be whole pence so per-unit amounts sent to payment
	// processors add up to the subtotal.
	if !price.Equal(price.Round(2)) {
		return LineItem{}, reasonPriceSubPenny
	}

	qty, ok := parseNumber(r.Quantity)
	if !ok {
		if qty.Exponent() > maxExponent {
			return LineItem{}, reasonQuantityTooLarge
		}
		return LineItem{}, reasonQuantityNotWhole
	}
	if !qty.IsInteger() {
		return LineItem{}, reasonQuantityNotWhole
	}
	if qty.LessThan(decimal.NewFromInt(1)) {
		return LineItem{}, reasonQuantityTooSmall
	}
	if qty.GreaterThan(maxQuantity) {
		return LineItem{}, reasonQuantityTooLarge
	}

	return LineItem{
		ID:        strings.TrimSpace(r.ID),
		Name:      strings.TrimSpace(r.Name),
		Category:  NormalizeCategory(r.Category),
		UnitPrice: price,
		Quantity:  int(qty.IntPart()),
		Image:     strings.TrimSpace(r.Image),
	}, ""
}

// parseNumber parses s as a decimal. It reports false for text that is not a
// number and for numbers whose length or exponent is out of bounds. A value
// with an out-of-bounds exponent is still returned.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxNumberLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return d, false
	}
	return d, true
}
