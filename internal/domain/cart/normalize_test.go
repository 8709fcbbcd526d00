package cart

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		raw          []RawItem
		wantSubtotal string
		wantItems    int
		wantRejected []string
	}{
		{
			name:         "empty cart",
			raw:          nil,
			wantSubtotal: "0",
		},
		{
			name: "valid lines sum price times quantity",
			raw: []RawItem{
				{ID: "cpu-1", Category: "processor", Price: "299.99", Quantity: "1"},
				{ID: "ram-1", Category: "memory", Price: "64.50", Quantity: "2"},
			},
			wantSubtotal: "428.99",
			wantItems:    2,
		},
		{
			name: "non-numeric price is excluded",
			raw: []RawItem{
				{ID: "ok", Price: "10", Quantity: "1"},
				{ID: "bad", Price: "abc", Quantity: "1"},
			},
			wantSubtotal: "10",
			wantItems:    1,
			wantRejected: []string{reasonPriceNotNumber},
		},
		{
			name: "negative price is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "-5", Quantity: "1"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonPriceNegative},
		},
		{
			name: "fractional quantity is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "5", Quantity: "1.5"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonQuantityNotWhole},
		},
		{
			name: "zero quantity is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "5", Quantity: "0"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonQuantityTooSmall},
		},
		{
			name: "numeric strings with whitespace are accepted",
			raw: []RawItem{
				{ID: "ok", Price: " 12.50 ", Quantity: " 2 "},
			},
			wantSubtotal: "25",
			wantItems:    1,
		},
		{
			name: "null literal price is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "null", Quantity: "1"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonPriceNotNumber},
		},
		{
			name: "price beyond float range is excluded",
			raw: []RawItem{
				{ID: "ok", Price: "1", Quantity: "1"},
				{ID: "bad", Price: "1e400", Quantity: "1"},
			},
			wantSubtotal: "1",
			wantItems:    1,
			wantRejected: []string{reasonPriceNotNumber},
		},
		{
			name: "huge exponents are excluded without expanding them",
			raw: []RawItem{
				{ID: "big", Price: "1e20000000", Quantity: "1"},
				{ID: "tiny", Price: "1e-20000000", Quantity: "1"},
				{ID: "qty", Price: "0.01", Quantity: "1e20000000"},
				{ID: "ok", Price: "0.01", Quantity: "1"},
			},
			wantSubtotal: "0.01",
			wantItems:    1,
			wantRejected: []string{reasonPriceNotNumber, reasonPriceNotNumber, reasonQuantityTooLarge},
		},
		{
			name: "overlong number text is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "1" + strings.Repeat("0", 40), Quantity: "1"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonPriceNotNumber},
		},
		{
			name: "price above the ceiling is excluded",
			raw: []RawItem{
				{ID: "bad", Price: "1000000.01", Quantity: "1"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonPriceTooLarge},
		},
		{
			name: "fractions of a penny are excluded",
			raw: []RawItem{
				{ID: "bad", Price: "33.333", Quantity: "3"},
			},
			wantSubtotal: "0",
			wantRejected: []string{reasonPriceSubPenny},
		},
		{
			name: "trailing zeros past pence are accepted",
			raw: []RawItem{
				{ID: "ok", Price: "33.330", Quantity: "3"},
			},
			wantSubtotal: "99.99",
			wantItems:    1,
		},
		{
			name: "zero price is valid",
			raw: []RawItem{
				{ID: "free", Price: "0", Quantity: "3"},
			},
			wantSubtotal: "0",
			wantItems:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(context.Background(), tt.raw)

			assert.True(t, decimal.RequireFromString(tt.wantSubtotal).Equal(res.Subtotal),
				"subtotal: want %s, got %s", tt.wantSubtotal, res.Subtotal)
			assert.Len(t, res.Items, tt.wantItems)

			var reasons []string
			for _, r := range res.Rejected {
				reasons = append(reasons, r.Reason)
			}
			assert.Equal(t, tt.wantRejected, reasons)
		})
	}
}

func TestNormalize_CategoryAliases(t *testing.T) {
	res := Normalize(context.Background(), []RawItem{
		{ID: "a", Category: "CPU", Price: "1", Quantity: "1"},
		{ID: "b", Category: "ram", Price: "1", Quantity: "1"},
		{ID: "c", Category: "ssd", Price: "1", Quantity: "1"},
		{ID: "d", Category: "Power-Supply", Price: "1", Quantity: "1"},
		{ID: "e", Category: "chassis", Price: "1", Quantity: "1"},
		{ID: "f", Category: "mainboard", Price: "1", Quantity: "1"},
		{ID: "g", Category: "gpu", Price: "1", Quantity: "1"},
	})
	require.Len(t, res.Items, 7)

	var got []string
	for _, item := range res.Items {
		got = append(got, item.Category)
	}
	assert.Equal(t, []string{
		CategoryProcessor, CategoryMemory, CategoryStorage,
		CategoryPSU, CategoryCase, CategoryMotherboard, "gpu",
	}, got)
	assert.Equal(t, 7, res.TotalQuantity())
}

func TestLineItem_Raw(t *testing.T) {
	item := LineItem{
		ID:        "cpu-1",
		Name:      "Ryzen 7",
		Category:  CategoryProcessor,
		UnitPrice: decimal.RequireFromString("299.99"),
		Quantity:  2,
	}
	raw := item.Raw()
	assert.Equal(t, "299.99", raw.Price)
	assert.Equal(t, "2", raw.Quantity)

	again := Normalize(context.Background(), []RawItem{raw})
	require.Len(t, again.Items, 1)
	assert.Equal(t, item, again.Items[0])
}
