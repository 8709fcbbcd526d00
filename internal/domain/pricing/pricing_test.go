package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantTotal string
		wantDisc  string
	}{
		{
			name:      "full build with standard assembly",
			in:        Input{Components: d("750"), BuildFee: d("85")},
			wantTotal: "835",
			wantDisc:  "0",
		},
		{
			name:      "full build with ten percent coupon",
			in:        Input{Components: d("750"), BuildFee: d("85"), Discount: d("83.50")},
			wantTotal: "751.50",
			wantDisc:  "83.50",
		},
		{
			name:      "single gpu with express shipping",
			in:        Input{Components: d("500"), ShippingFee: d("19.99")},
			wantTotal: "519.99",
			wantDisc:  "0",
		},
		{
			name:      "discount larger than subtotal is capped",
			in:        Input{Components: d("40"), Discount: d("100"), ShippingFee: d("9.99")},
			wantTotal: "9.99",
			wantDisc:  "40",
		},
		{
			name:      "negative discount is ignored",
			in:        Input{Components: d("40"), Discount: d("-5")},
			wantTotal: "40",
			wantDisc:  "0",
		},
		{
			name:      "empty cart pays shipping only",
			in:        Input{ShippingFee: d("9.99")},
			wantTotal: "9.99",
			wantDisc:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in)
			assert.True(t, d(tt.wantTotal).Equal(got.Total), "total: want %s, got %s", tt.wantTotal, got.Total)
			assert.True(t, d(tt.wantDisc).Equal(got.Discount), "discount: want %s, got %s", tt.wantDisc, got.Discount)

			// total == subtotal - min(discount, subtotal) + shipping
			assert.True(t, got.Subtotal.Sub(got.Discount).Add(got.Shipping).Equal(got.Total))
			assert.True(t, got.Total.GreaterThanOrEqual(got.Shipping))
			assert.False(t, got.FinalSubtotal.IsNegative())

			again := Calculate(tt.in)
			assert.True(t, again.Total.Equal(got.Total))
			assert.True(t, again.Discount.Equal(got.Discount))
		})
	}
}

func TestCalculate_DiscountNeverNegativeTotal(t *testing.T) {
	subtotals := []string{"0", "0.01", "19.99", "835", "12345.67"}
	for _, s := range subtotals {
		for pct := int64(0); pct <= 100; pct += 5 {
			discount := d(s).Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(2)
			got := Calculate(Input{Components: d(s), Discount: discount, ShippingFee: d("9.99")})
			assert.False(t, got.Discount.IsNegative())
			assert.False(t, got.FinalSubtotal.IsNegative())
			assert.True(t, got.Total.GreaterThanOrEqual(d("9.99")))
		}
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(75150), MinorUnits(d("751.50")))
	assert.Equal(t, int64(1999), MinorUnits(d("19.99")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
	assert.Equal(t, int64(101), MinorUnits(d("1.005")))
}
