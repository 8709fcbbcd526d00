package buildservice

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rig-checkout/internal/domain/cart"
)

func line(category string, price int64, qty int) cart.LineItem {
	return cart.LineItem{
		ID:        category + "-1",
		Category:  category,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
	}
}

func fullBuild() []cart.LineItem {
	return []cart.LineItem{
		line(cart.CategoryProcessor, 300, 1),
		line(cart.CategoryMotherboard, 150, 1),
		line(cart.CategoryMemory, 80, 1),
		line(cart.CategoryStorage, 90, 1),
		line(cart.CategoryPSU, 70, 1),
		line(cart.CategoryCase, 60, 1),
	}
}

func without(items []cart.LineItem, category string) []cart.LineItem {
	var out []cart.LineItem
	for _, item := range items {
		if item.Category != category {
			out = append(out, item)
		}
	}
	return out
}

func TestDetect(t *testing.T) {
	assert.True(t, Detect(fullBuild()))
	assert.False(t, Detect(nil))
	assert.False(t, Detect([]cart.LineItem{line("gpu", 500, 1)}))

	for _, c := range RequiredCategories {
		t.Run("missing "+c, func(t *testing.T) {
			assert.False(t, Detect(without(fullBuild(), c)))
		})
	}

	t.Run("extra items count toward quantity", func(t *testing.T) {
		items := append(fullBuild(), line("gpu", 500, 2))
		assert.True(t, Detect(items))
	})
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name        string
		items       []cart.LineItem
		choice      Choice
		wantOffered bool
		wantTier    string
		wantFee     int64
		wantErr     error
	}{
		{
			name:        "full build selects default tier",
			items:       fullBuild(),
			wantOffered: true,
			wantTier:    "standard",
			wantFee:     85,
		},
		{
			name:        "explicit tier",
			items:       fullBuild(),
			choice:      Choice{TierID: "enthusiast"},
			wantOffered: true,
			wantTier:    "enthusiast",
			wantFee:     199,
		},
		{
			name:        "self assembled suppresses fee",
			items:       fullBuild(),
			choice:      Choice{TierID: "performance", SelfAssembled: true},
			wantOffered: true,
		},
		{
			name:        "none declines",
			items:       fullBuild(),
			choice:      Choice{TierID: NoneID},
			wantOffered: true,
		},
		{
			name:   "no build no offer",
			items:  []cart.LineItem{line("gpu", 500, 1)},
			choice: Choice{TierID: "enthusiast"},
		},
		{
			name:    "unknown tier",
			items:   fullBuild(),
			choice:  Choice{TierID: "platinum"},
			wantErr: ErrUnknownTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.items, tt.choice)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffered, sel.Offer.Offered)
			if tt.wantOffered {
				assert.Len(t, sel.Offer.Tiers, 3)
				assert.Equal(t, DefaultTierID, sel.Offer.DefaultID)
			}
			if tt.wantTier == "" {
				assert.Nil(t, sel.Selected)
			} else {
				require.NotNil(t, sel.Selected)
				assert.Equal(t, tt.wantTier, sel.Selected.ID)
			}
			assert.True(t, decimal.NewFromInt(tt.wantFee).Equal(sel.Fee()))
		})
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	tiers := Catalog()
	tiers[0].Benefits[0] = "changed"
	tiers[0].Fee = decimal.Zero

	again := Catalog()
	assert.NotEqual(t, "changed", again[0].Benefits[0])
	assert.True(t, decimal.NewFromInt(85).Equal(again[0].Fee))
}
