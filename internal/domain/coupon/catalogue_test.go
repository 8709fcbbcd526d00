package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rig-checkout/db"
)

func TestDecodeRules(t *testing.T) {
	rules, err := DecodeRules([]byte(`[
		{"code":" save10 ","percentage":"10","description":"10% off"},
		{"code":"HALF","percentage":50.5,"validUntil":"2026-01-01T00:00:00Z","maxUses":3,"active":false,"extra":{}},
		{"code":"HUGE","percentage":"150","validFrom":null}
	]`))
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "SAVE10", rules[0].Code)
	assert.True(t, rules[0].Percentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "10% off", rules[0].Description)
	assert.True(t, rules[0].Active)

	assert.True(t, rules[1].Percentage.Equal(decimal.RequireFromString("50.5")))
	require.NotNil(t, rules[1].ValidUntil)
	assert.True(t, rules[1].ValidUntil.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, rules[1].MaxUses)
	assert.False(t, rules[1].Active)

	assert.True(t, rules[2].Percentage.Equal(decimal.NewFromInt(100)))
	assert.Nil(t, rules[2].ValidFrom)
}

func TestDecodeRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"code":"X"}`},
		{"missing code", `[{"percentage":"10"}]`},
		{"bad percentage", `[{"code":"X","percentage":"ten"}]`},
		{"bad date", `[{"code":"X","percentage":"10","validUntil":"tomorrow"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRules([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeRules_EmbeddedCatalogue(t *testing.T) {
	rules, err := DecodeRules(db.SeedCoupons)
	require.NoError(t, err)

	codes := make([]string, len(rules))
	for i, r := range rules {
		codes[i] = r.Code
	}
	assert.Contains(t, codes, "SAVE10")
}
