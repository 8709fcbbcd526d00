package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		id       string
		wantCost string
		wantEst  string
	}{
		{id: "free", wantCost: "0", wantEst: "5-7 working days"},
		{id: "standard", wantCost: "9.99", wantEst: "3-5 working days"},
		{id: "express", wantCost: "19.99", wantEst: "Next working day"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			o, ok := Lookup(tt.id)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.wantCost).Equal(o.Cost))
			assert.Equal(t, tt.wantEst, o.Estimate)
		})
	}

	_, ok := Lookup("drone")
	assert.False(t, ok)
}

func TestDefaultIsFree(t *testing.T) {
	o := MustLookup(DefaultID)
	assert.True(t, o.Cost.IsZero())
	assert.Len(t, Options(), 3)
}

func TestMustLookup_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { MustLookup("teleport") })
}
