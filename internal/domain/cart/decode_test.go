package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRaw(t *testing.T) {
	t.Run("numbers and numeric strings", func(t *testing.T) {
		items, err := DecodeRaw([]byte(`[
			{"id":"cpu-1","name":"Ryzen","category":"cpu","price":299.99,"quantity":1},
			{"id":"ram-1","name":"DDR5","category":"ram","price":"64.50","quantity":"2","image":null,"extra":{"a":1}}
		]`))
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "299.99", items[0].Price)
		assert.Equal(t, "1", items[0].Quantity)
		assert.Equal(t, "64.50", items[1].Price)
		assert.Equal(t, "2", items[1].Quantity)
		assert.Empty(t, items[1].Image)
	})

	t.Run("non-numeric values are kept verbatim", func(t *testing.T) {
		items, err := DecodeRaw([]byte(`[{"id":"x","price":null,"quantity":true}]`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "null", items[0].Price)
		assert.Equal(t, "true", items[0].Quantity)
	})

	t.Run("null cart", func(t *testing.T) {
		items, err := DecodeRaw([]byte(`null`))
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeRaw([]byte(`[{"id":`))
		require.Error(t, err)
	})
}

func TestEncodeRaw(t *testing.T) {
	in := []RawItem{
		{ID: "cpu-1", Name: "Ryzen", Category: "processor", Price: "299.99", Quantity: "1", Image: "/img/cpu.png"},
		{ID: "case-1", Name: "Tower", Category: "case", Price: "80", Quantity: "1"},
	}
	out, err := DecodeRaw(EncodeRaw(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
