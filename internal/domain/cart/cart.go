// Package cart turns raw storefront cart lines into a canonical priced item list.
package cart

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Category tags the build-service selector and the order assembler understand.
const (
	CategoryProcessor   = "processor"
	CategoryMotherboard = "motherboard"
	CategoryMemory      = "memory"
	CategoryStorage     = "storage"
	CategoryPSU         = "psu"
	CategoryCase        = "case"
)

var categoryAliases = map[string]string{
	"cpu":          CategoryProcessor,
	"ram":          CategoryMemory,
	"ssd":          CategoryStorage,
	"hdd":          CategoryStorage,
	"power-supply": CategoryPSU,
	"power_supply": CategoryPSU,
	"powersupply":  CategoryPSU,
	"chassis":      CategoryCase,
	"mainboard":    CategoryMotherboard,
}

// NormalizeCategory lowercases a category tag and folds known aliases.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return c
}

// RawItem is a cart line as received from the storefront. Price and quantity
// keep their literal text so that validation happens in one place.
type RawItem struct {
	ID       string
	Name     string
	Category string
	Price    string
	Quantity string
	Image    string
}

// LineItem is a validated cart line.
type LineItem struct {
	ID        string
	Name      string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
	Image     string
}

// LineTotal returns unit price multiplied by quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Raw converts the item back to its edge representation.
func (i LineItem) Raw() RawItem {
	return RawItem{
		ID:       i.ID,
		Name:     i.Name,
		Category: i.Category,
		Price:    i.UnitPrice.String(),
		Quantity: strconv.Itoa(i.Quantity),
		Image:    i.Image,
	}
}

// Rejection records why a raw line was excluded from the subtotal.
type Rejection struct {
	Item   RawItem
	Reason string
}

// Result is the output of Normalize.
type Result struct {
	Items    []LineItem
	Rejected []Rejection
	Subtotal decimal.Decimal
}

// TotalQuantity returns the sum of quantities across valid items.
func (r Result) TotalQuantity() int {
	total := 0
	for _, item := range r.Items {
		total += item.Quantity
	}
	return total
}

// RawItems returns the edge representation of the valid items.
func (r Result) RawItems() []RawItem {
	raw := make([]RawItem, len(r.Items))
	for i, item := range r.Items {
		raw[i] = item.Raw()
	}
	return raw
}
