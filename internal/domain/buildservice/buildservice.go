// Package buildservice decides whether a cart is a complete self-build PC and
// offers the optional assembly tiers for it.
package buildservice

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rig-checkout/internal/domain/cart"
)

// ErrUnknownTier is returned when a choice names a tier outside the catalog.
var ErrUnknownTier = errors.New("unknown build service tier")

// NoneID is the tier id a customer sends to decline the service.
const NoneID = "none"

// MinBuildQuantity is the minimum number of units a full build must contain.
const MinBuildQuantity = 5

// RequiredCategories must each be present for a cart to count as a full build.
var RequiredCategories = []string{
	cart.CategoryProcessor,
	cart.CategoryMotherboard,
	cart.CategoryMemory,
	cart.CategoryStorage,
	cart.CategoryPSU,
	cart.CategoryCase,
}

// Tier is one of the fixed assembly service options.
type Tier struct {
	ID          string
	Name        string
	Fee         decimal.Decimal
	Benefits    []string
	Description string
}

var catalog = []Tier{
	{
		ID:   "standard",
		Name: "Standard Assembly",
		Fee:  decimal.NewFromInt(85),
		Benefits: []string{
			"Professional assembly and cable management",
			"Operating system installation",
			"48-hour stress test",
		},
		Description: "We build and test your PC so it arrives ready to use.",
	},
	{
		ID:   "performance",
		Name: "Performance Tuning",
		Fee:  decimal.NewFromInt(135),
		Benefits: []string{
			"Everything in Standard Assembly",
			"BIOS update and memory profile tuning",
			"Fan curve optimisation",
			"Driver and firmware updates",
		},
		Description: "Assembly plus tuning to get the most from your components.",
	},
	{
		ID:   "enthusiast",
		Name: "Enthusiast Build",
		Fee:  decimal.NewFromInt(199),
		Benefits: []string{
			"Everything in Performance Tuning",
			"Custom cable sleeving",
			"Safe CPU and GPU overclock profiles",
			"Benchmark report",
			"Priority build slot",
		},
		Description: "Our most thorough build, tuned and benchmarked by a senior technician.",
	},
}

// DefaultTierID is preselected when the service is offered.
const DefaultTierID = "standard"

// Catalog returns the fixed tiers in display order.
func Catalog() []Tier {
	out := make([]Tier, len(catalog))
	for i, t := range catalog {
		t.Benefits = append([]string(nil), t.Benefits...)
		out[i] = t
	}
	return out
}

// Lookup returns the tier with the given id.
func Lookup(id string) (Tier, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Detect reports whether items form a full system build: at least one item in
// every required category and a total quantity of MinBuildQuantity or more.
func Detect(items []cart.LineItem) bool {
	present := make(map[string]bool, len(RequiredCategories))
	total := 0
	for _, item := range items {
		present[item.Category] = true
		total += item.Quantity
	}
	for _, c := range RequiredCategories {
		if !present[c] {
			return false
		}
	}
	return total >= MinBuildQuantity
}

// Choice is the customer's build service selection.
type Choice struct {
	// TierID selects a tier. Empty means the default tier, NoneID declines.
	TierID        string
	SelfAssembled bool
}

// Offer describes what the storefront should show for the current cart.
type Offer struct {
	Offered   bool
	Tiers     []Tier
	DefaultID string
}

// Selection is the result of Select.
type Selection struct {
	Offer    Offer
	Selected *Tier
}

// Fee returns the fee of the selected tier, or zero when none is selected.
func (s Selection) Fee() decimal.Decimal {
	if s.Selected == nil {
		return decimal.Zero
	}
	return s.Selected.Fee
}

// Select resolves the customer's choice against the cart. The tier id is
// validated even when no build is detected so that bad input is reported
// consistently.
func Select(items []cart.LineItem, choice Choice) (Selection, error) {
	id := choice.TierID
	if id == "" {
		id = DefaultTierID
	}
	tier, ok := Lookup(id)
	if !ok && id != NoneID {
		return Selection{}, errors.Wrapf(ErrUnknownTier, "tier %q", choice.TierID)
	}

	if !Detect(items) {
		return Selection{}, nil
	}

	sel := Selection{
		Offer: Offer{
			Offered:   true,
			Tiers:     Catalog(),
			DefaultID: DefaultTierID,
		},
	}
	if choice.SelfAssembled || id == NoneID {
		return sel, nil
	}
	sel.Selected = &tier
	return sel, nil
}
