package order

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/pricing"
	"github.com/xenking/rig-checkout/internal/domain/shipping"
)

// BuildServiceCategory tags the synthetic build service line.
const BuildServiceCategory = "build-service"

// ErrEmptyItems is returned when there is nothing to order.
var ErrEmptyItems = errors.New("items required")

// Contact is how to reach the customer.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// ShippingChoice is the selected delivery option.
type ShippingChoice struct {
	ID       string
	Name     string
	Estimate string
	Cost     decimal.Decimal
}

// BuildChoice is the selected build service tier.
type BuildChoice struct {
	ID   string
	Name string
	Fee  decimal.Decimal
}

// CouponChoice is the applied coupon.
type CouponChoice struct {
	Code       string
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// AccountRequest asks for a customer account to be created after payment.
type AccountRequest struct {
	Name     string
	Email    string
	Password string
}

// Draft is the payment-backend-agnostic order submitted for payment. It is
// not modified after Assemble returns it.
type Draft struct {
	Currency     string
	Items        []Item
	Address      Address
	Customer     Contact
	Shipping     ShippingChoice
	Coupon       *CouponChoice
	BuildService *BuildChoice
	Account      *AccountRequest
	Breakdown    pricing.Breakdown
	Total        decimal.Decimal
}

// Input is what Assemble composes into a Draft.
type Input struct {
	Items         []cart.LineItem
	BuildService  *buildservice.Tier
	Shipping      shipping.Option
	Coupon        *coupon.Applied
	Address       Address
	CreateAccount bool
}

// Assemble validates the address and builds the Draft. Nothing is built when
// validation fails.
func Assemble(in Input) (*Draft, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}

	addr := in.Address.Normalized()
	if err := ValidateAddress(addr, in.CreateAccount); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(in.Items)+1)
	components := decimal.Zero
	for _, li := range in.Items {
		items = append(items, Item{
			ID:        li.ID,
			Name:      li.Name,
			Category:  li.Category,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			Image:     li.Image,
		})
		components = components.Add(li.LineTotal())
	}

	var build *BuildChoice
	buildFee := decimal.Zero
	if in.BuildService != nil {
		build = &BuildChoice{ID: in.BuildService.ID, Name: in.BuildService.Name, Fee: in.BuildService.Fee}
		buildFee = in.BuildService.Fee
		items = append(items, Item{
			ID:        BuildServiceCategory + "-" + in.BuildService.ID,
			Name:      in.BuildService.Name,
			Category:  BuildServiceCategory,
			UnitPrice: in.BuildService.Fee,
			Quantity:  1,
		})
	}

	var applied *CouponChoice
	discount := decimal.Zero
	if in.Coupon != nil {
		discount = in.Coupon.Amount
	}

	breakdown := pricing.Calculate(pricing.Input{
		Components:  components,
		BuildFee:    buildFee,
		Discount:    discount,
		ShippingFee: in.Shipping.Cost,
	})
	if in.Coupon != nil {
		applied = &CouponChoice{
			Code:       in.Coupon.Code,
			Percentage: in.Coupon.Percentage,
			Amount:     breakdown.Discount,
		}
	}

	lines := decimal.Zero
	for _, it := range items {
		lines = lines.Add(it.LineTotal())
	}
	if !lines.Round(2).Sub(breakdown.Discount).Add(breakdown.Shipping).Equal(breakdown.Total) {
		return nil, errors.Errorf("order total %s does not match lines %s", breakdown.Total, lines)
	}

	var account *AccountRequest
	if in.CreateAccount {
		account = &AccountRequest{Name: addr.Name, Email: addr.Email, Password: addr.Password}
	}

	return &Draft{
		Currency: Currency,
		Items:    items,
		Address:  addr.WithoutPassword(),
		Customer: Contact{Name: addr.Name, Email: addr.Email, Phone: addr.Phone},
		Shipping: ShippingChoice{
			ID:       in.Shipping.ID,
			Name:     in.Shipping.Name,
			Estimate: in.Shipping.Estimate,
			Cost:     breakdown.Shipping,
		},
		Coupon:       applied,
		BuildService: build,
		Account:      account,
		Breakdown:    breakdown,
		Total:        breakdown.Total,
	}, nil
}

// Fingerprint is a stable hash of the draft's content. Two drafts with the
// same items, address, options and amounts have the same fingerprint. The
// account password is not part of it.
func (d *Draft) Fingerprint() string {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("currency")
	e.Str(d.Currency)
	e.FieldStart("total")
	e.Str(d.Total.StringFixed(2))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range d.Items {
		e.ArrStart()
		e.Str(it.ID)
		e.Str(it.Category)
		e.Str(it.UnitPrice.StringFixed(2))
		e.Int(it.Quantity)
		e.ArrEnd()
	}
	e.ArrEnd()
	e.FieldStart("address")
	e.ArrStart()
	for _, s := range []string{
		d.Address.Name, d.Address.Email, d.Address.Phone, d.Address.Line1,
		d.Address.Line2, d.Address.City, d.Address.County, d.Address.Postcode, d.Address.Country,
	} {
		e.Str(s)
	}
	e.ArrEnd()
	e.FieldStart("shipping")
	e.Str(d.Shipping.ID)
	if d.Coupon != nil {
		e.FieldStart("coupon")
		e.Str(d.Coupon.Code)
	}
	if d.BuildService != nil {
		e.FieldStart("build")
		e.Str(d.BuildService.ID)
	}
	e.FieldStart("account")
	e.Bool(d.Account != nil)
	e.ObjEnd()

	sum := sha256.Sum256(e.Bytes())
	return hex.EncodeToString(sum[:])
}

// NewOrder turns an accepted draft into the record persisted by a payment
// backend.
func NewOrder(id, number string, method Method, status Status, d *Draft, idempotencyKey string) *Order {
	o := &Order{
		ID:             id,
		Number:         number,
		Method:         method,
		Status:         status,
		Currency:       d.Currency,
		Subtotal:       d.Breakdown.Subtotal,
		Discount:       d.Breakdown.Discount,
		ShippingCost:   d.Breakdown.Shipping,
		Total:          d.Total,
		ShippingMethod: d.Shipping.ID,
		Email:          d.Customer.Email,
		Items:          append([]Item(nil), d.Items...),
		Address:        d.Address,
		IdempotencyKey: idempotencyKey,
	}
	if d.Coupon != nil {
		o.CouponCode = d.Coupon.Code
	}
	if d.BuildService != nil {
		o.BuildService = d.BuildService.ID
	}
	return o
}
