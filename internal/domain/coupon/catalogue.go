package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeRules parses a JSON array of coupon definitions:
//
//	[{"code":"SAVE10","percentage":"10","description":"...","validUntil":"2026-01-01T00:00:00Z","maxUses":500}]
//
// Codes are normalized and rules are active unless "active" is false.
// Percentages are clamped to [0, 100].
func DecodeRules(data []byte) ([]Rule, error) {
	var rules []Rule
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		rule := Rule{Active: true}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				rule.Code, err = d.Str()
			case "percentage":
				rule.Percentage, err = decodeDecimal(d)
			case "description":
				rule.Description, err = d.Str()
			case "validFrom":
				rule.ValidFrom, err = decodeTime(d)
			case "validUntil":
				rule.ValidUntil, err = decodeTime(d)
			case "maxUses":
				rule.MaxUses, err = d.Int()
			case "active":
				rule.Active, err = d.Bool()
			default:
				return d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}

		rule.Code = NormalizeCode(rule.Code)
		if rule.Code == "" {
			return errors.New("coupon without code")
		}
		rule.Percentage = ClampPercentage(rule.Percentage)
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupons")
	}
	return rules, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
