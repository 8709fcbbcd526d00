package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DecodeRaw parses a JSON array of cart lines. Prices and quantities may be
// JSON numbers or numeric strings; any other value is kept verbatim so that
// Normalize rejects the line instead of failing the whole cart.
func DecodeRaw(data []byte) ([]RawItem, error) {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return nil, nil
	}

	var items []RawItem
	if err := d.Arr(func(d *jx.Decoder) error {
		item, err := decodeItem(d)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (RawItem, error) {
	var item RawItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ID, err = scalarText(d)
		case "name":
			item.Name, err = d.Str()
		case "category":
			item.Category, err = d.Str()
		case "price":
			item.Price, err = scalarText(d)
		case "quantity":
			item.Quantity, err = scalarText(d)
		case "image":
			if d.Next() == jx.Null {
				return d.Null()
			}
			item.Image, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return item, err
}

// scalarText returns the literal text of a string or number, and the raw JSON
// of anything else.
func scalarText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		raw, err := d.Raw()
		if err != nil {
			return "", err
		}
		return raw.String(), nil
	}
}

// EncodeRaw writes cart lines in the shape DecodeRaw reads.
func EncodeRaw(items []RawItem) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ID)
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("category")
		e.Str(item.Category)
		e.FieldStart("price")
		e.Str(item.Price)
		e.FieldStart("quantity")
		e.Str(item.Quantity)
		if item.Image != "" {
			e.FieldStart("image")
			e.Str(item.Image)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
