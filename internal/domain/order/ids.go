package order

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces order ids and numbers.
type IDGenerator struct {
	Entropy io.Reader
}

// NewID returns a new ULID string for t.
func (g IDGenerator) NewID(t time.Time) string {
	if g.Entropy == nil {
		return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
	}
	return ulid.MustNew(ulid.Timestamp(t), g.Entropy).String()
}

// Number formats the customer-facing order number for an order created at t
// with the given id, e.g. PCB-250615-7QK2XM.
func Number(t time.Time, id string) string {
	suffix := id
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "PCB-" + t.UTC().Format("060102") + "-" + suffix
}
