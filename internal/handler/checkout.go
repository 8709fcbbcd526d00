package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/order"
)

// OpenSession starts a checkout for the owner in the body and returns the
// first quote together with the address of the owner's last checkout.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var owner string
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key == "owner" {
			var err error
			owner, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	sess, prefill, err := h.checkout.Open(ctx, owner)
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.checkout.Quote(ctx, sess.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("session_id")
	e.Str(sess.ID)
	e.FieldStart("prefill")
	encodeAddress(&e, prefill)
	e.FieldStart("quote")
	encodeQuote(&e, q)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// GetSession returns the current quote of a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	q, err := h.checkout.Quote(r.Context(), chi.URLParam(r, "id"))
	h.writeQuote(w, r, q, err)
}

// SetOptions changes the build service and shipping selections.
func (h *Handler) SetOptions(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var opts checkout.Options
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "build_tier":
			opts.BuildTier, err = d.Str()
		case "self_assembled":
			opts.SelfAssembled, err = d.Bool()
		case "shipping":
			opts.Shipping, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}

	q, err := h.checkout.SetOptions(r.Context(), chi.URLParam(r, "id"), opts)
	h.writeQuote(w, r, q, err)
}

// ApplyCoupon applies the code in the body. An empty code removes the
// applied coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var code string
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key == "code" {
			var err error
			code, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		fail(w, r, err)
		return
	}

	q, err := h.checkout.ApplyCoupon(r.Context(), chi.URLParam(r, "id"), code)
	h.writeQuote(w, r, q, err)
}

// Submit places the order with the chosen payment method.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var (
		req      checkout.SubmitRequest
		password string
	)
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			var m string
			m, err = d.Str()
			req.Method = order.Method(m)
		case "address":
			req.Address, err = decodeAddress(d)
		case "create_account":
			req.CreateAccount, err = d.Bool()
		case "password":
			password, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	req.Address.Password = password

	out, err := h.checkout.Submit(r.Context(), chi.URLParam(r, "id"), req)
	h.writeOutcome(w, r, out, err)
}

// Confirm completes a card payment the customer confirmed with the
// processor.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var ref string
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key == "payment_ref" {
			var err error
			ref, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		fail(w, r, err)
		return
	}

	out, err := h.checkout.Confirm(r.Context(), chi.URLParam(r, "id"), ref)
	h.writeOutcome(w, r, out, err)
}

func (h *Handler) writeQuote(w http.ResponseWriter, r *http.Request, q *checkout.Quote, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeQuote(&e, q)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, r *http.Request, out *checkout.Outcome, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOutcome(&e, out)
	writeJSON(w, http.StatusOK, &e)
}
