package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/rig-checkout/internal/domain/cart"
)

// PutCart replaces the owner's cart with the raw lines in the body and
// returns the normalized cart. Invalid lines are reported, not rejected.
func (h *Handler) PutCart(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := cart.DecodeRaw(data)
	if err != nil {
		fail(w, r, &badRequestError{err: err})
		return
	}

	result, err := h.checkout.PutCart(r.Context(), chi.URLParam(r, "owner"), items)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeCart(&e, result)
	writeJSON(w, http.StatusOK, &e)
}

// GetCart returns the owner's normalized cart. A missing cart is empty.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Cart(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeCart(&e, result)
	writeJSON(w, http.StatusOK, &e)
}
