package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LatestOrder returns the references of the owner's most recent order for
// the success page.
func (h *Handler) LatestOrder(w http.ResponseWriter, r *http.Request) {
	refs, err := h.checkout.LatestOrder(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOrderRefs(&e, refs)
	writeJSON(w, http.StatusOK, &e)
}

// VerifyOrder marks a bank transfer order as paid once the transfer has been
// seen on the account.
func (h *Handler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	o, err := h.verifier.Verify(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	zctx.From(ctx).Info("Bank transfer verified",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("order_number")
	e.Str(o.Number)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("total")
	encodeMoney(&e, o.Total)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
