package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
)

const (
	msgInvalidFields = "Please check the highlighted fields."
	msgMalformedBody = "The request body is not valid JSON."
	msgInternal      = "Something went wrong. Please try again."
)

// badRequestError is a request body that could not be decoded.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

// sentinels maps domain sentinel errors to their status and message.
var sentinels = []struct {
	err     error
	status  int
	message string
}{
	{checkout.ErrSessionNotFound, http.StatusNotFound, "Your checkout session has expired. Please start again."},
	{checkout.ErrStateNotFound, http.StatusNotFound, "No recent order was found."},
	{order.ErrNotFound, http.StatusNotFound, "Order not found."},
	{checkout.ErrSubmissionInFlight, http.StatusConflict, "Your order is already being processed."},
	{checkout.ErrSessionClosed, http.StatusConflict, "This checkout has already been completed."},
	{checkout.ErrNothingToConfirm, http.StatusConflict, "There is no payment waiting for confirmation."},
	{coupon.ErrSuperseded, http.StatusConflict, "A newer coupon request replaced this one."},
	{order.ErrInvalidTransition, http.StatusConflict, "The order cannot be changed in its current state."},
	{buildservice.ErrUnknownTier, http.StatusUnprocessableEntity, "Unknown build service option."},
	{checkout.ErrUnknownShipping, http.StatusUnprocessableEntity, "Unknown delivery option."},
	{checkout.ErrUnknownMethod, http.StatusUnprocessableEntity, "Unknown payment method."},
	{checkout.ErrOwnerRequired, http.StatusUnprocessableEntity, "A cart owner is required."},
	{order.ErrEmptyItems, http.StatusUnprocessableEntity, "Your cart is empty."},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "A valid API key is required."},
	{auth.ErrForbidden, http.StatusForbidden, "This API key is not allowed to do that."},
}

// mapError converts a domain error into a status, a customer-facing message
// and optional per-field messages.
func mapError(err error) (status int, message string, fields map[string]string) {
	var (
		badReq *badRequestError
		valErr *order.ValidationError
		cpnErr *coupon.Error
		subErr *checkout.SubmitError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, msgMalformedBody, nil
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, msgInvalidFields, valErr.Fields
	case errors.As(err, &cpnErr):
		return http.StatusUnprocessableEntity, cpnErr.Message, nil
	case errors.As(err, &subErr):
		return http.StatusBadGateway, subErr.Message, nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, s.message, nil
		}
	}
	return http.StatusInternalServerError, msgInternal, nil
}

// fail writes the error envelope for err. Server-side failures are logged at
// error level, everything else at debug.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message, fields := mapError(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, message, fields)
}

// writeError writes {"code":<status>,"message":...,"fields":{...}}. Fields
// are omitted when empty.
func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("fields")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(fields[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
