// Package handler serves the checkout HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/pkg/httpmiddleware"
)

// Checkout is the checkout service the handlers delegate to.
type Checkout interface {
	PutCart(ctx context.Context, owner string, items []cart.RawItem) (cart.Result, error)
	Cart(ctx context.Context, owner string) (cart.Result, error)
	Open(ctx context.Context, owner string) (*checkout.Session, *order.Address, error)
	Quote(ctx context.Context, id string) (*checkout.Quote, error)
	SetOptions(ctx context.Context, id string, opts checkout.Options) (*checkout.Quote, error)
	ApplyCoupon(ctx context.Context, id, code string) (*checkout.Quote, error)
	Submit(ctx context.Context, id string, req checkout.SubmitRequest) (*checkout.Outcome, error)
	Confirm(ctx context.Context, id, paymentRef string) (*checkout.Outcome, error)
	LatestOrder(ctx context.Context, owner string) (*checkout.OrderRefs, error)
}

// Verifier marks bank transfer orders as paid.
type Verifier interface {
	Verify(ctx context.Context, orderID string) (*order.Order, error)
}

// Authenticator checks operator API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key, scope string) (*auth.APIKeyInfo, error)
}

// Compile-time checks for the production implementations.
var (
	_ Checkout      = (*checkout.Service)(nil)
	_ Authenticator = (*auth.Authenticator)(nil)
)

const defaultMaxBodyBytes = 1 << 20

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler implements the HTTP API on top of the checkout service.
type Handler struct {
	checkout     Checkout
	verifier     Verifier
	keys         Authenticator
	maxBodyBytes int64
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(cfg Config, svc Checkout, verifier Verifier, keys Authenticator) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		checkout:     svc,
		verifier:     verifier,
		keys:         keys,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Router returns the API routes mounted under /api. Callers may add more
// routes, such as health probes, to the returned router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Put("/carts/{owner}", h.PutCart)
		r.Get("/carts/{owner}", h.GetCart)

		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Get("/{id}", h.GetSession)
			r.Put("/{id}/options", h.SetOptions)
			r.Post("/{id}/coupon", h.ApplyCoupon)
			r.Post("/{id}/submit", h.Submit)
			r.Post("/{id}/confirm", h.Confirm)
		})

		r.Get("/orders/latest/{owner}", h.LatestOrder)
		r.With(h.RequireAPIKey(auth.ScopeOrdersVerify)).
			Post("/admin/orders/{id}/verify", h.VerifyOrder)
	})
	return r
}
