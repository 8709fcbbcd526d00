// Package checkout runs checkout sessions: it prices the cart, assembles the
// order draft and dispatches it to the selected payment backend.
package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/internal/account"
	"github.com/xenking/rig-checkout/internal/domain/cart"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/payment"
)

const (
	defaultSessionTTL = 30 * time.Minute
	minSweepInterval  = time.Second
)

// Deps are the collaborators of a Service.
type Deps struct {
	Store      StateStore
	Coupons    coupon.Validator
	Strategies []payment.Strategy
	Accounts   account.Creator
	Logger     *zap.Logger
	Meter      metric.Meter
	Tracer     trace.Tracer
	Clock      func() time.Time
	SessionTTL time.Duration
}

// Service owns the checkout sessions.
type Service struct {
	store      StateStore
	coupons    coupon.Validator
	strategies map[order.Method]payment.Strategy
	accounts   account.Creator
	lg         *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	ttl        time.Duration
	newID      func() string

	submissions metric.Int64Counter
	completions metric.Int64Counter

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a Service.
func New(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("state store is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("coupon validator is required")
	}
	if deps.Accounts == nil {
		deps.Accounts = account.Disabled{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Meter == nil {
		deps.Meter = noop.NewMeterProvider().Meter("checkout")
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer("checkout")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = defaultSessionTTL
	}

	strategies := make(map[order.Method]payment.Strategy, len(deps.Strategies))
	for _, s := range deps.Strategies {
		strategies[s.Method()] = s
	}

	submissions, err := deps.Meter.Int64Counter("checkout.submissions",
		metric.WithDescription("Checkout submissions by payment method and result"))
	if err != nil {
		return nil, errors.Wrap(err, "create submissions counter")
	}
	completions, err := deps.Meter.Int64Counter("checkout.completions",
		metric.WithDescription("Checkouts that reached the completed state"))
	if err != nil {
		return nil, errors.Wrap(err, "create completions counter")
	}

	return &Service{
		store:       deps.Store,
		coupons:     deps.Coupons,
		strategies:  strategies,
		accounts:    deps.Accounts,
		lg:          deps.Logger,
		tracer:      deps.Tracer,
		now:         deps.Clock,
		ttl:         deps.SessionTTL,
		newID:       func() string { return uuid.NewString() },
		submissions: submissions,
		completions: completions,
		sessions:    map[string]*Session{},
	}, nil
}

// Open starts a session for owner and returns it together with the last
// address the owner checked out with, if any.
func (s *Service) Open(ctx context.Context, owner string) (*Session, *order.Address, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, nil, ErrOwnerRequired
	}

	sess := newSession(s.newID(), owner, s.coupons, s.now())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.lg.Debug("Opened checkout session", zap.String("session_id", sess.ID), zap.String("owner", owner))

	prefill, err := s.lastAddress(ctx, owner)
	if err != nil {
		s.lg.Warn("Load last shipping address", zap.String("owner", owner), zap.Error(err))
		return sess, nil, nil
	}
	return sess, prefill, nil
}

// Session returns a live session and marks it as used.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// Run expires idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expire(); n > 0 {
				s.lg.Debug("Expired checkout sessions", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) sweepInterval() time.Duration {
	return max(s.ttl/2, minSweepInterval)
}

func (s *Service) expire() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// PutCart replaces the owner's raw cart.
func (s *Service) PutCart(ctx context.Context, owner string, items []cart.RawItem) (cart.Result, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return cart.Result{}, ErrOwnerRequired
	}
	if err := s.store.Set(ctx, owner, KeyCart, cart.EncodeRaw(items)); err != nil {
		return cart.Result{}, errors.Wrap(err, "save cart")
	}
	return cart.Normalize(ctx, items), nil
}

// Cart returns the owner's normalized cart. A missing cart is empty.
func (s *Service) Cart(ctx context.Context, owner string) (cart.Result, error) {
	raw, err := s.loadCart(ctx, owner)
	if err != nil {
		return cart.Result{}, err
	}
	return cart.Normalize(ctx, raw), nil
}

func (s *Service) loadCart(ctx context.Context, owner string) ([]cart.RawItem, error) {
	data, err := s.store.Get(ctx, owner, KeyCart)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load cart")
	}
	raw, err := cart.DecodeRaw(data)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) lastAddress(ctx context.Context, owner string) (*order.Address, error) {
	data, err := s.store.Get(ctx, owner, KeyShippingAddress)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	a, err := decodeAddress(data)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestOrder returns the references of the owner's most recent order.
func (s *Service) LatestOrder(ctx context.Context, owner string) (*OrderRefs, error) {
	data, err := s.store.Get(ctx, owner, KeyOrderRefs)
	if err != nil {
		return nil, err
	}
	refs, err := DecodeOrderRefs(data)
	if err != nil {
		return nil, err
	}
	return &refs, nil
}
