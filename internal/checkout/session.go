package checkout

import (
	"sync"
	"time"

	"github.com/xenking/rig-checkout/internal/domain/buildservice"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/domain/shipping"
	"github.com/xenking/rig-checkout/internal/payment"
)

// State is the position of a session in the payment flow.
type State string

const (
	// StateReady accepts option changes and a payment method submission.
	StateReady State = "ready"
	// StateSubmitting means a draft is being sent to a payment backend.
	StateSubmitting State = "submitting"
	// StateAwaitingConfirmation means a card payment must be confirmed.
	StateAwaitingConfirmation State = "awaiting_confirmation"
	// StateConfirming means a card confirmation is being checked.
	StateConfirming State = "confirming"
	// StateRedirecting means the customer was sent to the wallet provider.
	StateRedirecting State = "redirecting"
	// StateCompleted means the order was placed.
	StateCompleted State = "completed"
)

// Busy reports whether a backend call is in flight.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateConfirming
}

// Terminal reports whether the session accepts no further changes.
func (s State) Terminal() bool {
	return s == StateRedirecting || s == StateCompleted
}

// Outcome is what the storefront needs after a submission or confirmation.
type Outcome struct {
	State        State
	Method       order.Method
	OrderID      string
	OrderNumber  string
	PaymentRef   string
	ClientSecret string
	RedirectURL  string
}

// Session is one customer's checkout.
type Session struct {
	ID    string
	Owner string

	coupons *coupon.Resolver

	mu       sync.Mutex
	state    State
	choice   buildservice.Choice
	shipping string
	lastErr  string
	lastSeen time.Time

	pending       *payment.Submission
	pendingMethod order.Method
	pendingDraft  *order.Draft
	outcome       *Outcome
}

func newSession(id, owner string, coupons coupon.Validator, now time.Time) *Session {
	return &Session{
		ID:       id,
		Owner:    owner,
		coupons:  coupon.NewResolver(coupons),
		state:    StateReady,
		shipping: shipping.DefaultID,
		lastSeen: now,
	}
}

// snapshot is a consistent copy of the mutable session fields.
type snapshot struct {
	state    State
	choice   buildservice.Choice
	shipping string
	lastErr  string
	outcome  *Outcome
}

func (s *Session) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		state:    s.state,
		choice:   s.choice,
		shipping: s.shipping,
		lastErr:  s.lastErr,
	}
	if s.outcome != nil {
		o := *s.outcome
		snap.outcome = &o
	}
	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// expired reports whether the session was idle for longer than ttl. Sessions
// with a backend call in flight never expire.
func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Busy() && now.Sub(s.lastSeen) > ttl
}

// checkMutable returns an error when the session cannot accept changes.
// Callers hold s.mu.
func (s *Session) checkMutable() error {
	switch {
	case s.state.Busy():
		return ErrSubmissionInFlight
	case s.state.Terminal():
		return ErrSessionClosed
	}
	return nil
}

// fail returns the session to ready with msg as the error to show.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.lastErr = msg
	s.pending = nil
	s.pendingDraft = nil
	s.pendingMethod = ""
}
