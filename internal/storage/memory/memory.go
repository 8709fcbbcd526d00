// Package memory implements the repositories in process memory. It backs
// local development and single-instance deployments without a database.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
)

var (
	_ checkout.StateStore = (*StateStore)(nil)
	_ order.Repository    = (*OrderRepository)(nil)
	_ coupon.Repository   = (*CouponRepository)(nil)
	_ auth.Repository     = (*APIKeyRepository)(nil)
)

type stateKey struct {
	owner string
	key   string
}

// StateStore keeps per-owner storefront state in a map.
type StateStore struct {
	mu sync.RWMutex
	m  map[stateKey][]byte
}

// NewStateStore returns an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{m: make(map[stateKey][]byte)}
}

func (s *StateStore) Get(_ context.Context, owner, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[stateKey{owner, key}]
	if !ok {
		return nil, checkout.ErrStateNotFound
	}
	return slices.Clone(v), nil
}

func (s *StateStore) Set(_ context.Context, owner, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[stateKey{owner, key}] = slices.Clone(value)
	return nil
}

func (s *StateStore) Delete(_ context.Context, owner, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, stateKey{owner, key})
	return nil
}

// CouponRepository holds coupon rules keyed by normalized code.
type CouponRepository struct {
	mu sync.RWMutex
	m  map[string]coupon.Rule
}

// NewCouponRepository returns a CouponRepository holding rules.
func NewCouponRepository(rules ...coupon.Rule) *CouponRepository {
	r := &CouponRepository{m: make(map[string]coupon.Rule, len(rules))}
	_ = r.UpsertBatch(context.Background(), rules)
	return r
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.m[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &rule, nil
}

// Upsert creates or replaces a rule, keeping the usage counter of an
// existing one.
func (r *CouponRepository) Upsert(ctx context.Context, rule coupon.Rule) error {
	return r.UpsertBatch(ctx, []coupon.Rule{rule})
}

func (r *CouponRepository) UpsertBatch(_ context.Context, rules []coupon.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		rule.Code = coupon.NormalizeCode(rule.Code)
		if prev, ok := r.m[rule.Code]; ok {
			rule.Uses = prev.Uses
		} else {
			rule.Uses = 0
		}
		r.m[rule.Code] = rule
	}
	return nil
}

func (r *CouponRepository) use(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code = coupon.NormalizeCode(code)
	if rule, ok := r.m[code]; ok {
		rule.Uses++
		r.m[code] = rule
	}
}

// OrderRepository stores orders by id with an idempotency key index.
type OrderRepository struct {
	coupons *CouponRepository

	mu      sync.RWMutex
	byID    map[string]*order.Order
	byKey   map[string]string
	claimed map[string]bool
}

// NewOrderRepository returns an OrderRepository. When coupons is not nil, an
// order counts a use of its coupon there the first time it reaches a status
// that claims the coupon.
func NewOrderRepository(coupons *CouponRepository) *OrderRepository {
	return &OrderRepository{
		coupons: coupons,
		byID:    make(map[string]*order.Order),
		byKey:   make(map[string]string),
		claimed: make(map[string]bool),
	}
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) (*order.Order, error) {
	r.mu.Lock()
	if id, ok := r.byKey[o.IdempotencyKey]; ok {
		existing := clone(r.byID[id])
		r.mu.Unlock()
		return existing, nil
	}
	stored := clone(o)
	stored.Address = stored.Address.WithoutPassword()
	r.byID[o.ID] = stored
	r.byKey[o.IdempotencyKey] = o.ID
	claim := r.claim(stored)
	r.mu.Unlock()

	if claim {
		r.coupons.use(o.CouponCode)
	}
	return o, nil
}

// claim marks the coupon of o as used when its status claims it and reports
// whether a use should be counted. Callers hold r.mu.
func (r *OrderRepository) claim(o *order.Order) bool {
	if r.coupons == nil || o.CouponCode == "" || r.claimed[o.ID] || !o.Status.ClaimsCoupon() {
		return false
	}
	r.claimed[o.ID] = true
	return true
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return clone(o), nil
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, order.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) SetPaymentRef(_ context.Context, id, ref string) error {
	return r.update(id, func(o *order.Order) { o.PaymentRef = ref })
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status) error {
	r.mu.Lock()
	o, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return order.ErrNotFound
	}
	o.Status = status
	claim, code := r.claim(o), o.CouponCode
	r.mu.Unlock()

	if claim {
		r.coupons.use(code)
	}
	return nil
}

func (r *OrderRepository) update(id string, fn func(o *order.Order)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	fn(o)
	return nil
}

func clone(o *order.Order) *order.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// APIKeyRepository holds API keys by hash.
type APIKeyRepository struct {
	mu sync.RWMutex
	m  map[string]auth.APIKeyInfo
}

// NewAPIKeyRepository returns an empty APIKeyRepository.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{m: make(map[string]auth.APIKeyInfo)}
}

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.m[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &info, nil
}

// Create stores a key. Creating a key whose hash already exists is a no-op.
func (r *APIKeyRepository) Create(_ context.Context, info auth.APIKeyInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[info.KeyHash]; !ok {
		info.Scopes = slices.Clone(info.Scopes)
		r.m[info.KeyHash] = info
	}
	return nil
}
