package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

const (
	orderColumns = `id, number, method, status, payment_ref, currency, subtotal, discount,
		shipping_cost, total, coupon_code, build_service, shipping_method, email, items, address,
		idempotency_key, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `, coupon_counted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (idempotency_key) DO NOTHING`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByKeySQL = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	setPaymentRefSQL = `UPDATE orders SET payment_ref = $2, updated_at = NOW() WHERE id = $1`

	lockOrderCouponSQL = `SELECT coupon_code, coupon_counted FROM orders WHERE id = $1 FOR UPDATE`

	updateStatusSQL = `UPDATE orders SET status = $2, coupon_counted = coupon_counted OR $3, updated_at = NOW()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A coupon use is counted in the same
// transaction when the order is created in a status that claims its coupon.
// When the idempotency key was already used, the stored order is returned and
// nothing changes.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address.WithoutPassword())
	if err != nil {
		return nil, fmt.Errorf("marshaling order address: %w", err)
	}

	claim := o.CouponCode != "" && o.Status.ClaimsCoupon()

	var existing *order.Order
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.Number, string(o.Method), string(o.Status), o.PaymentRef, o.Currency,
			o.Subtotal, o.Discount, o.ShippingCost, o.Total, o.CouponCode, o.BuildService,
			o.ShippingMethod, o.Email, itemsJSON, addressJSON, o.IdempotencyKey,
			o.CreatedAt, o.UpdatedAt, claim,
		)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}
		if tag.RowsAffected() == 0 {
			rows, err := tx.Query(ctx, getOrderByKeySQL, o.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("finding order by idempotency key: %w", err)
			}
			found, err := pgx.CollectExactlyOneRow(rows, scanOrder)
			if err != nil {
				return fmt.Errorf("finding order by idempotency key: %w", err)
			}
			existing = &found
			return nil
		}
		if claim {
			if _, err := tx.Exec(ctx, incrementCouponUsesSQL, o.CouponCode); err != nil {
				return fmt.Errorf("incrementing uses for coupon %q: %w", o.CouponCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return o, nil
}

// Get returns the order with the given id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.findOne(ctx, getOrderSQL, id)
}

// FindByIdempotencyKey returns the order created with key or order.ErrNotFound.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return r.findOne(ctx, getOrderByKeySQL, key)
}

func (r *OrderRepository) findOne(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", arg, err)
	}
	return &o, nil
}

// SetPaymentRef records the processor reference of an order.
func (r *OrderRepository) SetPaymentRef(ctx context.Context, id, ref string) error {
	return r.update(ctx, setPaymentRefSQL, id, ref)
}

// UpdateStatus moves an order to status. The first move into a status that
// claims the coupon counts one use of it.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			code    string
			counted bool
		)
		if err := tx.QueryRow(ctx, lockOrderCouponSQL, id).Scan(&code, &counted); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		claim := code != "" && !counted && status.ClaimsCoupon()
		if _, err := tx.Exec(ctx, updateStatusSQL, id, string(status), claim); err != nil {
			return fmt.Errorf("updating order %q: %w", id, err)
		}
		if claim {
			if _, err := tx.Exec(ctx, incrementCouponUsesSQL, code); err != nil {
				return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
			}
		}
		return nil
	})
}

func (r *OrderRepository) update(ctx context.Context, query, id, value string) error {
	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		method      string
		status      string
		itemsJSON   []byte
		addressJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &method, &status, &o.PaymentRef, &o.Currency,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Total, &o.CouponCode, &o.BuildService,
		&o.ShippingMethod, &o.Email, &itemsJSON, &addressJSON, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Method = order.Method(method)
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	return o, nil
}
