package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acampos/tienda-api/internal/pg"
)

var (
	ErrNotFound = errors.New("order not found")
)

type Repository interface {
	// WithTx runs fn as one atomic unit; writes issued inside commit together
	// or not at all.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, o *Order, items []Item) error
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	// GetForUpdate locks the order row until the ambient transaction ends, so
	// concurrent lifecycle transitions on the same order serialize.
	GetForUpdate(ctx context.Context, id string) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	GetItems(ctx context.Context, orderID string) ([]Item, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// withDeadline bounds a standalone call to 5s; inside an atomic unit the
// ambient deadline already applies and is kept.
func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func (r *PGRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return pg.WithTx(ctx, r.db, fn)
}

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) error {
	if _, err := pg.Exec(ctx, r.db, `
    INSERT INTO orders (id, user_id, status, total, address, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
  `, o.ID, o.UserID, o.Status, o.Total, o.Address); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err := pg.Exec(ctx, r.db, `
      INSERT INTO order_items (id, order_id, product_id, quantity, price)
      VALUES ($1,$2,$3,$4,$5)
    `, it.ID, o.ID, it.ProductID, it.Quantity, it.Price); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	return r.get(ctx, id, false)
}

func (r *PGRepo) GetForUpdate(ctx context.Context, id string) (*Order, []Item, error) {
	return r.get(ctx, id, true)
}

func (r *PGRepo) get(ctx context.Context, id string, forUpdate bool) (*Order, []Item, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	query := `
    SELECT id,user_id,status,total::text,COALESCE(address,''),created_at,updated_at
    FROM orders WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o Order
	if err := pg.QueryRow(ctx, r.db, query, id).
		Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.Address, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows || pg.IsInvalidUUID(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get order: %w", err)
	}
	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	rows, err := pg.Query(ctx, r.db, `
    SELECT id,user_id,status,total::text,COALESCE(address,''),created_at,updated_at
    FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.Address, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	tag, err := pg.Exec(ctx, r.db, `
    UPDATE orders
    SET status = $2, updated_at = NOW()
    WHERE id = $1
  `, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	rows, err := pg.Query(ctx, r.db, `
    SELECT id, order_id, product_id, quantity, price::text
    FROM order_items
    WHERE order_id = $1
  `, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
