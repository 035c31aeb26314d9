package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/acampos/tienda-api/internal/auth"
	"github.com/acampos/tienda-api/internal/events"
)

var (
	ErrNotOwner        = errors.New("order does not belong to caller")
	ErrCannotCancel    = errors.New("order cannot be cancelled in its current status")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// StockAdjuster is the slice of the product repository the lifecycle needs.
// Both methods are tx-aware and apply atomic deltas.
type StockAdjuster interface {
	IncrementStock(ctx context.Context, id string, qty int) error
	DecrementStock(ctx context.Context, id string, qty int) (price string, err error)
}

// Service owns the order state machine and keeps product stock consistent
// with order state. Every mutation runs as one atomic unit.
type Service struct {
	repo   Repository
	stock  StockAdjuster
	events events.Publisher
}

func NewService(repo Repository, stock StockAdjuster, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{repo: repo, stock: stock, events: pub}
}

type Line struct {
	ProductID string
	Quantity  int
}

// PlaceOrder decrements stock for every line, snapshots prices and creates
// the order in PENDING. Insufficient stock on any line aborts the whole unit.
func (s *Service) PlaceOrder(ctx context.Context, userID, address string, lines []Line) (*Order, []Item, error) {
	if len(lines) == 0 {
		return nil, nil, ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, nil, ErrInvalidQuantity
		}
	}

	o := &Order{
		ID:      uuid.NewString(),
		UserID:  userID,
		Status:  StatusPending,
		Address: address,
	}
	var items []Item

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		total := decimal.Zero
		items = items[:0]
		for _, l := range lines {
			price, err := s.stock.DecrementStock(txCtx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			unit, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("parse price %q: %w", price, err)
			}
			total = total.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
			items = append(items, Item{
				ID:        uuid.NewString(),
				OrderID:   o.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     price,
			})
		}
		o.Total = total.StringFixed(2)
		return s.repo.Create(txCtx, o, items)
	})
	if err != nil {
		return nil, nil, err
	}

	s.events.PublishOrderEvent(ctx, events.OrderEvent{
		Type:       events.TypeOrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		OccurredAt: time.Now().UTC(),
	})
	return o, items, nil
}

// CancelOrder transitions the order to CANCELLED and restores the stock of
// every item, all inside one atomic unit. The order row is locked for the
// duration, so a concurrent cancel of the same order observes CANCELLED and
// is rejected; stock is restored exactly once.
func (s *Service) CancelOrder(ctx context.Context, orderID, callerID string) (*Order, error) {
	var out *Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, items, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !auth.IsOwner(o.UserID, callerID) {
			return ErrNotOwner
		}
		if !o.Status.CanCancel() {
			return ErrCannotCancel
		}

		if err := s.repo.UpdateStatus(txCtx, orderID, StatusCancelled); err != nil {
			return err
		}
		for _, it := range items {
			if err := s.stock.IncrementStock(txCtx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		o.Status = StatusCancelled
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", out.ID).Str("user_id", out.UserID).Msg("order cancelled")
	s.events.PublishOrderEvent(ctx, events.OrderEvent{
		Type:       events.TypeOrderCancelled,
		OrderID:    out.ID,
		UserID:     out.UserID,
		Status:     string(out.Status),
		OccurredAt: time.Now().UTC(),
	})
	return out, nil
}

// GetOrder returns the order with its items if the caller owns it.
func (s *Service) GetOrder(ctx context.Context, orderID, callerID string) (*Order, []Item, error) {
	o, items, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !auth.IsOwner(o.UserID, callerID) {
		return nil, nil, ErrNotOwner
	}
	return o, items, nil
}

// ListByUser returns the caller's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
