package memory

import (
	"context"
	"sort"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// OrderRepository stores orders in a Store.
type OrderRepository struct {
	s *Store
}

var _ orderv1.Repository = (*OrderRepository)(nil)

// Create inserts o and assigns its sequence.
func (r *OrderRepository) Create(ctx context.Context, o *orderv1.Order) error {
	return r.s.write(ctx, func(u *unit) error {
		if _, exists := r.s.orders[o.ID]; exists {
			return errors.New(errors.GeneralRepositoryError, "order %s already exists", o.ID)
		}
		r.s.orderSeq++
		o.Sequence = r.s.orderSeq
		r.s.orders[o.ID] = o.Clone()
		u.onRollback(func() {
			delete(r.s.orders, o.ID)
			r.s.orderSeq--
		})
		return nil
	})
}

// Update replaces the stored copy of o.
func (r *OrderRepository) Update(ctx context.Context, o *orderv1.Order) error {
	return r.s.write(ctx, func(u *unit) error {
		prev, ok := r.s.orders[o.ID]
		if !ok {
			return errors.New(errors.OrderNotFound, "order %s not found", o.ID)
		}
		r.s.orders[o.ID] = o.Clone()
		u.onRollback(func() { r.s.orders[o.ID] = prev })
		return nil
	})
}

// GetByID returns a copy of the order.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*orderv1.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, errors.New(errors.OrderNotFound, "order %s not found", id)
	}
	return o.Clone(), nil
}

// GetForUpdate returns a copy of the order. The running unit already excludes
// every other writer.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*orderv1.Order, error) {
	if err := r.s.requireUnit(ctx, "GetForUpdate"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ListOpen returns open orders of pair, oldest first.
func (r *OrderRepository) ListOpen(_ context.Context, pair marketv1.Pair) ([]*orderv1.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*orderv1.Order
	for _, o := range r.s.orders {
		if o.Pair == pair && o.IsOpen() {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
