package memory

import (
	"context"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// ReservationRepository stores fund reservations in a Store.
type ReservationRepository struct {
	s *Store
}

var _ reservationv1.Repository = (*ReservationRepository)(nil)

// Create inserts r. An order has at most one reservation.
func (r *ReservationRepository) Create(ctx context.Context, res *reservationv1.Reservation) error {
	return r.s.write(ctx, func(u *unit) error {
		if _, exists := r.s.reservations[res.ID]; exists {
			return errors.New(errors.GeneralRepositoryError, "reservation %s already exists", res.ID)
		}
		if _, exists := r.s.resByOrder[res.OrderID]; exists && res.OrderID != "" {
			return errors.New(errors.GeneralRepositoryError, "order %s already has a reservation", res.OrderID)
		}
		r.s.reservations[res.ID] = res.Clone()
		if res.OrderID != "" {
			r.s.resByOrder[res.OrderID] = res.ID
		}
		u.onRollback(func() {
			delete(r.s.reservations, res.ID)
			if res.OrderID != "" {
				delete(r.s.resByOrder, res.OrderID)
			}
		})
		return nil
	})
}

// Update replaces the stored copy of res.
func (r *ReservationRepository) Update(ctx context.Context, res *reservationv1.Reservation) error {
	return r.s.write(ctx, func(u *unit) error {
		prev, ok := r.s.reservations[res.ID]
		if !ok {
			return errors.New(errors.ReservationNotFound, "reservation %s not found", res.ID)
		}
		r.s.reservations[res.ID] = res.Clone()
		u.onRollback(func() { r.s.reservations[res.ID] = prev })
		return nil
	})
}

// GetByID returns a copy of the reservation.
func (r *ReservationRepository) GetByID(_ context.Context, id string) (*reservationv1.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	res, ok := r.s.reservations[id]
	if !ok {
		return nil, errors.New(errors.ReservationNotFound, "reservation %s not found", id)
	}
	return res.Clone(), nil
}

// GetForUpdate returns a copy of the reservation inside a unit.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	if err := r.s.requireUnit(ctx, "GetForUpdate"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByOrderID returns the reservation backing an order.
func (r *ReservationRepository) GetByOrderID(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	r.s.mu.RLock()
	id, ok := r.s.resByOrder[orderID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ReservationNotFound, "no reservation for order %s", orderID)
	}
	return r.GetByID(ctx, id)
}

// GetByOrderIDForUpdate returns the reservation backing an order inside a unit.
func (r *ReservationRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	if err := r.s.requireUnit(ctx, "GetByOrderIDForUpdate"); err != nil {
		return nil, err
	}
	return r.GetByOrderID(ctx, orderID)
}

// SumOutstanding totals what open reservations of a wallet still hold.
func (r *ReservationRepository) SumOutstanding(_ context.Context, key ledgerv1.WalletKey) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	total := decimal.Zero
	for _, res := range r.s.reservations {
		if res.WalletKey() == key && res.Status.IsOpen() {
			total = total.Add(res.Outstanding())
		}
	}
	return total, nil
}
