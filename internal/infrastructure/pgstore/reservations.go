package pgstore

import (
	"context"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

const reservationColumns = `id, user_id, order_id, currency, reserved_amount, consumed_amount, released_amount,
	status, created_at, updated_at`

// ReservationRepository stores fund reservations in the fund_reservations table.
type ReservationRepository struct {
	s *Store
}

var _ reservationv1.Repository = (*ReservationRepository)(nil)

// Create inserts res.
func (r *ReservationRepository) Create(ctx context.Context, res *reservationv1.Reservation) error {
	query := `INSERT INTO fund_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.s.db.Exec(ctx, query,
		res.ID,
		res.UserID,
		res.OrderID,
		string(res.Currency),
		res.ReservedAmount,
		res.ConsumedAmount,
		res.ReleasedAmount,
		string(res.Status),
		res.CreatedAt,
		res.UpdatedAt,
	)
	return wrap(err)
}

// Update writes the amounts and status of res.
func (r *ReservationRepository) Update(ctx context.Context, res *reservationv1.Reservation) error {
	query := `UPDATE fund_reservations SET consumed_amount = $1, released_amount = $2, status = $3, updated_at = $4
		WHERE id = $5`

	cmd, err := r.s.db.Exec(ctx, query,
		res.ConsumedAmount,
		res.ReleasedAmount,
		string(res.Status),
		res.UpdatedAt,
		res.ID,
	)
	if err != nil {
		return wrap(err)
	}
	if cmd.RowsAffected() == 0 {
		return errors.New(errors.ReservationNotFound, "reservation %s not found", res.ID)
	}
	return nil
}

// GetByID reads a reservation without locking it.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM fund_reservations WHERE id = $1`, id)
}

// GetForUpdate reads a reservation and locks its row.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	if err := r.s.requireTx(ctx, "GetForUpdate"); err != nil {
		return nil, err
	}
	return r.get(ctx, `SELECT `+reservationColumns+` FROM fund_reservations WHERE id = $1 FOR UPDATE`, id)
}

// GetByOrderID reads the reservation backing an order.
func (r *ReservationRepository) GetByOrderID(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM fund_reservations WHERE order_id = $1`, orderID)
}

// GetByOrderIDForUpdate reads the reservation backing an order and locks it.
func (r *ReservationRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	if err := r.s.requireTx(ctx, "GetByOrderIDForUpdate"); err != nil {
		return nil, err
	}
	return r.get(ctx, `SELECT `+reservationColumns+` FROM fund_reservations WHERE order_id = $1 FOR UPDATE`, orderID)
}

func (r *ReservationRepository) get(ctx context.Context, query, arg string) (*reservationv1.Reservation, error) {
	var (
		res              reservationv1.Reservation
		currency, status string
	)
	err := r.s.db.QueryRow(ctx, query, arg).Scan(
		&res.ID,
		&res.UserID,
		&res.OrderID,
		&currency,
		&res.ReservedAmount,
		&res.ConsumedAmount,
		&res.ReleasedAmount,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if notFound(err) {
		return nil, errors.New(errors.ReservationNotFound, "reservation for %s not found", arg)
	}
	if err != nil {
		return nil, wrap(err)
	}
	res.Currency = marketv1.Currency(currency)
	res.Status = reservationv1.Status(status)
	return &res, nil
}

// SumOutstanding totals what open reservations of a wallet still hold.
func (r *ReservationRepository) SumOutstanding(ctx context.Context, key ledgerv1.WalletKey) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(reserved_amount - consumed_amount - released_amount), 0)
		FROM fund_reservations
		WHERE user_id = $1 AND currency = $2 AND status IN ('active', 'partially_released')`

	var total decimal.Decimal
	if err := r.s.db.QueryRow(ctx, query, key.UserID, string(key.Currency)).Scan(&total); err != nil {
		return decimal.Zero, wrap(err)
	}
	return total, nil
}
