package reservationv1

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// Status is the state of a fund reservation.
type Status string

const (
	StatusActive            Status = "active"
	StatusPartiallyReleased Status = "partially_released"
	StatusReleased          Status = "released"
	StatusCancelled         Status = "cancelled"
)

// IsOpen reports whether funds may still be consumed or released.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusPartiallyReleased
}

// Reservation earmarks part of a wallet's balance for one order.
type Reservation struct {
	ID             string
	UserID         string
	OrderID        string
	Currency       marketv1.Currency
	ReservedAmount decimal.Decimal
	ConsumedAmount decimal.Decimal
	ReleasedAmount decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New returns an active reservation.
func New(id, userID, orderID string, currency marketv1.Currency, amount decimal.Decimal, now time.Time) *Reservation {
	return &Reservation{
		ID:             id,
		UserID:         userID,
		OrderID:        orderID,
		Currency:       currency,
		ReservedAmount: amount,
		ConsumedAmount: decimal.Zero,
		ReleasedAmount: decimal.Zero,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WalletKey is the wallet the funds are held in.
func (r *Reservation) WalletKey() ledgerv1.WalletKey {
	return ledgerv1.WalletKey{UserID: r.UserID, Currency: r.Currency}
}

// Outstanding is what is still held: reserved minus consumed minus released.
func (r *Reservation) Outstanding() decimal.Decimal {
	return r.ReservedAmount.Sub(r.ConsumedAmount).Sub(r.ReleasedAmount)
}

// Consume records amount settled by a trade.
func (r *Reservation) Consume(amount decimal.Decimal, now time.Time) error {
	if !r.Status.IsOpen() {
		return errors.New(errors.SettlementInvariantViolation, "reservation %s is %s", r.ID, r.Status)
	}
	if !amount.IsPositive() || amount.GreaterThan(r.Outstanding()) {
		return errors.New(errors.SettlementInvariantViolation,
			"consume %s exceeds outstanding %s of reservation %s", amount, r.Outstanding(), r.ID)
	}
	r.ConsumedAmount = r.ConsumedAmount.Add(amount)
	r.UpdatedAt = now
	return nil
}

// PartialRelease returns amount to the owner. The reservation becomes released
// once nothing is outstanding.
func (r *Reservation) PartialRelease(amount decimal.Decimal, now time.Time) error {
	if !r.Status.IsOpen() {
		return errors.New(errors.ReservationAlreadyReleased, "reservation %s is %s", r.ID, r.Status)
	}
	if !amount.IsPositive() || amount.GreaterThan(r.Outstanding()) {
		return errors.New(errors.ValidationError,
			"release %s must be positive and at most outstanding %s", amount, r.Outstanding()).WithField("amount")
	}
	r.ReleasedAmount = r.ReleasedAmount.Add(amount)
	r.UpdatedAt = now
	if r.Outstanding().IsZero() {
		r.Status = StatusReleased
	} else {
		r.Status = StatusPartiallyReleased
	}
	return nil
}

// Close returns everything outstanding and moves the reservation to status,
// which must be released or cancelled. It reports the amount returned.
func (r *Reservation) Close(status Status, now time.Time) (decimal.Decimal, error) {
	if !r.Status.IsOpen() {
		return decimal.Zero, errors.New(errors.ReservationAlreadyReleased, "reservation %s is %s", r.ID, r.Status)
	}
	outstanding := r.Outstanding()
	r.ReleasedAmount = r.ReleasedAmount.Add(outstanding)
	r.Status = status
	r.UpdatedAt = now
	return outstanding, nil
}

// Clone returns a copy.
func (r *Reservation) Clone() *Reservation {
	c := *r
	return &c
}

// Repository persists reservations.
//
//go:generate mockgen -source reservation.go -destination=mock/reservation_mock.go -package=reservationv1_mock
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	Update(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id string) (*Reservation, error)
	// GetForUpdate locks the row until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*Reservation, error)
	GetByOrderID(ctx context.Context, orderID string) (*Reservation, error)
	// GetByOrderIDForUpdate locks the row until the unit of work ends.
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*Reservation, error)
	// SumOutstanding totals Outstanding over open reservations of a wallet.
	SumOutstanding(ctx context.Context, key ledgerv1.WalletKey) (decimal.Decimal, error)
}
