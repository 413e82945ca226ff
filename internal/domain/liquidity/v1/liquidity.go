package liquidityv1

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
)

// Report describes the liquidity a taker would meet on the opposite side of
// the book within its slippage band.
type Report struct {
	Side               marketv1.Side   `json:"side"`
	Pair               marketv1.Pair   `json:"pair"`
	RequestedQuantity  decimal.Decimal `json:"requested_quantity"`
	HasLiquidity       bool            `json:"has_liquidity"`
	AvailableQuantity  decimal.Decimal `json:"available_quantity"`
	EstimatedPrice     decimal.Decimal `json:"estimated_price"`
	EstimatedSlippage  decimal.Decimal `json:"estimated_slippage"`
	BestPrice          decimal.Decimal `json:"best_price"`
	WorstPrice         decimal.Decimal `json:"worst_price"`
	BandPrice          decimal.Decimal `json:"band_price"`
	MaxSlippagePercent decimal.Decimal `json:"max_slippage_percent"`
	// OppositeEmpty is set when no order rests on the opposite side at all.
	OppositeEmpty bool `json:"opposite_empty"`
	// Allocations lists the resting orders the walk would consume, in order.
	Allocations []Allocation `json:"allocations,omitempty"`
}

// Allocation is quantity taken from one resting order.
type Allocation struct {
	OrderID  string          `json:"order_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Reservation is a time-boxed hold on resting liquidity. While it is live the
// held quantity is invisible to other takers.
type Reservation struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Pair               marketv1.Pair   `json:"pair"`
	Side               marketv1.Side   `json:"side"`
	Quantity           decimal.Decimal `json:"quantity"`
	MaxSlippagePercent decimal.Decimal `json:"max_slippage_percent"`
	BandPrice          decimal.Decimal `json:"band_price"`
	Allocations        []Allocation    `json:"allocations"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// Expired reports whether the hold has lapsed at now.
func (r *Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HeldQuantity totals the allocations.
func (r *Reservation) HeldQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Quantity)
	}
	return total
}

// Store keeps liquidity reservations until they expire. Get returns
// ReservationNotFound once the TTL has passed.
//
//go:generate mockgen -source liquidity.go -destination=mock/liquidity_mock.go -package=liquidityv1_mock
type Store interface {
	Save(ctx context.Context, r *Reservation, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Reservation, error)
	Delete(ctx context.Context, id string) error
	// List returns every reservation whose TTL has not passed.
	List(ctx context.Context) ([]*Reservation, error)
}
