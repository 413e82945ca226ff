package liquidity

import (
	"time"

	"github.com/shopspring/decimal"

	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/orderbook"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Query describes a prospective taker.
type Query struct {
	Side               marketv1.Side
	Quantity           decimal.Decimal
	MaxSlippagePercent decimal.Decimal
	// UserID excludes the taker's own resting orders.
	UserID string
	// HoldID lets the taker see quantity held by its own reservation.
	HoldID string
}

// BandPrice is the worst acceptable price for a taker on side when the best
// opposite price is best.
func BandPrice(side marketv1.Side, best, maxSlippagePercent decimal.Decimal) decimal.Decimal {
	factor := maxSlippagePercent.Div(hundred)
	if side == marketv1.Buy {
		return best.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return best.Mul(decimal.NewFromInt(1).Sub(factor))
}

func WithinBand(side marketv1.Side, price, band decimal.Decimal) bool {
	if side == marketv1.Buy {
		return price.LessThanOrEqual(band)
	}
	return price.GreaterThanOrEqual(band)
}

// Analyze walks the opposite side of ob in price-time order inside the
// slippage band. The band is anchored at the best opposite price. Own orders
// and quantity held by other reservations are left out.
func Analyze(ob *orderbook.Orderbook, pair marketv1.Pair, q Query, now time.Time) *liquidityv1.Report {
	report := &liquidityv1.Report{
		Side:               q.Side,
		Pair:               pair,
		RequestedQuantity:  q.Quantity,
		AvailableQuantity:  decimal.Zero,
		EstimatedPrice:     decimal.Zero,
		EstimatedSlippage:  decimal.Zero,
		BestPrice:          decimal.Zero,
		WorstPrice:         decimal.Zero,
		BandPrice:          decimal.Zero,
		MaxSlippagePercent: q.MaxSlippagePercent,
	}

	opposite := q.Side.Opposite()
	best, ok := ob.Best(opposite)
	if !ok {
		report.OppositeEmpty = true
		return report
	}
	report.BestPrice = best
	report.BandPrice = BandPrice(q.Side, best, q.MaxSlippagePercent)

	need := q.Quantity
	notional := decimal.Zero
	ob.Walk(opposite, now, q.HoldID, func(e *orderbookv1.Entry, matchable decimal.Decimal) bool {
		if !WithinBand(q.Side, e.Price, report.BandPrice) {
			return false
		}
		if e.UserID == q.UserID || !matchable.IsPositive() {
			return true
		}

		report.AvailableQuantity = report.AvailableQuantity.Add(matchable)
		if need.IsPositive() {
			take := decimal.Min(need, matchable)
			need = need.Sub(take)
			notional = notional.Add(take.Mul(e.Price))
			report.WorstPrice = e.Price
			report.Allocations = append(report.Allocations, liquidityv1.Allocation{
				OrderID:  e.OrderID,
				Price:    e.Price,
				Quantity: take,
			})
		}
		return true
	})

	filled := q.Quantity.Sub(need)
	if filled.IsPositive() {
		report.EstimatedPrice = notional.Div(filled)
		report.EstimatedSlippage = report.EstimatedPrice.Sub(best).Abs().Div(best).Mul(hundred)
	}
	report.HasLiquidity = report.AvailableQuantity.GreaterThanOrEqual(q.Quantity)
	return report
}

// Require turns a report into the placement error for a taker that found
// nothing to match: InsufficientLiquidity when no eligible order rests on the
// opposite side, SlippageExceeded when eligible orders exist only outside the
// band.
func Require(ob *orderbook.Orderbook, r *liquidityv1.Report, q Query, now time.Time) error {
	if r.AvailableQuantity.IsPositive() {
		return nil
	}
	if r.OppositeEmpty || !hasEligible(ob, q, now) {
		return errors.New(errors.InsufficientLiquidity, "no %s liquidity on %s", q.Side.Opposite(), r.Pair)
	}
	return errors.New(errors.SlippageExceeded,
		"no liquidity within %s%% of best price %s on %s", q.MaxSlippagePercent, r.BestPrice, r.Pair)
}

func hasEligible(ob *orderbook.Orderbook, q Query, now time.Time) bool {
	found := false
	ob.Walk(q.Side.Opposite(), now, q.HoldID, func(e *orderbookv1.Entry, matchable decimal.Decimal) bool {
		if e.UserID != q.UserID && matchable.IsPositive() {
			found = true
			return false
		}
		return true
	})
	return found
}
