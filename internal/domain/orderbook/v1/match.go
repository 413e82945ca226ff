package orderbookv1

import (
	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
)

// Match pairs an incoming taker with a resting maker for a quantity at the
// maker's price. It is the input of settlement.
type Match struct {
	Pair         marketv1.Pair   `json:"pair"`
	TakerOrderID string          `json:"takerOrderID"`
	MakerOrderID string          `json:"makerOrderID"`
	TakerSide    marketv1.Side   `json:"takerSide"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	// BuyCeiling is the per unit price a market buy reserved at (the top of
	// its slippage band). Limit buys use their limit price instead.
	BuyCeiling   decimal.Decimal `json:"buyCeiling"`
}

// BuyOrderID returns the id of the buying order.
func (m Match) BuyOrderID() string {
	if m.TakerSide == marketv1.Buy {
		return m.TakerOrderID
	}
	return m.MakerOrderID
}

// SellOrderID returns the id of the selling order.
func (m Match) SellOrderID() string {
	if m.TakerSide == marketv1.Buy {
		return m.MakerOrderID
	}
	return m.TakerOrderID
}

// Level is one aggregated price level of a depth snapshot.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// Depth is an aggregated snapshot of both sides of a book. Bids are best
// (highest) first, asks best (lowest) first.
type Depth struct {
	Pair marketv1.Pair `json:"pair"`
	Bids []Level       `json:"bids"`
	Asks []Level       `json:"asks"`
}
