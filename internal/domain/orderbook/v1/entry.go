package orderbookv1

import (
	"time"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
)

// Entry is a resting order as the book sees it.
type Entry struct {
	OrderID   string          `json:"orderID"`
	UserID    string          `json:"userID"`
	Side      marketv1.Side   `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining"`
	Sequence  int64           `json:"sequence"`
	CreatedAt time.Time       `json:"createdAt"`
	Limit     *Limit          `json:"-"`
}

// EntryFromOrder builds the book entry of a resting limit order.
func EntryFromOrder(o *orderv1.Order) (*Entry, bool) {
	price, ok := o.LimitPrice()
	if !ok || !o.IsOpen() {
		return nil, false
	}
	return &Entry{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Side:      o.Side,
		Price:     price,
		Remaining: o.RemainingQuantity,
		Sequence:  o.Sequence,
		CreatedAt: o.CreatedAt,
	}, true
}

// IsBid checks if the entry is a buy order.
func (e *Entry) IsBid() bool {
	return e.Side == marketv1.Buy
}

// Before reports whether e has time priority over o.
func (e *Entry) Before(o *Entry) bool {
	if !e.CreatedAt.Equal(o.CreatedAt) {
		return e.CreatedAt.Before(o.CreatedAt)
	}
	if e.Sequence != o.Sequence {
		return e.Sequence < o.Sequence
	}
	return e.OrderID < o.OrderID
}
