package orderv1

import (
	"time"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is an open order with no fills.
	StatusPending Status = "pending"
	// StatusPartiallyFilled is an open order with at least one fill.
	StatusPartiallyFilled Status = "partially_filled"
	// StatusFilled is terminal: nothing remains.
	StatusFilled Status = "filled"
	// StatusCancelled is terminal: the owner or the engine withdrew the order.
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Type names the order kind.
type Type string

const (
	// TypeMarket executes against resting liquidity at the makers' prices.
	TypeMarket Type = "market"
	// TypeLimit executes at its limit price or better and may rest.
	TypeLimit Type = "limit"
)

// Kind is either a market kind or a limit kind. Only the limit kind carries a
// price; build values with Market and Limit.
type Kind interface {
	Type() Type
	Price() (decimal.Decimal, bool)
}

type marketKind struct{}

func (marketKind) Type() Type                     { return TypeMarket }
func (marketKind) Price() (decimal.Decimal, bool) { return decimal.Zero, false }

type limitKind struct {
	price decimal.Decimal
}

func (limitKind) Type() Type                       { return TypeLimit }
func (l limitKind) Price() (decimal.Decimal, bool) { return l.price, true }

// Market returns the kind of a market order.
func Market() Kind { return marketKind{} }

// Limit returns the kind of a limit order at price.
func Limit(price decimal.Decimal) Kind { return limitKind{price: price} }

// KindOf rebuilds a Kind from its stored form.
func KindOf(t Type, price *decimal.Decimal) (Kind, error) {
	switch t {
	case TypeMarket:
		if price != nil {
			return nil, errors.New(errors.ValidationError, "market order cannot carry a price").WithField("price")
		}
		return Market(), nil
	case TypeLimit:
		if price == nil {
			return nil, errors.New(errors.ValidationError, "limit order requires a price").WithField("price")
		}
		return Limit(*price), nil
	default:
		return nil, errors.New(errors.ValidationError, "unknown order type %q", t).WithField("order_type")
	}
}

// Order is a buy or sell instruction for a currency pair. Quantities are in
// base currency units.
type Order struct {
	ID     string
	UserID string
	Side   marketv1.Side
	Kind   Kind
	Pair   marketv1.Pair

	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	FilledQuantity    decimal.Decimal
	// DiscardedQuantity is the unfilled part of a market order dropped when
	// crossable liquidity ran out. Quantity is reduced by the same amount.
	DiscardedQuantity decimal.Decimal

	ReservedAmount      decimal.Decimal
	ReservationCurrency marketv1.Currency

	Status Status
	// Sequence is assigned on insert and breaks ties between orders created
	// at the same instant.
	Sequence    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FilledAt    *time.Time
	CancelledAt *time.Time
}

// NewParams holds the inputs of New.
type NewParams struct {
	ID       string
	UserID   string
	Side     marketv1.Side
	Kind     Kind
	Pair     marketv1.Pair
	Quantity decimal.Decimal
	Now      time.Time
}

// New builds a pending order after validating quantity, side and price.
func New(p NewParams) (*Order, error) {
	if !p.Side.Valid() {
		return nil, errors.New(errors.ValidationError, "invalid side %q", p.Side).WithField("side")
	}
	if !p.Quantity.IsPositive() {
		return nil, errors.New(errors.ValidationError, "quantity must be positive").WithField("quantity")
	}
	if p.Kind == nil {
		return nil, errors.New(errors.ValidationError, "order kind is required").WithField("order_type")
	}
	if price, ok := p.Kind.Price(); ok && !price.IsPositive() {
		return nil, errors.New(errors.ValidationError, "price must be positive").WithField("price")
	}

	return &Order{
		ID:                p.ID,
		UserID:            p.UserID,
		Side:              p.Side,
		Kind:              p.Kind,
		Pair:              p.Pair,
		Quantity:          p.Quantity,
		RemainingQuantity: p.Quantity,
		FilledQuantity:    decimal.Zero,
		DiscardedQuantity: decimal.Zero,
		ReservedAmount:    decimal.Zero,
		Status:            StatusPending,
		CreatedAt:         p.Now,
		UpdatedAt:         p.Now,
	}, nil
}

// IsOpen reports whether the order can still trade or be cancelled.
func (o *Order) IsOpen() bool {
	return o.Status == StatusPending || o.Status == StatusPartiallyFilled
}

// IsMarket reports whether the order is a market order.
func (o *Order) IsMarket() bool {
	return o.Kind != nil && o.Kind.Type() == TypeMarket
}

// LimitPrice returns the limit price, if any.
func (o *Order) LimitPrice() (decimal.Decimal, bool) {
	if o.Kind == nil {
		return decimal.Zero, false
	}
	return o.Kind.Price()
}

// Crosses reports whether o accepts a trade at price.
func (o *Order) Crosses(price decimal.Decimal) bool {
	limit, ok := o.LimitPrice()
	if !ok {
		return true
	}
	if o.Side == marketv1.Buy {
		return price.LessThanOrEqual(limit)
	}
	return price.GreaterThanOrEqual(limit)
}

// Fill records an execution of qty.
func (o *Order) Fill(qty decimal.Decimal, at time.Time) error {
	if !o.IsOpen() {
		return errors.New(errors.InvalidOrderState, "order %s is %s", o.ID, o.Status)
	}
	if !qty.IsPositive() || qty.GreaterThan(o.RemainingQuantity) {
		return errors.New(errors.SettlementInvariantViolation,
			"fill %s exceeds remaining %s of order %s", qty, o.RemainingQuantity, o.ID)
	}

	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.RemainingQuantity = o.Quantity.Sub(o.FilledQuantity)
	o.UpdatedAt = at
	if o.RemainingQuantity.IsZero() {
		o.Status = StatusFilled
		o.FilledAt = &at
	} else {
		o.Status = StatusPartiallyFilled
	}
	return nil
}

// Cancel withdraws an open order.
func (o *Order) Cancel(at time.Time) error {
	if !o.IsOpen() {
		return errors.New(errors.InvalidOrderState, "order %s is %s and cannot be cancelled", o.ID, o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = at
	o.CancelledAt = &at
	return nil
}

// DiscardRemainder closes a partially matched market order: the unfilled part
// is moved to DiscardedQuantity and the order becomes filled.
func (o *Order) DiscardRemainder(at time.Time) error {
	if !o.IsMarket() {
		return errors.New(errors.InvalidOrderState, "only market orders discard their remainder")
	}
	if !o.IsOpen() || !o.FilledQuantity.IsPositive() {
		return errors.New(errors.InvalidOrderState, "order %s has nothing matched to keep", o.ID)
	}

	o.DiscardedQuantity = o.DiscardedQuantity.Add(o.RemainingQuantity)
	o.Quantity = o.FilledQuantity
	o.RemainingQuantity = decimal.Zero
	o.Status = StatusFilled
	o.UpdatedAt = at
	o.FilledAt = &at
	return nil
}

// CheckInvariants verifies the quantity and status invariants.
func (o *Order) CheckInvariants() error {
	if !o.RemainingQuantity.Equal(o.Quantity.Sub(o.FilledQuantity)) {
		return errors.New(errors.SettlementInvariantViolation,
			"order %s: remaining %s != quantity %s - filled %s", o.ID, o.RemainingQuantity, o.Quantity, o.FilledQuantity)
	}
	if (o.Status == StatusFilled) != o.RemainingQuantity.IsZero() {
		return errors.New(errors.SettlementInvariantViolation,
			"order %s: status %s with remaining %s", o.ID, o.Status, o.RemainingQuantity)
	}
	return nil
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	if o.FilledAt != nil {
		t := *o.FilledAt
		c.FilledAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// Snapshot is the serialisable view of an order used by events and reads.
type Snapshot struct {
	ID                string           `json:"order_id"`
	UserID            string           `json:"user_id"`
	Side              marketv1.Side    `json:"side"`
	Type              Type             `json:"order_type"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Pair              marketv1.Pair    `json:"pair"`
	Quantity          decimal.Decimal  `json:"quantity"`
	FilledQuantity    decimal.Decimal  `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	DiscardedQuantity decimal.Decimal  `json:"discarded_quantity"`
	Status            Status           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	FilledAt          *time.Time       `json:"filled_at,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
}

// Snapshot returns the serialisable view of o.
func (o *Order) Snapshot() Snapshot {
	s := Snapshot{
		ID:                o.ID,
		UserID:            o.UserID,
		Side:              o.Side,
		Pair:              o.Pair,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		DiscardedQuantity: o.DiscardedQuantity,
		Status:            o.Status,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		FilledAt:          o.FilledAt,
		CancelledAt:       o.CancelledAt,
	}
	if o.Kind != nil {
		s.Type = o.Kind.Type()
	}
	if price, ok := o.LimitPrice(); ok {
		s.Price = &price
	}
	return s
}
