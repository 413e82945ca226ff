package orderbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
)

// Orderbook is the in-memory price level index of one pair. It is not safe for
// concurrent use; Registry serialises access.
type Orderbook struct {
	pair    marketv1.Pair
	asks    *btree.BTreeG[*orderbookv1.Limit] // ascending price
	bids    *btree.BTreeG[*orderbookv1.Limit] // ascending price, walked in reverse
	entries map[string]*orderbookv1.Entry

	holds  map[string]*liquidityv1.Reservation
	heldOn map[string]map[string]decimal.Decimal // orderID -> holdID -> quantity
}

func byPrice(a, b *orderbookv1.Limit) bool {
	return a.Price.LessThan(b.Price)
}

// NewOrderbook creates an empty book for pair.
func NewOrderbook(pair marketv1.Pair) *Orderbook {
	return &Orderbook{
		pair:    pair,
		asks:    btree.NewBTreeG(byPrice),
		bids:    btree.NewBTreeG(byPrice),
		entries: make(map[string]*orderbookv1.Entry),
		holds:   make(map[string]*liquidityv1.Reservation),
		heldOn:  make(map[string]map[string]decimal.Decimal),
	}
}

// Pair returns the book's pair.
func (ob *Orderbook) Pair() marketv1.Pair {
	return ob.pair
}

func (ob *Orderbook) side(s marketv1.Side) *btree.BTreeG[*orderbookv1.Limit] {
	if s == marketv1.Buy {
		return ob.bids
	}
	return ob.asks
}

// Add rests an entry.
func (ob *Orderbook) Add(e *orderbookv1.Entry) error {
	if e == nil {
		return orderbookv1.ErrNilEntry
	}
	if e.OrderID == "" {
		return fmt.Errorf("order ID cannot be empty")
	}
	if !e.Price.IsPositive() {
		return orderbookv1.ErrInvalidPrice
	}
	if _, exists := ob.entries[e.OrderID]; exists {
		return fmt.Errorf("order with ID %s already exists", e.OrderID)
	}

	levels := ob.side(e.Side)
	limit, ok := levels.Get(&orderbookv1.Limit{Price: e.Price})
	if !ok {
		limit = orderbookv1.NewLimit(e.Price)
		levels.Set(limit)
	}
	if err := limit.AddEntry(e); err != nil {
		if limit.IsEmpty() {
			levels.Delete(limit)
		}
		return err
	}

	ob.entries[e.OrderID] = e
	return nil
}

// Get returns the resting entry of an order.
func (ob *Orderbook) Get(orderID string) (*orderbookv1.Entry, bool) {
	e, ok := ob.entries[orderID]
	return e, ok
}

// Remove takes an order off the book, dropping any holds on it.
func (ob *Orderbook) Remove(orderID string) (*orderbookv1.Entry, bool) {
	e, ok := ob.entries[orderID]
	if !ok {
		return nil, false
	}

	// Store limit reference before removing entry (RemoveEntry clears e.Limit)
	limit := e.Limit
	if limit != nil {
		_ = limit.RemoveEntry(e)
		if limit.IsEmpty() {
			ob.side(e.Side).Delete(limit)
		}
	}
	delete(ob.entries, orderID)
	ob.dropHoldsOn(orderID)
	return e, true
}

// Fill reduces a resting order by qty after a committed trade. Holds on the
// order are trimmed so they never exceed what remains.
func (ob *Orderbook) Fill(orderID string, qty decimal.Decimal) error {
	e, ok := ob.entries[orderID]
	if !ok {
		return fmt.Errorf("order with ID %s does not exist", orderID)
	}

	limit := e.Limit
	if err := limit.Reduce(e, qty); err != nil {
		return err
	}
	if limit.IsEmpty() {
		ob.side(e.Side).Delete(limit)
	}
	if e.Remaining.IsZero() {
		delete(ob.entries, orderID)
		ob.dropHoldsOn(orderID)
		return nil
	}
	ob.trimHolds(orderID, e.Remaining)
	return nil
}

// Best returns the best price on side.
func (ob *Orderbook) Best(side marketv1.Side) (decimal.Decimal, bool) {
	var (
		limit *orderbookv1.Limit
		ok    bool
	)
	if side == marketv1.Buy {
		limit, ok = ob.bids.Max()
	} else {
		limit, ok = ob.asks.Min()
	}
	if !ok {
		return decimal.Zero, false
	}
	return limit.Price, true
}

// Len returns the number of resting orders.
func (ob *Orderbook) Len() int {
	return len(ob.entries)
}

// Walk visits resting orders of side in price-time priority: best price first,
// then oldest first. matchable is the entry's remaining quantity less what is
// held by live liquidity reservations other than ownHold. Walk stops when fn
// returns false.
func (ob *Orderbook) Walk(side marketv1.Side, now time.Time, ownHold string, fn func(e *orderbookv1.Entry, matchable decimal.Decimal) bool) {
	visit := func(limit *orderbookv1.Limit) bool {
		for _, e := range limit.GetEntries() {
			if !fn(e, ob.matchable(e, now, ownHold)) {
				return false
			}
		}
		return true
	}

	if side == marketv1.Buy {
		ob.bids.Reverse(visit)
	} else {
		ob.asks.Scan(visit)
	}
}

// Matchable returns what a taker holding ownHold may take from orderID.
func (ob *Orderbook) Matchable(orderID string, now time.Time, ownHold string) decimal.Decimal {
	e, ok := ob.entries[orderID]
	if !ok {
		return decimal.Zero
	}
	return ob.matchable(e, now, ownHold)
}

func (ob *Orderbook) matchable(e *orderbookv1.Entry, now time.Time, ownHold string) decimal.Decimal {
	held := decimal.Zero
	for holdID, qty := range ob.heldOn[e.OrderID] {
		if holdID == ownHold {
			continue
		}
		if h, ok := ob.holds[holdID]; ok && !h.Expired(now) {
			held = held.Add(qty)
		}
	}
	m := e.Remaining.Sub(held)
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// Depth aggregates up to levels price levels per side. Quantity under live
// liquidity holds at now is left out, and a level held in full is skipped.
func (ob *Orderbook) Depth(levels int, now time.Time) orderbookv1.Depth {
	depth := orderbookv1.Depth{
		Pair: ob.pair,
		Bids: make([]orderbookv1.Level, 0),
		Asks: make([]orderbookv1.Level, 0),
	}
	collect := func(out *[]orderbookv1.Level) func(*orderbookv1.Limit) bool {
		return func(limit *orderbookv1.Limit) bool {
			if len(*out) >= levels {
				return false
			}
			qty := limit.TotalVolume
			if len(ob.holds) > 0 {
				qty = decimal.Zero
				for _, e := range limit.Entries {
					qty = qty.Add(ob.matchable(e, now, ""))
				}
			}
			if !qty.IsPositive() {
				return true
			}
			*out = append(*out, orderbookv1.Level{
				Price:    limit.Price,
				Quantity: qty,
				Orders:   limit.OrderCount(),
			})
			return true
		}
	}
	ob.bids.Reverse(collect(&depth.Bids))
	ob.asks.Scan(collect(&depth.Asks))
	return depth
}

// AddHold registers a liquidity reservation against the resting orders in its
// allocations.
func (ob *Orderbook) AddHold(r *liquidityv1.Reservation) {
	ob.holds[r.ID] = r
	for _, a := range r.Allocations {
		m, ok := ob.heldOn[a.OrderID]
		if !ok {
			m = make(map[string]decimal.Decimal)
			ob.heldOn[a.OrderID] = m
		}
		m[r.ID] = m[r.ID].Add(a.Quantity)
	}
}

// RestoreHold registers a hold read back from storage. Allocations on orders
// that no longer rest are dropped and the rest are capped at what the order
// still has. It reports false when nothing is left to hold.
func (ob *Orderbook) RestoreHold(r *liquidityv1.Reservation) bool {
	if _, ok := ob.holds[r.ID]; ok {
		return true
	}
	kept := make([]liquidityv1.Allocation, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		e, ok := ob.entries[a.OrderID]
		if !ok || e.Side == r.Side || !e.Remaining.IsPositive() {
			continue
		}
		a.Quantity = decimal.Min(a.Quantity, e.Remaining)
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return false
	}
	r.Allocations = kept
	ob.AddHold(r)
	return true
}

// Hold returns a registered liquidity reservation, expired or not.
func (ob *Orderbook) Hold(id string) (*liquidityv1.Reservation, bool) {
	h, ok := ob.holds[id]
	return h, ok
}

// RemoveHold unregisters a liquidity reservation.
func (ob *Orderbook) RemoveHold(id string) (*liquidityv1.Reservation, bool) {
	h, ok := ob.holds[id]
	if !ok {
		return nil, false
	}
	delete(ob.holds, id)
	for _, a := range h.Allocations {
		if m, ok := ob.heldOn[a.OrderID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(ob.heldOn, a.OrderID)
			}
		}
	}
	return h, true
}

// Sweep removes holds expired at now and returns them.
func (ob *Orderbook) Sweep(now time.Time) []*liquidityv1.Reservation {
	var expired []*liquidityv1.Reservation
	for id, h := range ob.holds {
		if h.Expired(now) {
			expired = append(expired, h)
			ob.RemoveHold(id)
		}
	}
	return expired
}

func (ob *Orderbook) dropHoldsOn(orderID string) {
	for holdID := range ob.heldOn[orderID] {
		if h, ok := ob.holds[holdID]; ok {
			kept := h.Allocations[:0:0]
			for _, a := range h.Allocations {
				if a.OrderID != orderID {
					kept = append(kept, a)
				}
			}
			h.Allocations = kept
		}
	}
	delete(ob.heldOn, orderID)
}

func (ob *Orderbook) trimHolds(orderID string, remaining decimal.Decimal) {
	for holdID, qty := range ob.heldOn[orderID] {
		if qty.GreaterThan(remaining) {
			ob.heldOn[orderID][holdID] = remaining
		}
	}
}

// Validate checks every price level and the order index.
func (ob *Orderbook) Validate() error {
	count := 0
	var err error
	check := func(side marketv1.Side) func(*orderbookv1.Limit) bool {
		return func(limit *orderbookv1.Limit) bool {
			if limit.IsEmpty() {
				err = fmt.Errorf("empty %s level %s", side, limit.Price)
				return false
			}
			if err = limit.Validate(); err != nil {
				return false
			}
			for _, e := range limit.Entries {
				if e.Side != side || ob.entries[e.OrderID] != e {
					err = fmt.Errorf("entry %s misplaced", e.OrderID)
					return false
				}
			}
			count += limit.OrderCount()
			return true
		}
	}
	ob.bids.Scan(check(marketv1.Buy))
	if err != nil {
		return err
	}
	ob.asks.Scan(check(marketv1.Sell))
	if err != nil {
		return err
	}
	if count != len(ob.entries) {
		return fmt.Errorf("index holds %d orders, levels hold %d", len(ob.entries), count)
	}
	return nil
}
