package orderbookv1

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNilEntry      = stderrors.New("entry cannot be nil")
	ErrInvalidPrice  = stderrors.New("price must be positive")
	ErrInvalidSize   = stderrors.New("size must be positive")
	ErrOrderNotFound = stderrors.New("order not found in limit")
)

// Limit represents a price level in the order book. Entries are kept in time
// priority.
type Limit struct {
	Price       decimal.Decimal `json:"price"`
	Entries     []*Entry        `json:"entries"`
	TotalVolume decimal.Decimal `json:"totalVolume"`
}

// NewLimit creates a new Limit with the specified price.
func NewLimit(price decimal.Decimal) *Limit {
	return &Limit{
		Price:       price,
		Entries:     make([]*Entry, 0),
		TotalVolume: decimal.Zero,
	}
}

// AddEntry inserts an entry at its time priority position and updates the
// total volume.
func (l *Limit) AddEntry(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}
	if !e.Remaining.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidSize, e.Remaining)
	}

	i := sort.Search(len(l.Entries), func(i int) bool { return e.Before(l.Entries[i]) })
	l.Entries = append(l.Entries, nil)
	copy(l.Entries[i+1:], l.Entries[i:])
	l.Entries[i] = e

	e.Limit = l
	l.TotalVolume = l.TotalVolume.Add(e.Remaining)
	return nil
}

// RemoveEntry removes an entry from the limit and updates the total volume.
func (l *Limit) RemoveEntry(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}

	for i, o := range l.Entries {
		if o == e {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			l.TotalVolume = l.TotalVolume.Sub(e.Remaining)
			e.Limit = nil
			return nil
		}
	}

	return ErrOrderNotFound
}

// Reduce lowers the remaining quantity of a resting entry after a fill. The
// entry is removed when nothing remains.
func (l *Limit) Reduce(e *Entry, qty decimal.Decimal) error {
	if e == nil {
		return ErrNilEntry
	}
	if !qty.IsPositive() || qty.GreaterThan(e.Remaining) {
		return fmt.Errorf("%w: reduce %s of remaining %s", ErrInvalidSize, qty, e.Remaining)
	}
	if e.Limit != l {
		return ErrOrderNotFound
	}

	e.Remaining = e.Remaining.Sub(qty)
	l.TotalVolume = l.TotalVolume.Sub(qty)
	if e.Remaining.IsZero() {
		for i, o := range l.Entries {
			if o == e {
				l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
				break
			}
		}
		e.Limit = nil
	}
	return nil
}

// IsEmpty checks if the limit has no entries
func (l *Limit) IsEmpty() bool {
	return len(l.Entries) == 0
}

// OrderCount returns the number of entries at this limit
func (l *Limit) OrderCount() int {
	return len(l.Entries)
}

// GetEntries returns a copy of the entries in time priority.
func (l *Limit) GetEntries() []*Entry {
	entries := make([]*Entry, len(l.Entries))
	copy(entries, l.Entries)
	return entries
}

// Validate performs basic validation of the limit's state
func (l *Limit) Validate() error {
	if !l.Price.IsPositive() {
		return fmt.Errorf("%w: limit price %s", ErrInvalidPrice, l.Price)
	}

	calculatedVolume := decimal.Zero
	for i, e := range l.Entries {
		if e == nil {
			return fmt.Errorf("nil entry found in limit")
		}
		if !e.Remaining.IsPositive() {
			return fmt.Errorf("%w: entry %s has size %s", ErrInvalidSize, e.OrderID, e.Remaining)
		}
		if !e.Price.Equal(l.Price) {
			return fmt.Errorf("entry %s priced %s in limit %s", e.OrderID, e.Price, l.Price)
		}
		if i > 0 && e.Before(l.Entries[i-1]) {
			return fmt.Errorf("entry %s out of time priority", e.OrderID)
		}
		calculatedVolume = calculatedVolume.Add(e.Remaining)
	}

	if !calculatedVolume.Equal(l.TotalVolume) {
		return fmt.Errorf("volume mismatch: calculated %s, stored %s", calculatedVolume, l.TotalVolume)
	}

	return nil
}
