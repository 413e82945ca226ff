package marketv1

import (
	"strings"

	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// Currency is an ISO-4217 style currency code.
type Currency string

const (
	// EUR is the euro.
	EUR Currency = "EUR"
	// AOA is the Angolan kwanza.
	AOA Currency = "AOA"
)

// Side is the side of an order.
type Side string

const (
	// Buy acquires base currency paying quote currency.
	Buy Side = "buy"
	// Sell gives up base currency for quote currency.
	Sell Side = "sell"
)

// Opposite returns the side that matches against s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Pair is a base/quote currency pair. Prices are quote units per base unit.
type Pair struct {
	Base  Currency `json:"base"`
	Quote Currency `json:"quote"`
}

// NewPair builds a pair from raw codes.
func NewPair(base, quote string) Pair {
	return Pair{Base: Currency(strings.ToUpper(base)), Quote: Currency(strings.ToUpper(quote))}
}

// String renders the pair as BASE/QUOTE.
func (p Pair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// Market is the set of currencies the engine trades.
type Market struct {
	currencies map[Currency]struct{}
}

// NewMarket creates a Market supporting codes.
func NewMarket(codes ...string) *Market {
	m := &Market{currencies: make(map[Currency]struct{}, len(codes))}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			m.currencies[Currency(c)] = struct{}{}
		}
	}
	return m
}

// Supports reports whether c is tradeable.
func (m *Market) Supports(c Currency) bool {
	_, ok := m.currencies[c]
	return ok
}

// ValidateCurrency fails with ValidationError when c is not supported.
func (m *Market) ValidateCurrency(c Currency, field string) error {
	if !m.Supports(c) {
		return errors.New(errors.ValidationError, "unsupported currency %q", c).WithField(field)
	}
	return nil
}

// ValidatePair checks both legs are supported and distinct.
func (m *Market) ValidatePair(p Pair) error {
	if err := m.ValidateCurrency(p.Base, "base_currency"); err != nil {
		return err
	}
	if err := m.ValidateCurrency(p.Quote, "quote_currency"); err != nil {
		return err
	}
	if p.Base == p.Quote {
		return errors.New(errors.ValidationError, "base and quote currency must differ").WithField("quote_currency")
	}
	return nil
}
