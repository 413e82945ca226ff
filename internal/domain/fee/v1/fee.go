package feev1

import (
	"context"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
)

var hundred = decimal.NewFromInt(100)

// Schedule is the fee charged on one transaction type and currency.
// A zero Max means uncapped.
type Schedule struct {
	Fixed      decimal.Decimal `yaml:"fixed" json:"fixed"`
	Percentage decimal.Decimal `yaml:"percentage" json:"percentage"`
	Min        decimal.Decimal `yaml:"min" json:"min"`
	Max        decimal.Decimal `yaml:"max" json:"max"`
}

// Calculate returns clamp(Fixed + amount*Percentage/100, Min, Max), never
// negative.
func Calculate(amount decimal.Decimal, s Schedule) decimal.Decimal {
	fee := s.Fixed.Add(amount.Mul(s.Percentage).Div(hundred))
	if fee.LessThan(s.Min) {
		fee = s.Min
	}
	if s.Max.IsPositive() && fee.GreaterThan(s.Max) {
		fee = s.Max
	}
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// Provider looks up the schedule for a transaction type in a currency. Unknown
// combinations return a zero schedule.
//
//go:generate mockgen -source fee.go -destination=mock/fee_mock.go -package=feev1_mock
type Provider interface {
	Lookup(ctx context.Context, txType tradev1.TransactionType, currency marketv1.Currency) (Schedule, error)
}
