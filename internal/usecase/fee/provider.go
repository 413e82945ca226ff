package fee

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// Entry is one row of the fee file.
type Entry struct {
	Type     tradev1.TransactionType `yaml:"type"`
	Currency marketv1.Currency       `yaml:"currency"`
	feev1.Schedule `yaml:",inline"`
}

// File is the layout of the fee schedule file.
type File struct {
	Schedules []Entry `yaml:"schedules"`
}

type key struct {
	txType   tradev1.TransactionType
	currency marketv1.Currency
}

// Provider serves fee schedules loaded once at start-up.
type Provider struct {
	schedules map[key]feev1.Schedule
}

var _ feev1.Provider = (*Provider)(nil)

// NewProvider builds a Provider from entries. Later entries win.
func NewProvider(entries ...Entry) (*Provider, error) {
	p := &Provider{schedules: make(map[key]feev1.Schedule, len(entries))}
	for i, e := range entries {
		if e.Type == "" || e.Currency == "" {
			return nil, errors.New(errors.ValidationError, "fee entry %d needs type and currency", i)
		}
		if e.Percentage.IsNegative() || e.Fixed.IsNegative() || e.Min.IsNegative() || e.Max.IsNegative() {
			return nil, errors.New(errors.ValidationError, "fee entry %d (%s %s) has a negative component", i, e.Type, e.Currency)
		}
		if e.Max.IsPositive() && e.Min.GreaterThan(e.Max) {
			return nil, errors.New(errors.ValidationError, "fee entry %d (%s %s) has min above max", i, e.Type, e.Currency)
		}
		currency := marketv1.Currency(strings.ToUpper(string(e.Currency)))
		p.schedules[key{txType: e.Type, currency: currency}] = e.Schedule
	}
	return p, nil
}

// LoadFile reads a YAML fee file. A missing file yields a provider with no
// fees.
func LoadFile(path string) (*Provider, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewProvider()
	}
	if err != nil {
		return nil, errors.Tracef(err, "read fee file %s", path)
	}
	return Parse(raw)
}

// Parse decodes a YAML fee document.
func Parse(raw []byte) (*Provider, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Tracef(err, "decode fee file")
	}
	return NewProvider(f.Schedules...)
}

// Lookup returns the schedule for txType in currency, or a zero schedule.
func (p *Provider) Lookup(_ context.Context, txType tradev1.TransactionType, currency marketv1.Currency) (feev1.Schedule, error) {
	return p.schedules[key{txType: txType, currency: currency}], nil
}
