package marketv1

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

func TestMarket_ValidatePair(t *testing.T) {
	m := NewMarket("eur", " AOA ")

	testCases := []struct {
		name    string
		pair    Pair
		wantErr bool
	}{
		{name: "supported", pair: NewPair("EUR", "aoa")},
		{name: "reverse supported", pair: NewPair("AOA", "EUR")},
		{name: "same currency", pair: NewPair("EUR", "EUR"), wantErr: true},
		{name: "unsupported base", pair: NewPair("USD", "AOA"), wantErr: true},
		{name: "unsupported quote", pair: NewPair("EUR", "USD"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.ValidatePair(tc.pair)
			if tc.wantErr {
				assert.True(t, errors.HasCode(err, errors.ValidationError))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSide(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.False(t, Side("short").Valid())
	assert.Equal(t, "EUR/AOA", NewPair("eur", "aoa").String())
}
