package ledgerv1

import (
	stderrors "errors"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApply(t *testing.T) {
	testCases := []struct {
		name          string
		available     string
		reserved      string
		op            Op
		amount        string
		wantAvailable string
		wantReserved  string
		wantCode      errors.ErrorCode
	}{
		{name: "reserve", available: "100", reserved: "0", op: OpReserve, amount: "40", wantAvailable: "60", wantReserved: "40"},
		{name: "reserve everything", available: "100", reserved: "0", op: OpReserve, amount: "100", wantAvailable: "0", wantReserved: "100"},
		{name: "reserve too much", available: "100", reserved: "0", op: OpReserve, amount: "100.01", wantCode: errors.InsufficientBalance},
		{name: "release", available: "60", reserved: "40", op: OpRelease, amount: "40", wantAvailable: "100", wantReserved: "0"},
		{name: "release too much", available: "60", reserved: "40", op: OpRelease, amount: "41", wantCode: errors.SettlementInvariantViolation},
		{name: "debit reserved", available: "0", reserved: "10", op: OpDebitReserved, amount: "10", wantAvailable: "0", wantReserved: "0"},
		{name: "debit reserved short", available: "100", reserved: "1", op: OpDebitReserved, amount: "2", wantCode: errors.SettlementInvariantViolation},
		{name: "debit available", available: "5", reserved: "1", op: OpDebitAvailable, amount: "5", wantAvailable: "0", wantReserved: "1"},
		{name: "debit available short", available: "5", reserved: "100", op: OpDebitAvailable, amount: "6", wantCode: errors.InsufficientBalance},
		{name: "credit", available: "5", reserved: "1", op: OpCredit, amount: "0.001", wantAvailable: "5.001", wantReserved: "1"},
		{name: "zero amount", available: "5", reserved: "1", op: OpCredit, amount: "0", wantCode: errors.ValidationError},
		{name: "negative amount", available: "5", reserved: "1", op: OpReserve, amount: "-1", wantCode: errors.ValidationError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := &Wallet{UserID: "u", Currency: marketv1.EUR, AvailableBalance: d(tc.available), ReservedBalance: d(tc.reserved)}
			before := w.Total()

			err := Apply(w, tc.op, d(tc.amount))
			if tc.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tc.wantCode), err.Error())
				assert.True(t, w.AvailableBalance.Equal(d(tc.available)), "wallet untouched on failure")
				assert.True(t, w.ReservedBalance.Equal(d(tc.reserved)))
				return
			}
			require.NoError(t, err)
			assert.True(t, w.AvailableBalance.Equal(d(tc.wantAvailable)), w.AvailableBalance.String())
			assert.True(t, w.ReservedBalance.Equal(d(tc.wantReserved)), w.ReservedBalance.String())
			if tc.op == OpReserve || tc.op == OpRelease {
				assert.True(t, before.Equal(w.Total()))
			}
		})
	}
}

func TestErrInsufficientReserved(t *testing.T) {
	w := EmptyWallet(WalletKey{UserID: "u", Currency: marketv1.AOA})
	err := Apply(w, OpDebitReserved, d("1"))
	assert.True(t, stderrors.Is(err, ErrInsufficientReserved))
}

func TestWalletKey_Less(t *testing.T) {
	keys := []WalletKey{
		{UserID: "b", Currency: marketv1.AOA},
		{UserID: "a", Currency: marketv1.EUR},
		{UserID: "a", Currency: marketv1.AOA},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	assert.Equal(t, []WalletKey{
		{UserID: "a", Currency: marketv1.AOA},
		{UserID: "a", Currency: marketv1.EUR},
		{UserID: "b", Currency: marketv1.AOA},
	}, keys)
	assert.Equal(t, "a:AOA", keys[0].String())
	assert.Equal(t, FromReserved, BalanceSource("reserved"))
	assert.Equal(t, OpDebitReserved, DebitOp(FromReserved))
	assert.Equal(t, OpDebitAvailable, DebitOp(FromAvailable))
}
