package wallet

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	feev1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1/mock"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/memory"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/fee"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

var now = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, store *memory.Store, fees feev1.Provider) *Service {
	t.Helper()
	return NewService(Deps{
		Tx:           store,
		Ledger:       store.Ledger(),
		Transactions: store.Transactions(),
		Fees:         fees,
		Outbox:       store.Outbox(),
		Market:       marketv1.NewMarket("EUR", "AOA"),
	}, logger.NewNop(), WithClock(func() time.Time { return now }))
}

func schedule(t *testing.T) feev1.Provider {
	t.Helper()
	p, err := fee.NewProvider(
		fee.Entry{Type: tradev1.TypeWithdrawal, Currency: marketv1.AOA, Schedule: feev1.Schedule{Fixed: d("500")}},
		fee.Entry{Type: tradev1.TypeDeposit, Currency: marketv1.EUR, Schedule: feev1.Schedule{Percentage: d("1")}},
	)
	require.NoError(t, err)
	return p
}

func balance(t *testing.T, store *memory.Store, userID string, cur marketv1.Currency) *ledgerv1.Wallet {
	t.Helper()
	w, err := store.Ledger().Wallet(context.Background(), ledgerv1.WalletKey{UserID: userID, Currency: cur})
	require.NoError(t, err)
	return w
}

func TestService_Deposit(t *testing.T) {
	store := memory.NewStore()
	s := newService(t, store, schedule(t))

	out, err := s.Deposit(context.Background(), "alice", "aoa", d("100000"))
	require.NoError(t, err)
	assert.True(t, out.Wallet.AvailableBalance.Equal(d("100000")))
	assert.Equal(t, tradev1.TypeDeposit, out.Transaction.Type)
	assert.Equal(t, marketv1.AOA, out.Transaction.CreditCurrency)
	assert.True(t, out.Transaction.Fee.IsZero())

	// EUR deposits carry a 1% fee credited to the fee account
	out, err = s.Deposit(context.Background(), "alice", "EUR", d("200"))
	require.NoError(t, err)
	assert.True(t, out.Transaction.CreditAmount.Equal(d("198")))
	assert.True(t, out.Transaction.Fee.Equal(d("2")))
	assert.True(t, balance(t, store, "platform-fees", marketv1.EUR).AvailableBalance.Equal(d("2")))

	history, err := s.History(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, marketv1.EUR, history[0].CreditCurrency)

	events := store.Outbox().Events()
	require.Len(t, events, 2)
	assert.Equal(t, eventv1.BalanceChanged, events[0].Type)
	assert.Equal(t, "alice:AOA", events[0].AggregateID)
}

func TestService_DepositValidation(t *testing.T) {
	testCases := []struct {
		name     string
		userID   string
		currency string
		amount   string
		field    string
	}{
		{name: "missing user", currency: "AOA", amount: "1", field: "user_id"},
		{name: "unsupported currency", userID: "alice", currency: "USD", amount: "1", field: "currency"},
		{name: "zero amount", userID: "alice", currency: "AOA", amount: "0", field: "amount"},
		{name: "negative amount", userID: "alice", currency: "AOA", amount: "-5", field: "amount"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore()
			s := newService(t, store, schedule(t))

			_, err := s.Deposit(context.Background(), tc.userID, tc.currency, d(tc.amount))
			require.Error(t, err)
			var details *errors.ErrorDetails
			require.True(t, stderrors.As(err, &details))
			assert.Equal(t, string(errors.ValidationError), details.Code)
			assert.Equal(t, tc.field, details.Field)
			assert.Empty(t, store.Wallets())
		})
	}
}

func TestService_Withdraw(t *testing.T) {
	store := memory.NewStore()
	s := newService(t, store, schedule(t))
	ctx := context.Background()

	_, err := s.Deposit(ctx, "bob", "AOA", d("10000"))
	require.NoError(t, err)
	require.NoError(t, store.Do(ctx, func(ctx context.Context) error {
		return store.Ledger().Reserve(ctx, ledgerv1.WalletKey{UserID: "bob", Currency: marketv1.AOA}, d("4000"))
	}))

	out, err := s.Withdraw(ctx, "bob", "AOA", d("3000"))
	require.NoError(t, err)
	assert.True(t, out.Wallet.AvailableBalance.Equal(d("2500")))
	assert.True(t, out.Wallet.ReservedBalance.Equal(d("4000")))
	assert.True(t, out.Transaction.DebitAmount.Equal(d("3000")))
	assert.True(t, out.Transaction.Fee.Equal(d("500")))
	assert.Equal(t, marketv1.AOA, out.Transaction.FeeCurrency)
	assert.True(t, balance(t, store, "platform-fees", marketv1.AOA).AvailableBalance.Equal(d("500")))

	// 2500 available cannot cover 2100 + 500; reserved funds stay put
	eventsBefore := len(store.Outbox().Events())
	_, err = s.Withdraw(ctx, "bob", "AOA", d("2100"))
	assert.True(t, errors.HasCode(err, errors.InsufficientBalance))

	w := balance(t, store, "bob", marketv1.AOA)
	assert.True(t, w.AvailableBalance.Equal(d("2500")))
	assert.True(t, w.ReservedBalance.Equal(d("4000")))
	assert.True(t, balance(t, store, "platform-fees", marketv1.AOA).AvailableBalance.Equal(d("500")))
	assert.Len(t, store.Outbox().Events(), eventsBefore)

	history, err := s.History(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestService_FeeLookup(t *testing.T) {
	testCases := []struct {
		name     string
		mockFn   func(f *feev1_mock.MockProvider)
		assertFn func(t *testing.T, out *Movement, err error)
	}{
		{
			name: "lookup failure",
			mockFn: func(f *feev1_mock.MockProvider) {
				f.EXPECT().Lookup(gomock.Any(), tradev1.TypeDeposit, marketv1.EUR).
					Return(feev1.Schedule{}, stderrors.New("fee service down"))
			},
			assertFn: func(t *testing.T, out *Movement, err error) {
				assert.Nil(t, out)
				assert.EqualError(t, err, "fee service down")
			},
		},
		{
			name: "fee swallowing the deposit",
			mockFn: func(f *feev1_mock.MockProvider) {
				f.EXPECT().Lookup(gomock.Any(), tradev1.TypeDeposit, marketv1.EUR).
					Return(feev1.Schedule{Fixed: d("5")}, nil)
			},
			assertFn: func(t *testing.T, out *Movement, err error) {
				assert.Nil(t, out)
				assert.True(t, errors.HasCode(err, errors.ValidationError))
			},
		},
		{
			name: "fee below the deposit",
			mockFn: func(f *feev1_mock.MockProvider) {
				f.EXPECT().Lookup(gomock.Any(), tradev1.TypeDeposit, marketv1.EUR).
					Return(feev1.Schedule{Fixed: d("1")}, nil)
			},
			assertFn: func(t *testing.T, out *Movement, err error) {
				require.NoError(t, err)
				assert.True(t, out.Wallet.AvailableBalance.Equal(d("4")))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := feev1_mock.NewMockProvider(ctrl)
			tc.mockFn(f)

			s := newService(t, memory.NewStore(), f)
			out, err := s.Deposit(context.Background(), "carol", "EUR", d("5"))
			tc.assertFn(t, out, err)
		})
	}
}
