package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	eventv1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1/mock"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	feev1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1/mock"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	ledgerv1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1/mock"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	orderv1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1/mock"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	reservationv1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1/mock"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	tradev1_mock "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1/mock"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/memory"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/fee"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/reservation"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

var (
	eurAoa = marketv1.Pair{Base: marketv1.EUR, Quote: marketv1.AOA}
	now    = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	market = marketv1.NewMarket("EUR", "AOA")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tenBasisPoints(t *testing.T) *fee.Provider {
	t.Helper()
	p, err := fee.NewProvider(
		fee.Entry{Type: tradev1.TypeTradeBuy, Currency: marketv1.AOA, Schedule: feev1.Schedule{Percentage: d("0.1")}},
		fee.Entry{Type: tradev1.TypeTradeSell, Currency: marketv1.AOA, Schedule: feev1.Schedule{Percentage: d("0.1")}},
	)
	require.NoError(t, err)
	return p
}

func fixedBuyFee(t *testing.T, amount string) *fee.Provider {
	t.Helper()
	p, err := fee.NewProvider(
		fee.Entry{Type: tradev1.TypeTradeBuy, Currency: marketv1.AOA, Schedule: feev1.Schedule{Fixed: d(amount)}},
	)
	require.NoError(t, err)
	return p
}

func noFees(t *testing.T) *fee.Provider {
	t.Helper()
	p, err := fee.NewProvider()
	require.NoError(t, err)
	return p
}

type fixture struct {
	store    *memory.Store
	funds    *reservation.Manager
	executor *Executor
}

func newFixture(t *testing.T, fees feev1.Provider) *fixture {
	t.Helper()
	store := memory.NewStore()
	funds := reservation.NewManager(store, store.Ledger(), store.Reservations(), market, logger.NewNop(),
		reservation.WithClock(func() time.Time { return now }))
	exec := NewExecutor(Deps{
		Tx:           store,
		Orders:       store.Orders(),
		Reservations: store.Reservations(),
		Funds:        funds,
		Ledger:       store.Ledger(),
		Trades:       store.Trades(),
		Transactions: store.Transactions(),
		Fees:         fees,
		Outbox:       store.Outbox(),
	}, metrics.NewNop(), logger.NewNop(), WithClock(func() time.Time { return now }))
	return &fixture{store: store, funds: funds, executor: exec}
}

func (f *fixture) deposit(t *testing.T, userID string, currency marketv1.Currency, amount string) {
	t.Helper()
	require.NoError(t, f.store.Ledger().Credit(context.Background(), ledgerv1.WalletKey{UserID: userID, Currency: currency}, d(amount)))
}

// place creates a resting order backed by a reservation of amount.
func (f *fixture) place(t *testing.T, id, userID string, side marketv1.Side, kind orderv1.Kind, qty, amount string) *orderv1.Order {
	t.Helper()
	ctx := context.Background()
	o, err := orderv1.New(orderv1.NewParams{
		ID: id, UserID: userID, Side: side, Kind: kind, Pair: eurAoa, Quantity: d(qty), Now: now,
	})
	require.NoError(t, err)

	currency := eurAoa.Quote
	if side == marketv1.Sell {
		currency = eurAoa.Base
	}
	o.ReservedAmount = d(amount)
	o.ReservationCurrency = currency

	err = f.store.Do(ctx, func(ctx context.Context) error {
		if _, err := f.funds.Reserve(ctx, reservation.ReserveParams{
			UserID: userID, Currency: currency, Amount: d(amount), OrderID: id,
		}); err != nil {
			return err
		}
		return f.store.Orders().Create(ctx, o)
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) wallet(t *testing.T, userID string, currency marketv1.Currency) *ledgerv1.Wallet {
	t.Helper()
	w, err := f.store.Ledger().Wallet(context.Background(), ledgerv1.WalletKey{UserID: userID, Currency: currency})
	require.NoError(t, err)
	return w
}

func assertWallet(t *testing.T, w *ledgerv1.Wallet, available, reserved string) {
	t.Helper()
	assert.True(t, d(available).Equal(w.AvailableBalance), "%s %s available: want %s got %s", w.UserID, w.Currency, available, w.AvailableBalance)
	assert.True(t, d(reserved).Equal(w.ReservedBalance), "%s %s reserved: want %s got %s", w.UserID, w.Currency, reserved, w.ReservedBalance)
}

func TestExecutor_Execute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tenBasisPoints(t))
	f.deposit(t, "seller", marketv1.EUR, "10")
	f.deposit(t, "buyer", marketv1.AOA, "5000")

	f.place(t, "sell-1", "seller", marketv1.Sell, orderv1.Limit(d("1000")), "2", "2")
	// 2 x 1010 plus 0.1%
	f.place(t, "buy-1", "buyer", marketv1.Buy, orderv1.Limit(d("1010")), "2", "2022.02")

	exec, err := f.executor.Execute(ctx, orderbookv1.Match{
		Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy,
		Quantity: d("2"), Price: d("1000"),
	})
	require.NoError(t, err)

	trade := exec.Trade
	assert.Equal(t, "buy-1", trade.BuyOrderID)
	assert.Equal(t, "sell-1", trade.SellOrderID)
	assert.Equal(t, "sell-1", trade.MakerOrderID)
	assert.True(t, d("1000").Equal(trade.Price), "maker price")
	assert.True(t, d("2000").Equal(trade.QuoteAmount))
	assert.True(t, d("2").Equal(trade.BuyerFee))
	assert.True(t, d("2").Equal(trade.SellerFee))

	assert.Equal(t, orderv1.StatusFilled, exec.Taker.Status)
	assert.Equal(t, orderv1.StatusFilled, exec.Maker.Status)

	assertWallet(t, f.wallet(t, "buyer", marketv1.AOA), "2998", "0")
	assertWallet(t, f.wallet(t, "buyer", marketv1.EUR), "2", "0")
	assertWallet(t, f.wallet(t, "seller", marketv1.EUR), "8", "0")
	assertWallet(t, f.wallet(t, "seller", marketv1.AOA), "1998", "0")
	assertWallet(t, f.wallet(t, DefaultFeeAccount, marketv1.AOA), "4", "0")

	buyRes, err := f.store.Reservations().GetByOrderID(ctx, "buy-1")
	require.NoError(t, err)
	assert.Equal(t, reservationv1.StatusReleased, buyRes.Status)
	assert.True(t, d("2002").Equal(buyRes.ConsumedAmount))
	assert.True(t, d("20.02").Equal(buyRes.ReleasedAmount))

	txs, err := f.store.Transactions().ListByUser(ctx, "buyer", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tradev1.TypeTradeBuy, txs[0].Type)
	assert.True(t, d("2002").Equal(txs[0].DebitAmount))

	var types []eventv1.Type
	for _, e := range f.store.Outbox().Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []eventv1.Type{eventv1.TradeExecuted, eventv1.OrderUpdated, eventv1.OrderUpdated}, types)
}

func TestExecutor_PartialFillKeepsReservationOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noFees(t))
	f.deposit(t, "seller", marketv1.EUR, "5")
	f.deposit(t, "buyer", marketv1.AOA, "5000")

	f.place(t, "sell-1", "seller", marketv1.Sell, orderv1.Limit(d("1000")), "5", "5")
	f.place(t, "buy-1", "buyer", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000")

	exec, err := f.executor.Execute(ctx, orderbookv1.Match{
		Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy,
		Quantity: d("1"), Price: d("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, orderv1.StatusPartiallyFilled, exec.Maker.Status)
	assert.True(t, d("4").Equal(exec.Maker.RemainingQuantity))

	sellRes, err := f.store.Reservations().GetByOrderID(ctx, "sell-1")
	require.NoError(t, err)
	assert.Equal(t, reservationv1.StatusActive, sellRes.Status)
	assert.True(t, d("4").Equal(sellRes.Outstanding()))
	assertWallet(t, f.wallet(t, "seller", marketv1.EUR), "0", "4")
	assertWallet(t, f.wallet(t, "seller", marketv1.AOA), "1000", "0")
}

func TestExecutor_BuyerFeeCappedAtHeadroom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tenBasisPoints(t))
	f.deposit(t, "seller", marketv1.EUR, "1")
	f.deposit(t, "buyer", marketv1.AOA, "1000.5")

	f.place(t, "sell-1", "seller", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
	// only half of the 1 AOA fee is reserved
	f.place(t, "buy-1", "buyer", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000.5")

	exec, err := f.executor.Execute(ctx, orderbookv1.Match{
		Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy,
		Quantity: d("1"), Price: d("1000"),
	})
	require.NoError(t, err)
	assert.True(t, d("0.5").Equal(exec.Trade.BuyerFee))
	assertWallet(t, f.wallet(t, "buyer", marketv1.AOA), "0", "0")
	assertWallet(t, f.wallet(t, DefaultFeeAccount, marketv1.AOA), "1.5", "0")
}

func TestExecutor_FixedFeeKeepsLaterFillsFunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedBuyFee(t, "1"))
	f.deposit(t, "buyer", marketv1.AOA, "31")
	for _, s := range []string{"s1", "s2", "s3"} {
		f.deposit(t, s, marketv1.EUR, "1")
		f.place(t, "sell-"+s, s, marketv1.Sell, orderv1.Limit(d("10")), "1", "1")
	}
	// 3 x 10 plus one fixed fee
	f.place(t, "buy-1", "buyer", marketv1.Buy, orderv1.Limit(d("10")), "3", "31")

	var fees []string
	for _, s := range []string{"s1", "s2", "s3"} {
		exec, err := f.executor.Execute(ctx, orderbookv1.Match{
			Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-" + s, TakerSide: marketv1.Buy,
			Quantity: d("1"), Price: d("10"),
		})
		require.NoError(t, err, s)
		fees = append(fees, exec.Trade.BuyerFee.String())
	}
	assert.Equal(t, []string{"1", "0", "0"}, fees)

	assertWallet(t, f.wallet(t, "buyer", marketv1.AOA), "0", "0")
	assertWallet(t, f.wallet(t, "buyer", marketv1.EUR), "3", "0")
	assertWallet(t, f.wallet(t, DefaultFeeAccount, marketv1.AOA), "1", "0")

	buyRes, err := f.store.Reservations().GetByOrderID(ctx, "buy-1")
	require.NoError(t, err)
	assert.Equal(t, reservationv1.StatusReleased, buyRes.Status)
	assert.True(t, d("31").Equal(buyRes.ConsumedAmount))
}

func TestExecutor_MarketBuySetsAsideCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedBuyFee(t, "1"))
	f.deposit(t, "seller", marketv1.EUR, "1")
	f.deposit(t, "buyer", marketv1.AOA, "22")

	f.place(t, "sell-1", "seller", marketv1.Sell, orderv1.Limit(d("10")), "1", "1")
	// 2 x 10.5 band plus one fixed fee
	f.place(t, "buy-1", "buyer", marketv1.Buy, orderv1.Market(), "2", "22")

	exec, err := f.executor.Execute(ctx, orderbookv1.Match{
		Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy,
		Quantity: d("1"), Price: d("10"), BuyCeiling: d("10.5"),
	})
	require.NoError(t, err)
	assert.True(t, d("1").Equal(exec.Trade.BuyerFee))

	buyRes, err := f.store.Reservations().GetByOrderID(ctx, "buy-1")
	require.NoError(t, err)
	assert.True(t, d("11").Equal(buyRes.Outstanding()), "one band priced unit stays reserved")
	assertWallet(t, f.wallet(t, "buyer", marketv1.AOA), "0", "11")
}

func TestExecutor_InvariantViolations(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		match orderbookv1.Match
	}{
		{
			name: "self-trade",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "alice", marketv1.EUR, "1")
				f.deposit(t, "alice", marketv1.AOA, "1000")
				f.place(t, "sell-1", "alice", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "alice", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1000")},
		},
		{
			name: "quantity above remaining",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "s", marketv1.EUR, "1")
				f.deposit(t, "b", marketv1.AOA, "2000")
				f.place(t, "sell-1", "s", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1000")), "2", "2000")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy, Quantity: d("2"), Price: d("1000")},
		},
		{
			name: "price is not the maker price",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "s", marketv1.EUR, "1")
				f.deposit(t, "b", marketv1.AOA, "1100")
				f.place(t, "sell-1", "s", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1100")), "1", "1100")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1100")},
		},
		{
			name: "side mismatch",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "s", marketv1.EUR, "1")
				f.deposit(t, "b", marketv1.AOA, "1000")
				f.place(t, "sell-1", "s", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Sell, Quantity: d("1"), Price: d("1000")},
		},
		{
			name: "reservation too small",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "s", marketv1.EUR, "1")
				f.deposit(t, "b", marketv1.AOA, "1000")
				f.place(t, "sell-1", "s", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1000")), "1", "999")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1000")},
		},
		{
			name: "maker already cancelled",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "s", marketv1.EUR, "1")
				f.deposit(t, "b", marketv1.AOA, "1000")
				maker := f.place(t, "sell-1", "s", marketv1.Sell, orderv1.Limit(d("1000")), "1", "1")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000")
				require.NoError(t, maker.Cancel(now))
				require.NoError(t, f.store.Orders().Update(context.Background(), maker))
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "sell-1", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1000")},
		},
		{
			name: "unknown maker",
			setup: func(t *testing.T, f *fixture) {
				f.deposit(t, "b", marketv1.AOA, "1000")
				f.place(t, "buy-1", "b", marketv1.Buy, orderv1.Limit(d("1000")), "1", "1000")
			},
			match: orderbookv1.Match{Pair: eurAoa, TakerOrderID: "buy-1", MakerOrderID: "ghost", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1000")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tenBasisPoints(t))
			tc.setup(t, f)
			before := f.store.Wallets()
			events := len(f.store.Outbox().Events())

			_, err := f.executor.Execute(ctx, tc.match)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.SettlementInvariantViolation), err.Error())

			assert.ElementsMatch(t, before, f.store.Wallets(), "wallets are rolled back")
			assert.Len(t, f.store.Outbox().Events(), events)
			trades, err := f.store.Trades().Recent(ctx, eurAoa, 10)
			require.NoError(t, err)
			assert.Empty(t, trades)
		})
	}
}

func TestExecutor_Execute_Mocked(t *testing.T) {
	match := orderbookv1.Match{Pair: eurAoa, TakerOrderID: "t", MakerOrderID: "m", TakerSide: marketv1.Buy, Quantity: d("1"), Price: d("1000")}
	conflict := errors.New(errors.ConcurrencyConflict, "lock timeout")

	type mocks struct {
		orders       *orderv1_mock.MockRepository
		reservations *reservationv1_mock.MockRepository
		ledger       *ledgerv1_mock.MockLedger
		fees         *feev1_mock.MockProvider
		trades       *tradev1_mock.MockRepository
		txs          *tradev1_mock.MockTransactionRepository
		outbox       *eventv1_mock.MockOutbox
	}

	taker := func() *orderv1.Order {
		return &orderv1.Order{ID: "t", UserID: "b", Side: marketv1.Buy, Kind: orderv1.Limit(d("1000")), Pair: eurAoa,
			Quantity: d("1"), RemainingQuantity: d("1"), FilledQuantity: decimal.Zero, Status: orderv1.StatusPending}
	}
	maker := func() *orderv1.Order {
		return &orderv1.Order{ID: "m", UserID: "s", Side: marketv1.Sell, Kind: orderv1.Limit(d("1000")), Pair: eurAoa,
			Quantity: d("1"), RemainingQuantity: d("1"), FilledQuantity: decimal.Zero, Status: orderv1.StatusPending}
	}

	testCases := []struct {
		name     string
		mockFn   func(m mocks)
		assertFn func(t *testing.T, exec *Execution, err error)
	}{
		{
			name: "lock conflict on the taker is returned as is",
			mockFn: func(m mocks) {
				m.orders.EXPECT().GetForUpdate(gomock.Any(), "t").Return(nil, conflict)
			},
			assertFn: func(t *testing.T, exec *Execution, err error) {
				assert.Nil(t, exec)
				assert.True(t, errors.HasCode(err, errors.ConcurrencyConflict))
			},
		},
		{
			name: "fee lookup failure aborts before any balance moves",
			mockFn: func(m mocks) {
				gomock.InOrder(
					m.orders.EXPECT().GetForUpdate(gomock.Any(), "t").Return(taker(), nil),
					m.orders.EXPECT().GetForUpdate(gomock.Any(), "m").Return(maker(), nil),
					m.reservations.EXPECT().GetByOrderIDForUpdate(gomock.Any(), "t").
						Return(reservationv1.New("r1", "b", "t", marketv1.AOA, d("1000"), now), nil),
					m.reservations.EXPECT().GetByOrderIDForUpdate(gomock.Any(), "m").
						Return(reservationv1.New("r2", "s", "m", marketv1.EUR, d("1"), now), nil),
				)
				m.fees.EXPECT().Lookup(gomock.Any(), tradev1.TypeTradeBuy, marketv1.AOA).
					Return(feev1.Schedule{}, errors.New(errors.GeneralRepositoryError, "fees unavailable"))
			},
			assertFn: func(t *testing.T, exec *Execution, err error) {
				assert.True(t, errors.HasCode(err, errors.GeneralRepositoryError))
			},
		},
		{
			name: "missing reservation is an invariant violation",
			mockFn: func(m mocks) {
				m.orders.EXPECT().GetForUpdate(gomock.Any(), "t").Return(taker(), nil)
				m.orders.EXPECT().GetForUpdate(gomock.Any(), "m").Return(maker(), nil)
				m.reservations.EXPECT().GetByOrderIDForUpdate(gomock.Any(), "t").
					Return(nil, errors.New(errors.ReservationNotFound, "no reservation"))
			},
			assertFn: func(t *testing.T, exec *Execution, err error) {
				assert.True(t, errors.HasCode(err, errors.SettlementInvariantViolation))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mocks{
				orders:       orderv1_mock.NewMockRepository(ctrl),
				reservations: reservationv1_mock.NewMockRepository(ctrl),
				ledger:       ledgerv1_mock.NewMockLedger(ctrl),
				fees:         feev1_mock.NewMockProvider(ctrl),
				trades:       tradev1_mock.NewMockRepository(ctrl),
				txs:          tradev1_mock.NewMockTransactionRepository(ctrl),
				outbox:       eventv1_mock.NewMockOutbox(ctrl),
			}
			tc.mockFn(m)

			funds := reservation.NewManager(txv1.Passthrough, m.ledger, m.reservations, market, logger.NewNop())
			exec := NewExecutor(Deps{
				Tx:           txv1.Passthrough,
				Orders:       m.orders,
				Reservations: m.reservations,
				Funds:        funds,
				Ledger:       m.ledger,
				Trades:       m.trades,
				Transactions: m.txs,
				Fees:         m.fees,
				Outbox:       m.outbox,
			}, metrics.NewNop(), logger.NewNop())

			got, err := exec.Execute(context.Background(), match)
			tc.assertFn(t, got, err)
		})
	}
}
