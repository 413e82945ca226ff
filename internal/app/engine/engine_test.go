package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/memory"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/fee"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/liquidity"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type recorder struct {
	mu     sync.Mutex
	events []*eventv1.Event
}

func (r *recorder) Publish(_ context.Context, events ...*eventv1.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() map[eventv1.Type]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[eventv1.Type]int)
	for _, e := range r.events {
		out[e.Type]++
	}
	return out
}

func newEngine(t *testing.T, pub eventv1.Publisher) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	fees, err := fee.NewProvider()
	require.NoError(t, err)

	e := New(Backend{
		Tx:           store,
		Orders:       store.Orders(),
		Reservations: store.Reservations(),
		Ledger:       store.Ledger(),
		Trades:       store.Trades(),
		Transactions: store.Transactions(),
		Outbox:       store.Outbox(),
		Liquidity:    memory.NewLiquidityStore(func() time.Time { return time.Now().UTC() }),
	}, fees, pub, Config{
		Currencies:      []string{"EUR", "AOA"},
		Liquidity:       liquidity.DefaultConfig(),
		SweepInterval:   10 * time.Millisecond,
		OutboxInterval:  10 * time.Millisecond,
		OutboxBatchSize: 50,
	}, metrics.NewNop(), logger.NewNop())
	return e, store
}

func TestPairs(t *testing.T) {
	assert.Equal(t, []marketv1.Pair{
		{Base: marketv1.EUR, Quote: marketv1.AOA},
		{Base: marketv1.AOA, Quote: marketv1.EUR},
	}, Pairs([]string{"EUR", "AOA"}))
	assert.Empty(t, Pairs([]string{"EUR"}))
}

func TestEngine_TradeLifecycle(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.Deposit(ctx, "alice", "EUR", d("100"))
	require.NoError(t, err)
	_, err = e.Deposit(ctx, "bob", "AOA", d("100000"))
	require.NoError(t, err)

	ask, err := e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("10"), Price: ptr("650"),
	})
	require.NoError(t, err)
	assert.Equal(t, orderv1.StatusPending, ask.Status)

	report, err := e.CheckMarketLiquidity(ctx, marketv1.Buy, "EUR", "AOA", d("4"), nil)
	require.NoError(t, err)
	assert.True(t, report.HasLiquidity)
	assert.True(t, report.EstimatedPrice.Equal(d("650")))

	bid, err := e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "bob", Side: marketv1.Buy, OrderType: orderv1.TypeMarket,
		Base: "EUR", Quote: "AOA", Quantity: d("4"),
	})
	require.NoError(t, err)
	assert.Equal(t, orderv1.StatusFilled, bid.Status)
	require.NotNil(t, bid.AverageFillPrice)
	assert.True(t, bid.AverageFillPrice.Equal(d("650")))

	bobAOA, err := e.GetWallet(ctx, "bob", "AOA")
	require.NoError(t, err)
	assert.True(t, bobAOA.AvailableBalance.Equal(d("97400")))
	assert.True(t, bobAOA.ReservedBalance.IsZero())

	bobEUR, err := e.GetWallet(ctx, "bob", "eur")
	require.NoError(t, err)
	assert.True(t, bobEUR.AvailableBalance.Equal(d("4")))

	snap, err := e.GetOrder(ctx, ask.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orderv1.StatusPartiallyFilled, snap.Status)
	assert.True(t, snap.RemainingQuantity.Equal(d("6")))

	depth, err := e.GetOrderBookDepth(ctx, "EUR", "AOA", 10)
	require.NoError(t, err)
	assert.Empty(t, depth.Bids)
	require.Len(t, depth.Asks, 1)
	assert.True(t, depth.Asks[0].Quantity.Equal(d("6")))

	trades, err := e.GetRecentTrades(ctx, "EUR", "AOA", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].QuoteAmount.Equal(d("2600")))

	history, err := e.GetTransactions(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	cancelled, err := e.CancelOrder(ctx, ask.OrderID, "alice")
	require.NoError(t, err)
	assert.True(t, cancelled.ReleasedAmount.Equal(d("6")))

	aliceEUR, err := e.GetWallet(ctx, "alice", "EUR")
	require.NoError(t, err)
	assert.True(t, aliceEUR.AvailableBalance.Equal(d("96")))
	assert.True(t, aliceEUR.ReservedBalance.IsZero())

	_, err = e.Withdraw(ctx, "alice", "AOA", d("2600"))
	require.NoError(t, err)
	aliceAOA, err := e.GetWallet(ctx, "alice", "AOA")
	require.NoError(t, err)
	assert.True(t, aliceAOA.Total().IsZero())
}

func TestEngine_LiquidityHoldRoundTrip(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.Deposit(ctx, "alice", "EUR", d("10"))
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("10"), Price: ptr("650"),
	})
	require.NoError(t, err)

	hold, _, err := e.ReserveLiquidity(ctx, ReserveLiquidityRequest{
		UserID: "bob", Side: marketv1.Buy, Base: "EUR", Quote: "AOA", Quantity: d("10"), TTL: time.Minute,
	})
	require.NoError(t, err)

	report, err := e.CheckMarketLiquidity(ctx, marketv1.Buy, "EUR", "AOA", d("1"), nil)
	require.NoError(t, err)
	assert.False(t, report.HasLiquidity)

	err = e.ReleaseLiquidity(ctx, hold.ID, "carol")
	assert.True(t, errors.HasCode(err, errors.Unauthorized))
	require.NoError(t, e.ReleaseLiquidity(ctx, hold.ID, "bob"))

	report, err = e.CheckMarketLiquidity(ctx, marketv1.Buy, "EUR", "AOA", d("1"), nil)
	require.NoError(t, err)
	assert.True(t, report.HasLiquidity)
}

func TestEngine_HaltedPairs(t *testing.T) {
	e, _ := newEngine(t, nil)

	assert.Empty(t, e.HaltedPairs())
	resumed, err := e.ResumePair(context.Background(), "EUR", "AOA")
	require.NoError(t, err)
	assert.False(t, resumed)

	_, err = e.ResumePair(context.Background(), "EUR", "USD")
	assert.True(t, errors.HasCode(err, errors.ValidationError))
}

func TestEngine_StartRelaysEvents(t *testing.T) {
	pub := &recorder{}
	e, store := newEngine(t, pub)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	defer e.Stop()
	assert.Error(t, e.Start(ctx))

	_, err := e.Deposit(ctx, "alice", "EUR", d("5"))
	require.NoError(t, err)
	_, err = e.Deposit(ctx, "bob", "AOA", d("10000"))
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("5"), Price: ptr("600"),
	})
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "bob", Side: marketv1.Buy, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("5"), Price: ptr("600"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pending, err := store.Outbox().ListPending(ctx, 100)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	e.Stop()
	e.Stop()

	types := pub.types()
	assert.Equal(t, 1, types[eventv1.TradeExecuted])
	assert.Equal(t, 2, types[eventv1.BalanceChanged])
	assert.Equal(t, 2, types[eventv1.OrderPlaced])
}

func TestEngine_RestoreOnStart(t *testing.T) {
	e, store := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.Deposit(ctx, "alice", "EUR", d("3"))
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("3"), Price: ptr("700"),
	})
	require.NoError(t, err)

	fees, err := fee.NewProvider()
	require.NoError(t, err)
	restarted := New(Backend{
		Tx:           store,
		Orders:       store.Orders(),
		Reservations: store.Reservations(),
		Ledger:       store.Ledger(),
		Trades:       store.Trades(),
		Transactions: store.Transactions(),
		Outbox:       store.Outbox(),
		Liquidity:    memory.NewLiquidityStore(func() time.Time { return time.Now().UTC() }),
	}, fees, nil, Config{Currencies: []string{"EUR", "AOA"}, Liquidity: liquidity.DefaultConfig()},
		metrics.NewNop(), logger.NewNop())

	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()

	depth, err := restarted.GetOrderBookDepth(ctx, "EUR", "AOA", 5)
	require.NoError(t, err)
	require.Len(t, depth.Asks, 1)
	assert.True(t, depth.Asks[0].Price.Equal(d("700")))
}

func TestEngine_RestoreKeepsLiquidityHolds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	holds := memory.NewLiquidityStore(func() time.Time { return time.Now().UTC() })
	boot := func() *Engine {
		fees, err := fee.NewProvider()
		require.NoError(t, err)
		return New(Backend{
			Tx:           store,
			Orders:       store.Orders(),
			Reservations: store.Reservations(),
			Ledger:       store.Ledger(),
			Trades:       store.Trades(),
			Transactions: store.Transactions(),
			Outbox:       store.Outbox(),
			Liquidity:    holds,
		}, fees, nil, Config{Currencies: []string{"EUR", "AOA"}, Liquidity: liquidity.DefaultConfig()},
			metrics.NewNop(), logger.NewNop())
	}

	e := boot()
	_, err := e.Deposit(ctx, "alice", "EUR", d("3"))
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("3"), Price: ptr("700"),
	})
	require.NoError(t, err)
	hold, _, err := e.ReserveLiquidity(ctx, ReserveLiquidityRequest{
		UserID: "carol", Side: marketv1.Buy, Base: "EUR", Quote: "AOA", Quantity: d("2"),
	})
	require.NoError(t, err)

	restarted := boot()
	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()

	report, err := restarted.CheckMarketLiquidity(ctx, marketv1.Buy, "EUR", "AOA", d("3"), nil)
	require.NoError(t, err)
	assert.False(t, report.HasLiquidity)
	assert.True(t, report.AvailableQuantity.Equal(d("1")), report.AvailableQuantity.String())

	depth, err := restarted.GetOrderBookDepth(ctx, "EUR", "AOA", 5)
	require.NoError(t, err)
	require.Len(t, depth.Asks, 1)
	assert.True(t, depth.Asks[0].Quantity.Equal(d("1")))

	require.NoError(t, restarted.ReleaseLiquidity(ctx, hold.ID, "carol"))
	report, err = restarted.CheckMarketLiquidity(ctx, marketv1.Buy, "EUR", "AOA", d("3"), nil)
	require.NoError(t, err)
	assert.True(t, report.HasLiquidity)
}
