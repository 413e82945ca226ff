package pgstore_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/muhammadchandra19/kwanza-exchange/internal/app/engine"
	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/memory"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/pgstore"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/fee"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/liquidity"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
)

var eurAoa = marketv1.Pair{Base: marketv1.EUR, Quote: marketv1.AOA}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type StoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgresql.TestContainer
	store     *pgstore.Store
	now       time.Time
}

func TestStoreTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	suite.Run(t, new(StoreTestSuite))
}

// SetupSuite runs once before all tests
func (s *StoreTestSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	config := postgresql.DefaultTestContainerConfig()
	config.MigrationsPath = migrationsPath
	s.container, err = postgresql.NewTestContainer(s.ctx, config)
	s.Require().NoError(err)

	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.store = pgstore.NewStore(s.container.Client, 200*time.Millisecond, logger.NewNop(),
		pgstore.WithClock(func() time.Time { return s.now }))
}

// TearDownSuite runs once after all tests
func (s *StoreTestSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

// SetupTest runs before each test
func (s *StoreTestSuite) SetupTest() {
	s.Require().NoError(s.container.Truncate(s.ctx,
		"outbox_events", "transactions", "trades", "fund_reservations", "orders", "wallets"))
}

func (s *StoreTestSuite) newOrder(id, userID string, side marketv1.Side, qty, price string) *orderv1.Order {
	o, err := orderv1.New(orderv1.NewParams{
		ID: id, UserID: userID, Side: side, Kind: orderv1.Limit(d(price)),
		Pair: eurAoa, Quantity: d(qty), Now: s.now,
	})
	s.Require().NoError(err)
	return o
}

func (s *StoreTestSuite) TestLedger() {
	ledger := s.store.Ledger()
	key := ledgerv1.WalletKey{UserID: "alice", Currency: marketv1.AOA}

	err := ledger.Credit(s.ctx, key, d("10"))
	s.True(errors.HasCode(err, errors.GeneralInternalServerError), "primitives need a unit")

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		if err := ledger.Credit(ctx, key, d("1000.125")); err != nil {
			return err
		}
		return ledger.Reserve(ctx, key, d("400"))
	}))

	w, err := ledger.Wallet(s.ctx, key)
	s.Require().NoError(err)
	s.True(w.AvailableBalance.Equal(d("600.125")))
	s.True(w.ReservedBalance.Equal(d("400")))
	s.Equal(s.now, w.UpdatedAt.UTC())

	err = s.store.Do(s.ctx, func(ctx context.Context) error {
		if err := ledger.Release(ctx, key, d("100")); err != nil {
			return err
		}
		return ledger.Reserve(ctx, key, d("5000"))
	})
	s.True(errors.HasCode(err, errors.InsufficientBalance))

	w, err = ledger.Wallet(s.ctx, key)
	s.Require().NoError(err)
	s.True(w.ReservedBalance.Equal(d("400")), "failed unit rolls back the release")

	err = s.store.Do(s.ctx, func(ctx context.Context) error {
		return ledger.Debit(ctx, key, d("401"), ledgerv1.FromReserved)
	})
	s.True(errors.HasCode(err, errors.SettlementInvariantViolation))

	empty, err := ledger.Wallet(s.ctx, ledgerv1.WalletKey{UserID: "nobody", Currency: marketv1.EUR})
	s.Require().NoError(err)
	s.True(empty.Total().IsZero())
}

func (s *StoreTestSuite) TestOrders() {
	repo := s.store.Orders()
	first := s.newOrder("o-1", "alice", marketv1.Sell, "10", "650.5")
	second := s.newOrder("o-2", "bob", marketv1.Buy, "3", "640")

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, first); err != nil {
			return err
		}
		return repo.Create(ctx, second)
	}))
	s.Less(first.Sequence, second.Sequence)

	got, err := repo.GetByID(s.ctx, "o-1")
	s.Require().NoError(err)
	price, ok := got.LimitPrice()
	s.True(ok)
	s.True(price.Equal(d("650.5")))
	s.Equal(eurAoa, got.Pair)
	s.Equal(orderv1.StatusPending, got.Status)

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		o, err := repo.GetForUpdate(ctx, "o-1")
		if err != nil {
			return err
		}
		if err := o.Fill(d("10"), s.now); err != nil {
			return err
		}
		return repo.Update(ctx, o)
	}))

	open, err := repo.ListOpen(s.ctx, eurAoa)
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal("o-2", open[0].ID)

	_, err = repo.GetByID(s.ctx, "missing")
	s.True(errors.HasCode(err, errors.OrderNotFound))
}

func (s *StoreTestSuite) TestReservations() {
	repo := s.store.Reservations()
	key := ledgerv1.WalletKey{UserID: "bob", Currency: marketv1.AOA}

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		for _, r := range []struct{ id, orderID, amount string }{
			{"r-1", "o-1", "1000"},
			{"r-2", "o-2", "250"},
		} {
			if err := repo.Create(ctx, reservationv1.New(r.id, "bob", r.orderID, marketv1.AOA, d(r.amount), s.now)); err != nil {
				return err
			}
			if err := s.store.Orders().Create(ctx, s.newOrder(r.orderID, "bob", marketv1.Buy, "1", "600")); err != nil {
				return err
			}
		}
		res, err := repo.GetByOrderIDForUpdate(ctx, "o-1")
		if err != nil {
			return err
		}
		if err := res.Consume(d("600"), s.now); err != nil {
			return err
		}
		return repo.Update(ctx, res)
	}))

	total, err := repo.SumOutstanding(s.ctx, key)
	s.Require().NoError(err)
	s.True(total.Equal(d("650")))

	_, err = repo.GetByID(s.ctx, "r-9")
	s.True(errors.HasCode(err, errors.ReservationNotFound))
}

func (s *StoreTestSuite) TestOutboxSkipsLockedRows() {
	out := s.store.Outbox()
	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		for _, id := range []string{"e-1", "e-2"} {
			e, err := eventv1.New(id, eventv1.OrderPlaced, "o-1", eurAoa, map[string]string{"id": id}, s.now)
			if err != nil {
				return err
			}
			if err := out.Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.store.Do(s.ctx, func(ctx context.Context) error {
			events, err := out.ListPending(ctx, 1)
			if err != nil || len(events) != 1 {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		events, err := out.ListPending(ctx, 10)
		if err != nil {
			return err
		}
		s.Require().Len(events, 1)
		s.Equal("e-2", events[0].ID)
		s.JSONEq(`{"id":"e-2"}`, string(events[0].Payload))
		return out.MarkPublished(ctx, []string{events[0].ID}, s.now)
	}))
	close(release)
	wg.Wait()

	pending, err := out.ListPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("e-1", pending[0].ID)
}

func (s *StoreTestSuite) TestLockTimeoutIsConflict() {
	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context) error {
		return s.store.Orders().Create(ctx, s.newOrder("o-1", "alice", marketv1.Sell, "1", "600"))
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.store.Do(s.ctx, func(ctx context.Context) error {
			_, err := s.store.Orders().GetForUpdate(ctx, "o-1")
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	err := s.store.Do(s.ctx, func(ctx context.Context) error {
		_, err := s.store.Orders().GetForUpdate(ctx, "o-1")
		return err
	})
	close(release)
	wg.Wait()

	s.True(errors.HasCode(err, errors.ConcurrencyConflict), "got %v", err)
}

func (s *StoreTestSuite) TestEngineSettlesOnPostgres() {
	fees, err := fee.NewProvider()
	s.Require().NoError(err)

	e := engine.New(engine.Backend{
		Tx:           s.store,
		Orders:       s.store.Orders(),
		Reservations: s.store.Reservations(),
		Ledger:       s.store.Ledger(),
		Trades:       s.store.Trades(),
		Transactions: s.store.Transactions(),
		Outbox:       s.store.Outbox(),
		Liquidity:    memory.NewLiquidityStore(func() time.Time { return time.Now().UTC() }),
	}, fees, nil, engine.Config{
		Currencies: []string{"EUR", "AOA"},
		Liquidity:  liquidity.DefaultConfig(),
	}, metrics.NewNop(), logger.NewNop())

	_, err = e.Deposit(s.ctx, "alice", "EUR", d("50"))
	s.Require().NoError(err)
	_, err = e.Deposit(s.ctx, "bob", "AOA", d("100000"))
	s.Require().NoError(err)

	price := d("655")
	_, err = e.PlaceOrder(s.ctx, engine.PlaceOrderRequest{
		UserID: "alice", Side: marketv1.Sell, OrderType: orderv1.TypeLimit,
		Base: "EUR", Quote: "AOA", Quantity: d("50"), Price: &price,
	})
	s.Require().NoError(err)

	res, err := e.PlaceOrder(s.ctx, engine.PlaceOrderRequest{
		UserID: "bob", Side: marketv1.Buy, OrderType: orderv1.TypeMarket,
		Base: "EUR", Quote: "AOA", Quantity: d("20"),
	})
	s.Require().NoError(err)
	s.Equal(orderv1.StatusFilled, res.Status)
	s.Require().Len(res.Trades, 1)

	bob, err := e.GetWallet(s.ctx, "bob", "AOA")
	s.Require().NoError(err)
	s.True(bob.AvailableBalance.Equal(d("86900")), bob.AvailableBalance.String())
	s.True(bob.ReservedBalance.IsZero())

	alice, err := e.GetWallet(s.ctx, "alice", "EUR")
	s.Require().NoError(err)
	s.True(alice.AvailableBalance.IsZero())
	s.True(alice.ReservedBalance.Equal(d("30")))

	trades, err := e.GetRecentTrades(s.ctx, "EUR", "AOA", 10)
	s.Require().NoError(err)
	s.Require().Len(trades, 1)
	s.True(trades[0].QuoteAmount.Equal(d("13100")))

	history, err := s.store.Transactions().ListByUser(s.ctx, "alice", 10)
	s.Require().NoError(err)
	s.Len(history, 2)

	pending, err := s.store.Outbox().ListPending(s.ctx, 100)
	require.NoError(s.T(), err)
	s.NotEmpty(pending)
}
