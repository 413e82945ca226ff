// Package engine is the call-level API of the exchange: it wires the
// reservation, matching, settlement, liquidity and wallet use cases over one
// storage backend and runs the background workers.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/liquidity"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/matching"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/orderbook"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/outbox"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/reservation"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/settlement"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/wallet"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// Backend is the storage the engine runs on. Every repository must join the
// unit of work started by Tx.
type Backend struct {
	Tx           txv1.Transactor
	Orders       orderv1.Repository
	Reservations reservationv1.Repository
	Ledger       ledgerv1.Ledger
	Trades       tradev1.Repository
	Transactions tradev1.TransactionRepository
	Outbox       eventv1.Outbox
	Liquidity    liquidityv1.Store
}

// Config holds the engine settings.
type Config struct {
	Currencies      []string
	FeeAccount      string
	Liquidity       liquidity.Config
	SweepInterval   time.Duration
	OutboxInterval  time.Duration
	OutboxBatchSize int
	DepthLevels     int
	RecentTrades    int
}

// PlaceOrderRequest holds the inputs of PlaceOrder.
type PlaceOrderRequest = matching.PlaceOrderParams

// PlaceOrderResponse is the outcome of PlaceOrder.
type PlaceOrderResponse = matching.OrderResult

// CancelOrderResponse is the outcome of CancelOrder.
type CancelOrderResponse = matching.CancelResult

// ReserveLiquidityRequest holds the inputs of ReserveLiquidity.
type ReserveLiquidityRequest struct {
	UserID             string
	Side               marketv1.Side
	Base               string
	Quote              string
	Quantity           decimal.Decimal
	MaxSlippagePercent *decimal.Decimal
	TTL                time.Duration
}

// Engine is the exchange facade.
type Engine struct {
	market   *marketv1.Market
	pairs    []marketv1.Pair
	matching *matching.Engine
	checker  *liquidity.Checker
	wallets  *wallet.Service
	relay    *outbox.Relay
	cfg      Config
	logger   logger.Interface

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	clock util.Clock
	newID func() string
}

// WithClock overrides the clock of every component.
func WithClock(c util.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator overrides id generation of every component.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// New wires an Engine. Every pair of distinct configured currencies is
// tradeable.
func New(
	backend Backend,
	fees feev1.Provider,
	publisher eventv1.Publisher,
	cfg Config,
	m *metrics.Metrics,
	log logger.Interface,
	opts ...Option,
) *Engine {
	o := &options{clock: util.SystemClock, newID: util.NewID}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.FeeAccount == "" {
		cfg.FeeAccount = settlement.DefaultFeeAccount
	}

	market := marketv1.NewMarket(cfg.Currencies...)
	pairs := Pairs(cfg.Currencies)
	books := orderbook.NewRegistry(log)

	funds := reservation.NewManager(backend.Tx, backend.Ledger, backend.Reservations, market, log,
		reservation.WithClock(o.clock), reservation.WithIDGenerator(o.newID))
	checker := liquidity.NewChecker(books, market, backend.Liquidity, backend.Tx, backend.Outbox,
		cfg.Liquidity, m, log, liquidity.WithClock(o.clock))
	executor := settlement.NewExecutor(settlement.Deps{
		Tx:           backend.Tx,
		Orders:       backend.Orders,
		Reservations: backend.Reservations,
		Funds:        funds,
		Ledger:       backend.Ledger,
		Trades:       backend.Trades,
		Transactions: backend.Transactions,
		Fees:         fees,
		Outbox:       backend.Outbox,
	}, m, log,
		settlement.WithFeeAccount(cfg.FeeAccount),
		settlement.WithClock(o.clock),
		settlement.WithIDGenerator(o.newID),
	)
	engine := matching.NewEngine(matching.Deps{
		Tx:           backend.Tx,
		Orders:       backend.Orders,
		Reservations: backend.Reservations,
		Trades:       backend.Trades,
		Funds:        funds,
		Settler:      executor,
		Liquidity:    checker,
		Books:        books,
		Fees:         fees,
		Outbox:       backend.Outbox,
		Market:       market,
	}, m, log,
		matching.WithClock(o.clock),
		matching.WithIDGenerator(o.newID),
		matching.WithPairs(pairs...),
		matching.WithReadLimits(cfg.DepthLevels, cfg.RecentTrades),
	)
	wallets := wallet.NewService(wallet.Deps{
		Tx:           backend.Tx,
		Ledger:       backend.Ledger,
		Transactions: backend.Transactions,
		Fees:         fees,
		Outbox:       backend.Outbox,
		Market:       market,
	}, log,
		wallet.WithFeeAccount(cfg.FeeAccount),
		wallet.WithClock(o.clock),
		wallet.WithIDGenerator(o.newID),
	)

	var relay *outbox.Relay
	if publisher != nil {
		relay = outbox.NewRelay(backend.Tx, backend.Outbox, publisher, cfg.OutboxBatchSize, cfg.OutboxInterval, m, log,
			outbox.WithClock(o.clock))
	}

	return &Engine{
		market:   market,
		pairs:    pairs,
		matching: engine,
		checker:  checker,
		wallets:  wallets,
		relay:    relay,
		cfg:      cfg,
		logger:   log,
	}
}

// Pairs lists the pairs tradeable between currencies: every ordered
// combination of two distinct codes.
func Pairs(currencies []string) []marketv1.Pair {
	var pairs []marketv1.Pair
	for _, base := range currencies {
		for _, quote := range currencies {
			if base != quote {
				pairs = append(pairs, marketv1.NewPair(base, quote))
			}
		}
	}
	return pairs
}

// Start restores the books from open orders, registers the liquidity holds
// still alive in the store, then launches the outbox relay and the hold
// sweeper. Stop ends them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.New(errors.GeneralInternalServerError, "engine already started")
	}

	if err := e.matching.Restore(ctx); err != nil {
		return err
	}
	if _, err := e.checker.Restore(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	if e.relay != nil {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			e.relay.Run(runCtx)
		}()
	}

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		e.sweep(runCtx)
	}()

	e.logger.InfoContext(ctx, "engine started", logger.NewField("pairs", len(e.pairs)))
	return nil
}

func (e *Engine) sweep(ctx context.Context) {
	interval := e.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checker.Sweep(ctx)
		}
	}
}

// Stop ends the background workers and waits for them. It is safe to call on
// an engine that was never started.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.workers.Wait()
	e.logger.Info("engine stopped")
}

// RelayOnce drains one batch of outbox events to the publisher.
func (e *Engine) RelayOnce(ctx context.Context) (int, error) {
	if e.relay == nil {
		return 0, nil
	}
	return e.relay.RelayOnce(util.EnsureRequestID(ctx))
}

// PlaceOrder validates, reserves, matches and settles an order.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), req.UserID)
	return e.matching.PlaceOrder(ctx, req)
}

// CancelOrder withdraws an open order owned by userID.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (*CancelOrderResponse, error) {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), userID)
	return e.matching.CancelOrder(ctx, orderID, userID)
}

// GetOrder returns a snapshot of an order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*orderv1.Snapshot, error) {
	if orderID == "" {
		return nil, errors.New(errors.ValidationError, "order id is required").WithField("order_id")
	}
	o, err := e.matching.GetOrder(util.EnsureRequestID(ctx), orderID)
	if err != nil {
		return nil, err
	}
	snap := o.Snapshot()
	return &snap, nil
}

// GetOrderBookDepth aggregates up to levels price levels per side.
func (e *Engine) GetOrderBookDepth(ctx context.Context, base, quote string, levels int) (orderbookv1.Depth, error) {
	return e.matching.Depth(util.EnsureRequestID(ctx), marketv1.NewPair(base, quote), levels)
}

// GetRecentTrades returns the latest trades of a pair, newest first.
func (e *Engine) GetRecentTrades(ctx context.Context, base, quote string, limit int) ([]*tradev1.Trade, error) {
	return e.matching.RecentTrades(util.EnsureRequestID(ctx), marketv1.NewPair(base, quote), limit)
}

// CheckMarketLiquidity reports the liquidity a market order of quantity
// would meet. It never fails for lack of liquidity.
func (e *Engine) CheckMarketLiquidity(
	ctx context.Context,
	side marketv1.Side,
	base, quote string,
	quantity decimal.Decimal,
	maxSlippagePercent *decimal.Decimal,
) (*liquidityv1.Report, error) {
	return e.checker.Check(util.EnsureRequestID(ctx), liquidity.CheckParams{
		Side:               side,
		Pair:               marketv1.NewPair(base, quote),
		Quantity:           quantity,
		MaxSlippagePercent: maxSlippagePercent,
	})
}

// ReserveLiquidity holds resting liquidity for a later market order.
func (e *Engine) ReserveLiquidity(ctx context.Context, req ReserveLiquidityRequest) (*liquidityv1.Reservation, *liquidityv1.Report, error) {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), req.UserID)
	return e.checker.Reserve(ctx, liquidity.ReserveParams{
		UserID:             req.UserID,
		Side:               req.Side,
		Pair:               marketv1.NewPair(req.Base, req.Quote),
		Quantity:           req.Quantity,
		MaxSlippagePercent: req.MaxSlippagePercent,
		TTL:                req.TTL,
	})
}

// ReleaseLiquidity drops a hold before it expires.
func (e *Engine) ReleaseLiquidity(ctx context.Context, reservationID, userID string) error {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), userID)
	return e.checker.Release(ctx, reservationID, userID)
}

// Deposit credits a user's wallet.
func (e *Engine) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*wallet.Movement, error) {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), userID)
	return e.wallets.Deposit(ctx, userID, currency, amount)
}

// Withdraw debits a user's available balance.
func (e *Engine) Withdraw(ctx context.Context, userID, currency string, amount decimal.Decimal) (*wallet.Movement, error) {
	ctx = util.WithActorID(util.EnsureRequestID(ctx), userID)
	return e.wallets.Withdraw(ctx, userID, currency, amount)
}

// GetWallet returns a user's balance in currency.
func (e *Engine) GetWallet(ctx context.Context, userID, currency string) (*ledgerv1.Wallet, error) {
	return e.wallets.Wallet(util.EnsureRequestID(ctx), userID, currency)
}

// GetTransactions returns a user's latest ledger entries, newest first.
func (e *Engine) GetTransactions(ctx context.Context, userID string, limit int) ([]*tradev1.Transaction, error) {
	return e.wallets.History(util.EnsureRequestID(ctx), userID, limit)
}

// HaltedPairs maps halted pairs to the reason they were halted.
func (e *Engine) HaltedPairs() map[string]string {
	return e.matching.HaltedPairs()
}

// ResumePair re-enables matching on a halted pair.
func (e *Engine) ResumePair(ctx context.Context, base, quote string) (bool, error) {
	return e.matching.ResumePair(util.EnsureRequestID(ctx), marketv1.NewPair(base, quote))
}

// TradingPairs lists the pairs the engine trades.
func (e *Engine) TradingPairs() []marketv1.Pair {
	return append([]marketv1.Pair(nil), e.pairs...)
}
