package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// DefaultFeeAccount is the user id that collects trading fees.
const DefaultFeeAccount = "platform-fees"

// Execution is the committed result of one trade.
type Execution struct {
	Trade *tradev1.Trade
	Taker *orderv1.Order
	Maker *orderv1.Order
}

// Funds settles and closes fund reservations inside the caller's unit of
// work.
type Funds interface {
	Consume(ctx context.Context, res *reservationv1.Reservation, amount decimal.Decimal) error
	CloseLocked(ctx context.Context, res *reservationv1.Reservation, status reservationv1.Status) error
}

// Deps groups the collaborators of an Executor.
type Deps struct {
	Tx           txv1.Transactor
	Orders       orderv1.Repository
	Reservations reservationv1.Repository
	Funds        Funds
	Ledger       ledgerv1.Ledger
	Trades       tradev1.Repository
	Transactions tradev1.TransactionRepository
	Fees         feev1.Provider
	Outbox       eventv1.Outbox
}

// Executor settles matches. Every Execute is one unit of work: either every
// balance, reservation, order and history change of the trade commits, or
// none does.
type Executor struct {
	Deps
	feeAccount string
	clock      util.Clock
	newID      func() string
	metrics    *metrics.Metrics
	logger     logger.Interface
}

// Option configures an Executor.
type Option func(*Executor)

// WithFeeAccount sets the user id credited with fees.
func WithFeeAccount(id string) Option {
	return func(e *Executor) { e.feeAccount = id }
}

// WithClock overrides the clock.
func WithClock(c util.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithIDGenerator overrides id generation for trades, transactions and events.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) { e.newID = fn }
}

// NewExecutor creates an Executor.
func NewExecutor(deps Deps, m *metrics.Metrics, log logger.Interface, opts ...Option) *Executor {
	e := &Executor{
		Deps:       deps,
		feeAccount: DefaultFeeAccount,
		clock:      util.SystemClock,
		newID:      util.NewID,
		metrics:    m,
		logger:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FeeAccount returns the user id credited with fees.
func (e *Executor) FeeAccount() string {
	return e.feeAccount
}

func violation(format string, args ...any) error {
	return errors.New(errors.SettlementInvariantViolation, format, args...)
}

// Execute settles m. Once started the unit ignores cancellation of ctx.
func (e *Executor) Execute(ctx context.Context, m orderbookv1.Match) (*Execution, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		e.metrics.SettlementLatency.Observe(time.Since(start).Seconds())
	}()

	var exec *Execution
	err := e.Tx.Do(ctx, func(ctx context.Context) error {
		var err error
		exec, err = e.settle(ctx, m)
		return err
	})
	if err != nil {
		if errors.HasCode(err, errors.SettlementInvariantViolation) {
			e.metrics.InvariantViolations.WithLabelValues(m.Pair.String()).Inc()
			e.logger.ErrorContext(ctx, err,
				logger.NewField("pair", m.Pair.String()),
				logger.NewField("taker_order_id", m.TakerOrderID),
				logger.NewField("maker_order_id", m.MakerOrderID),
				logger.NewField("quantity", m.Quantity.String()),
				logger.NewField("price", m.Price.String()),
			)
		}
		return nil, err
	}

	e.metrics.TradesExecuted.WithLabelValues(m.Pair.String()).Inc()
	e.metrics.TradeVolume.WithLabelValues(m.Pair.String()).Add(m.Quantity.InexactFloat64())
	e.logger.InfoContext(ctx, "trade executed",
		logger.NewField("trade_id", exec.Trade.ID),
		logger.NewField("pair", m.Pair.String()),
		logger.NewField("buy_order_id", exec.Trade.BuyOrderID),
		logger.NewField("sell_order_id", exec.Trade.SellOrderID),
		logger.NewField("quantity", exec.Trade.Quantity.String()),
		logger.NewField("price", exec.Trade.Price.String()),
	)
	return exec, nil
}

// buyCeiling is the highest price the buy order's reservation was sized
// for. A market buy without a ceiling sets nothing aside for later fills.
func buyCeiling(buy *orderv1.Order, m orderbookv1.Match) decimal.Decimal {
	if price, ok := buy.LimitPrice(); ok {
		return price
	}
	return decimal.Max(decimal.Zero, m.BuyCeiling)
}

// lockOrder fetches an order under lock. A missing order is corrupted state
// here, not a caller error.
func (e *Executor) lockOrder(ctx context.Context, id string) (*orderv1.Order, error) {
	o, err := e.Orders.GetForUpdate(ctx, id)
	if err != nil {
		if errors.HasCode(err, errors.OrderNotFound) {
			return nil, violation("order %s vanished during settlement", id)
		}
		return nil, err
	}
	return o, nil
}

func (e *Executor) lockReservation(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	res, err := e.Reservations.GetByOrderIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.HasCode(err, errors.ReservationNotFound) {
			return nil, violation("order %s has no reservation", orderID)
		}
		return nil, err
	}
	return res, nil
}

func (e *Executor) settle(ctx context.Context, m orderbookv1.Match) (*Execution, error) {
	if !m.Quantity.IsPositive() || !m.Price.IsPositive() {
		return nil, violation("match quantity %s and price %s must be positive", m.Quantity, m.Price)
	}
	if m.TakerOrderID == m.MakerOrderID {
		return nil, violation("order %s cannot trade with itself", m.TakerOrderID)
	}

	taker, err := e.lockOrder(ctx, m.TakerOrderID)
	if err != nil {
		return nil, err
	}
	maker, err := e.lockOrder(ctx, m.MakerOrderID)
	if err != nil {
		return nil, err
	}
	if err := checkOrders(m, taker, maker); err != nil {
		return nil, err
	}

	takerRes, err := e.lockReservation(ctx, taker.ID)
	if err != nil {
		return nil, err
	}
	makerRes, err := e.lockReservation(ctx, maker.ID)
	if err != nil {
		return nil, err
	}

	buy, sell := taker, maker
	buyRes, sellRes := takerRes, makerRes
	if m.TakerSide == marketv1.Sell {
		buy, sell = maker, taker
		buyRes, sellRes = makerRes, takerRes
	}
	pair := m.Pair
	if buyRes.Currency != pair.Quote || sellRes.Currency != pair.Base {
		return nil, violation("reservations %s/%s do not fund %s", buyRes.Currency, sellRes.Currency, pair)
	}

	quote := m.Quantity.Mul(m.Price)
	buyerFee, sellerFee, err := e.fees(ctx, pair.Quote, quote)
	if err != nil {
		return nil, err
	}
	headroom := buyRes.Outstanding().Sub(quote)
	if headroom.IsNegative() {
		return nil, violation("reservation %s outstanding %s cannot cover %s", buyRes.ID, buyRes.Outstanding(), quote)
	}
	// later fills of the buy order are still owed their notional
	if left := buy.RemainingQuantity.Sub(m.Quantity); left.IsPositive() {
		headroom = decimal.Max(decimal.Zero, headroom.Sub(left.Mul(buyCeiling(buy, m))))
	}
	buyerFee = decimal.Min(buyerFee, headroom)
	sellerFee = decimal.Min(sellerFee, quote)

	keys := []ledgerv1.WalletKey{
		{UserID: buy.UserID, Currency: pair.Quote},
		{UserID: buy.UserID, Currency: pair.Base},
		{UserID: sell.UserID, Currency: pair.Base},
		{UserID: sell.UserID, Currency: pair.Quote},
		{UserID: e.feeAccount, Currency: pair.Quote},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	if err := e.Ledger.Lock(ctx, keys...); err != nil {
		return nil, err
	}

	now := e.clock()
	if err := e.Funds.Consume(ctx, buyRes, quote.Add(buyerFee)); err != nil {
		return nil, err
	}
	if err := e.Ledger.Credit(ctx, ledgerv1.WalletKey{UserID: buy.UserID, Currency: pair.Base}, m.Quantity); err != nil {
		return nil, err
	}
	if err := e.Funds.Consume(ctx, sellRes, m.Quantity); err != nil {
		return nil, err
	}
	if proceeds := quote.Sub(sellerFee); proceeds.IsPositive() {
		if err := e.Ledger.Credit(ctx, ledgerv1.WalletKey{UserID: sell.UserID, Currency: pair.Quote}, proceeds); err != nil {
			return nil, err
		}
	}
	if fees := buyerFee.Add(sellerFee); fees.IsPositive() {
		if err := e.Ledger.Credit(ctx, ledgerv1.WalletKey{UserID: e.feeAccount, Currency: pair.Quote}, fees); err != nil {
			return nil, err
		}
	}

	for _, o := range []*orderv1.Order{taker, maker} {
		if err := o.Fill(m.Quantity, now); err != nil {
			return nil, err
		}
		if err := o.CheckInvariants(); err != nil {
			return nil, err
		}
		if err := e.Orders.Update(ctx, o); err != nil {
			return nil, err
		}
	}
	for _, pr := range []struct {
		o   *orderv1.Order
		res *reservationv1.Reservation
	}{{taker, takerRes}, {maker, makerRes}} {
		if pr.o.Status != orderv1.StatusFilled || !pr.res.Status.IsOpen() {
			continue
		}
		// price improvement leaves part of a filled buy reservation unspent
		if err := e.Funds.CloseLocked(ctx, pr.res, reservationv1.StatusReleased); err != nil {
			return nil, err
		}
	}

	trade := &tradev1.Trade{
		ID:           e.newID(),
		Pair:         pair,
		BuyOrderID:   buy.ID,
		SellOrderID:  sell.ID,
		BuyerID:      buy.UserID,
		SellerID:     sell.UserID,
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		TakerSide:    m.TakerSide,
		Quantity:     m.Quantity,
		Price:        m.Price,
		BaseAmount:   m.Quantity,
		QuoteAmount:  quote,
		BuyerFee:     buyerFee,
		SellerFee:    sellerFee,
		FeeCurrency:  pair.Quote,
		ExecutedAt:   now,
	}
	if err := e.Trades.Create(ctx, trade); err != nil {
		return nil, err
	}
	if err := e.Transactions.Create(ctx, e.history(trade)...); err != nil {
		return nil, err
	}
	if err := e.publish(ctx, trade, taker, maker); err != nil {
		return nil, err
	}

	return &Execution{Trade: trade, Taker: taker, Maker: maker}, nil
}

func checkOrders(m orderbookv1.Match, taker, maker *orderv1.Order) error {
	if taker.UserID == maker.UserID {
		return violation("self-trade between orders %s and %s of user %s", taker.ID, maker.ID, taker.UserID)
	}
	if taker.Side != m.TakerSide || maker.Side != m.TakerSide.Opposite() {
		return violation("sides %s/%s do not match a %s taker", taker.Side, maker.Side, m.TakerSide)
	}
	if taker.Pair != m.Pair || maker.Pair != m.Pair {
		return violation("orders %s and %s are not both on %s", taker.ID, maker.ID, m.Pair)
	}
	for _, o := range []*orderv1.Order{taker, maker} {
		if !o.IsOpen() {
			return violation("order %s is %s", o.ID, o.Status)
		}
		if m.Quantity.GreaterThan(o.RemainingQuantity) {
			return violation("quantity %s exceeds remaining %s of order %s", m.Quantity, o.RemainingQuantity, o.ID)
		}
	}
	price, ok := maker.LimitPrice()
	if !ok || !price.Equal(m.Price) {
		return violation("trade price %s is not the maker price of order %s", m.Price, maker.ID)
	}
	if !taker.Crosses(m.Price) {
		return violation("taker %s does not accept price %s", taker.ID, m.Price)
	}
	return nil
}

func (e *Executor) fees(ctx context.Context, currency marketv1.Currency, quote decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	buySchedule, err := e.Fees.Lookup(ctx, tradev1.TypeTradeBuy, currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sellSchedule, err := e.Fees.Lookup(ctx, tradev1.TypeTradeSell, currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return feev1.Calculate(quote, buySchedule), feev1.Calculate(quote, sellSchedule), nil
}

func (e *Executor) history(t *tradev1.Trade) []*tradev1.Transaction {
	return []*tradev1.Transaction{
		{
			ID:             e.newID(),
			UserID:         t.BuyerID,
			TradeID:        t.ID,
			OrderID:        t.BuyOrderID,
			Type:           tradev1.TypeTradeBuy,
			DebitCurrency:  t.Pair.Quote,
			DebitAmount:    t.QuoteAmount.Add(t.BuyerFee),
			CreditCurrency: t.Pair.Base,
			CreditAmount:   t.BaseAmount,
			Fee:            t.BuyerFee,
			FeeCurrency:    t.FeeCurrency,
			CreatedAt:      t.ExecutedAt,
		},
		{
			ID:             e.newID(),
			UserID:         t.SellerID,
			TradeID:        t.ID,
			OrderID:        t.SellOrderID,
			Type:           tradev1.TypeTradeSell,
			DebitCurrency:  t.Pair.Base,
			DebitAmount:    t.BaseAmount,
			CreditCurrency: t.Pair.Quote,
			CreditAmount:   t.QuoteAmount.Sub(t.SellerFee),
			Fee:            t.SellerFee,
			FeeCurrency:    t.FeeCurrency,
			CreatedAt:      t.ExecutedAt,
		},
	}
}

func (e *Executor) publish(ctx context.Context, t *tradev1.Trade, orders ...*orderv1.Order) error {
	events := make([]*eventv1.Event, 0, 1+len(orders))
	ev, err := eventv1.New(e.newID(), eventv1.TradeExecuted, t.ID, t.Pair, t, t.ExecutedAt)
	if err != nil {
		return err
	}
	events = append(events, ev)
	for _, o := range orders {
		ev, err := eventv1.New(e.newID(), eventv1.OrderUpdated, o.ID, o.Pair, o.Snapshot(), t.ExecutedAt)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	return e.Outbox.Append(ctx, events...)
}
