package matching

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	orderbookv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/orderbook/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/liquidity"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/orderbook"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/reservation"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/settlement"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

const (
	defaultDepthLevels = 20
	maxDepthLevels     = 500
	defaultTradeLimit  = 50
	maxTradeLimit      = 1000
)

// PlaceOrderParams holds the inputs of PlaceOrder.
type PlaceOrderParams struct {
	UserID    string        `validate:"required"`
	Side      marketv1.Side `validate:"required,oneof=buy sell"`
	OrderType orderv1.Type  `validate:"required,oneof=market limit"`
	Base      string        `validate:"required,len=3,alpha"`
	Quote     string        `validate:"required,len=3,alpha"`
	Quantity  decimal.Decimal
	// Price is required for limit orders and ignored for market orders.
	Price *decimal.Decimal
	// MaxSlippagePercent bounds how far a market order may walk from the best
	// opposite price. Nil picks the configured default.
	MaxSlippagePercent *decimal.Decimal
	// LiquidityReservationID consumes a hold taken with ReserveLiquidity.
	// Market orders only.
	LiquidityReservationID string
}

// OrderResult is the outcome of PlaceOrder.
type OrderResult struct {
	OrderID           string
	Status            orderv1.Status
	FilledQuantity    decimal.Decimal
	DiscardedQuantity decimal.Decimal
	// AverageFillPrice is nil when nothing was filled.
	AverageFillPrice *decimal.Decimal
	Trades           []*tradev1.Trade
}

// CancelResult is the outcome of CancelOrder.
type CancelResult struct {
	OrderID        string
	Status         orderv1.Status
	ReleasedAmount decimal.Decimal
}

// Settler executes one match as an atomic unit of work.
type Settler interface {
	Execute(ctx context.Context, m orderbookv1.Match) (*settlement.Execution, error)
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Tx           txv1.Transactor
	Orders       orderv1.Repository
	Reservations reservationv1.Repository
	Trades       tradev1.Repository
	Funds        *reservation.Manager
	Settler      Settler
	Liquidity    *liquidity.Checker
	Books        *orderbook.Registry
	Fees         feev1.Provider
	Outbox       eventv1.Outbox
	Market       *marketv1.Market
}

// Engine places, matches and cancels orders. Everything that touches a pair's
// book runs under that pair's lock; every trade is its own unit of work.
type Engine struct {
	Deps
	pairs     []marketv1.Pair
	maxDepth  int
	maxTrades int
	clock     util.Clock
	newID     func() string
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    logger.Interface
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock.
func WithClock(c util.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides order and event id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithPairs sets the pairs restored at start-up.
func WithPairs(pairs ...marketv1.Pair) Option {
	return func(e *Engine) { e.pairs = pairs }
}

// WithReadLimits caps the depth levels and trades a single read returns.
// Non-positive values keep the defaults.
func WithReadLimits(depthLevels, trades int) Option {
	return func(e *Engine) {
		if depthLevels > 0 {
			e.maxDepth = depthLevels
		}
		if trades > 0 {
			e.maxTrades = trades
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(deps Deps, m *metrics.Metrics, log logger.Interface, opts ...Option) *Engine {
	e := &Engine{
		Deps:      deps,
		maxDepth:  maxDepthLevels,
		maxTrades: maxTradeLimit,
		clock:     util.SystemClock,
		newID:     util.NewID,
		validate:  validator.New(),
		metrics:   m,
		logger:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore rebuilds the books of the configured pairs from open orders.
func (e *Engine) Restore(ctx context.Context) error {
	return e.Books.Restore(ctx, e.Orders, e.pairs...)
}

// request is a validated PlaceOrderParams.
type request struct {
	PlaceOrderParams
	pair     marketv1.Pair
	kind     orderv1.Kind
	slippage decimal.Decimal
}

func (e *Engine) parse(p PlaceOrderParams) (*request, error) {
	if err := e.validate.Struct(p); err != nil {
		return nil, validationError(err)
	}
	pair := marketv1.NewPair(p.Base, p.Quote)
	if err := e.Market.ValidatePair(pair); err != nil {
		return nil, err
	}
	if !p.Quantity.IsPositive() {
		return nil, errors.New(errors.ValidationError, "quantity must be positive").WithField("quantity")
	}

	r := &request{PlaceOrderParams: p, pair: pair}
	switch p.OrderType {
	case orderv1.TypeLimit:
		if p.Price == nil || !p.Price.IsPositive() {
			return nil, errors.New(errors.ValidationError, "limit orders need a positive price").WithField("price")
		}
		if p.LiquidityReservationID != "" {
			return nil, errors.New(errors.ValidationError, "liquidity reservations apply to market orders only").
				WithField("liquidity_reservation_id")
		}
		r.kind = orderv1.Limit(*p.Price)
	default:
		r.kind = orderv1.Market()
	}

	slippage, err := e.Liquidity.Slippage(p.MaxSlippagePercent)
	if err != nil {
		return nil, err
	}
	r.slippage = slippage
	return r, nil
}

// validationError collects one detail per offending field.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.New(errors.ValidationError, "invalid request").WithCause(err)
	}
	base := errors.NewBaseError()
	for _, fe := range verrs {
		base.AddErrorDetails(errors.New(errors.ValidationError, "%s failed on %s", fe.Field(), fe.Tag()).WithField(fe.Field()))
	}
	return base
}

// PlaceOrder validates, funds and records an order, then matches it against
// the opposite side of its book. A limit remainder rests; a market remainder
// is discarded when something matched and the order is cancelled otherwise.
//
// When a trade fails with ConcurrencyConflict the committed fills stand, the
// remainder is handled as above and the conflict is returned alongside the
// result.
func (e *Engine) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*OrderResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.PlaceOrderLatency.WithLabelValues(string(p.OrderType)).Observe(time.Since(start).Seconds())
	}()

	result, err := e.placeOrder(ctx, p)
	if err != nil {
		code := errors.CodeOf(err)
		if result == nil {
			e.metrics.OrdersRejected.WithLabelValues(string(code)).Inc()
		}
		if code == errors.ConcurrencyConflict {
			e.metrics.ConcurrencyConflicts.Inc()
		}
		e.logger.WarnContext(ctx, "place order failed",
			logger.NewField("user_id", p.UserID),
			logger.NewField("side", string(p.Side)),
			logger.NewField("order_type", string(p.OrderType)),
			logger.NewField("error_code", string(code)),
			logger.NewField("error", err.Error()),
		)
	}
	return result, err
}

func (e *Engine) placeOrder(ctx context.Context, p PlaceOrderParams) (*OrderResult, error) {
	r, err := e.parse(p)
	if err != nil {
		return nil, err
	}
	if halted, reason := e.Books.Halted(r.pair); halted {
		return nil, errors.New(errors.PairHalted, "matching on %s is halted: %s", r.pair, reason)
	}

	var (
		result   *OrderResult
		matchErr error
	)
	err = e.Books.With(r.pair, func(ob *orderbook.Orderbook) error {
		// a halt may have landed while waiting for the lock
		if halted, reason := e.Books.Halted(r.pair); halted {
			return errors.New(errors.PairHalted, "matching on %s is halted: %s", r.pair, reason)
		}

		var hold *liquidityv1.Reservation
		if r.LiquidityReservationID != "" {
			var err error
			if hold, err = e.Liquidity.Take(ob, r.LiquidityReservationID, r.UserID, r.Side); err != nil {
				return err
			}
		}

		order, band, err := e.open(ctx, ob, r, hold)
		if err != nil {
			return err
		}
		e.metrics.OrdersPlaced.WithLabelValues(r.pair.String(), string(r.Side), string(r.OrderType)).Inc()

		var trades []*tradev1.Trade
		order, trades, matchErr = e.match(ctx, ob, order, hold, band)
		if hold != nil {
			e.Liquidity.Consume(ctx, ob, hold)
		}

		order, err = e.finish(ctx, ob, order)
		if err != nil {
			return err
		}
		result = newResult(order, trades)
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, matchErr
}

// open reserves the order's funds and records it as pending in one unit of
// work. band is the worst price a market order may trade at.
func (e *Engine) open(ctx context.Context, ob *orderbook.Orderbook, r *request, hold *liquidityv1.Reservation) (*orderv1.Order, decimal.Decimal, error) {
	now := e.clock()
	band := decimal.Zero
	if r.OrderType == orderv1.TypeMarket {
		q := liquidity.Query{
			Side:               r.Side,
			Quantity:           r.Quantity,
			MaxSlippagePercent: r.slippage,
			UserID:             r.UserID,
		}
		if hold != nil {
			q.HoldID = hold.ID
		}
		report := liquidity.Analyze(ob, r.pair, q, now)
		if err := liquidity.Require(ob, report, q, now); err != nil {
			return nil, band, err
		}
		band = report.BandPrice
	}

	order, err := orderv1.New(orderv1.NewParams{
		ID:       e.newID(),
		UserID:   r.UserID,
		Side:     r.Side,
		Kind:     r.kind,
		Pair:     r.pair,
		Quantity: r.Quantity,
		Now:      now,
	})
	if err != nil {
		return nil, band, err
	}

	currency, amount, err := e.requiredFunds(ctx, order, band)
	if err != nil {
		return nil, band, err
	}
	order.ReservedAmount = amount
	order.ReservationCurrency = currency

	err = e.Tx.Do(ctx, func(ctx context.Context) error {
		if _, err := e.Funds.Reserve(ctx, reservation.ReserveParams{
			UserID:   order.UserID,
			Currency: currency,
			Amount:   amount,
			OrderID:  order.ID,
		}); err != nil {
			return err
		}
		if err := e.Orders.Create(ctx, order); err != nil {
			return err
		}
		return e.emit(ctx, eventv1.OrderPlaced, order, now)
	})
	if err != nil {
		return nil, band, err
	}

	e.logger.InfoContext(ctx, "order placed",
		logger.NewField("order_id", order.ID),
		logger.NewField("user_id", order.UserID),
		logger.NewField("pair", order.Pair.String()),
		logger.NewField("side", string(order.Side)),
		logger.NewField("order_type", string(r.OrderType)),
		logger.NewField("quantity", order.Quantity.String()),
		logger.NewField("reserved", amount.String()),
	)
	return order, band, nil
}

// requiredFunds sizes the reservation. Sells reserve the base quantity. Buys
// reserve the quote notional at the limit price, or at the band price for
// market orders, plus the buy fee on that notional.
func (e *Engine) requiredFunds(ctx context.Context, o *orderv1.Order, band decimal.Decimal) (marketv1.Currency, decimal.Decimal, error) {
	if o.Side == marketv1.Sell {
		return o.Pair.Base, o.Quantity, nil
	}

	price, ok := o.LimitPrice()
	if !ok {
		price = band
	}
	notional := o.Quantity.Mul(price)
	schedule, err := e.Fees.Lookup(ctx, tradev1.TypeTradeBuy, o.Pair.Quote)
	if err != nil {
		return "", decimal.Zero, err
	}
	return o.Pair.Quote, notional.Add(feev1.Calculate(notional, schedule)), nil
}

// match walks the opposite side and settles one trade at a time until the
// order is filled or no eligible counter order remains. The book is updated
// only after each trade commits.
func (e *Engine) match(ctx context.Context, ob *orderbook.Orderbook, order *orderv1.Order, hold *liquidityv1.Reservation, band decimal.Decimal) (*orderv1.Order, []*tradev1.Trade, error) {
	var trades []*tradev1.Trade
	ownHold := ""
	if hold != nil {
		ownHold = hold.ID
	}

	for order.RemainingQuantity.IsPositive() {
		maker, qty, ok := e.nextCounter(ob, order, ownHold, band)
		if !ok {
			break
		}

		exec, err := e.Settler.Execute(ctx, orderbookv1.Match{
			Pair:         order.Pair,
			TakerOrderID: order.ID,
			MakerOrderID: maker.OrderID,
			TakerSide:    order.Side,
			Quantity:     qty,
			Price:        maker.Price,
			BuyCeiling:   band,
		})
		if err != nil {
			if errors.HasCode(err, errors.SettlementInvariantViolation) {
				e.halt(ctx, order.Pair, err)
			}
			return order, trades, err
		}

		if err := ob.Fill(maker.OrderID, qty); err != nil {
			// the database is authoritative; the book no longer mirrors it
			e.halt(ctx, order.Pair, err)
			return exec.Taker, append(trades, exec.Trade), errors.New(errors.SettlementInvariantViolation,
				"book out of sync after trade %s", exec.Trade.ID).WithCause(err)
		}
		order = exec.Taker
		trades = append(trades, exec.Trade)
	}
	return order, trades, nil
}

// nextCounter returns the first eligible resting order in price-time order
// and the quantity to trade with it. Own orders and quantity held by other
// takers are skipped.
func (e *Engine) nextCounter(ob *orderbook.Orderbook, order *orderv1.Order, ownHold string, band decimal.Decimal) (*orderbookv1.Entry, decimal.Decimal, bool) {
	var (
		found *orderbookv1.Entry
		qty   decimal.Decimal
	)
	ob.Walk(order.Side.Opposite(), e.clock(), ownHold, func(entry *orderbookv1.Entry, matchable decimal.Decimal) bool {
		if order.IsMarket() {
			if !liquidity.WithinBand(order.Side, entry.Price, band) {
				return false
			}
		} else if !order.Crosses(entry.Price) {
			return false
		}
		if entry.UserID == order.UserID || !matchable.IsPositive() {
			return true
		}
		found = entry
		qty = decimal.Min(order.RemainingQuantity, matchable)
		return false
	})
	return found, qty, found != nil
}

// finish rests what is left of a limit order and closes a market order.
func (e *Engine) finish(ctx context.Context, ob *orderbook.Orderbook, order *orderv1.Order) (*orderv1.Order, error) {
	if !order.IsOpen() {
		return order, nil
	}
	if !order.IsMarket() {
		entry, ok := orderbookv1.EntryFromOrder(order)
		if !ok {
			return order, nil
		}
		if err := ob.Add(entry); err != nil {
			return order, errors.TracerFromError(err)
		}
		return order, nil
	}

	var closed *orderv1.Order
	err := e.Tx.Do(context.WithoutCancel(ctx), func(ctx context.Context) error {
		o, err := e.Orders.GetForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		res, err := e.Reservations.GetByOrderIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}

		now := e.clock()
		status := reservationv1.StatusReleased
		event := eventv1.OrderUpdated
		if o.FilledQuantity.IsPositive() {
			if err := o.DiscardRemainder(now); err != nil {
				return err
			}
		} else {
			if err := o.Cancel(now); err != nil {
				return err
			}
			status = reservationv1.StatusCancelled
			event = eventv1.OrderCancelled
		}
		if err := e.Orders.Update(ctx, o); err != nil {
			return err
		}
		if res.Status.IsOpen() {
			if err := e.Funds.CloseLocked(ctx, res, status); err != nil {
				return err
			}
		}
		closed = o
		return e.emit(ctx, event, o, now)
	})
	if err != nil {
		return order, err
	}

	if closed.DiscardedQuantity.IsPositive() {
		e.logger.InfoContext(ctx, "market order remainder discarded",
			logger.NewField("order_id", closed.ID),
			logger.NewField("filled", closed.FilledQuantity.String()),
			logger.NewField("discarded", closed.DiscardedQuantity.String()),
		)
	}
	return closed, nil
}

func (e *Engine) halt(ctx context.Context, pair marketv1.Pair, cause error) {
	if halted, _ := e.Books.Halted(pair); halted {
		return
	}
	e.Books.Halt(pair, cause.Error())
	e.metrics.PairsHalted.Inc()
	e.logger.ErrorContext(ctx, errors.Tracef(cause, "matching halted on %s", pair),
		logger.NewField("pair", pair.String()))

	ev, err := eventv1.New(e.newID(), eventv1.PairHalted, pair.String(), pair,
		map[string]string{"pair": pair.String(), "reason": cause.Error()}, e.clock())
	if err == nil {
		err = e.Tx.Do(context.WithoutCancel(ctx), func(ctx context.Context) error {
			return e.Outbox.Append(ctx, ev)
		})
	}
	if err != nil {
		e.logger.ErrorContext(ctx, err, logger.NewField("pair", pair.String()))
	}
}

// ResumePair re-enables matching on a halted pair. It reports whether the pair
// was halted.
func (e *Engine) ResumePair(ctx context.Context, pair marketv1.Pair) (bool, error) {
	if err := e.Market.ValidatePair(pair); err != nil {
		return false, err
	}
	if !e.Books.Resume(pair) {
		return false, nil
	}
	e.metrics.PairsHalted.Dec()
	e.logger.InfoContext(ctx, "matching resumed", logger.NewField("pair", pair.String()))

	ev, err := eventv1.New(e.newID(), eventv1.PairResumed, pair.String(), pair,
		map[string]string{"pair": pair.String()}, e.clock())
	if err != nil {
		return true, err
	}
	return true, e.Tx.Do(ctx, func(ctx context.Context) error {
		return e.Outbox.Append(ctx, ev)
	})
}

// HaltedPairs maps halted pairs to the reason they were halted.
func (e *Engine) HaltedPairs() map[string]string {
	return e.Books.HaltedPairs()
}

// CancelOrder withdraws an open order and returns its outstanding funds.
// Cancellation works on halted pairs.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (*CancelResult, error) {
	if orderID == "" {
		return nil, errors.New(errors.ValidationError, "order id is required").WithField("order_id")
	}
	o, err := e.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, errors.New(errors.Unauthorized, "order %s belongs to another user", orderID)
	}

	var result *CancelResult
	err = e.Books.With(o.Pair, func(ob *orderbook.Orderbook) error {
		err := e.Tx.Do(ctx, func(ctx context.Context) error {
			o, err := e.Orders.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			now := e.clock()
			if err := o.Cancel(now); err != nil {
				return err
			}
			res, err := e.Reservations.GetByOrderIDForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			released := decimal.Zero
			if res.Status.IsOpen() {
				released = res.Outstanding()
				if err := e.Funds.CloseLocked(ctx, res, reservationv1.StatusCancelled); err != nil {
					return err
				}
			}
			if err := e.Orders.Update(ctx, o); err != nil {
				return err
			}
			result = &CancelResult{OrderID: o.ID, Status: o.Status, ReleasedAmount: released}
			return e.emit(ctx, eventv1.OrderCancelled, o, now)
		})
		if err != nil {
			return err
		}
		ob.Remove(orderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.OrdersCancelled.WithLabelValues(o.Pair.String()).Inc()
	e.logger.InfoContext(ctx, "order cancelled",
		logger.NewField("order_id", orderID),
		logger.NewField("user_id", userID),
		logger.NewField("released", result.ReleasedAmount.String()),
	)
	return result, nil
}

// GetOrder returns an order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*orderv1.Order, error) {
	return e.Orders.GetByID(ctx, orderID)
}

// Depth aggregates up to levels price levels per side of pair's book. Held
// liquidity is not shown.
func (e *Engine) Depth(ctx context.Context, pair marketv1.Pair, levels int) (orderbookv1.Depth, error) {
	if err := e.Market.ValidatePair(pair); err != nil {
		return orderbookv1.Depth{}, err
	}
	if levels <= 0 {
		levels = defaultDepthLevels
	}
	if levels > e.maxDepth {
		levels = e.maxDepth
	}

	var depth orderbookv1.Depth
	e.Books.View(pair, func(ob *orderbook.Orderbook) {
		depth = ob.Depth(levels, e.clock())
	})
	return depth, nil
}

// RecentTrades returns the latest trades of pair, newest first.
func (e *Engine) RecentTrades(ctx context.Context, pair marketv1.Pair, limit int) ([]*tradev1.Trade, error) {
	if err := e.Market.ValidatePair(pair); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTradeLimit
	}
	if limit > e.maxTrades {
		limit = e.maxTrades
	}
	return e.Trades.Recent(ctx, pair, limit)
}

func (e *Engine) emit(ctx context.Context, t eventv1.Type, o *orderv1.Order, now time.Time) error {
	ev, err := eventv1.New(e.newID(), t, o.ID, o.Pair, o.Snapshot(), now)
	if err != nil {
		return err
	}
	return e.Outbox.Append(ctx, ev)
}

func newResult(o *orderv1.Order, trades []*tradev1.Trade) *OrderResult {
	r := &OrderResult{
		OrderID:           o.ID,
		Status:            o.Status,
		FilledQuantity:    o.FilledQuantity,
		DiscardedQuantity: o.DiscardedQuantity,
		Trades:            trades,
	}
	filled := decimal.Zero
	notional := decimal.Zero
	for _, t := range trades {
		filled = filled.Add(t.Quantity)
		notional = notional.Add(t.QuoteAmount)
	}
	if filled.IsPositive() {
		avg := notional.Div(filled)
		r.AverageFillPrice = &avg
	}
	return r
}
