package liquidity

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/orderbook"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// Config bounds liquidity reservations.
type Config struct {
	DefaultTTL         time.Duration
	MinTTL             time.Duration
	MaxTTL             time.Duration
	DefaultMaxSlippage decimal.Decimal
}

// DefaultConfig returns 30s holds bounded to [10s, 300s] and a 5% band.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:         30 * time.Second,
		MinTTL:             10 * time.Second,
		MaxTTL:             300 * time.Second,
		DefaultMaxSlippage: decimal.NewFromInt(5),
	}
}

// CheckParams holds the inputs of Check.
type CheckParams struct {
	Side               marketv1.Side    `validate:"required,oneof=buy sell"`
	Pair               marketv1.Pair    `validate:"-"`
	Quantity           decimal.Decimal  `validate:"-"`
	MaxSlippagePercent *decimal.Decimal `validate:"-"`
	UserID             string
	HoldID             string
}

// ReserveParams holds the inputs of Reserve.
type ReserveParams struct {
	UserID             string           `validate:"required"`
	Side               marketv1.Side    `validate:"required,oneof=buy sell"`
	Pair               marketv1.Pair    `validate:"-"`
	Quantity           decimal.Decimal  `validate:"-"`
	MaxSlippagePercent *decimal.Decimal `validate:"-"`
	// TTL of zero picks the default.
	TTL time.Duration `validate:"gte=0"`
}

// Checker reports resting liquidity and issues time-boxed holds on it.
type Checker struct {
	books    *orderbook.Registry
	market   *marketv1.Market
	store    liquidityv1.Store
	tx       txv1.Transactor
	outbox   eventv1.Outbox
	cfg      Config
	clock    util.Clock
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   logger.Interface
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock overrides the clock.
func WithClock(c util.Clock) Option {
	return func(ch *Checker) { ch.clock = c }
}

// NewChecker creates a Checker.
func NewChecker(
	books *orderbook.Registry,
	market *marketv1.Market,
	store liquidityv1.Store,
	tx txv1.Transactor,
	outbox eventv1.Outbox,
	cfg Config,
	m *metrics.Metrics,
	log logger.Interface,
	opts ...Option,
) *Checker {
	ch := &Checker{
		books:    books,
		market:   market,
		store:    store,
		tx:       tx,
		outbox:   outbox,
		cfg:      cfg,
		clock:    util.SystemClock,
		validate: validator.New(),
		metrics:  m,
		logger:   log,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Config returns the checker's bounds.
func (c *Checker) Config() Config {
	return c.cfg
}

// Slippage resolves the band width: the default when unset, else a value in
// [0, 100].
func (c *Checker) Slippage(v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return c.cfg.DefaultMaxSlippage, nil
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return decimal.Zero, errors.New(errors.ValidationError,
			"max slippage must be within [0, 100], got %s", v).WithField("max_slippage_percent")
	}
	return *v, nil
}

func (c *Checker) query(p CheckParams) (Query, error) {
	if err := c.validate.Struct(p); err != nil {
		return Query{}, errors.New(errors.ValidationError, "invalid liquidity query").WithCause(err)
	}
	if err := c.market.ValidatePair(p.Pair); err != nil {
		return Query{}, err
	}
	if !p.Quantity.IsPositive() {
		return Query{}, errors.New(errors.ValidationError, "quantity must be positive").WithField("quantity")
	}
	slippage, err := c.Slippage(p.MaxSlippagePercent)
	if err != nil {
		return Query{}, err
	}
	return Query{
		Side:               p.Side,
		Quantity:           p.Quantity,
		MaxSlippagePercent: slippage,
		UserID:             p.UserID,
		HoldID:             p.HoldID,
	}, nil
}

// Check reports the liquidity a taker would meet. An empty book or a band
// with nothing in it is reported, not returned as an error.
func (c *Checker) Check(ctx context.Context, p CheckParams) (*liquidityv1.Report, error) {
	q, err := c.query(p)
	if err != nil {
		return nil, err
	}

	var report *liquidityv1.Report
	c.books.View(p.Pair, func(ob *orderbook.Orderbook) {
		report = Analyze(ob, p.Pair, q, c.clock())
	})
	return report, nil
}

// Reserve holds the liquidity a taker would meet for a bounded time. While
// the hold lives, other takers cannot match the held quantity.
func (c *Checker) Reserve(ctx context.Context, p ReserveParams) (*liquidityv1.Reservation, *liquidityv1.Report, error) {
	if err := c.validate.Struct(p); err != nil {
		return nil, nil, errors.New(errors.ValidationError, "invalid liquidity reservation").WithCause(err)
	}
	ttl, err := c.ttl(p.TTL)
	if err != nil {
		return nil, nil, err
	}
	q, err := c.query(CheckParams{
		Side:               p.Side,
		Pair:               p.Pair,
		Quantity:           p.Quantity,
		MaxSlippagePercent: p.MaxSlippagePercent,
		UserID:             p.UserID,
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		hold   *liquidityv1.Reservation
		report *liquidityv1.Report
	)
	err = c.books.With(p.Pair, func(ob *orderbook.Orderbook) error {
		now := c.clock()
		report = Analyze(ob, p.Pair, q, now)
		if err := Require(ob, report, q, now); err != nil {
			return err
		}

		hold = &liquidityv1.Reservation{
			ID:                 util.NewID(),
			UserID:             p.UserID,
			Pair:               p.Pair,
			Side:               p.Side,
			Quantity:           q.Quantity,
			MaxSlippagePercent: q.MaxSlippagePercent,
			BandPrice:          report.BandPrice,
			Allocations:        report.Allocations,
			CreatedAt:          now,
			ExpiresAt:          now.Add(ttl),
		}
		if err := c.store.Save(ctx, hold, ttl); err != nil {
			return err
		}
		if err := c.emit(ctx, eventv1.LiquidityReserved, hold, "reserved"); err != nil {
			_ = c.store.Delete(ctx, hold.ID)
			return err
		}
		ob.AddHold(hold)
		return nil
	})
	if err != nil {
		return nil, report, err
	}

	c.metrics.LiquidityHolds.WithLabelValues(p.Pair.String()).Inc()
	c.logger.InfoContext(ctx, "liquidity reserved",
		logger.NewField("reservation_id", hold.ID),
		logger.NewField("user_id", hold.UserID),
		logger.NewField("pair", hold.Pair.String()),
		logger.NewField("held", hold.HeldQuantity().String()),
		logger.NewField("expires_at", hold.ExpiresAt),
	)
	return hold, report, nil
}

func (c *Checker) ttl(ttl time.Duration) (time.Duration, error) {
	if ttl == 0 {
		return c.cfg.DefaultTTL, nil
	}
	if ttl < c.cfg.MinTTL || ttl > c.cfg.MaxTTL {
		return 0, errors.New(errors.ValidationError,
			"ttl must be within [%s, %s], got %s", c.cfg.MinTTL, c.cfg.MaxTTL, ttl).WithField("ttl")
	}
	return ttl, nil
}

// Release drops a hold before it expires. Only its owner may release it.
func (c *Checker) Release(ctx context.Context, id, userID string) error {
	hold, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if hold.UserID != userID {
		return errors.New(errors.Unauthorized, "liquidity reservation %s belongs to another user", id)
	}

	err = c.books.With(hold.Pair, func(ob *orderbook.Orderbook) error {
		if _, ok := ob.RemoveHold(id); !ok {
			return errors.New(errors.ReservationNotFound, "liquidity reservation %s not found", id)
		}
		return c.drop(ctx, hold, "released")
	})
	if err != nil {
		return err
	}
	c.metrics.LiquidityHolds.WithLabelValues(hold.Pair.String()).Dec()
	return nil
}

// Take resolves the hold a taker placing an order wants to use. It must be
// called inside Registry.With for the hold's pair. Unknown, expired or foreign
// holds fail with ReservationNotFound or Unauthorized.
func (c *Checker) Take(ob *orderbook.Orderbook, id, userID string, side marketv1.Side) (*liquidityv1.Reservation, error) {
	hold, ok := ob.Hold(id)
	if !ok || hold.Expired(c.clock()) {
		return nil, errors.New(errors.ReservationNotFound, "liquidity reservation %s not found or expired", id)
	}
	if hold.UserID != userID {
		return nil, errors.New(errors.Unauthorized, "liquidity reservation %s belongs to another user", id)
	}
	if hold.Side != side {
		return nil, errors.New(errors.ValidationError, "liquidity reservation %s was taken for the %s side", id, hold.Side).
			WithField("liquidity_reservation_id")
	}
	return hold, nil
}

// Consume removes a hold used by a placed order. It must be called inside
// Registry.With for the hold's pair.
func (c *Checker) Consume(ctx context.Context, ob *orderbook.Orderbook, hold *liquidityv1.Reservation) {
	if _, ok := ob.RemoveHold(hold.ID); !ok {
		return
	}
	if err := c.drop(ctx, hold, "consumed"); err != nil {
		c.logger.ErrorContext(ctx, err, logger.NewField("reservation_id", hold.ID))
	}
	c.metrics.LiquidityHolds.WithLabelValues(hold.Pair.String()).Dec()
}

// Restore registers the holds kept in the store with freshly restored books
// and reports how many it registered. Holds whose orders no longer rest are
// dropped with a released event.
func (c *Checker) Restore(ctx context.Context) (int, error) {
	holds, err := c.store.List(ctx)
	if err != nil {
		return 0, errors.Tracef(err, "list liquidity holds")
	}

	now := c.clock()
	restored := 0
	for _, hold := range holds {
		if hold.Expired(now) {
			if err := c.drop(ctx, hold, "expired"); err != nil {
				c.logger.ErrorContext(ctx, err, logger.NewField("reservation_id", hold.ID))
			}
			continue
		}

		var kept bool
		_ = c.books.With(hold.Pair, func(ob *orderbook.Orderbook) error {
			kept = ob.RestoreHold(hold)
			return nil
		})
		if !kept {
			if err := c.drop(ctx, hold, "stale"); err != nil {
				c.logger.ErrorContext(ctx, err, logger.NewField("reservation_id", hold.ID))
			}
			continue
		}
		restored++
		c.metrics.LiquidityHolds.WithLabelValues(hold.Pair.String()).Inc()
	}

	c.logger.InfoContext(ctx, "liquidity holds restored",
		logger.NewField("restored", restored),
		logger.NewField("stored", len(holds)),
	)
	return restored, nil
}

// Sweep removes expired holds from every book and reports how many it
// removed.
func (c *Checker) Sweep(ctx context.Context) int {
	removed := 0
	for _, pair := range c.books.Pairs() {
		var expired []*liquidityv1.Reservation
		_ = c.books.With(pair, func(ob *orderbook.Orderbook) error {
			expired = ob.Sweep(c.clock())
			return nil
		})
		for _, hold := range expired {
			if err := c.drop(ctx, hold, "expired"); err != nil {
				c.logger.ErrorContext(ctx, err, logger.NewField("reservation_id", hold.ID))
			}
			c.metrics.LiquidityHolds.WithLabelValues(pair.String()).Dec()
			c.metrics.LiquidityExpired.Inc()
		}
		removed += len(expired)
	}
	return removed
}

func (c *Checker) drop(ctx context.Context, hold *liquidityv1.Reservation, reason string) error {
	if err := c.store.Delete(ctx, hold.ID); err != nil {
		return err
	}
	return c.emit(ctx, eventv1.LiquidityReleased, hold, reason)
}

type holdPayload struct {
	*liquidityv1.Reservation
	Reason string `json:"reason"`
}

func (c *Checker) emit(ctx context.Context, t eventv1.Type, hold *liquidityv1.Reservation, reason string) error {
	e, err := eventv1.New(util.NewID(), t, hold.ID, hold.Pair, holdPayload{Reservation: hold, Reason: reason}, c.clock())
	if err != nil {
		return err
	}
	return c.tx.Do(ctx, func(ctx context.Context) error {
		return c.outbox.Append(ctx, e)
	})
}
