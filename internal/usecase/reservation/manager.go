package reservation

import (
	"context"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	reservationv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/reservation/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// ReserveParams holds the inputs of Reserve.
type ReserveParams struct {
	UserID   string
	Currency marketv1.Currency
	Amount   decimal.Decimal
	OrderID  string
}

// Manager moves funds between a wallet's available and reserved balances and
// keeps the reservation records that account for them.
type Manager struct {
	tx           txv1.Transactor
	ledger       ledgerv1.Ledger
	reservations reservationv1.Repository
	market       *marketv1.Market
	clock        util.Clock
	newID        func() string
	logger       logger.Interface
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock.
func WithClock(c util.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithIDGenerator overrides reservation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates a Manager.
func NewManager(
	tx txv1.Transactor,
	ledger ledgerv1.Ledger,
	reservations reservationv1.Repository,
	market *marketv1.Market,
	log logger.Interface,
	opts ...Option,
) *Manager {
	m := &Manager{
		tx:           tx,
		ledger:       ledger,
		reservations: reservations,
		market:       market,
		clock:        util.SystemClock,
		newID:        util.NewID,
		logger:       log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reserve earmarks amount of the user's available balance. It joins the unit
// of work in ctx when there is one, so callers can insert the order in the
// same unit.
func (m *Manager) Reserve(ctx context.Context, p ReserveParams) (*reservationv1.Reservation, error) {
	if err := ledgerv1.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	if err := m.market.ValidateCurrency(p.Currency, "currency"); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, errors.New(errors.ValidationError, "user id is required").WithField("user_id")
	}

	res := reservationv1.New(m.newID(), p.UserID, p.OrderID, p.Currency, p.Amount, m.clock())
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		key := res.WalletKey()
		if err := m.ledger.Lock(ctx, key); err != nil {
			return err
		}
		if err := m.ledger.Reserve(ctx, key, p.Amount); err != nil {
			return err
		}
		return m.reservations.Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	m.logger.DebugContext(ctx, "funds reserved",
		logger.NewField("reservation_id", res.ID),
		logger.NewField("user_id", res.UserID),
		logger.NewField("currency", string(res.Currency)),
		logger.NewField("amount", res.ReservedAmount.String()),
	)
	return res, nil
}

// Release returns everything outstanding to the owner and marks the
// reservation released. Releasing twice fails with ReservationAlreadyReleased.
func (m *Manager) Release(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	return m.close(ctx, id, reservationv1.StatusReleased)
}

// Cancel is Release with a cancelled status.
func (m *Manager) Cancel(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	return m.close(ctx, id, reservationv1.StatusCancelled)
}

func (m *Manager) close(ctx context.Context, id string, status reservationv1.Status) (*reservationv1.Reservation, error) {
	var res *reservationv1.Reservation
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = m.reservations.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return m.closeLocked(ctx, res, status)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CloseLocked closes a reservation the caller has already locked in the
// current unit of work.
func (m *Manager) CloseLocked(ctx context.Context, res *reservationv1.Reservation, status reservationv1.Status) error {
	return m.closeLocked(ctx, res, status)
}

func (m *Manager) closeLocked(ctx context.Context, res *reservationv1.Reservation, status reservationv1.Status) error {
	returned, err := res.Close(status, m.clock())
	if err != nil {
		return err
	}
	key := res.WalletKey()
	if err := m.ledger.Lock(ctx, key); err != nil {
		return err
	}
	if returned.IsPositive() {
		move := m.ledger.Release
		if status == reservationv1.StatusCancelled {
			move = m.ledger.Cancel
		}
		if err := move(ctx, key, returned); err != nil {
			return err
		}
	}
	return m.reservations.Update(ctx, res)
}

// PartialRelease returns amount of the outstanding funds to the owner.
func (m *Manager) PartialRelease(ctx context.Context, id string, amount decimal.Decimal) (*reservationv1.Reservation, error) {
	if err := ledgerv1.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var res *reservationv1.Reservation
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = m.reservations.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return m.PartialReleaseLocked(ctx, res, amount)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PartialReleaseLocked is PartialRelease on a reservation the caller locked.
func (m *Manager) PartialReleaseLocked(ctx context.Context, res *reservationv1.Reservation, amount decimal.Decimal) error {
	if err := res.PartialRelease(amount, m.clock()); err != nil {
		return err
	}
	key := res.WalletKey()
	if err := m.ledger.Lock(ctx, key); err != nil {
		return err
	}
	if err := m.ledger.Release(ctx, key, amount); err != nil {
		return err
	}
	return m.reservations.Update(ctx, res)
}

// Consume settles amount of a locked reservation against its reserved balance.
// Only settlement calls it, inside the trade's unit of work.
func (m *Manager) Consume(ctx context.Context, res *reservationv1.Reservation, amount decimal.Decimal) error {
	if err := res.Consume(amount, m.clock()); err != nil {
		return err
	}
	if err := m.ledger.Debit(ctx, res.WalletKey(), amount, ledgerv1.FromReserved); err != nil {
		return err
	}
	return m.reservations.Update(ctx, res)
}

// Get returns a reservation.
func (m *Manager) Get(ctx context.Context, id string) (*reservationv1.Reservation, error) {
	return m.reservations.GetByID(ctx, id)
}

// GetByOrder returns the reservation backing an order.
func (m *Manager) GetByOrder(ctx context.Context, orderID string) (*reservationv1.Reservation, error) {
	return m.reservations.GetByOrderID(ctx, orderID)
}
