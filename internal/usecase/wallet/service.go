// Package wallet moves money into and out of the engine. Every movement is
// one unit of work that updates the ledger, records history and writes a
// balance.changed event.
package wallet

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	feev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/fee/v1"
	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/settlement"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Deps groups the collaborators of a Service.
type Deps struct {
	Tx           txv1.Transactor
	Ledger       ledgerv1.Ledger
	Transactions tradev1.TransactionRepository
	Fees         feev1.Provider
	Outbox       eventv1.Outbox
	Market       *marketv1.Market
}

// Movement is the outcome of a deposit or withdrawal.
type Movement struct {
	Transaction *tradev1.Transaction
	Wallet      *ledgerv1.Wallet
}

// Service handles deposits, withdrawals and balance reads.
type Service struct {
	Deps
	feeAccount string
	clock      util.Clock
	newID      func() string
	logger     logger.Interface
}

// Option configures a Service.
type Option func(*Service)

// WithFeeAccount sets the user id collecting movement fees.
func WithFeeAccount(id string) Option {
	return func(s *Service) { s.feeAccount = id }
}

// WithClock overrides the clock.
func WithClock(c util.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator overrides transaction and event id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a Service.
func NewService(deps Deps, log logger.Interface, opts ...Option) *Service {
	s := &Service{
		Deps:       deps,
		feeAccount: settlement.DefaultFeeAccount,
		clock:      util.SystemClock,
		newID:      util.NewID,
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type movement struct {
	key    ledgerv1.WalletKey
	amount decimal.Decimal
	fee    decimal.Decimal
}

func (s *Service) prepare(ctx context.Context, userID, currency string, amount decimal.Decimal, txType tradev1.TransactionType) (*movement, error) {
	if userID == "" {
		return nil, errors.New(errors.ValidationError, "user id is required").WithField("user_id")
	}
	cur := marketv1.Currency(strings.ToUpper(currency))
	if err := s.Market.ValidateCurrency(cur, "currency"); err != nil {
		return nil, err
	}
	if err := ledgerv1.ValidateAmount(amount); err != nil {
		return nil, err
	}

	schedule, err := s.Fees.Lookup(ctx, txType, cur)
	if err != nil {
		return nil, err
	}
	return &movement{
		key:    ledgerv1.WalletKey{UserID: userID, Currency: cur},
		amount: amount,
		fee:    feev1.Calculate(amount, schedule),
	}, nil
}

// Deposit credits amount, less any deposit fee, to the user's wallet.
func (s *Service) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*Movement, error) {
	m, err := s.prepare(ctx, userID, currency, amount, tradev1.TypeDeposit)
	if err != nil {
		return nil, err
	}
	if m.fee.GreaterThanOrEqual(m.amount) {
		return nil, errors.New(errors.ValidationError,
			"deposit %s %s does not cover its fee %s", m.amount, m.key.Currency, m.fee).WithField("amount")
	}
	net := m.amount.Sub(m.fee)

	out, err := s.apply(ctx, m, &tradev1.Transaction{
		UserID:         userID,
		Type:           tradev1.TypeDeposit,
		CreditCurrency: m.key.Currency,
		CreditAmount:   net,
		DebitAmount:    decimal.Zero,
	}, func(ctx context.Context) error {
		return s.Ledger.Credit(ctx, m.key, net)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "deposit credited",
		logger.NewField("user_id", userID),
		logger.NewField("currency", string(m.key.Currency)),
		logger.NewField("amount", net.String()),
	)
	return out, nil
}

// Withdraw debits amount plus the withdrawal fee from the user's available
// balance. Reserved funds are never touched.
func (s *Service) Withdraw(ctx context.Context, userID, currency string, amount decimal.Decimal) (*Movement, error) {
	m, err := s.prepare(ctx, userID, currency, amount, tradev1.TypeWithdrawal)
	if err != nil {
		return nil, err
	}

	out, err := s.apply(ctx, m, &tradev1.Transaction{
		UserID:        userID,
		Type:          tradev1.TypeWithdrawal,
		DebitCurrency: m.key.Currency,
		DebitAmount:   m.amount,
		CreditAmount:  decimal.Zero,
	}, func(ctx context.Context) error {
		return s.Ledger.Debit(ctx, m.key, m.amount.Add(m.fee), ledgerv1.FromAvailable)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "withdrawal debited",
		logger.NewField("user_id", userID),
		logger.NewField("currency", string(m.key.Currency)),
		logger.NewField("amount", m.amount.String()),
		logger.NewField("fee", m.fee.String()),
	)
	return out, nil
}

func (s *Service) apply(ctx context.Context, m *movement, record *tradev1.Transaction, move func(ctx context.Context) error) (*Movement, error) {
	feeKey := ledgerv1.WalletKey{UserID: s.feeAccount, Currency: m.key.Currency}
	out := &Movement{Transaction: record}

	err := s.Tx.Do(ctx, func(ctx context.Context) error {
		if err := s.Ledger.Lock(ctx, m.key, feeKey); err != nil {
			return err
		}
		if err := move(ctx); err != nil {
			return err
		}
		if m.fee.IsPositive() {
			if err := s.Ledger.Credit(ctx, feeKey, m.fee); err != nil {
				return err
			}
		}

		now := s.clock()
		record.ID = s.newID()
		record.Fee = m.fee
		if m.fee.IsPositive() {
			record.FeeCurrency = m.key.Currency
		}
		record.CreatedAt = now
		if err := s.Transactions.Create(ctx, record); err != nil {
			return err
		}

		w, err := s.Ledger.Wallet(ctx, m.key)
		if err != nil {
			return err
		}
		out.Wallet = w

		ev, err := eventv1.New(s.newID(), eventv1.BalanceChanged, m.key.String(), marketv1.Pair{}, record, now)
		if err != nil {
			return err
		}
		return s.Outbox.Append(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Wallet returns the user's balance in currency.
func (s *Service) Wallet(ctx context.Context, userID, currency string) (*ledgerv1.Wallet, error) {
	if userID == "" {
		return nil, errors.New(errors.ValidationError, "user id is required").WithField("user_id")
	}
	cur := marketv1.Currency(strings.ToUpper(currency))
	if err := s.Market.ValidateCurrency(cur, "currency"); err != nil {
		return nil, err
	}
	return s.Ledger.Wallet(ctx, ledgerv1.WalletKey{UserID: userID, Currency: cur})
}

// History returns the user's latest ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*tradev1.Transaction, error) {
	if userID == "" {
		return nil, errors.New(errors.ValidationError, "user id is required").WithField("user_id")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.Transactions.ListByUser(ctx, userID, limit)
}
