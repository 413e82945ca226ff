package ledgerv1

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// WalletKey identifies a wallet.
type WalletKey struct {
	UserID   string
	Currency marketv1.Currency
}

// Less orders keys by user then currency. Wallet locks are taken in this order.
func (k WalletKey) Less(o WalletKey) bool {
	if k.UserID != o.UserID {
		return k.UserID < o.UserID
	}
	return k.Currency < o.Currency
}

func (k WalletKey) String() string {
	return k.UserID + ":" + string(k.Currency)
}

// Wallet holds a user's balance in one currency.
type Wallet struct {
	UserID           string
	Currency         marketv1.Currency
	AvailableBalance decimal.Decimal
	ReservedBalance  decimal.Decimal
	UpdatedAt        time.Time
}

// Key returns the wallet's key.
func (w *Wallet) Key() WalletKey {
	return WalletKey{UserID: w.UserID, Currency: w.Currency}
}

// Total is available plus reserved.
func (w *Wallet) Total() decimal.Decimal {
	return w.AvailableBalance.Add(w.ReservedBalance)
}

// EmptyWallet is the zero balance wallet for key.
func EmptyWallet(key WalletKey) *Wallet {
	return &Wallet{
		UserID:           key.UserID,
		Currency:         key.Currency,
		AvailableBalance: decimal.Zero,
		ReservedBalance:  decimal.Zero,
	}
}

// BalanceSource selects which balance a debit draws from.
type BalanceSource string

const (
	// FromAvailable debits the available balance.
	FromAvailable BalanceSource = "available"
	// FromReserved debits the reserved balance.
	FromReserved BalanceSource = "reserved"
)

// ErrInsufficientReserved is returned when a reserved debit exceeds the
// reserved balance. Settlement treats it as an invariant violation.
var ErrInsufficientReserved = errors.New(errors.SettlementInvariantViolation, "insufficient reserved balance")

// Ledger is the set of atomic wallet primitives. Every method must run inside
// a unit of work and rechecks balances under the wallet row lock. Amounts must
// be positive.
//
//go:generate mockgen -source ledger.go -destination=mock/ledger_mock.go -package=ledgerv1_mock
type Ledger interface {
	// Reserve moves amount from available to reserved.
	Reserve(ctx context.Context, key WalletKey, amount decimal.Decimal) error
	// Release moves amount from reserved back to available.
	Release(ctx context.Context, key WalletKey, amount decimal.Decimal) error
	// Cancel has the balance effect of Release.
	Cancel(ctx context.Context, key WalletKey, amount decimal.Decimal) error
	// Debit removes amount from the selected balance.
	Debit(ctx context.Context, key WalletKey, amount decimal.Decimal, source BalanceSource) error
	// Credit adds amount to available, creating the wallet if needed.
	Credit(ctx context.Context, key WalletKey, amount decimal.Decimal) error
	// Lock locks the wallets in ascending key order.
	Lock(ctx context.Context, keys ...WalletKey) error
	// Wallet returns the wallet, or an empty one when it does not exist.
	Wallet(ctx context.Context, key WalletKey) (*Wallet, error)
}

// ValidateAmount rejects non-positive amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New(errors.ValidationError, "amount must be positive, got %s", amount).WithField("amount")
	}
	return nil
}

// Apply performs a primitive on an in-memory wallet. Storage implementations
// load the locked row, call Apply and write the row back.
func Apply(w *Wallet, op Op, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	switch op {
	case OpReserve:
		if w.AvailableBalance.LessThan(amount) {
			return errors.New(errors.InsufficientBalance,
				"available %s %s is below %s", w.AvailableBalance, w.Currency, amount)
		}
		w.AvailableBalance = w.AvailableBalance.Sub(amount)
		w.ReservedBalance = w.ReservedBalance.Add(amount)
	case OpRelease:
		if w.ReservedBalance.LessThan(amount) {
			return ErrInsufficientReserved.WithCause(errors.New(errors.SettlementInvariantViolation,
				"release %s exceeds reserved %s %s", amount, w.ReservedBalance, w.Currency))
		}
		w.ReservedBalance = w.ReservedBalance.Sub(amount)
		w.AvailableBalance = w.AvailableBalance.Add(amount)
	case OpDebitAvailable:
		if w.AvailableBalance.LessThan(amount) {
			return errors.New(errors.InsufficientBalance,
				"available %s %s is below %s", w.AvailableBalance, w.Currency, amount)
		}
		w.AvailableBalance = w.AvailableBalance.Sub(amount)
	case OpDebitReserved:
		if w.ReservedBalance.LessThan(amount) {
			return ErrInsufficientReserved.WithCause(errors.New(errors.SettlementInvariantViolation,
				"debit %s exceeds reserved %s %s", amount, w.ReservedBalance, w.Currency))
		}
		w.ReservedBalance = w.ReservedBalance.Sub(amount)
	case OpCredit:
		w.AvailableBalance = w.AvailableBalance.Add(amount)
	default:
		return errors.New(errors.GeneralInternalServerError, "unknown ledger op %q", op)
	}
	return nil
}

// Op is a single balance mutation.
type Op string

const (
	OpReserve        Op = "reserve"
	OpRelease        Op = "release"
	OpDebitAvailable Op = "debit_available"
	OpDebitReserved  Op = "debit_reserved"
	OpCredit         Op = "credit"
)

// DebitOp maps a balance source to its op.
func DebitOp(source BalanceSource) Op {
	if source == FromReserved {
		return OpDebitReserved
	}
	return OpDebitAvailable
}
