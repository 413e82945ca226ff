package memory

import (
	"context"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
)

// Ledger applies wallet primitives to a Store.
type Ledger struct {
	s *Store
}

var _ ledgerv1.Ledger = (*Ledger)(nil)

func (l *Ledger) apply(ctx context.Context, key ledgerv1.WalletKey, op ledgerv1.Op, amount decimal.Decimal) error {
	return l.s.write(ctx, func(u *unit) error {
		prev, exists := l.s.wallets[key]
		w := ledgerv1.EmptyWallet(key)
		if exists {
			c := *prev
			w = &c
		}
		if err := ledgerv1.Apply(w, op, amount); err != nil {
			return err
		}
		w.UpdatedAt = l.s.now()
		l.s.wallets[key] = w

		u.onRollback(func() {
			if exists {
				l.s.wallets[key] = prev
			} else {
				delete(l.s.wallets, key)
			}
		})
		return nil
	})
}

// Reserve moves amount from available to reserved.
func (l *Ledger) Reserve(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal) error {
	return l.apply(ctx, key, ledgerv1.OpReserve, amount)
}

// Release moves amount from reserved to available.
func (l *Ledger) Release(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal) error {
	return l.apply(ctx, key, ledgerv1.OpRelease, amount)
}

// Cancel moves amount from reserved to available.
func (l *Ledger) Cancel(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal) error {
	return l.apply(ctx, key, ledgerv1.OpRelease, amount)
}

// Debit removes amount from the chosen balance.
func (l *Ledger) Debit(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal, source ledgerv1.BalanceSource) error {
	return l.apply(ctx, key, ledgerv1.DebitOp(source), amount)
}

// Credit adds amount to available.
func (l *Ledger) Credit(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal) error {
	return l.apply(ctx, key, ledgerv1.OpCredit, amount)
}

// Lock only checks that a unit is running; the unit already excludes other
// writers.
func (l *Ledger) Lock(ctx context.Context, _ ...ledgerv1.WalletKey) error {
	return l.s.requireUnit(ctx, "Lock")
}

// Wallet returns a copy of the wallet, or an empty wallet.
func (l *Ledger) Wallet(_ context.Context, key ledgerv1.WalletKey) (*ledgerv1.Wallet, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	if w, ok := l.s.wallets[key]; ok {
		c := *w
		return &c, nil
	}
	return ledgerv1.EmptyWallet(key), nil
}
