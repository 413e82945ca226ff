package pgstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	ledgerv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/ledger/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
)

// Ledger applies wallet primitives to the wallets table. Each primitive locks
// the wallet row, applies the change in memory and writes the row back, so
// balance checks always see the committed state.
type Ledger struct {
	s *Store
}

var _ ledgerv1.Ledger = (*Ledger)(nil)

func (l *Ledger) apply(ctx context.Context, key ledgerv1.WalletKey, op ledgerv1.Op, amount decimal.Decimal) error {
	if err := l.s.requireTx(ctx, "ledger "+string(op)); err != nil {
		return err
	}
	if err := ledgerv1.ValidateAmount(amount); err != nil {
		return err
	}

	w, found, err := l.lock(ctx, key)
	if err != nil {
		return err
	}
	if !found && op == ledgerv1.OpCredit {
		if _, err := l.s.db.Exec(ctx,
			`INSERT INTO wallets (user_id, currency, updated_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			key.UserID, string(key.Currency), l.s.clock(),
		); err != nil {
			return wrap(err)
		}
		if w, _, err = l.lock(ctx, key); err != nil {
			return err
		}
	}

	if err := ledgerv1.Apply(w, op, amount); err != nil {
		return err
	}
	w.UpdatedAt = l.s.clock()

	_, err = l.s.db.Exec(ctx,
		`UPDATE wallets SET available_balance = $1, reserved_balance = $2, updated_at = $3
		WHERE user_id = $4 AND currency = $5`,
		w.AvailableBalance, w.ReservedBalance, w.UpdatedAt, key.UserID, string(key.Currency),
	)
	return wrap(err)
}

// lock reads the wallet row FOR UPDATE. A missing row yields an empty wallet
// and found=false.
func (l *Ledger) lock(ctx context.Context, key ledgerv1.WalletKey) (*ledgerv1.Wallet, bool, error) {
	w, err := scanWallet(l.s.db.QueryRow(ctx,
		`SELECT user_id, currency, available_balance, reserved_balance, updated_at
		FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`,
		key.UserID, string(key.Currency),
	))
	if notFound(err) {
		return ledgerv1.EmptyWallet(key), false, nil
	}
	if err != nil {
		return nil, false, wrap(err)
	}
	return w, true, nil
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

// Credit adds amount to available, creating the wallet when needed.
func (l *Ledger) Credit(ctx context.Context, key ledgerv1.WalletKey, amount decimal.Decimal) error {
	return l.apply(ctx, key, ledgerv1.OpCredit, amount)
}

// Lock takes the row locks of the existing wallets among keys in ascending
// key order.
func (l *Ledger) Lock(ctx context.Context, keys ...ledgerv1.WalletKey) error {
	if err := l.s.requireTx(ctx, "Lock"); err != nil {
		return err
	}

	sorted := append([]ledgerv1.WalletKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		if _, _, err := l.lock(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Wallet reads a wallet without locking it.
func (l *Ledger) Wallet(ctx context.Context, key ledgerv1.WalletKey) (*ledgerv1.Wallet, error) {
	w, err := scanWallet(l.s.db.QueryRow(ctx,
		`SELECT user_id, currency, available_balance, reserved_balance, updated_at
		FROM wallets WHERE user_id = $1 AND currency = $2`,
		key.UserID, string(key.Currency),
	))
	if notFound(err) {
		return ledgerv1.EmptyWallet(key), nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return w, nil
}

func scanWallet(row scanner) (*ledgerv1.Wallet, error) {
	var (
		w        ledgerv1.Wallet
		currency string
	)
	if err := row.Scan(&w.UserID, &currency, &w.AvailableBalance, &w.ReservedBalance, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Currency = marketv1.Currency(currency)
	return &w, nil
}
