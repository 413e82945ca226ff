package memory

import (
	"context"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
)

// TradeRepository stores trades in a Store.
type TradeRepository struct {
	s *Store
}

var _ tradev1.Repository = (*TradeRepository)(nil)

// Create appends t.
func (r *TradeRepository) Create(ctx context.Context, t *tradev1.Trade) error {
	return r.s.write(ctx, func(u *unit) error {
		c := *t
		r.s.trades = append(r.s.trades, &c)
		n := len(r.s.trades) - 1
		u.onRollback(func() { r.s.trades = r.s.trades[:n] })
		return nil
	})
}

// Recent returns up to limit trades of pair, newest first.
func (r *TradeRepository) Recent(_ context.Context, pair marketv1.Pair, limit int) ([]*tradev1.Trade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*tradev1.Trade, 0, limit)
	for i := len(r.s.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if t := r.s.trades[i]; t.Pair == pair {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListByOrder returns the trades an order took part in, oldest first.
func (r *TradeRepository) ListByOrder(_ context.Context, orderID string) ([]*tradev1.Trade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*tradev1.Trade
	for _, t := range r.s.trades {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// TransactionRepository stores ledger history in a Store.
type TransactionRepository struct {
	s *Store
}

var _ tradev1.TransactionRepository = (*TransactionRepository)(nil)

// Create appends txs.
func (r *TransactionRepository) Create(ctx context.Context, txs ...*tradev1.Transaction) error {
	return r.s.write(ctx, func(u *unit) error {
		n := len(r.s.transactions)
		for _, tx := range txs {
			c := *tx
			r.s.transactions = append(r.s.transactions, &c)
		}
		u.onRollback(func() { r.s.transactions = r.s.transactions[:n] })
		return nil
	})
}

// ListByUser returns up to limit entries of a user, newest first.
func (r *TransactionRepository) ListByUser(_ context.Context, userID string, limit int) ([]*tradev1.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*tradev1.Transaction
	for i := len(r.s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if tx := r.s.transactions[i]; tx.UserID == userID {
			c := *tx
			out = append(out, &c)
		}
	}
	return out, nil
}
