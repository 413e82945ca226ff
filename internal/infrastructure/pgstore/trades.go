package pgstore

import (
	"context"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	tradev1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/trade/v1"
)

const tradeColumns = `id, base_currency, quote_currency, buy_order_id, sell_order_id, buyer_id, seller_id,
	maker_order_id, taker_order_id, taker_side, quantity, price, base_amount, quote_amount,
	buyer_fee, seller_fee, fee_currency, executed_at`

// TradeRepository stores trades in the trades table.
type TradeRepository struct {
	s *Store
}

var _ tradev1.Repository = (*TradeRepository)(nil)

// Create inserts t.
func (r *TradeRepository) Create(ctx context.Context, t *tradev1.Trade) error {
	query := `INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.s.db.Exec(ctx, query,
		t.ID,
		string(t.Pair.Base),
		string(t.Pair.Quote),
		t.BuyOrderID,
		t.SellOrderID,
		t.BuyerID,
		t.SellerID,
		t.MakerOrderID,
		t.TakerOrderID,
		string(t.TakerSide),
		t.Quantity,
		t.Price,
		t.BaseAmount,
		t.QuoteAmount,
		t.BuyerFee,
		t.SellerFee,
		string(t.FeeCurrency),
		t.ExecutedAt,
	)
	return wrap(err)
}

// Recent returns up to limit trades of pair, newest first.
func (r *TradeRepository) Recent(ctx context.Context, pair marketv1.Pair, limit int) ([]*tradev1.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE base_currency = $1 AND quote_currency = $2
		ORDER BY executed_at DESC, seq DESC
		LIMIT $3`
	return r.list(ctx, query, string(pair.Base), string(pair.Quote), limit)
}

// ListByOrder returns the trades an order took part in, oldest first.
func (r *TradeRepository) ListByOrder(ctx context.Context, orderID string) ([]*tradev1.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE buy_order_id = $1 OR sell_order_id = $1
		ORDER BY seq`
	return r.list(ctx, query, orderID)
}

func (r *TradeRepository) list(ctx context.Context, query string, args ...any) ([]*tradev1.Trade, error) {
	rows, err := r.s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	trades := []*tradev1.Trade{}
	for rows.Next() {
		var (
			t                                   tradev1.Trade
			base, quote, takerSide, feeCurrency string
		)
		err := rows.Scan(
			&t.ID,
			&base,
			&quote,
			&t.BuyOrderID,
			&t.SellOrderID,
			&t.BuyerID,
			&t.SellerID,
			&t.MakerOrderID,
			&t.TakerOrderID,
			&takerSide,
			&t.Quantity,
			&t.Price,
			&t.BaseAmount,
			&t.QuoteAmount,
			&t.BuyerFee,
			&t.SellerFee,
			&feeCurrency,
			&t.ExecutedAt,
		)
		if err != nil {
			return nil, wrap(err)
		}
		t.Pair = marketv1.NewPair(base, quote)
		t.TakerSide = marketv1.Side(takerSide)
		t.FeeCurrency = marketv1.Currency(feeCurrency)
		trades = append(trades, &t)
	}
	return trades, wrap(rows.Err())
}

// TransactionRepository stores ledger history in the transactions table.
type TransactionRepository struct {
	s *Store
}

var _ tradev1.TransactionRepository = (*TransactionRepository)(nil)

// Create inserts txs in order.
func (r *TransactionRepository) Create(ctx context.Context, txs ...*tradev1.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, trade_id, order_id, type, debit_currency, debit_amount,
		credit_currency, credit_amount, fee, fee_currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, tx := range txs {
		_, err := r.s.db.Exec(ctx, query,
			tx.ID,
			tx.UserID,
			nullString(tx.TradeID),
			nullString(tx.OrderID),
			string(tx.Type),
			nullString(string(tx.DebitCurrency)),
			tx.DebitAmount,
			nullString(string(tx.CreditCurrency)),
			tx.CreditAmount,
			tx.Fee,
			nullString(string(tx.FeeCurrency)),
			tx.CreatedAt,
		)
		if err != nil {
			return wrap(err)
		}
	}
	return nil
}

// ListByUser returns up to limit entries of a user, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*tradev1.Transaction, error) {
	query := `SELECT id, user_id, trade_id, order_id, type, debit_currency, debit_amount,
		credit_currency, credit_amount, fee, fee_currency, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	rows, err := r.s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	txs := []*tradev1.Transaction{}
	for rows.Next() {
		var (
			tx                          tradev1.Transaction
			typ                         string
			tradeID, orderID            *string
			debitCur, creditCur, feeCur *string
		)
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tradeID,
			&orderID,
			&typ,
			&debitCur,
			&tx.DebitAmount,
			&creditCur,
			&tx.CreditAmount,
			&tx.Fee,
			&feeCur,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, wrap(err)
		}
		tx.TradeID = stringOf(tradeID)
		tx.OrderID = stringOf(orderID)
		tx.Type = tradev1.TransactionType(typ)
		tx.DebitCurrency = marketv1.Currency(stringOf(debitCur))
		tx.CreditCurrency = marketv1.Currency(stringOf(creditCur))
		tx.FeeCurrency = marketv1.Currency(stringOf(feeCur))
		txs = append(txs, &tx)
	}
	return txs, wrap(rows.Err())
}
