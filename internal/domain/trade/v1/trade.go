package tradev1

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
)

// Trade is an immutable record of one execution between a buy and a sell
// order. Price is always the maker's limit price.
type Trade struct {
	ID           string            `json:"id"`
	Pair         marketv1.Pair     `json:"pair"`
	BuyOrderID   string            `json:"buy_order_id"`
	SellOrderID  string            `json:"sell_order_id"`
	BuyerID      string            `json:"buyer_id"`
	SellerID     string            `json:"seller_id"`
	MakerOrderID string            `json:"maker_order_id"`
	TakerOrderID string            `json:"taker_order_id"`
	TakerSide    marketv1.Side     `json:"taker_side"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Price        decimal.Decimal   `json:"price"`
	BaseAmount   decimal.Decimal   `json:"base_amount"`
	QuoteAmount  decimal.Decimal   `json:"quote_amount"`
	BuyerFee     decimal.Decimal   `json:"buyer_fee"`
	SellerFee    decimal.Decimal   `json:"seller_fee"`
	FeeCurrency  marketv1.Currency `json:"fee_currency"`
	ExecutedAt   time.Time         `json:"executed_at"`
}

// TransactionType classifies a ledger history entry.
type TransactionType string

const (
	TypeTradeBuy   TransactionType = "trade_buy"
	TypeTradeSell  TransactionType = "trade_sell"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// Transaction is one user's view of a balance movement. Debit or credit may be
// empty for deposits and withdrawals.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	TradeID        string            `json:"trade_id,omitempty"`
	OrderID        string            `json:"order_id,omitempty"`
	Type           TransactionType   `json:"type"`
	DebitCurrency  marketv1.Currency `json:"debit_currency,omitempty"`
	DebitAmount    decimal.Decimal   `json:"debit_amount"`
	CreditCurrency marketv1.Currency `json:"credit_currency,omitempty"`
	CreditAmount   decimal.Decimal   `json:"credit_amount"`
	Fee            decimal.Decimal   `json:"fee"`
	FeeCurrency    marketv1.Currency `json:"fee_currency,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Repository persists trades and their ledger history.
//
//go:generate mockgen -source trade.go -destination=mock/trade_mock.go -package=tradev1_mock
type Repository interface {
	Create(ctx context.Context, t *Trade) error
	// Recent returns up to limit trades of pair, newest first.
	Recent(ctx context.Context, pair marketv1.Pair, limit int) ([]*Trade, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Trade, error)
}

// TransactionRepository persists ledger history.
type TransactionRepository interface {
	Create(ctx context.Context, txs ...*Transaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
