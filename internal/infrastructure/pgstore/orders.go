package pgstore

import (
	"context"

	"github.com/shopspring/decimal"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	orderv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/order/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

const orderColumns = `id, seq, user_id, side, order_type, price, base_currency, quote_currency,
	quantity, remaining_quantity, filled_quantity, discarded_quantity, reserved_amount, reservation_currency,
	status, created_at, updated_at, filled_at, cancelled_at`

// OrderRepository stores orders in the orders table.
type OrderRepository struct {
	s *Store
}

var _ orderv1.Repository = (*OrderRepository)(nil)

// Create inserts o and sets its sequence.
func (r *OrderRepository) Create(ctx context.Context, o *orderv1.Order) error {
	query := `INSERT INTO orders (id, user_id, side, order_type, price, base_currency, quote_currency,
		quantity, remaining_quantity, filled_quantity, discarded_quantity, reserved_amount, reservation_currency,
		status, created_at, updated_at, filled_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING seq`

	err := r.s.db.QueryRow(ctx, query,
		o.ID,
		o.UserID,
		string(o.Side),
		string(o.Kind.Type()),
		priceOf(o),
		string(o.Pair.Base),
		string(o.Pair.Quote),
		o.Quantity,
		o.RemainingQuantity,
		o.FilledQuantity,
		o.DiscardedQuantity,
		o.ReservedAmount,
		nullString(string(o.ReservationCurrency)),
		string(o.Status),
		o.CreatedAt,
		o.UpdatedAt,
		o.FilledAt,
		o.CancelledAt,
	).Scan(&o.Sequence)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// Update writes the mutable columns of o.
func (r *OrderRepository) Update(ctx context.Context, o *orderv1.Order) error {
	query := `UPDATE orders SET quantity = $1, remaining_quantity = $2, filled_quantity = $3,
		discarded_quantity = $4, reserved_amount = $5, reservation_currency = $6, status = $7,
		updated_at = $8, filled_at = $9, cancelled_at = $10
		WHERE id = $11`

	cmd, err := r.s.db.Exec(ctx, query,
		o.Quantity,
		o.RemainingQuantity,
		o.FilledQuantity,
		o.DiscardedQuantity,
		o.ReservedAmount,
		nullString(string(o.ReservationCurrency)),
		string(o.Status),
		o.UpdatedAt,
		o.FilledAt,
		o.CancelledAt,
		o.ID,
	)
	if err != nil {
		return wrap(err)
	}
	if cmd.RowsAffected() == 0 {
		return errors.New(errors.OrderNotFound, "order %s not found", o.ID)
	}
	return nil
}

// GetByID reads an order without locking it.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*orderv1.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate reads an order and locks its row until the unit ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*orderv1.Order, error) {
	if err := r.s.requireTx(ctx, "GetForUpdate"); err != nil {
		return nil, err
	}
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) get(ctx context.Context, query, id string) (*orderv1.Order, error) {
	o, err := scanOrder(r.s.db.QueryRow(ctx, query, id))
	if notFound(err) {
		return nil, errors.New(errors.OrderNotFound, "order %s not found", id)
	}
	if err != nil {
		return nil, wrap(err)
	}
	return o, nil
}

// ListOpen returns pending and partially filled orders of pair, oldest first.
func (r *OrderRepository) ListOpen(ctx context.Context, pair marketv1.Pair) ([]*orderv1.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE base_currency = $1 AND quote_currency = $2 AND status IN ('pending', 'partially_filled')
		ORDER BY created_at, seq`

	rows, err := r.s.db.Query(ctx, query, string(pair.Base), string(pair.Quote))
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	orders := []*orderv1.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrap(err)
		}
		orders = append(orders, o)
	}
	return orders, wrap(rows.Err())
}

func priceOf(o *orderv1.Order) decimal.NullDecimal {
	price, ok := o.LimitPrice()
	return decimal.NullDecimal{Decimal: price, Valid: ok}
}

func scanOrder(row scanner) (*orderv1.Order, error) {
	var (
		o                              orderv1.Order
		side, typ, base, quote, status string
		reservationCurrency            *string
		price                          decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID,
		&o.Sequence,
		&o.UserID,
		&side,
		&typ,
		&price,
		&base,
		&quote,
		&o.Quantity,
		&o.RemainingQuantity,
		&o.FilledQuantity,
		&o.DiscardedQuantity,
		&o.ReservedAmount,
		&reservationCurrency,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.FilledAt,
		&o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	var limit *decimal.Decimal
	if price.Valid {
		limit = &price.Decimal
	}
	kind, err := orderv1.KindOf(orderv1.Type(typ), limit)
	if err != nil {
		return nil, err
	}

	o.Side = marketv1.Side(side)
	o.Kind = kind
	o.Pair = marketv1.NewPair(base, quote)
	o.ReservationCurrency = marketv1.Currency(stringOf(reservationCurrency))
	o.Status = orderv1.Status(status)
	return &o, nil
}
