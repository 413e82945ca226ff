package pgstore

import (
	"context"
	"time"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
)

// Outbox stores events in the outbox_events table.
type Outbox struct {
	s *Store
}

var _ eventv1.Outbox = (*Outbox)(nil)

// Append inserts events in order.
func (o *Outbox) Append(ctx context.Context, events ...*eventv1.Event) error {
	query := `INSERT INTO outbox_events (id, type, aggregate_id, pair, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, e := range events {
		_, err := o.s.db.Exec(ctx, query,
			e.ID,
			string(e.Type),
			e.AggregateID,
			nullString(e.Pair),
			[]byte(e.Payload),
			e.CreatedAt,
		)
		if err != nil {
			return wrap(err)
		}
	}
	return nil
}

// ListPending returns up to limit unpublished events, oldest first. Inside a
// unit the rows stay locked and rows locked by other relays are skipped.
func (o *Outbox) ListPending(ctx context.Context, limit int) ([]*eventv1.Event, error) {
	query := `SELECT id, type, aggregate_id, pair, payload, created_at FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`
	if _, ok := postgresql.GetTx(ctx); ok {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	rows, err := o.s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	events := []*eventv1.Event{}
	for rows.Next() {
		var (
			e       eventv1.Event
			typ     string
			pair    *string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.AggregateID, &pair, &payload, &e.CreatedAt); err != nil {
			return nil, wrap(err)
		}
		e.Type = eventv1.Type(typ)
		e.Pair = stringOf(pair)
		e.Payload = payload
		events = append(events, &e)
	}
	return events, wrap(rows.Err())
}

// MarkPublished stamps events as delivered.
func (o *Outbox) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := o.s.db.Exec(ctx, `UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2)`, at, ids)
	return wrap(err)
}
