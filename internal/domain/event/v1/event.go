package eventv1

import (
	"context"
	"encoding/json"
	"time"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

// Type names an engine event.
type Type string

const (
	OrderPlaced       Type = "order.placed"
	OrderUpdated      Type = "order.updated"
	OrderCancelled    Type = "order.cancelled"
	TradeExecuted     Type = "trade.executed"
	LiquidityReserved Type = "liquidity.reserved"
	LiquidityReleased Type = "liquidity.released"
	PairHalted        Type = "pair.halted"
	PairResumed       Type = "pair.resumed"
	BalanceChanged    Type = "balance.changed"
)

// Event is a state change recorded in the outbox in the same unit of work as
// the change itself. Consumers deduplicate on ID.
type Event struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Pair        string          `json:"pair,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// New marshals payload into an event.
func New(id string, t Type, aggregateID string, pair marketv1.Pair, payload any, now time.Time) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}

	e := &Event{
		ID:          id,
		Type:        t,
		AggregateID: aggregateID,
		Payload:     raw,
		CreatedAt:   now,
	}
	if pair.Base != "" {
		e.Pair = pair.String()
	}
	return e, nil
}

// Outbox stores events until they are published.
//
//go:generate mockgen -source event.go -destination=mock/event_mock.go -package=eventv1_mock
type Outbox interface {
	Append(ctx context.Context, events ...*Event) error
	// ListPending returns up to limit unpublished events, oldest first. Inside
	// a unit of work the rows stay locked, and rows locked by other units are
	// skipped.
	ListPending(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Publisher delivers events downstream.
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
	Close() error
}
