package publisher

import (
	"context"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

// Log writes events to the logger. It stands in for Kafka in local runs.
type Log struct {
	logger logger.Interface
}

var _ eventv1.Publisher = (*Log)(nil)

// NewLog creates a Log publisher.
func NewLog(log logger.Interface) *Log {
	return &Log{logger: log}
}

// Publish logs every event at info level.
func (l *Log) Publish(ctx context.Context, events ...*eventv1.Event) error {
	for _, e := range events {
		l.logger.InfoContext(ctx, "event",
			logger.NewField("event_id", e.ID),
			logger.NewField("event_type", string(e.Type)),
			logger.NewField("aggregate_id", e.AggregateID),
			logger.NewField("pair", e.Pair),
			logger.NewField("payload", string(e.Payload)),
		)
	}
	return nil
}

// Close is a no-op.
func (l *Log) Close() error {
	return nil
}
