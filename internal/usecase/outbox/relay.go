package outbox

import (
	"context"
	"time"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	txv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/tx/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// Relay moves committed outbox events to a Publisher. An event is marked
// published only after the publisher acknowledged it, so a crash between the
// two steps redelivers it. Two relays over one store may also publish the
// same batch. Delivery is at least once and consumers dedupe on the event id.
type Relay struct {
	tx        txv1.Transactor
	outbox    eventv1.Outbox
	publisher eventv1.Publisher
	batchSize int
	interval  time.Duration
	clock     util.Clock
	metrics   *metrics.Metrics
	logger    logger.Interface
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock sets the clock stamping published events.
func WithClock(c util.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// NewRelay creates a Relay draining up to batchSize events every interval.
func NewRelay(
	tx txv1.Transactor,
	outbox eventv1.Outbox,
	publisher eventv1.Publisher,
	batchSize int,
	interval time.Duration,
	m *metrics.Metrics,
	log logger.Interface,
	opts ...Option,
) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	r := &Relay{
		tx:        tx,
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		clock:     util.SystemClock,
		metrics:   m,
		logger:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce publishes one batch and reports how many events it delivered.
// Reading the batch and marking it published are separate units, and the
// publish runs outside both so broker latency never holds store locks.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var events []*eventv1.Event
	err := r.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		events, err = r.outbox.ListPending(ctx, r.batchSize)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, events...); err != nil {
		r.metrics.OutboxFailures.Inc()
		return 0, err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	// a failure here leaves the batch pending and it is published again
	err = r.tx.Do(ctx, func(ctx context.Context) error {
		return r.outbox.MarkPublished(ctx, ids, r.clock())
	})
	if err != nil {
		return 0, err
	}
	r.metrics.OutboxPublished.Add(float64(len(events)))
	return len(events), nil
}

// Run relays until ctx is done. Full batches are followed immediately by the
// next one; otherwise it waits for the interval.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, err)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
