package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

// Writer is the part of *kafka.Writer the publisher uses.
//
//go:generate mockgen -source kafka.go -destination=mock/kafka_mock.go -package=publisher_mock
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer that hashes message keys onto partitions.
func NewKafkaWriter(brokers []string, topic string, batchTimeout time.Duration, requiredAcks int) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequiredAcks(requiredAcks),
		AllowAutoTopicCreation: true,
	}
}

// Kafka publishes outbox events to one topic. Messages are keyed by aggregate
// id so the events of one order or trade keep their order within a partition.
type Kafka struct {
	writer Writer
	logger logger.Interface
}

var _ eventv1.Publisher = (*Kafka)(nil)

// NewKafka creates a Kafka publisher on top of writer.
func NewKafka(writer Writer, log logger.Interface) *Kafka {
	return &Kafka{writer: writer, logger: log}
}

// Publish writes events synchronously. Either the whole batch is acknowledged
// or an error is returned and the caller retries it; consumers deduplicate on
// the event id header.
func (k *Kafka) Publish(ctx context.Context, events ...*eventv1.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return errors.TracerFromError(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: value,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.ID)},
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		k.logger.ErrorContext(ctx, err,
			logger.NewField("events", len(events)),
			logger.NewField("first_event_id", events[0].ID),
		)
		return errors.NewTracer("failed to publish engine events").Wrap(err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Decode reads an event written by Publish. The event_id header must agree
// with the body when present.
func Decode(msg kafka.Message) (*eventv1.Event, error) {
	var e eventv1.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return nil, errors.NewTracer("malformed engine event").Wrap(err)
	}
	if e.ID == "" || e.Type == "" {
		return nil, errors.New(errors.ValidationError, "engine event at offset %d has no id or type", msg.Offset)
	}
	for _, h := range msg.Headers {
		if h.Key == "event_id" && string(h.Value) != e.ID {
			return nil, errors.New(errors.ValidationError, "event_id header %q does not match body id %q", h.Value, e.ID)
		}
	}
	return &e, nil
}
