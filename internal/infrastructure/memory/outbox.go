package memory

import (
	"context"
	"time"

	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
)

// Outbox stores events in a Store.
type Outbox struct {
	s *Store
}

var _ eventv1.Outbox = (*Outbox)(nil)

// Append records events.
func (o *Outbox) Append(ctx context.Context, events ...*eventv1.Event) error {
	return o.s.write(ctx, func(u *unit) error {
		n := len(o.s.events)
		for _, e := range events {
			c := *e
			o.s.eventIndex[c.ID] = len(o.s.events)
			o.s.events = append(o.s.events, &c)
		}
		u.onRollback(func() {
			for _, e := range o.s.events[n:] {
				delete(o.s.eventIndex, e.ID)
			}
			o.s.events = o.s.events[:n]
		})
		return nil
	})
}

// ListPending returns up to limit unpublished events, oldest first.
func (o *Outbox) ListPending(_ context.Context, limit int) ([]*eventv1.Event, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	var out []*eventv1.Event
	for _, e := range o.s.events {
		if len(out) == limit {
			break
		}
		if e.PublishedAt == nil {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// MarkPublished stamps events as delivered.
func (o *Outbox) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	return o.s.write(ctx, func(u *unit) error {
		for _, id := range ids {
			i, ok := o.s.eventIndex[id]
			if !ok {
				continue
			}
			prev := o.s.events[i]
			c := *prev
			c.PublishedAt = &at
			o.s.events[i] = &c
			u.onRollback(func() { o.s.events[i] = prev })
		}
		return nil
	})
}

// Events returns a copy of every recorded event, oldest first.
func (o *Outbox) Events() []*eventv1.Event {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	out := make([]*eventv1.Event, 0, len(o.s.events))
	for _, e := range o.s.events {
		c := *e
		out = append(out, &c)
	}
	return out
}
