package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
)

type liquidityItem struct {
	reservation liquidityv1.Reservation
	expiresAt   time.Time
}

// LiquidityStore keeps liquidity reservations in process until their TTL
// passes.
type LiquidityStore struct {
	mu    sync.Mutex
	items map[string]liquidityItem
	now   func() time.Time
}

var _ liquidityv1.Store = (*LiquidityStore)(nil)

// NewLiquidityStore creates a LiquidityStore reading time from now.
func NewLiquidityStore(now func() time.Time) *LiquidityStore {
	return &LiquidityStore{items: make(map[string]liquidityItem), now: now}
}

// Save stores r for ttl.
func (s *LiquidityStore) Save(_ context.Context, r *liquidityv1.Reservation, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[r.ID] = liquidityItem{reservation: *r, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the reservation while its TTL has not passed.
func (s *LiquidityStore) Get(_ context.Context, id string) (*liquidityv1.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if ok && !s.now().Before(item.expiresAt) {
		delete(s.items, id)
		ok = false
	}
	if !ok {
		return nil, errors.New(errors.ReservationNotFound, "liquidity reservation %s not found", id)
	}
	r := item.reservation
	return &r, nil
}

// Delete drops the reservation.
func (s *LiquidityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}

// List returns the live reservations ordered by creation.
func (s *LiquidityStore) List(_ context.Context) ([]*liquidityv1.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]*liquidityv1.Reservation, 0, len(s.items))
	for id, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, id)
			continue
		}
		r := item.reservation
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
