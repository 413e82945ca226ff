// Package redis keeps liquidity reservations in Redis so holds survive an
// engine restart and expire on the server side.
package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	redisclient "github.com/muhammadchandra19/kwanza-exchange/pkg/redis"
)

const keyspace = "liquidity"

// LiquidityStore stores each reservation as a JSON value whose key expires
// with the hold.
type LiquidityStore struct {
	client redisclient.Client
	logger logger.Interface
}

var _ liquidityv1.Store = (*LiquidityStore)(nil)

// NewLiquidityStore creates a LiquidityStore on a connected client.
func NewLiquidityStore(client redisclient.Client, log logger.Interface) *LiquidityStore {
	return &LiquidityStore{client: client, logger: log}
}

// Save writes r with SET EX ttl.
func (s *LiquidityStore) Save(ctx context.Context, r *liquidityv1.Reservation, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New(errors.ValidationError, "ttl must be positive, got %s", ttl).WithField("ttl")
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return errors.TracerFromError(err)
	}
	return s.client.Set(ctx, s.client.Key(keyspace, r.ID), raw, ttl)
}

// Get returns the reservation until its key expires.
func (s *LiquidityStore) Get(ctx context.Context, id string) (*liquidityv1.Reservation, error) {
	val, found, err := s.client.Get(ctx, s.client.Key(keyspace, id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.ReservationNotFound, "liquidity reservation %s not found", id)
	}

	r := &liquidityv1.Reservation{}
	if err := json.Unmarshal([]byte(val), r); err != nil {
		s.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.NewField("reservation_id", id))
		return nil, errors.New(errors.GeneralRepositoryError, "liquidity reservation %s is corrupt", id).WithCause(err)
	}
	return r, nil
}

// Delete removes the reservation. Deleting a missing key is not an error.
func (s *LiquidityStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Del(ctx, s.client.Key(keyspace, id))
	return err
}

// List scans the keyspace and returns the holds still present. Keys that
// expire mid scan are skipped, as are corrupt values.
func (s *LiquidityStore) List(ctx context.Context) ([]*liquidityv1.Reservation, error) {
	keys, err := s.client.Scan(ctx, s.client.Key(keyspace, "*"))
	if err != nil {
		return nil, err
	}

	out := make([]*liquidityv1.Reservation, 0, len(keys))
	for _, key := range keys {
		val, found, err := s.client.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		r := &liquidityv1.Reservation{}
		if err := json.Unmarshal([]byte(val), r); err != nil {
			s.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.NewField("key", key))
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
