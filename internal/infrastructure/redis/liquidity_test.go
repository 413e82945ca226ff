package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	liquidityv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/liquidity/v1"
	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	redis_mock "github.com/muhammadchandra19/kwanza-exchange/pkg/redis/mock"
)

func keyFn(parts ...string) string { return "kwanza:" + strings.Join(parts, ":") }

func hold() *liquidityv1.Reservation {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &liquidityv1.Reservation{
		ID:                 "hold-1",
		UserID:             "alice",
		Pair:               marketv1.Pair{Base: marketv1.EUR, Quote: marketv1.AOA},
		Side:               marketv1.Buy,
		Quantity:           decimal.RequireFromString("100"),
		MaxSlippagePercent: decimal.RequireFromString("5"),
		BandPrice:          decimal.RequireFromString("682.5"),
		Allocations: []liquidityv1.Allocation{
			{OrderID: "o-1", Price: decimal.RequireFromString("650"), Quantity: decimal.RequireFromString("100")},
		},
		CreatedAt: at,
		ExpiresAt: at.Add(30 * time.Second),
	}
}

func TestLiquidityStore_Save(t *testing.T) {
	testCases := []struct {
		name     string
		ttl      time.Duration
		mockFn   func(c *redis_mock.MockClient)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "set with expiry",
			ttl:  30 * time.Second,
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Key("liquidity", "hold-1").Return(keyFn("liquidity", "hold-1"))
				c.EXPECT().Set(gomock.Any(), "kwanza:liquidity:hold-1", gomock.Any(), 30*time.Second).
					DoAndReturn(func(_ context.Context, _ string, value any, _ time.Duration) error {
						var got liquidityv1.Reservation
						require.NoError(t, json.Unmarshal(value.([]byte), &got))
						assert.Equal(t, "alice", got.UserID)
						assert.True(t, got.BandPrice.Equal(decimal.RequireFromString("682.5")))
						return nil
					})
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:   "non positive ttl",
			ttl:    0,
			mockFn: func(c *redis_mock.MockClient) {},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.HasCode(err, errors.ValidationError))
			},
		},
		{
			name: "redis failure",
			ttl:  time.Second,
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Key("liquidity", "hold-1").Return(keyFn("liquidity", "hold-1"))
				c.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Second).
					Return(errors.New(errors.RedisSetError, "failed to set value in redis"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.HasCode(err, errors.RedisSetError))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := redis_mock.NewMockClient(ctrl)
			tc.mockFn(c)

			s := NewLiquidityStore(c, logger.NewNop())
			tc.assertFn(t, s.Save(context.Background(), hold(), tc.ttl))
		})
	}
}

func TestLiquidityStore_Get(t *testing.T) {
	raw, err := json.Marshal(hold())
	require.NoError(t, err)

	testCases := []struct {
		name     string
		mockFn   func(c *redis_mock.MockClient)
		assertFn func(t *testing.T, r *liquidityv1.Reservation, err error)
	}{
		{
			name: "found",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:hold-1").Return(string(raw), true, nil)
			},
			assertFn: func(t *testing.T, r *liquidityv1.Reservation, err error) {
				require.NoError(t, err)
				assert.Equal(t, "hold-1", r.ID)
				assert.True(t, r.HeldQuantity().Equal(decimal.RequireFromString("100")))
			},
		},
		{
			name: "expired or unknown",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false, nil)
			},
			assertFn: func(t *testing.T, r *liquidityv1.Reservation, err error) {
				assert.Nil(t, r)
				assert.True(t, errors.HasCode(err, errors.ReservationNotFound))
			},
		},
		{
			name: "corrupt value",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return("{", true, nil)
			},
			assertFn: func(t *testing.T, r *liquidityv1.Reservation, err error) {
				assert.Nil(t, r)
				assert.True(t, errors.HasCode(err, errors.GeneralRepositoryError))
			},
		},
		{
			name: "redis failure",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false, stderrors.New("connection reset"))
			},
			assertFn: func(t *testing.T, r *liquidityv1.Reservation, err error) {
				assert.Nil(t, r)
				assert.EqualError(t, err, "connection reset")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := redis_mock.NewMockClient(ctrl)
			c.EXPECT().Key("liquidity", "hold-1").Return(keyFn("liquidity", "hold-1"))
			tc.mockFn(c)

			s := NewLiquidityStore(c, logger.NewNop())
			r, err := s.Get(context.Background(), "hold-1")
			tc.assertFn(t, r, err)
		})
	}
}

func TestLiquidityStore_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := redis_mock.NewMockClient(ctrl)
	c.EXPECT().Key("liquidity", "hold-1").Return(keyFn("liquidity", "hold-1"))
	c.EXPECT().Del(gomock.Any(), "kwanza:liquidity:hold-1").Return(int64(0), nil)

	s := NewLiquidityStore(c, logger.NewNop())
	assert.NoError(t, s.Delete(context.Background(), "hold-1"))
}

func TestLiquidityStore_List(t *testing.T) {
	first := hold()
	second := hold()
	second.ID = "hold-0"
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	rawFirst, err := json.Marshal(first)
	require.NoError(t, err)
	rawSecond, err := json.Marshal(second)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		mockFn   func(c *redis_mock.MockClient)
		assertFn func(t *testing.T, got []*liquidityv1.Reservation, err error)
	}{
		{
			name: "oldest first, skipping lapsed and corrupt keys",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Scan(gomock.Any(), "kwanza:liquidity:*").Return([]string{
					"kwanza:liquidity:hold-0", "kwanza:liquidity:gone", "kwanza:liquidity:hold-1", "kwanza:liquidity:bad",
				}, nil)
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:hold-0").Return(string(rawSecond), true, nil)
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:gone").Return("", false, nil)
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:hold-1").Return(string(rawFirst), true, nil)
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:bad").Return("{", true, nil)
			},
			assertFn: func(t *testing.T, got []*liquidityv1.Reservation, err error) {
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, "hold-1", got[0].ID)
				assert.Equal(t, "hold-0", got[1].ID)
			},
		},
		{
			name: "scan failure",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(nil, stderrors.New("connection reset"))
			},
			assertFn: func(t *testing.T, got []*liquidityv1.Reservation, err error) {
				assert.Nil(t, got)
				assert.EqualError(t, err, "connection reset")
			},
		},
		{
			name: "get failure",
			mockFn: func(c *redis_mock.MockClient) {
				c.EXPECT().Scan(gomock.Any(), gomock.Any()).Return([]string{"kwanza:liquidity:hold-1"}, nil)
				c.EXPECT().Get(gomock.Any(), "kwanza:liquidity:hold-1").Return("", false, stderrors.New("connection reset"))
			},
			assertFn: func(t *testing.T, got []*liquidityv1.Reservation, err error) {
				assert.Nil(t, got)
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := redis_mock.NewMockClient(ctrl)
			c.EXPECT().Key("liquidity", "*").Return(keyFn("liquidity", "*"))
			tc.mockFn(c)

			s := NewLiquidityStore(c, logger.NewNop())
			got, err := s.List(context.Background())
			tc.assertFn(t, got, err)
		})
	}
}
