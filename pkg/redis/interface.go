package redis

import (
	"context"
	"time"
)

// Client defines the interface for a Redis client. Keys are used as given;
// callers prefix them with Config.PrefixKey through Key.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=redis_mock
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) bool

	// Get returns "" and found=false for a missing key.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	// Scan returns every key matching pattern without blocking the server.
	Scan(ctx context.Context, pattern string) ([]string, error)

	Key(parts ...string) string
}
