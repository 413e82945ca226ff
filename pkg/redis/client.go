package redis

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type client struct {
	logger logger.Interface
	config *Config
	rdb    redis.UniversalClient
}

// NewClient creates a new Redis client with the provided logger and configuration.
// Connect must be called before use.
func NewClient(log logger.Interface, config *Config) Client {
	return &client{
		logger: log,
		config: config,
	}
}

func errInvalidConfig(message string) error {
	return errors.NewErrorDetails(message, string(errors.RedisConfigError), "config")
}

func (c *client) Connect(ctx context.Context) error {
	if c.config == nil {
		return errInvalidConfig("redis config is nil")
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	switch c.config.Mode {
	case Cluster:
		c.rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           c.config.Addrs,
			Username:        c.config.Username,
			Password:        c.config.Password,
			MaxRetries:      c.config.MaxRetries,
			MinRetryBackoff: c.config.MinRetryBackoff,
			MaxRetryBackoff: c.config.MaxRetryBackoff,
			DialTimeout:     c.config.ConnectTimeout,
			ReadTimeout:     c.config.ConnectTimeout,
			WriteTimeout:    c.config.ConnectTimeout,
			PoolSize:        c.config.PoolSize,
			MinIdleConns:    c.config.MinIdleConns,
			PoolTimeout:     c.config.PoolTimeout,
		})
	default:
		c.rdb = redis.NewClient(&redis.Options{
			Addr:            c.config.Addrs[0],
			Username:        c.config.Username,
			Password:        c.config.Password,
			DB:              c.config.DB,
			MaxRetries:      c.config.MaxRetries,
			MinRetryBackoff: c.config.MinRetryBackoff,
			MaxRetryBackoff: c.config.MaxRetryBackoff,
			DialTimeout:     c.config.ConnectTimeout,
			ReadTimeout:     c.config.ConnectTimeout,
			WriteTimeout:    c.config.ConnectTimeout,
			PoolSize:        c.config.PoolSize,
			MinIdleConns:    c.config.MinIdleConns,
			PoolTimeout:     c.config.PoolTimeout,
		})
	}

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.NewErrorDetails("failed to connect to redis", string(errors.RedisConnectionError), "connect").WithCause(err)
	}
	return nil
}

// Reconnect retries Connect with exponential backoff and jitter. It returns
// false when ctx is cancelled or every attempt failed.
func (c *client) Reconnect(ctx context.Context) bool {
	for i := range c.config.ReconnectMaxRetries {
		backoff := min(c.config.MinRetryBackoff*time.Duration(math.Pow(2, float64(i))), c.config.MaxRetryBackoff)
		delay := backoff + time.Duration(rand.IntN(1000))*time.Millisecond

		c.logger.Info("reconnecting to redis",
			logger.NewField("attempt", i+1),
			logger.NewField("delay", delay.String()),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
		err := c.Connect(connectCtx)
		cancel()
		if err == nil {
			c.logger.Info("reconnected to redis", logger.NewField("attempt", i+1))
			return true
		}
		c.logger.Error(errors.TracerFromError(err), logger.NewField("attempt", i+1))
	}
	return false
}

func (c *client) Disconnect(_ context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.NewErrorDetails("failed to ping redis", string(errors.RedisConnectionError), "ping").WithCause(err)
	}
	return nil
}

func (c *client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewErrorDetails("failed to get value from redis", string(errors.RedisGetError), key).WithCause(err)
	}
	return val, true, nil
}

func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.NewErrorDetails("failed to set value in redis", string(errors.RedisSetError), key).WithCause(err)
	}
	return nil
}

func (c *client) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		return false, errors.NewErrorDetails("failed to set value with NX in redis", string(errors.RedisSetError), key).WithCause(err)
	}
	return ok, nil
}

func (c *client) Del(ctx context.Context, keys ...string) (int64, error) {
	deleted, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewErrorDetails("failed to delete keys from redis", string(errors.RedisDelError), strings.Join(keys, ",")).WithCause(err)
	}
	return deleted, nil
}

// Scan walks the keyspace with SCAN. In cluster mode every master is walked.
func (c *client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		mu   sync.Mutex
		keys []string
	)
	walk := func(ctx context.Context, node redis.UniversalClient) error {
		iter := node.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			mu.Lock()
			keys = append(keys, iter.Val())
			mu.Unlock()
		}
		return iter.Err()
	}

	var err error
	if cluster, ok := c.rdb.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return walk(ctx, node)
		})
	} else {
		err = walk(ctx, c.rdb)
	}
	if err != nil {
		return nil, errors.NewErrorDetails("failed to scan keys in redis", string(errors.RedisScanError), pattern).WithCause(err)
	}
	return keys, nil
}

// Key joins parts with ':' under the configured prefix.
func (c *client) Key(parts ...string) string {
	return c.config.PrefixKey + strings.Join(parts, ":")
}
