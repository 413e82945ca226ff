package redis

import "time"

// Mode represents the mode of the Redis client.
type Mode string

const (
	// Standalone Mode is for a single Redis instance.
	Standalone Mode = "standalone"
	// Cluster Mode is for a Redis cluster setup.
	Cluster Mode = "cluster"
)

// Config holds the configuration for the Redis client.
type Config struct {
	Mode     Mode     `env:"MODE" envDefault:"standalone"`
	Addrs    []string `env:"ADDRS" envDefault:"localhost:6379"`
	Username string   `env:"USERNAME"`
	Password string   `env:"PASSWORD"`
	DB       int      `env:"DB" envDefault:"0"`

	ConnectTimeout      time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	MaxRetries          int           `env:"MAX_RETRIES" envDefault:"3"`
	MinRetryBackoff     time.Duration `env:"MIN_RETRY_BACKOFF" envDefault:"100ms"`
	MaxRetryBackoff     time.Duration `env:"MAX_RETRY_BACKOFF" envDefault:"2s"`
	PoolSize            int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns        int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	PoolTimeout         time.Duration `env:"POOL_TIMEOUT" envDefault:"4s"`
	PrefixKey           string        `env:"PREFIX_KEY" envDefault:"kwanza:"`
	ReconnectMaxRetries int           `env:"RECONNECT_MAX_RETRIES" envDefault:"3"`
}

// DefaultConfig returns a default configuration for the Redis client.
func DefaultConfig() *Config {
	return &Config{
		Mode:                Standalone,
		Addrs:               []string{"localhost:6379"},
		ConnectTimeout:      5 * time.Second,
		MaxRetries:          3,
		MinRetryBackoff:     100 * time.Millisecond,
		MaxRetryBackoff:     2 * time.Second,
		PoolSize:            10,
		MinIdleConns:        2,
		PoolTimeout:         4 * time.Second,
		PrefixKey:           "kwanza:",
		ReconnectMaxRetries: 3,
	}
}

// Validate checks the fields Connect depends on.
func (c *Config) Validate() error {
	switch {
	case len(c.Addrs) == 0:
		return errInvalidConfig("redis addresses are empty")
	case c.Mode != Standalone && c.Mode != Cluster:
		return errInvalidConfig("invalid redis mode " + string(c.Mode))
	case c.ConnectTimeout <= 0:
		return errInvalidConfig("invalid redis connect timeout")
	case c.PoolSize <= 0:
		return errInvalidConfig("invalid redis pool size")
	case c.MaxRetries < 0, c.MinRetryBackoff < 0, c.MaxRetryBackoff < 0:
		return errInvalidConfig("invalid redis retry settings")
	}
	return nil
}
