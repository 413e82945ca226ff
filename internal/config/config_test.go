package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, StorePostgres, cfg.Engine.StoreDriver)
	assert.Equal(t, []string{"EUR", "AOA"}, cfg.Engine.Currencies)
	assert.Equal(t, "5", cfg.Engine.DefaultMaxSlippage.String())
	assert.Equal(t, 300*time.Second, cfg.Engine.LiquidityMaxTTL)
	assert.Equal(t, "kwanza", cfg.Postgres.Database)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, "kwanza.engine.events", cfg.Kafka.Topic)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENGINE_STORE_DRIVER", "memory")
	t.Setenv("ENGINE_CURRENCIES", "EUR,AOA,USD")
	t.Setenv("ENGINE_DEFAULT_MAX_SLIPPAGE", "2.5")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := &Config{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, StoreMemory, cfg.Engine.StoreDriver)
	assert.Equal(t, []string{"EUR", "AOA", "USD"}, cfg.Engine.Currencies)
	assert.Equal(t, "2.5", cfg.Engine.DefaultMaxSlippage.String())
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}
