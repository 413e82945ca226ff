package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammadchandra19/kwanza-exchange/internal/bootstrap"
	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

func memoryConfig() config.Config {
	return config.Config{
		FeesFile: "../../config/fees.yaml",
		Engine: config.EngineConfig{
			StoreDriver:         config.StoreMemory,
			EventSink:           config.SinkLog,
			LiquidityStore:      "memory",
			Currencies:          []string{"EUR", "AOA"},
			FeeAccount:          "platform-fees",
			DefaultMaxSlippage:  decimal.NewFromInt(5),
			LockTimeout:         time.Second,
			LiquidityDefaultTTL: 30 * time.Second,
			LiquidityMinTTL:     10 * time.Second,
			LiquidityMaxTTL:     300 * time.Second,
			SweepInterval:       50 * time.Millisecond,
			OutboxInterval:      50 * time.Millisecond,
			OutboxBatchSize:     50,
		},
	}
}

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()

	b, err := bootstrap.New(ctx, memoryConfig(), logger.NewNop())
	require.NoError(t, err)
	defer b.Close(ctx)

	assert.Nil(t, b.Postgres)
	assert.Nil(t, b.Redis)
	assert.Empty(t, b.Checks)
	require.NoError(t, b.Engine.Start(ctx))

	_, err = b.Engine.Deposit(ctx, "alice", "EUR", decimal.NewFromInt(100))
	require.NoError(t, err)
	moved, err := b.Engine.Withdraw(ctx, "alice", "EUR", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, moved.Wallet.AvailableBalance.Equal(decimal.NewFromInt(89)), "withdrawal fee comes from fees.yaml")

	platform, err := b.Engine.GetWallet(ctx, "platform-fees", "EUR")
	require.NoError(t, err)
	assert.True(t, platform.AvailableBalance.Equal(decimal.NewFromInt(1)))

	families, err := b.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		code   errors.ErrorCode
	}{
		{
			name:   "unknown store driver",
			mutate: func(cfg *config.Config) { cfg.Engine.StoreDriver = "mysql" },
			code:   errors.ValidationError,
		},
		{
			name:   "unknown liquidity store",
			mutate: func(cfg *config.Config) { cfg.Engine.LiquidityStore = "etcd" },
			code:   errors.ValidationError,
		},
		{
			name:   "unknown event sink",
			mutate: func(cfg *config.Config) { cfg.Engine.EventSink = "nats" },
			code:   errors.ValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(&cfg)

			b, err := bootstrap.New(context.Background(), cfg, logger.NewNop())
			assert.Nil(t, b)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
