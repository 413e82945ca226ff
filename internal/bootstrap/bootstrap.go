package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/muhammadchandra19/kwanza-exchange/internal/app/engine"
	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	eventv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/event/v1"
	"github.com/muhammadchandra19/kwanza-exchange/internal/metrics"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/fee"
	"github.com/muhammadchandra19/kwanza-exchange/internal/usecase/liquidity"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
	redisclient "github.com/muhammadchandra19/kwanza-exchange/pkg/redis"
)

// Bootstrap owns every long lived dependency of the engine process.
type Bootstrap struct {
	Config   config.Config
	Logger   logger.Interface
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Fees     *fee.Provider

	Postgres  *postgresql.Client
	Redis     redisclient.Client
	Publisher eventv1.Publisher
	Backend   engine.Backend
	Engine    *engine.Engine

	// Checks feed the HTTP health endpoint.
	Checks map[string]healthcheck.Checker
}

// New builds the engine and its backends from cfg. Connections opened before
// a failure are closed again.
func New(ctx context.Context, cfg config.Config, log logger.Interface) (_ *Bootstrap, err error) {
	b := &Bootstrap{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
		Checks:   make(map[string]healthcheck.Checker),
	}
	defer func() {
		if err != nil {
			b.Close(ctx)
		}
	}()

	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.Metrics = metrics.New(b.Registry)

	if b.Fees, err = fee.LoadFile(cfg.FeesFile); err != nil {
		return nil, errors.Tracef(err, "load fees from %s", cfg.FeesFile)
	}
	if err = b.registerBackend(ctx); err != nil {
		return nil, err
	}
	if err = b.registerLiquidityStore(ctx); err != nil {
		return nil, err
	}
	if err = b.registerPublisher(); err != nil {
		return nil, err
	}
	b.registerEngine()
	return b, nil
}

func (b *Bootstrap) registerEngine() {
	cfg := b.Config.Engine
	b.Engine = engine.New(b.Backend, b.Fees, b.Publisher, engine.Config{
		Currencies: cfg.Currencies,
		FeeAccount: cfg.FeeAccount,
		Liquidity: liquidity.Config{
			DefaultTTL:         cfg.LiquidityDefaultTTL,
			MinTTL:             cfg.LiquidityMinTTL,
			MaxTTL:             cfg.LiquidityMaxTTL,
			DefaultMaxSlippage: cfg.DefaultMaxSlippage,
		},
		SweepInterval:   cfg.SweepInterval,
		OutboxInterval:  cfg.OutboxInterval,
		OutboxBatchSize: cfg.OutboxBatchSize,
		DepthLevels:     cfg.DepthLevelsLimit,
		RecentTrades:    cfg.RecentTradesLimit,
	}, b.Metrics, b.Logger)
}

// Close stops the engine and releases connections. It is safe on a
// partially built Bootstrap.
func (b *Bootstrap) Close(ctx context.Context) {
	if b.Engine != nil {
		b.Engine.Stop()
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			b.Logger.ErrorContext(ctx, errors.Tracef(err, "close publisher"))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Disconnect(ctx); err != nil {
			b.Logger.ErrorContext(ctx, errors.Tracef(err, "disconnect redis"))
		}
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
}
