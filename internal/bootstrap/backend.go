package bootstrap

import (
	"context"
	"strings"

	"github.com/muhammadchandra19/kwanza-exchange/internal/app/engine"
	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/memory"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/pgstore"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/publisher"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/redis"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
	redisclient "github.com/muhammadchandra19/kwanza-exchange/pkg/redis"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/util"
)

// registerBackend picks the persistence layer for orders, wallets and the outbox.
func (b *Bootstrap) registerBackend(ctx context.Context) error {
	switch b.Config.Engine.StoreDriver {
	case config.StorePostgres:
		client, err := postgresql.NewClient(ctx, b.Config.Postgres)
		if err != nil {
			return errors.Tracef(err, "connect postgres")
		}
		b.Postgres = client
		b.Checks["postgres"] = client.Ping

		store := pgstore.NewStore(client, b.Config.Engine.LockTimeout, b.Logger)
		b.Backend = engine.Backend{
			Tx:           store,
			Orders:       store.Orders(),
			Reservations: store.Reservations(),
			Ledger:       store.Ledger(),
			Trades:       store.Trades(),
			Transactions: store.Transactions(),
			Outbox:       store.Outbox(),
		}
	case config.StoreMemory:
		store := memory.NewStore(memory.WithLockTimeout(b.Config.Engine.LockTimeout))
		b.Backend = engine.Backend{
			Tx:           store,
			Orders:       store.Orders(),
			Reservations: store.Reservations(),
			Ledger:       store.Ledger(),
			Trades:       store.Trades(),
			Transactions: store.Transactions(),
			Outbox:       store.Outbox(),
		}
	default:
		return errors.New(errors.ValidationError, "unknown store driver %q", b.Config.Engine.StoreDriver).
			WithField("ENGINE_STORE_DRIVER")
	}

	b.Logger.Info("store ready", logger.NewField("driver", string(b.Config.Engine.StoreDriver)))
	return nil
}

// registerLiquidityStore keeps liquidity holds in Redis so they expire on
// their own, or in process memory.
func (b *Bootstrap) registerLiquidityStore(ctx context.Context) error {
	switch strings.ToLower(b.Config.Engine.LiquidityStore) {
	case "redis":
		client := redisclient.NewClient(b.Logger, &b.Config.Redis)
		if err := client.Connect(ctx); err != nil {
			return errors.Tracef(err, "connect redis")
		}
		b.Redis = client
		b.Checks["redis"] = client.Ping
		b.Backend.Liquidity = redis.NewLiquidityStore(client, b.Logger)
	case "memory":
		b.Backend.Liquidity = memory.NewLiquidityStore(util.SystemClock)
	default:
		return errors.New(errors.ValidationError, "unknown liquidity store %q", b.Config.Engine.LiquidityStore).
			WithField("ENGINE_LIQUIDITY_STORE")
	}
	return nil
}

// registerPublisher picks where the outbox relay sends events.
func (b *Bootstrap) registerPublisher() error {
	switch b.Config.Engine.EventSink {
	case config.SinkKafka:
		k := b.Config.Kafka
		writer := publisher.NewKafkaWriter(k.Brokers, k.Topic, k.BatchTimeout, k.RequiredAcks)
		b.Publisher = publisher.NewKafka(writer, b.Logger)
	case config.SinkLog:
		b.Publisher = publisher.NewLog(b.Logger)
	default:
		return errors.New(errors.ValidationError, "unknown event sink %q", b.Config.Engine.EventSink).
			WithField("ENGINE_EVENT_SINK")
	}
	return nil
}
