package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	migrationpg "github.com/muhammadchandra19/kwanza-exchange/pkg/migration-pg"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/redis"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load()

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables, reading .env
// first when present.
func Load[T any](cfg T) error {
	_ = godotenv.Load()

	return env.Parse(cfg)
}

// StoreDriver selects the persistence backend.
type StoreDriver string

const (
	// StorePostgres persists orders, wallets and trades in PostgreSQL.
	StorePostgres StoreDriver = "postgres"
	// StoreMemory keeps everything in process; used for local runs and tests.
	StoreMemory StoreDriver = "memory"
)

// EventSink selects where outbox events are relayed.
type EventSink string

const (
	// SinkKafka publishes events to Kafka.
	SinkKafka EventSink = "kafka"
	// SinkLog writes events to the log.
	SinkLog EventSink = "log"
)

// Config holds the configuration for the engine process.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"9090"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
	FeesFile    string `env:"FEES_FILE" envDefault:"config/fees.yaml"`

	Engine    EngineConfig       `envPrefix:"ENGINE_"`
	Postgres  postgresql.Config  `envPrefix:"POSTGRES_"`
	Migration migrationpg.Config `envPrefix:"MIGRATION_"`
	Redis     redis.Config       `envPrefix:"REDIS_"`
	Kafka     KafkaConfig        `envPrefix:"KAFKA_"`
}

// EngineConfig holds matching and settlement settings.
type EngineConfig struct {
	StoreDriver         StoreDriver     `env:"STORE_DRIVER" envDefault:"postgres"`
	EventSink           EventSink       `env:"EVENT_SINK" envDefault:"kafka"`
	LiquidityStore      string          `env:"LIQUIDITY_STORE" envDefault:"redis"`
	Currencies          []string        `env:"CURRENCIES" envDefault:"EUR,AOA"`
	FeeAccount          string          `env:"FEE_ACCOUNT" envDefault:"platform-fees"`
	DefaultMaxSlippage  decimal.Decimal `env:"DEFAULT_MAX_SLIPPAGE" envDefault:"5"`
	LockTimeout         time.Duration   `env:"LOCK_TIMEOUT" envDefault:"3s"`
	LiquidityDefaultTTL time.Duration   `env:"LIQUIDITY_DEFAULT_TTL" envDefault:"30s"`
	LiquidityMinTTL     time.Duration   `env:"LIQUIDITY_MIN_TTL" envDefault:"10s"`
	LiquidityMaxTTL     time.Duration   `env:"LIQUIDITY_MAX_TTL" envDefault:"300s"`
	SweepInterval       time.Duration   `env:"SWEEP_INTERVAL" envDefault:"1s"`
	OutboxInterval      time.Duration   `env:"OUTBOX_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize     int             `env:"OUTBOX_BATCH_SIZE" envDefault:"200"`
	RecentTradesLimit   int             `env:"RECENT_TRADES_LIMIT" envDefault:"100"`
	DepthLevelsLimit    int             `env:"DEPTH_LEVELS_LIMIT" envDefault:"50"`
}

// KafkaConfig holds the configuration for the event publisher.
type KafkaConfig struct {
	Brokers      []string      `env:"BROKERS" envDefault:"localhost:9092"`
	Topic        string        `env:"TOPIC" envDefault:"kwanza.engine.events"`
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" envDefault:"10ms"`
	RequiredAcks int           `env:"REQUIRED_ACKS" envDefault:"-1"`
}
