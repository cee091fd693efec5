package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix: префикс переменных окружения сервиса.
const EnvPrefix = "orders"

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	GRPCAddr    string `envconfig:"GRPC_ADDR" default:":50051"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER" default:"memory"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`

	// Пустой адрес включает встроенный демо-каталог.
	CatalogAddr    string        `envconfig:"CATALOG_ADDR"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"5s"`
	// Пустой адрес включает mock платёжного провайдера.
	PaymentAddr     string        `envconfig:"PAYMENT_ADDR"`
	PaymentTimeout  time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"5s"`
	PaymentCurrency string        `envconfig:"PAYMENT_CURRENCY" default:"usd"`

	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID    string   `envconfig:"KAFKA_GROUP_ID" default:"orders-service"`
	KafkaMaxRetries int      `envconfig:"KAFKA_MAX_RETRIES" default:"3"`

	RedisAddr          string `envconfig:"REDIS_ADDR"`
	EnrichmentFallback bool   `envconfig:"ENRICHMENT_FALLBACK" default:"false"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"50ms"`

	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL" default:"10m"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" default:"500"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		CatalogTimeout:              5 * time.Second,
		PaymentTimeout:              5 * time.Second,
		PaymentCurrency:             "usd",
		KafkaGroupID:                "orders-service",
		KafkaMaxRetries:             3,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ReadEnv читает .env (если есть) и переменные ORDERS_* без проверки согласованности.
func ReadEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// LoadConfig читает и проверяет конфигурацию.
func LoadConfig() (Config, error) {
	cfg, err := ReadEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch strings.ToLower(c.StorageDriver) {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage requires ORDERS_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.KafkaMaxRetries < 0 {
		return fmt.Errorf("kafka max retries must be >= 0, got %d", c.KafkaMaxRetries)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// NewLogger настраивает корневой logger по уровню из конфигурации.
func NewLogger(level string) *log.Entry {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger.WithField("service", "orders")
}
