package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/orders/internal/app"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/dlq"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

const migrateTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("order-service failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "order-service",
		Usage:   "order management service",
		Version: version.String(),
		Flags:   serveFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run gRPC API, payment events consumer and background workers",
				Flags:  serveFlags(),
				Action: serve,
			},
			{
				Name:      "migrate",
				Usage:     "apply or inspect postgres schema migrations",
				ArgsUsage: "up|down|status",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Usage: "migrations to apply (0 = all for up, 1 for down)"},
					&cli.StringFlag{Name: "dsn", Usage: "postgres DSN (default ORDERS_POSTGRES_DSN)"},
				},
				Action: migrate,
			},
			{
				Name:  "replay-dlq",
				Usage: "replay messages from the dead letter topic",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "brokers", Usage: "kafka brokers (default ORDERS_KAFKA_BROKERS)"},
					&cli.StringFlag{Name: "source-topic", Value: kafka.TopicDeadLetterQueue},
					&cli.StringFlag{Name: "events-topic", Value: kafka.TopicOrderEvents},
					&cli.IntFlag{Name: "limit", Value: dlq.DefaultLimit},
					&cli.BoolFlag{Name: "execute", Usage: "send messages; dry-run otherwise"},
					&cli.BoolFlag{Name: "from-newest", Usage: "scan the latest messages first"},
					&cli.DurationFlag{Name: "idle-timeout", Value: dlq.DefaultIdleTimeout},
				},
				Action: replayDLQ,
			},
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "grpc-addr", Usage: "gRPC listen address"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "ops HTTP listen address"},
		&cli.StringFlag{Name: "storage-driver", Usage: "memory|postgres"},
		&cli.StringFlag{Name: "postgres-dsn", Usage: "postgres DSN"},
		&cli.StringFlag{Name: "log-level", Usage: "logrus level"},
	}
}

// loadConfig читает окружение и накладывает явно заданные флаги.
func loadConfig(c *cli.Context) (app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, err
	}
	overrides := map[string]*string{
		"grpc-addr":      &cfg.GRPCAddr,
		"metrics-addr":   &cfg.MetricsAddr,
		"storage-driver": &cfg.StorageDriver,
		"postgres-dsn":   &cfg.PostgresDSN,
		"log-level":      &cfg.LogLevel,
	}
	for name, field := range overrides {
		if c.IsSet(name) {
			*field = strings.TrimSpace(c.String(name))
		}
	}
	return cfg, cfg.Validate()
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.WithFields(log.Fields{
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"version":      version.GetVersion(),
	}).Info("starting order service")

	if err := app.Run(c.Context, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("order service stopped")
	return nil
}

func migrate(c *cli.Context) error {
	direction := c.Args().First()
	if direction == "" {
		direction = "up"
	}

	dsn := strings.TrimSpace(c.String("dsn"))
	if dsn == "" {
		cfg, err := app.ReadEnv()
		if err != nil {
			return err
		}
		dsn = strings.TrimSpace(cfg.PostgresDSN)
	}
	if dsn == "" {
		return fmt.Errorf("postgres DSN is required (--dsn or ORDERS_POSTGRES_DSN)")
	}

	status := strings.EqualFold(strings.TrimSpace(direction), "status")
	var dir postgres.MigrationDirection
	if !status {
		var err error
		if dir, err = postgres.ParseMigrationDirection(direction); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, migrateTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if !status {
		steps := c.Int("steps")
		if dir == postgres.MigrationDown && steps <= 0 {
			steps = 1
		}
		if err := store.Migrate(ctx, dir, steps); err != nil {
			return fmt.Errorf("migrate %s: %w", dir, err)
		}
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	_, _ = fmt.Fprintf(c.App.Writer, "migrate %s ok: version=%d applied=%d pending=%d\n",
		strings.ToLower(direction), state.Version, state.Applied, state.Pending)
	return nil
}

func replayDLQ(c *cli.Context) error {
	brokers := c.StringSlice("brokers")
	if len(brokers) == 0 {
		cfg, err := app.ReadEnv()
		if err != nil {
			return err
		}
		brokers = cfg.KafkaBrokers
	}
	if len(brokers) == 0 {
		return fmt.Errorf("kafka brokers are required (--brokers or ORDERS_KAFKA_BROKERS)")
	}

	opts := dlq.Options{
		SourceTopic: c.String("source-topic"),
		EventsTopic: c.String("events-topic"),
		Limit:       c.Int("limit"),
		Execute:     c.Bool("execute"),
		FromNewest:  c.Bool("from-newest"),
		IdleTimeout: c.Duration("idle-timeout"),
	}
	if opts.Limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}

	logger := app.NewLogger("info").WithField("component", "dlq-replay")
	replayer, closeAll, err := dlq.Connect(brokers, opts.Execute, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := replayer.Run(c.Context, opts)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "processed=%d replayed=%d skipped=%d execute=%t\n",
		report.Processed, report.Replayed, report.Skipped, opts.Execute)
	return nil
}
