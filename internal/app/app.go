// Package app собирает сервис заказов: хранилище, клиенты, Kafka, gRPC и ops HTTP.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orders/internal/api/ordersv1"
	"github.com/vladislavdragonenkov/orders/internal/cache"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/orders/internal/service/grpc"
	"github.com/vladislavdragonenkov/orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Service: собранный, но ещё не запущенный сервис.
type Service struct {
	cfg    Config
	logger *log.Entry

	deps   *runtimeDependencies
	remote *remoteServices
	names  *cache.RedisCache
	kafka  *kafkaRuntime

	orders       *orders.Orchestrator
	grpcServer   *grpc.Server
	grpcHealth   *health.Server
	grpcListener net.Listener
	httpServer   *http.Server
	httpListener net.Listener
}

// Run собирает сервис и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run(ctx)
}

// New инициализирует зависимости и открывает listeners.
func New(ctx context.Context, cfg Config) (*Service, error) {
	logger := NewLogger(cfg.LogLevel).WithField("component", "app")
	s := &Service{cfg: cfg, logger: logger}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init(ctx context.Context) error {
	var err error
	if s.deps, err = initRuntimeDependencies(ctx, s.cfg, s.logger); err != nil {
		return err
	}
	if s.remote, err = initRemoteServices(s.cfg, s.logger); err != nil {
		return err
	}
	var names cache.ProductNames = cache.Noop{}
	if s.names = initNameCache(ctx, s.cfg, s.logger); s.names != nil {
		names = s.names
	}

	if s.kafka, err = initKafkaProducer(s.cfg.KafkaBrokers, s.logger); err != nil {
		s.logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		s.kafka = nil
	}

	// Без Kafka события некому доставлять, outbox не наполняется.
	var eventLog domain.OutboxRepository
	if s.kafka != nil {
		eventLog = s.deps.outboxRepo
	}
	s.orders = createOrchestrator(s.cfg, s.deps, s.remote, names, eventLog,
		metrics.NewOrderMetrics(), s.logger.WithField("component", "orders"))

	if s.kafka != nil {
		if err := s.kafka.attachPaymentConsumer(s.cfg, s.orders, s.logger); err != nil {
			s.logger.WithError(err).Warn("payment events consumer disabled")
		}
	}

	s.buildGRPCServer()
	s.buildHTTPServer()

	if s.grpcListener, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
		return err
	}
	if s.httpListener, err = net.Listen("tcp", s.cfg.MetricsAddr); err != nil {
		return err
	}
	return nil
}

func (s *Service) buildGRPCServer() {
	// Коллекторы promgrpc.DefaultServerMetrics уже зарегистрированы в DefaultRegisterer при импорте пакета.
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(promgrpc.UnaryServerInterceptor))
	orderService := grpcsvc.NewOrderService(s.orders, s.deps.idempotencyRepo, s.logger.WithField("layer", "grpc"))
	ordersv1.RegisterOrderServiceServer(s.grpcServer, orderService)
	promgrpc.Register(s.grpcServer)

	s.grpcHealth = health.NewServer()
	s.grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.grpcHealth.SetServingStatus(ordersv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.grpcServer, s.grpcHealth)
	reflection.Register(s.grpcServer)
}

func (s *Service) buildHTTPServer() {
	checks := healthcheck.NewHandler(version.GetVersion())
	checks.RegisterChecker("store", healthcheck.NewFuncChecker("store", s.deps.orders.Ping))
	if s.names != nil {
		checks.RegisterChecker("redis", healthcheck.Optional(healthcheck.NewFuncChecker("redis", s.names.Ping)))
	}

	s.httpServer = &http.Server{
		Handler:           healthcheck.Router(checks, promhttp.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// GRPCAddr возвращает фактический адрес gRPC listener.
func (s *Service) GRPCAddr() net.Addr { return s.grpcListener.Addr() }

// MetricsAddr возвращает фактический адрес ops HTTP listener.
func (s *Service) MetricsAddr() net.Addr { return s.httpListener.Addr() }

// Run запускает серверы и фоновые воркеры. Возвращает nil после штатной остановки по ctx.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", s.grpcListener.Addr().String()).Info("gRPC server listening")
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.logger.WithField("addr", s.httpListener.Addr().String()).Info("ops endpoints: /metrics /healthz /livez /readyz")
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	cleanup := idempotency.NewCleanupWorker(s.deps.idempotencyRepo,
		idempotency.WithLogger(s.logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(s.cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(s.cfg.IdempotencyCleanupBatchSize),
	)
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})

	if s.kafka != nil {
		worker := outbox.NewWorker(s.deps.outboxRepo, s.kafka.events,
			outbox.WithLogger(s.logger.WithField("component", "outbox-worker")),
			outbox.WithDeadLetters(s.kafka.deadLetters),
			outbox.WithPollInterval(s.cfg.OutboxPollInterval),
			outbox.WithBatchSize(s.cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(s.cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(s.cfg.OutboxRetryDelay),
		)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})

		if s.kafka.consumer != nil {
			if err := s.kafka.consumer.Start(gctx); err != nil {
				s.logger.WithError(err).Warn("failed to start payment events consumer")
			}
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

func (s *Service) shutdown() {
	s.logger.Info("shutting down")
	s.grpcHealth.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		s.logger.Warn("graceful stop timed out, forcing gRPC stop")
		s.grpcServer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithError(err).Warn("ops http shutdown with error")
	}
}

// Close освобождает внешние ресурсы. Безопасно вызывать повторно.
func (s *Service) Close() {
	if s == nil {
		return
	}
	closeKafka(s.kafka, s.logger)
	s.kafka = nil

	if s.names != nil {
		_ = s.names.Close()
		s.names = nil
	}
	if s.remote != nil {
		s.remote.Close()
		s.remote = nil
	}
	if s.deps != nil {
		if err := s.deps.close(); err != nil {
			s.logger.WithError(err).Warn("failed to close storage")
		}
		s.deps = nil
	}
	for _, lis := range []net.Listener{s.grpcListener, s.httpListener} {
		if lis != nil {
			_ = lis.Close()
		}
	}
}
