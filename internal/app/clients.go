package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/orders/internal/cache"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/catalog"
	"github.com/vladislavdragonenkov/orders/internal/service/payment"
)

// remoteServices: клиенты внешних сервисов и открытые соединения.
type remoteServices struct {
	catalog  domain.ProductCatalog
	payments domain.PaymentGateway
	conns    []*grpc.ClientConn
}

func (r *remoteServices) Close() {
	for _, conn := range r.conns {
		_ = conn.Close()
	}
}

func dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func initRemoteServices(cfg Config, logger *log.Entry) (*remoteServices, error) {
	remote := &remoteServices{}

	if cfg.CatalogAddr == "" {
		logger.Warn("catalog address is not set, using demo catalog")
		remote.catalog = catalog.NewMockService(catalog.DemoProducts()...)
	} else {
		conn, err := dial(cfg.CatalogAddr)
		if err != nil {
			return nil, err
		}
		remote.conns = append(remote.conns, conn)
		remote.catalog = catalog.NewClient(conn, cfg.CatalogTimeout, logger.WithField("dependency", "catalog"))
	}

	if cfg.PaymentAddr == "" {
		logger.Warn("payment address is not set, using mock payment provider")
		remote.payments = payment.NewMockService()
	} else {
		conn, err := dial(cfg.PaymentAddr)
		if err != nil {
			remote.Close()
			return nil, err
		}
		remote.conns = append(remote.conns, conn)
		remote.payments = payment.NewClient(conn, cfg.PaymentTimeout, logger.WithField("dependency", "payment"))
	}
	return remote, nil
}

// initNameCache подключает Redis; без адреса кеш выключен и возвращается nil.
func initNameCache(ctx context.Context, cfg Config, logger *log.Entry) *cache.RedisCache {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unreachable, product name cache will retry lazily")
	}
	return cache.NewRedisCache(client)
}
