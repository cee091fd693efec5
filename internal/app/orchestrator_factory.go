package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/cache"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

// createOrchestrator собирает оркестратор. outbox == nil отключает доменные события.
func createOrchestrator(
	cfg Config,
	deps *runtimeDependencies,
	remote *remoteServices,
	names cache.ProductNames,
	outbox domain.OutboxRepository,
	orderMetrics *metrics.OrderMetrics,
	logger *log.Entry,
) *orders.Orchestrator {
	opts := []orders.Option{
		orders.WithCurrency(cfg.PaymentCurrency),
		orders.WithNameCache(names, cfg.EnrichmentFallback),
	}
	if outbox != nil {
		opts = append(opts, orders.WithOutbox(outbox))
	}
	if orderMetrics != nil {
		opts = append(opts, orders.WithMetrics(orderMetrics))
	}

	return orders.NewOrchestrator(
		deps.orders,
		remote.catalog,
		remote.payments,
		logger,
		opts...,
	)
}
