package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над заказами.
type OrderMetrics struct {
	ordersCreated     prometheus.Counter
	paymentsConfirmed prometheus.Counter
	paymentDuplicates prometheus.Counter

	operationFailures *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	remoteCalls       *prometheus.HistogramVec
	outboxEvents      *prometheus.CounterVec

	inFlight prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders persisted",
		})),
		paymentsConfirmed: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_payments_confirmed_total",
			Help: "Total number of payment confirmations applied to orders",
		})),
		paymentDuplicates: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_payment_duplicates_total",
			Help: "Total number of payment confirmations skipped because the order was already paid",
		})),
		operationFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_operation_failures_total",
			Help: "Failed order operations by operation and failure kind",
		}, []string{"operation", "kind"})),
		operationDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})),
		remoteCalls: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_remote_call_duration_seconds",
			Help:    "Duration of calls to remote dependencies in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"dependency", "outcome"})),
		outboxEvents: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_outbox_events_total",
			Help: "Total number of domain events enqueued into the outbox",
		}, []string{"event_type"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_operations_in_flight",
			Help: "Number of order operations currently executing",
		})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordPaymentConfirmed увеличивает счётчик применённых оплат.
func (m *OrderMetrics) RecordPaymentConfirmed() {
	m.paymentsConfirmed.Inc()
}

// RecordPaymentDuplicate увеличивает счётчик повторных подтверждений оплаты.
func (m *OrderMetrics) RecordPaymentDuplicate() {
	m.paymentDuplicates.Inc()
}

// RecordFailure учитывает неуспешную операцию.
func (m *OrderMetrics) RecordFailure(operation, kind string) {
	m.operationFailures.WithLabelValues(operation, kind).Inc()
}

// StartOperation увеличивает gauge активных операций и возвращает функцию завершения.
func (m *OrderMetrics) StartOperation(operation string) func() {
	started := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}
}

// RecordRemoteCall записывает длительность обращения к внешней зависимости.
func (m *OrderMetrics) RecordRemoteCall(dependency string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteCalls.WithLabelValues(dependency, outcome).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent(eventType string) {
	m.outboxEvents.WithLabelValues(eventType).Inc()
}
