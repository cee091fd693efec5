package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	"github.com/vladislavdragonenkov/orders/internal/service/catalog"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/payment"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

type fixture struct {
	store    domain.OrderStore
	catalog  *catalog.MockService
	payments *payment.MockService
	outbox   *memory.OutboxRepository
	registry *prometheus.Registry
	orch     *orders.Orchestrator
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func newFixture(t *testing.T, opts ...orders.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewOrderStore(),
		catalog:  catalog.NewMockService(catalog.DemoProducts()...),
		payments: payment.NewMockService(),
		outbox:   memory.NewOutboxRepository(),
		registry: prometheus.NewRegistry(),
	}
	m := metrics.NewOrderMetricsWithRegisterer(f.registry)
	base := []orders.Option{orders.WithOutbox(f.outbox), orders.WithMetrics(m)}
	f.orch = orders.NewOrchestrator(f.store, f.catalog, f.payments, quietLogger(), append(base, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, items ...orders.ItemInput) domain.Order {
	t.Helper()
	order, err := f.orch.Create(context.Background(), orders.CreateOrderInput{Items: items})
	require.NoError(t, err)
	return order
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountOrders(context.Background(), nil)
	require.NoError(t, err)
	return n
}

func TestCreate_TotalsFromCatalogPrices(t *testing.T) {
	f := newFixture(t)

	order := f.create(t,
		orders.ItemInput{ProductID: 7, Quantity: 2},
		orders.ItemInput{ProductID: 9, Quantity: 1},
	)

	require.True(t, decimal.RequireFromString("45.00").Equal(order.TotalAmount), order.TotalAmount.String())
	require.Equal(t, 3, order.TotalItems)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.False(t, order.Paid)
	require.Nil(t, order.PaidAt)
	require.Empty(t, order.ProviderChargeID)
	require.Empty(t, order.ValidateInvariants())

	require.Len(t, order.Items, 2)
	require.Equal(t, "Notebook", order.Items[0].Name)
	require.Equal(t, "Desk lamp", order.Items[1].Name)
	require.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].Price))

	require.Equal(t, 1, f.catalog.Calls(), "catalog must be queried once per creation")
	require.Equal(t, float64(1), counterValue(t, f.registry, "orders_created_total", nil))
}

func TestCreate_BatchesDistinctIDs(t *testing.T) {
	f := newFixture(t)

	order := f.create(t,
		orders.ItemInput{ProductID: 7, Quantity: 1},
		orders.ItemInput{ProductID: 9, Quantity: 1},
		orders.ItemInput{ProductID: 7, Quantity: 3},
	)

	require.Equal(t, []int64{7, 9}, f.catalog.LastIDs)
	require.Len(t, order.Items, 3, "duplicate product ids stay separate lines")
	require.True(t, decimal.RequireFromString("65.00").Equal(order.TotalAmount))
	require.Equal(t, 5, order.TotalItems)
}

func TestCreate_IgnoresClientPrices(t *testing.T) {
	f := newFixture(t)
	f.catalog.Put(domain.Product{ID: 7, Name: "Notebook", Price: decimal.RequireFromString("12.34")})

	order := f.create(t, orders.ItemInput{ProductID: 7, Quantity: 2})

	require.True(t, decimal.RequireFromString("24.68").Equal(order.TotalAmount))
}

func TestCreate_UnknownProductPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Create(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{
		{ProductID: 7, Quantity: 1},
		{ProductID: 404, Quantity: 1},
	}})

	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, domain.ErrProductsNotFound)
	require.Contains(t, domain.AsFailure(err).Message, "404")
	require.Equal(t, 0, f.count(t))
	require.Equal(t, 0, f.payments.Calls())
	require.Empty(t, f.outbox.AllPending())
	require.Equal(t, float64(1), counterValue(t, f.registry, "orders_operation_failures_total",
		map[string]string{"operation": "create", "kind": "validation"}))
}

func TestCreate_RejectsEmptyAndNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Create(context.Background(), orders.CreateOrderInput{})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, domain.ErrItemsRequired)

	_, err = f.orch.Create(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{{ProductID: 7, Quantity: 0}}})
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)

	require.Equal(t, 0, f.catalog.Calls())
	require.Equal(t, 0, f.count(t))
}

func TestCreate_CatalogFailureIsRemoteDependency(t *testing.T) {
	f := newFixture(t)
	f.catalog.ValidateErr = errors.New("connection refused")

	_, err := f.orch.Create(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{{ProductID: 7, Quantity: 1}}})

	require.ErrorIs(t, err, domain.ErrRemoteDependency)
	require.Equal(t, 1, f.catalog.Calls(), "no retries inside the orchestrator")
	require.Equal(t, 0, f.count(t))
}

type failingStore struct {
	domain.OrderStore
	createErr error
	listErr   error
}

func (s *failingStore) CreateOrder(ctx context.Context, order domain.NewOrder) (domain.Order, error) {
	if s.createErr != nil {
		return domain.Order{}, s.createErr
	}
	return s.OrderStore.CreateOrder(ctx, order)
}

func (s *failingStore) ListOrders(ctx context.Context, query domain.ListOrdersQuery) ([]domain.Order, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.OrderStore.ListOrders(ctx, query)
}

func TestCreate_StoreFailureIsPersistence(t *testing.T) {
	store := &failingStore{OrderStore: memory.NewOrderStore(), createErr: errors.New("disk full")}
	cat := catalog.NewMockService(catalog.DemoProducts()...)
	orch := orders.NewOrchestrator(store, cat, payment.NewMockService(), quietLogger())

	_, err := orch.Create(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{{ProductID: 7, Quantity: 1}}})

	require.ErrorIs(t, err, domain.ErrPersistence)
	require.Equal(t, 500, domain.AsFailure(err).Status)
	require.Equal(t, 1, cat.Calls())
}

func TestCreate_EnqueuesOrderCreated(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 1, Quantity: 1})

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	require.Equal(t, order.ID, pending[0].AggregateID)

	var payload domain.OrderEventPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	require.Equal(t, "89.90", payload.TotalAmount)
	require.Equal(t, "PENDING", payload.Status)
}

type failingOutbox struct {
	domain.OutboxRepository
}

func (failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox unavailable")
}

func TestEventsAreBestEffortAfterCommit(t *testing.T) {
	f := newFixture(t, orders.WithOutbox(failingOutbox{}))

	order := f.create(t, orders.ItemInput{ProductID: 1, Quantity: 1})
	require.Equal(t, 1, f.count(t))

	require.NoError(t, f.orch.PaidOrder(context.Background(), domain.PaymentConfirmation{
		OrderID:           order.ID,
		ProviderPaymentID: "ch_1",
	}))
	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, stored.Paid)
	require.Empty(t, f.outbox.AllPending())
}

func TestPlaceOrder_CreatesPaymentSession(t *testing.T) {
	f := newFixture(t, orders.WithCurrency("eur"))

	placement, err := f.orch.PlaceOrder(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{
		{ProductID: 7, Quantity: 2},
		{ProductID: 9, Quantity: 1},
	}})
	require.NoError(t, err)

	require.Equal(t, fmt.Sprintf("https://payments.local/checkout/%s", placement.Order.ID), placement.Session.URL)
	require.Equal(t, 1, f.payments.Calls())

	req := f.payments.Requests[0]
	require.Equal(t, placement.Order.ID, req.OrderID)
	require.Equal(t, "eur", req.Currency)
	require.Len(t, req.Items, 2)
	require.Equal(t, "Notebook", req.Items[0].Name)
	require.Equal(t, 2, req.Items[0].Quantity)
	require.True(t, decimal.RequireFromString("10.00").Equal(req.Items[0].Price))
}

func TestPlaceOrder_PaymentFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.payments.SessionErr = errors.New("provider timeout")

	placement, err := f.orch.PlaceOrder(context.Background(), orders.CreateOrderInput{Items: []orders.ItemInput{{ProductID: 7, Quantity: 1}}})

	require.ErrorIs(t, err, domain.ErrRemoteDependency)
	require.NotEmpty(t, placement.Order.ID)
	require.Equal(t, 1, f.count(t))
	require.Equal(t, 1, f.payments.Calls())
}

func TestCreatePaymentSession_DefaultCurrency(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 2, Quantity: 1})

	_, err := f.orch.CreatePaymentSession(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, orders.DefaultCurrency, f.payments.Requests[0].Currency)
}

func TestFindAll_Pagination(t *testing.T) {
	f := newFixture(t)
	var created []domain.Order
	for i := 0; i < 25; i++ {
		created = append(created, f.create(t, orders.ItemInput{ProductID: 1, Quantity: i + 1}))
	}

	page, err := f.orch.FindAll(context.Background(), orders.Pagination{Page: 2, Limit: 10})
	require.NoError(t, err)

	require.Equal(t, orders.PageMeta{Total: 25, Page: 2, LastPage: 3}, page.Meta)
	require.Len(t, page.Data, 10)
	for i, order := range page.Data {
		require.Equal(t, created[10+i].ID, order.ID)
	}
}

func TestFindAll_DefaultsAndStatusFilter(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.create(t, orders.ItemInput{ProductID: 1, Quantity: 1})
	}
	target := f.create(t, orders.ItemInput{ProductID: 2, Quantity: 1})
	_, err := f.orch.UpdateStatus(context.Background(), target.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)

	page, err := f.orch.FindAll(context.Background(), orders.Pagination{})
	require.NoError(t, err)
	require.Equal(t, orders.PageMeta{Total: 13, Page: 1, LastPage: 2}, page.Meta)
	require.Len(t, page.Data, orders.DefaultLimit)

	delivered := domain.OrderStatusDelivered
	page, err = f.orch.FindAll(context.Background(), orders.Pagination{Status: &delivered})
	require.NoError(t, err)
	require.Equal(t, 1, page.Meta.Total)
	require.Equal(t, target.ID, page.Data[0].ID)

	cancelled := domain.OrderStatusCancelled
	page, err = f.orch.FindAll(context.Background(), orders.Pagination{Status: &cancelled})
	require.NoError(t, err)
	require.Equal(t, orders.PageMeta{Total: 0, Page: 1, LastPage: 0}, page.Meta)
	require.NotNil(t, page.Data)
	require.Empty(t, page.Data)
}

func TestFindAll_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.FindAll(context.Background(), orders.Pagination{Page: -1})
	require.ErrorIs(t, err, domain.ErrValidation)

	unknown := domain.OrderStatus("SHIPPED")
	_, err = f.orch.FindAll(context.Background(), orders.Pagination{Status: &unknown})
	require.ErrorIs(t, err, domain.ErrOrderStatusInvalid)
}

func TestFindAll_StoreFailure(t *testing.T) {
	store := &failingStore{OrderStore: memory.NewOrderStore(), listErr: errors.New("timeout")}
	orch := orders.NewOrchestrator(store, catalog.NewMockService(), payment.NewMockService(), quietLogger())

	_, err := orch.FindAll(context.Background(), orders.Pagination{})
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestFindOne_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.FindOne(context.Background(), "missing")

	require.ErrorIs(t, err, domain.ErrNotFound)
	failure := domain.AsFailure(err)
	require.Equal(t, 404, failure.Status)
	require.Equal(t, "Order with id #missing doesn't exist", failure.Message)
	require.Equal(t, 0, f.catalog.Calls())
}

func TestFindOne_EnrichesWithCurrentNames(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 7, Quantity: 1})

	f.catalog.Put(domain.Product{ID: 7, Name: "Notebook A5", Price: decimal.RequireFromString("99.00")})

	found, err := f.orch.FindOne(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "Notebook A5", found.Items[0].Name)
	require.True(t, decimal.RequireFromString("10.00").Equal(found.Items[0].Price), "price stays a snapshot")
	require.True(t, decimal.RequireFromString("10.00").Equal(found.TotalAmount))
}

func TestFindOne_RemovedProductFailsWithoutFallback(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 7, Quantity: 1})
	f.catalog.Remove(7)

	_, err := f.orch.FindOne(context.Background(), order.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorIs(t, err, domain.ErrProductsNotFound)
}

func TestUpdateStatus_Permissive(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 1, Quantity: 1})
	ctx := context.Background()

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusCancelled,
		domain.OrderStatusDelivered,
		domain.OrderStatusPending,
		domain.OrderStatusPending,
		domain.OrderStatusCancelled,
	} {
		updated, err := f.orch.UpdateStatus(ctx, order.ID, status)
		require.NoError(t, err)
		require.Equal(t, status, updated.Status)

		found, err := f.orch.FindOne(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, status, found.Status)
	}

	var changes int
	for _, msg := range f.outbox.AllPending() {
		if msg.EventType == domain.EventOrderStatusChanged {
			changes++
		}
	}
	require.Equal(t, 5, changes)
}

func TestUpdateStatus_Failures(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, orders.ItemInput{ProductID: 1, Quantity: 1})

	_, err := f.orch.UpdateStatus(context.Background(), "missing", domain.OrderStatusDelivered)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orch.UpdateStatus(context.Background(), order.ID, domain.OrderStatus("SHIPPED"))
	require.ErrorIs(t, err, domain.ErrValidation)

	found, err := f.orch.FindOne(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, found.Status)
}

func TestPaidOrder_Idempotent(t *testing.T) {
	paidAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, orders.WithClock(func() time.Time { return paidAt }))
	order := f.create(t, orders.ItemInput{ProductID: 7, Quantity: 1})
	_, err := f.orch.UpdateStatus(context.Background(), order.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)

	confirmation := domain.PaymentConfirmation{
		ProviderPaymentID: "ch_123",
		OrderID:           order.ID,
		ReceiptURL:        "https://pay.example/receipt/1",
	}
	require.NoError(t, f.orch.PaidOrder(context.Background(), confirmation))

	second := confirmation
	second.ProviderPaymentID = "ch_456"
	second.ReceiptURL = "https://pay.example/receipt/2"
	require.NoError(t, f.orch.PaidOrder(context.Background(), second))

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, stored.Paid)
	require.NotNil(t, stored.PaidAt)
	require.True(t, paidAt.Equal(*stored.PaidAt))
	require.Equal(t, "ch_123", stored.ProviderChargeID)
	require.Equal(t, domain.OrderStatusPending, stored.Status)
	require.NotNil(t, stored.Receipt)
	require.Equal(t, "https://pay.example/receipt/1", stored.Receipt.ReceiptURL)

	var paidEvents int
	for _, msg := range f.outbox.AllPending() {
		if msg.EventType == domain.EventOrderPaid {
			paidEvents++
		}
	}
	require.Equal(t, 1, paidEvents)
}

func TestPaidOrder_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.orch.PaidOrder(context.Background(), domain.PaymentConfirmation{OrderID: "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = f.orch.PaidOrder(context.Background(), domain.PaymentConfirmation{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if want != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
