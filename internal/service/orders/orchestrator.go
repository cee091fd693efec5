// Package orders реализует жизненный цикл заказа: проверку товаров в каталоге,
// снимок цен, сохранение, создание платёжной сессии и приём подтверждения оплаты.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/orders/internal/cache"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

// DefaultCurrency: валюта платёжной сессии, если не задана иная.
const DefaultCurrency = "usd"

// Значения пагинации по умолчанию.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Имена операций для метрик и логов.
const (
	opCreate         = "create"
	opPaymentSession = "create_payment_session"
	opFindAll        = "find_all"
	opFindOne        = "find_one"
	opUpdateStatus   = "update_status"
	opPaidOrder      = "paid_order"
)

// ItemInput: позиция во входящем запросе на создание заказа.
type ItemInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput: запрос на создание заказа.
type CreateOrderInput struct {
	Items []ItemInput
}

// Placement: сохранённый заказ и созданная для него платёжная сессия.
type Placement struct {
	Order   domain.Order
	Session domain.PaymentSession
}

// Pagination задаёт страницу выборки. Нулевые Page и Limit заменяются значениями по умолчанию.
type Pagination struct {
	Page   int
	Limit  int
	Status *domain.OrderStatus
}

// PageMeta описывает положение страницы в общей выборке.
type PageMeta struct {
	Total    int
	Page     int
	LastPage int
}

// OrderPage: страница заказов с метаданными.
type OrderPage struct {
	Data []domain.Order
	Meta PageMeta
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithOutbox включает постановку доменных событий в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Orchestrator) { o.outbox = outbox }
}

// WithMetrics подключает метрики операций.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithNameCache подключает кеш названий товаров.
// При fallback=true FindOne берёт названия из кеша, если каталог их не вернул.
func WithNameCache(names cache.ProductNames, fallback bool) Option {
	return func(o *Orchestrator) {
		o.names = names
		o.fallback = fallback
	}
}

// WithCurrency задаёт валюту платёжных сессий.
func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		if currency != "" {
			o.currency = currency
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator координирует каталог, хранилище заказов и платёжный шлюз.
// Сбои не ретраятся и не компенсируются: повтор остаётся на стороне транспорта.
type Orchestrator struct {
	store    domain.OrderStore
	catalog  domain.ProductCatalog
	payments domain.PaymentGateway

	outbox   domain.OutboxRepository
	metrics  *metrics.OrderMetrics
	names    cache.ProductNames
	fallback bool
	currency string
	now      func() time.Time
	logger   *log.Entry

	lookups singleflight.Group
}

// NewOrchestrator собирает оркестратор заказов.
func NewOrchestrator(
	store domain.OrderStore,
	catalog domain.ProductCatalog,
	payments domain.PaymentGateway,
	logger *log.Entry,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	o := &Orchestrator{
		store:    store,
		catalog:  catalog,
		payments: payments,
		names:    cache.Noop{},
		currency: DefaultCurrency,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.names == nil {
		o.names = cache.Noop{}
	}
	return o
}

// PlaceOrder создаёт заказ и сразу открывает для него платёжную сессию.
// Если сессия не создалась, заказ остаётся сохранённым.
func (o *Orchestrator) PlaceOrder(ctx context.Context, in CreateOrderInput) (Placement, error) {
	order, err := o.Create(ctx, in)
	if err != nil {
		return Placement{}, err
	}
	session, err := o.CreatePaymentSession(ctx, order)
	if err != nil {
		return Placement{Order: order}, err
	}
	return Placement{Order: order, Session: session}, nil
}

// Create проверяет товары одним запросом к каталогу, фиксирует цены и атомарно сохраняет заказ.
func (o *Orchestrator) Create(ctx context.Context, in CreateOrderInput) (order domain.Order, err error) {
	defer o.observe(opCreate)(&err)

	if len(in.Items) == 0 {
		return domain.Order{}, domain.NewValidationError("Order must contain at least one item", domain.ErrItemsRequired)
	}
	ids := make([]int64, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return domain.Order{}, domain.NewValidationError(
				fmt.Sprintf("Quantity for product #%d must be greater than zero", item.ProductID),
				domain.ErrItemQtyInvalid,
			)
		}
		ids = append(ids, item.ProductID)
	}
	ids = domain.UniqueProductIDs(ids)

	products, err := o.validateProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, err
	}
	index := domain.ProductIndex(products)
	if missing := domain.MissingProducts(ids, index); len(missing) > 0 {
		return domain.Order{}, domain.ProductsNotFound(missing)
	}

	lines := make([]domain.NewOrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, domain.NewOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     index[item.ProductID].Price,
		})
	}

	order, err = o.store.CreateOrder(ctx, domain.BuildNewOrder(lines))
	if err != nil {
		o.logger.WithError(err).WithField("products", ids).Error("persist order failed")
		return domain.Order{}, domain.NewPersistenceError("Failed to create order", err)
	}

	names := make(map[int64]string, len(index))
	for id, p := range index {
		names[id] = p.Name
	}
	applyNames(&order, names)
	o.rememberNames(ctx, names)

	if o.metrics != nil {
		o.metrics.RecordOrderCreated()
	}
	o.emitEvent(ctx, domain.EventOrderCreated, order, "")
	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.StringFixed(2),
		"total_items":  order.TotalItems,
	}).Info("order created")

	return order, nil
}

// CreatePaymentSession запрашивает у провайдера платёжную сессию для заказа.
// Локальное состояние не меняется; ответ провайдера возвращается как есть.
func (o *Orchestrator) CreatePaymentSession(ctx context.Context, order domain.Order) (session domain.PaymentSession, err error) {
	defer o.observe(opPaymentSession)(&err)

	req := domain.PaymentSessionRequest{
		OrderID:  order.ID,
		Currency: o.currency,
		Items:    make([]domain.PaymentLineItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, domain.PaymentLineItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	started := time.Now()
	session, err = o.payments.CreateSession(ctx, req)
	if o.metrics != nil {
		o.metrics.RecordRemoteCall("payment", time.Since(started), err)
	}
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("create payment session failed")
		return domain.PaymentSession{}, domain.AsFailure(err)
	}
	return session, nil
}

// FindAll возвращает страницу заказов. Count и выборка выполняются разными запросами.
func (o *Orchestrator) FindAll(ctx context.Context, p Pagination) (page OrderPage, err error) {
	defer o.observe(opFindAll)(&err)

	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Page < 0 || p.Limit < 0 {
		return OrderPage{}, domain.NewValidationError("Page and limit must be positive", nil)
	}
	if p.Status != nil && !p.Status.Valid() {
		return OrderPage{}, domain.NewValidationError(
			fmt.Sprintf("Unknown order status %q", *p.Status), domain.ErrOrderStatusInvalid)
	}

	total, err := o.store.CountOrders(ctx, p.Status)
	if err != nil {
		return OrderPage{}, domain.NewPersistenceError("Failed to count orders", err)
	}
	data, err := o.store.ListOrders(ctx, domain.ListOrdersQuery{
		Status: p.Status,
		Offset: (p.Page - 1) * p.Limit,
		Limit:  p.Limit,
	})
	if err != nil {
		return OrderPage{}, domain.NewPersistenceError("Failed to list orders", err)
	}
	if data == nil {
		data = []domain.Order{}
	}

	return OrderPage{
		Data: data,
		Meta: PageMeta{
			Total:    total,
			Page:     p.Page,
			LastPage: lastPage(total, p.Limit),
		},
	}, nil
}

// FindOne возвращает заказ с позициями и актуальными названиями товаров.
func (o *Orchestrator) FindOne(ctx context.Context, id string) (order domain.Order, err error) {
	defer o.observe(opFindOne)(&err)
	return o.findOne(ctx, id)
}

func (o *Orchestrator) findOne(ctx context.Context, id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.NewValidationError("Order id is required", domain.ErrOrderIDRequired)
	}
	order, err := o.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, domain.OrderNotFound(id)
		}
		return domain.Order{}, domain.NewPersistenceError("Failed to load order", err)
	}

	names, err := o.lookupNames(ctx, order.ProductIDs())
	if err != nil {
		o.logger.WithError(err).WithField("order_id", id).Warn("enrich order items failed")
		return domain.Order{}, err
	}
	applyNames(&order, names)
	return order, nil
}

// UpdateStatus проверяет существование заказа и безусловно записывает новый статус.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (order domain.Order, err error) {
	defer o.observe(opUpdateStatus)(&err)

	if !status.Valid() {
		return domain.Order{}, domain.NewValidationError(
			fmt.Sprintf("Unknown order status %q", status), domain.ErrOrderStatusInvalid)
	}
	current, err := o.findOne(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanTransition(current.Status, status) {
		return domain.Order{}, domain.NewValidationError(
			fmt.Sprintf("Order #%s can't move from %s to %s", id, current.Status, status), domain.ErrOrderStatusInvalid)
	}

	order, err = o.store.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, domain.OrderNotFound(id)
		}
		return domain.Order{}, domain.NewPersistenceError("Failed to update order status", err)
	}

	o.emitEvent(ctx, domain.EventOrderStatusChanged, order, current.Status)
	o.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       status,
	}).Info("order status updated")
	return order, nil
}

// PaidOrder применяет подтверждение оплаты. Повторная доставка для уже оплаченного
// заказа ничего не меняет и считается успехом.
func (o *Orchestrator) PaidOrder(ctx context.Context, confirmation domain.PaymentConfirmation) (err error) {
	defer o.observe(opPaidOrder)(&err)

	if confirmation.OrderID == "" {
		return domain.NewValidationError("Order id is required", domain.ErrOrderIDRequired)
	}
	logger := o.logger.WithFields(log.Fields{
		"order_id":            confirmation.OrderID,
		"provider_payment_id": confirmation.ProviderPaymentID,
	})

	order, err := o.store.MarkPaid(ctx, domain.PaidUpdate{
		OrderID:          confirmation.OrderID,
		ProviderChargeID: confirmation.ProviderPaymentID,
		ReceiptURL:       confirmation.ReceiptURL,
		PaidAt:           o.now(),
	})
	switch {
	case errors.Is(err, domain.ErrOrderAlreadyPaid):
		logger.Info("order already paid, confirmation skipped")
		if o.metrics != nil {
			o.metrics.RecordPaymentDuplicate()
		}
		return nil
	case errors.Is(err, domain.ErrOrderNotFound):
		return domain.OrderNotFound(confirmation.OrderID)
	case err != nil:
		logger.WithError(err).Error("mark order paid failed")
		return domain.NewPersistenceError("Failed to mark order as paid", err)
	}

	if o.metrics != nil {
		o.metrics.RecordPaymentConfirmed()
	}
	o.emitEvent(ctx, domain.EventOrderPaid, order, "")
	logger.Info("order paid")
	return nil
}

func (o *Orchestrator) validateProducts(ctx context.Context, ids []int64) ([]domain.Product, error) {
	started := time.Now()
	products, err := o.catalog.Validate(ctx, ids)
	if o.metrics != nil {
		o.metrics.RecordRemoteCall("catalog", time.Since(started), err)
	}
	if err != nil {
		return nil, domain.AsFailure(err)
	}
	return products, nil
}

// observe учитывает длительность операции и вид отказа.
func (o *Orchestrator) observe(operation string) func(*error) {
	if o.metrics == nil {
		return func(*error) {}
	}
	done := o.metrics.StartOperation(operation)
	return func(errp *error) {
		done()
		if errp != nil && *errp != nil {
			o.metrics.RecordFailure(operation, string(domain.KindOf(*errp)))
		}
	}
}

func lastPage(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func applyNames(order *domain.Order, names map[int64]string) {
	for i := range order.Items {
		order.Items[i].Name = names[order.Items[i].ProductID]
	}
}
