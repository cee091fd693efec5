package grpcsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orders/internal/api/ordersv1"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

// Orders: операции оркестратора, доступные через gRPC.
type Orders interface {
	PlaceOrder(ctx context.Context, in orders.CreateOrderInput) (orders.Placement, error)
	FindAll(ctx context.Context, p orders.Pagination) (orders.OrderPage, error)
	FindOne(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	PaidOrder(ctx context.Context, confirmation domain.PaymentConfirmation) error
}

// OrderService реализует ordersv1.OrderServiceServer поверх оркестратора заказов.
type OrderService struct {
	orders   Orders
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

// NewOrderService конструирует сервис с зависимостями. idemRepo может быть nil.
func NewOrderService(orchestrator Orders, idemRepo domain.IdempotencyRepository, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{
		orders:   orchestrator,
		idemRepo: idemRepo,
		logger:   logger,
	}
}

// CreateOrder создаёт заказ и возвращает платёжную сессию.
// Запросы с метаданными idempotency-key обрабатываются не более одного раза.
func (s *OrderService) CreateOrder(ctx context.Context, req *ordersv1.CreateOrderRequest) (*ordersv1.CreateOrderResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "order must contain at least one item")
	}
	for idx, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].quantity must be > 0", idx)
		}
		if item.ProductID <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].productId must be > 0", idx)
		}
	}

	return withIdempotency(s, ctx, ordersv1.CreateOrderFullMethod, req, func(ctx context.Context) (*ordersv1.CreateOrderResponse, error) {
		return s.createOrder(ctx, req)
	})
}

func (s *OrderService) createOrder(ctx context.Context, req *ordersv1.CreateOrderRequest) (*ordersv1.CreateOrderResponse, error) {
	input := orders.CreateOrderInput{Items: make([]orders.ItemInput, 0, len(req.Items))}
	for _, item := range req.Items {
		input.Items = append(input.Items, orders.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	placement, err := s.orders.PlaceOrder(ctx, input)
	if err != nil {
		return nil, s.toStatus(err, "CreateOrder")
	}
	return &ordersv1.CreateOrderResponse{
		Order: toAPIOrder(placement.Order),
		PaymentSession: ordersv1.PaymentSession{
			URL:        placement.Session.URL,
			SuccessURL: placement.Session.SuccessURL,
			CancelURL:  placement.Session.CancelURL,
		},
	}, nil
}

// FindAllOrders возвращает страницу заказов.
func (s *OrderService) FindAllOrders(ctx context.Context, req *ordersv1.FindAllOrdersRequest) (*ordersv1.FindAllOrdersResponse, error) {
	if req == nil {
		req = &ordersv1.FindAllOrdersRequest{}
	}
	pagination := orders.Pagination{Page: req.Page, Limit: req.Limit}
	if strings.TrimSpace(req.Status) != "" {
		st, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "status must be one of %v", domain.OrderStatuses())
		}
		pagination.Status = &st
	}

	page, err := s.orders.FindAll(ctx, pagination)
	if err != nil {
		return nil, s.toStatus(err, "FindAllOrders")
	}

	resp := &ordersv1.FindAllOrdersResponse{
		Data: make([]ordersv1.Order, 0, len(page.Data)),
		Meta: ordersv1.PageMeta{
			Total:    page.Meta.Total,
			Page:     page.Meta.Page,
			LastPage: page.Meta.LastPage,
		},
	}
	for _, order := range page.Data {
		resp.Data = append(resp.Data, toAPIOrder(order))
	}
	return resp, nil
}

// FindOneOrder возвращает заказ с названиями товаров.
func (s *OrderService) FindOneOrder(ctx context.Context, req *ordersv1.FindOneOrderRequest) (*ordersv1.Order, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	order, err := s.orders.FindOne(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err, "FindOneOrder")
	}
	resp := toAPIOrder(order)
	return &resp, nil
}

// ChangeOrderStatus меняет статус заказа.
func (s *OrderService) ChangeOrderStatus(ctx context.Context, req *ordersv1.ChangeOrderStatusRequest) (*ordersv1.Order, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	st, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "status must be one of %v", domain.OrderStatuses())
	}

	order, err := s.orders.UpdateStatus(ctx, req.ID, st)
	if err != nil {
		return nil, s.toStatus(err, "ChangeOrderStatus")
	}
	resp := toAPIOrder(order)
	return &resp, nil
}

// PaymentSucceeded принимает подтверждение оплаты без полезного ответа.
func (s *OrderService) PaymentSucceeded(ctx context.Context, req *ordersv1.PaymentSucceededRequest) (*ordersv1.Empty, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}
	err := s.orders.PaidOrder(ctx, domain.PaymentConfirmation{
		ProviderPaymentID: req.ProviderPaymentID,
		OrderID:           req.OrderID,
		ReceiptURL:        req.ReceiptURL,
	})
	if err != nil {
		return nil, s.toStatus(err, "PaymentSucceeded")
	}
	return &ordersv1.Empty{}, nil
}

// toStatus переводит доменный отказ в gRPC-статус.
func (s *OrderService) toStatus(err error, operation string) error {
	failure := domain.AsFailure(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"kind":      failure.Kind,
	})

	var code codes.Code
	switch {
	case errors.Is(failure, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(failure, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(failure, domain.ErrPersistence):
		code = codes.Internal
		entry.Error("operation failed")
	default:
		code = codes.Unavailable
		entry.Warn("operation failed")
	}
	return status.Error(code, failure.Message)
}

func toAPIOrder(order domain.Order) ordersv1.Order {
	out := ordersv1.Order{
		ID:               order.ID,
		TotalAmount:      order.TotalAmount.StringFixed(2),
		TotalItems:       order.TotalItems,
		Status:           string(order.Status),
		Paid:             order.Paid,
		ProviderChargeID: order.ProviderChargeID,
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
		Items:            make([]ordersv1.OrderItem, 0, len(order.Items)),
	}
	if order.PaidAt != nil {
		out.PaidAt = formatTime(*order.PaidAt)
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, ordersv1.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		})
	}
	if order.Receipt != nil {
		out.Receipt = &ordersv1.OrderReceipt{
			ID:         order.Receipt.ID,
			ReceiptURL: order.Receipt.ReceiptURL,
			CreatedAt:  formatTime(order.Receipt.CreatedAt),
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var _ ordersv1.OrderServiceServer = (*OrderService)(nil)
var _ Orders = (*orders.Orchestrator)(nil)
