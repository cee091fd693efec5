package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderStoreInMemory: in-memory реализация OrderStore для локальной разработки и тестов.
type orderStoreInMemory struct {
	mu       sync.RWMutex
	items    map[string]domain.Order
	sequence []string
	now      func() time.Time
}

// NewOrderStore возвращает in-memory хранилище заказов.
func NewOrderStore() domain.OrderStore {
	return &orderStoreInMemory{
		items: make(map[string]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder сохраняет заказ вместе с позициями под одной блокировкой.
func (s *orderStoreInMemory) CreateOrder(_ context.Context, input domain.NewOrder) (domain.Order, error) {
	if len(input.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	now := s.now()
	order := domain.Order{
		ID:          uuid.NewString(),
		TotalAmount: input.TotalAmount,
		TotalItems:  input.TotalItems,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       make([]domain.OrderItem, 0, len(input.Items)),
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[order.ID] = order
	s.sequence = append(s.sequence, order.ID)
	return cloneOrder(order), nil
}

// CountOrders считает заказы, опционально фильтруя по статусу.
func (s *orderStoreInMemory) CountOrders(_ context.Context, status *domain.OrderStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == nil {
		return len(s.items), nil
	}
	count := 0
	for _, order := range s.items {
		if order.Status == *status {
			count++
		}
	}
	return count, nil
}

// ListOrders возвращает окно заказов в порядке создания.
func (s *orderStoreInMemory) ListOrders(_ context.Context, query domain.ListOrdersQuery) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, query.Limit)
	skipped := 0
	for _, id := range s.sequence {
		order := s.items[id]
		if query.Status != nil && order.Status != *query.Status {
			continue
		}
		if skipped < query.Offset {
			skipped++
			continue
		}
		if query.Limit > 0 && len(result) >= query.Limit {
			break
		}
		result = append(result, cloneOrder(order))
	}
	return result, nil
}

// GetOrder возвращает заказ или ErrOrderNotFound, если его нет.
func (s *orderStoreInMemory) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// UpdateOrderStatus перезаписывает статус заказа.
func (s *orderStoreInMemory) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = s.now()
	s.items[id] = order
	return cloneOrder(order), nil
}

// MarkPaid отмечает оплату и создаёт чек, если заказ ещё не оплачен.
func (s *orderStoreInMemory) MarkPaid(_ context.Context, update domain.PaidUpdate) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.items[update.OrderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if order.Paid {
		return cloneOrder(order), domain.ErrOrderAlreadyPaid
	}

	paidAt := update.PaidAt
	order.Paid = true
	order.PaidAt = &paidAt
	order.ProviderChargeID = update.ProviderChargeID
	order.Status = domain.OrderStatusPending
	order.UpdatedAt = s.now()
	order.Receipt = &domain.OrderReceipt{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		ReceiptURL: update.ReceiptURL,
		CreatedAt:  order.UpdatedAt,
	}
	s.items[order.ID] = order
	return cloneOrder(order), nil
}

// Ping всегда успешен для in-memory хранилища.
func (s *orderStoreInMemory) Ping(context.Context) error {
	return nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	if src.PaidAt != nil {
		paidAt := *src.PaidAt
		dst.PaidAt = &paidAt
	}
	if src.Receipt != nil {
		receipt := *src.Receipt
		dst.Receipt = &receipt
	}
	return dst
}

var _ domain.OrderStore = (*orderStoreInMemory)(nil)
