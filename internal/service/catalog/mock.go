package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockService: конфигурируемая заглушка каталога для локального запуска и тестов.
type MockService struct {
	mu       sync.Mutex
	products map[int64]domain.Product

	ValidateErr   error
	ValidateCalls int
	LastIDs       []int64
}

// NewMockService возвращает каталог с переданными товарами.
func NewMockService(products ...domain.Product) *MockService {
	m := &MockService{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// DemoProducts: набор товаров для запуска без внешнего каталога.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Mechanical keyboard", Price: decimal.RequireFromString("89.90")},
		{ID: 2, Name: "Wireless mouse", Price: decimal.RequireFromString("24.50")},
		{ID: 3, Name: "USB-C hub", Price: decimal.RequireFromString("39.00")},
		{ID: 7, Name: "Notebook", Price: decimal.RequireFromString("10.00")},
		{ID: 9, Name: "Desk lamp", Price: decimal.RequireFromString("25.00")},
	}
}

// Put добавляет или заменяет товар.
func (m *MockService) Put(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// Remove убирает товар из каталога.
func (m *MockService) Remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

// Validate возвращает известные товары и считает вызовы.
func (m *MockService) Validate(_ context.Context, ids []int64) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ValidateCalls++
	m.LastIDs = append([]int64(nil), ids...)
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// Calls возвращает число вызовов Validate.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ValidateCalls
}

var _ domain.ProductCatalog = (*MockService)(nil)
