package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockService: конфигурируемая заглушка PaymentGateway для локального запуска и тестов.
type MockService struct {
	mu sync.Mutex

	BaseURL    string
	SessionErr error

	SessionCalls int
	Requests     []domain.PaymentSessionRequest
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{BaseURL: "https://payments.local"}
}

// CreateSession возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) CreateSession(_ context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SessionCalls++
	m.Requests = append(m.Requests, req)
	if m.SessionErr != nil {
		return domain.PaymentSession{}, m.SessionErr
	}
	return domain.PaymentSession{
		URL:        fmt.Sprintf("%s/checkout/%s", m.BaseURL, req.OrderID),
		SuccessURL: fmt.Sprintf("%s/success", m.BaseURL),
		CancelURL:  fmt.Sprintf("%s/cancel", m.BaseURL),
	}, nil
}

// Calls возвращает число вызовов CreateSession.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SessionCalls
}

var _ domain.PaymentGateway = (*MockService)(nil)
