package domain

import "context"

// OrderStore описывает требования к хранилищу заказов.
type OrderStore interface {
	// CreateOrder атомарно сохраняет заказ и позиции со статусом PENDING.
	CreateOrder(ctx context.Context, order NewOrder) (Order, error)
	// CountOrders считает заказы с опциональным фильтром по статусу.
	CountOrders(ctx context.Context, status *OrderStatus) (int, error)
	// ListOrders возвращает окно заказов, упорядоченных по created_at, id.
	ListOrders(ctx context.Context, query ListOrdersQuery) ([]Order, error)
	// GetOrder возвращает заказ с позициями или ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (Order, error)
	// UpdateOrderStatus меняет статус или возвращает ErrOrderNotFound.
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
	// MarkPaid в одной транзакции отмечает оплату и создаёт чек.
	// Возвращает ErrOrderAlreadyPaid, если заказ уже оплачен.
	MarkPaid(ctx context.Context, update PaidUpdate) (Order, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}
