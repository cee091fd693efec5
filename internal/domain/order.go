package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан и ожидает доставки (в том числе после оплаты).
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusDelivered: заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderStatusTransitions перечисляет разрешённые переходы статусов.
// Таблица намеренно разрешает любой переход между известными статусами.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusCancelled: {OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled},
}

// OrderStatuses возвращает все поддерживаемые статусы в стабильном порядке.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled}
}

// Valid проверяет, что статус входит в закрытый набор значений.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrOrderStatusInvalid
	}
	return status, nil
}

// CanTransition сообщает, можно ли перевести заказ из from в to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem представляет позицию заказа со снимком цены на момент создания.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID int64
	// Name заполняется при чтении из каталога и не хранится в БД.
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal возвращает price × quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderReceipt хранит ссылку на чек провайдера. Не более одного на заказ.
type OrderReceipt struct {
	ID         string
	OrderID    string
	ReceiptURL string
	CreatedAt  time.Time
}

// Order агрегирует состояние заказа, его позиции и чек.
type Order struct {
	ID               string
	TotalAmount      decimal.Decimal
	TotalItems       int
	Status           OrderStatus
	Paid             bool
	PaidAt           *time.Time
	ProviderChargeID string
	Items            []OrderItem
	Receipt          *OrderReceipt
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProductIDs возвращает уникальные идентификаторы товаров в порядке первого появления.
func (o *Order) ProductIDs() []int64 {
	return uniqueProductIDs(len(o.Items), func(i int) int64 { return o.Items[i].ProductID })
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	total := decimal.Zero
	qty := 0
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		total = total.Add(item.Subtotal())
		qty += item.Quantity
	}
	if !total.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}
	if qty != o.TotalItems {
		errs = append(errs, ErrItemsCountMismatch)
	}
	if o.Paid != (o.PaidAt != nil) {
		errs = append(errs, ErrPaidStateInconsistent)
	}

	return errs
}

// NewOrderItem: позиция, которую нужно сохранить при создании заказа.
type NewOrderItem struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// NewOrder описывает заказ до сохранения: суммы уже посчитаны.
type NewOrder struct {
	TotalAmount decimal.Decimal
	TotalItems  int
	Items       []NewOrderItem
}

// BuildNewOrder считает итоговую сумму и количество по позициям.
func BuildNewOrder(items []NewOrderItem) NewOrder {
	total := decimal.Zero
	qty := 0
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		qty += item.Quantity
	}
	return NewOrder{
		TotalAmount: total,
		TotalItems:  qty,
		Items:       append([]NewOrderItem(nil), items...),
	}
}

// PaidUpdate: данные подтверждённой оплаты для сохранения.
type PaidUpdate struct {
	OrderID          string
	ProviderChargeID string
	ReceiptURL       string
	PaidAt           time.Time
}

// ListOrdersQuery задаёт окно выборки заказов.
type ListOrdersQuery struct {
	Status *OrderStatus
	Offset int
	Limit  int
}

func uniqueProductIDs(n int, at func(int) int64) []int64 {
	seen := make(map[int64]struct{}, n)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id := at(i)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
