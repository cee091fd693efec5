package domain

import "time"

// Типы доменных событий, публикуемых через outbox.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderPaid          = "OrderPaid"
)

// OrderAggregate: значение AggregateType для событий заказа.
const OrderAggregate = "order"

// OrderEventPayload: тело события заказа в outbox.
type OrderEventPayload struct {
	OrderID          string    `json:"order_id"`
	Status           string    `json:"status"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	TotalAmount      string    `json:"total_amount,omitempty"`
	TotalItems       int       `json:"total_items,omitempty"`
	Paid             bool      `json:"paid"`
	ProviderChargeID string    `json:"provider_charge_id,omitempty"`
	ReceiptURL       string    `json:"receipt_url,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
