package orders

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// emitEvent ставит событие заказа в outbox после фиксации записи в хранилище,
// вне её транзакции. Доставка best-effort: ошибка только логируется, операция не падает.
func (o *Orchestrator) emitEvent(ctx context.Context, eventType string, order domain.Order, previous domain.OrderStatus) {
	if o.outbox == nil {
		return
	}

	payload := domain.OrderEventPayload{
		OrderID:          order.ID,
		Status:           string(order.Status),
		PreviousStatus:   string(previous),
		TotalAmount:      order.TotalAmount.StringFixed(2),
		TotalItems:       order.TotalItems,
		Paid:             order.Paid,
		ProviderChargeID: order.ProviderChargeID,
		OccurredAt:       o.now(),
	}
	if order.Receipt != nil {
		payload.ReceiptURL = order.Receipt.ReceiptURL
	}

	fields := log.Fields{"order_id": order.ID, "event": eventType}
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.OrderAggregate,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(ctx, msg); err != nil {
		o.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent(eventType)
	}
}
