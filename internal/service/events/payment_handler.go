// Package events связывает входящие Kafka-события с оркестратором заказов.
package events

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
)

// PaymentReconciler применяет подтверждение оплаты к заказу.
type PaymentReconciler interface {
	PaidOrder(ctx context.Context, confirmation domain.PaymentConfirmation) error
}

// NewPaymentSucceededHandler возвращает обработчик topic payment.succeeded.
// Некорректные события и неизвестные заказы уходят в DLQ без повторов,
// остальные ошибки повторяются consumer'ом.
func NewPaymentSucceededHandler(orders PaymentReconciler, logger *log.Entry) kafka.MessageHandler {
	if logger == nil {
		logger = log.New().WithField("component", "payment-events")
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := kafka.ParsePaymentSucceeded(message)
		if err != nil {
			logger.WithError(err).WithField("offset", message.Offset).Warn("invalid payment event")
			return err
		}

		entry := logger.WithFields(log.Fields{
			"order_id":            event.OrderID,
			"provider_payment_id": event.ProviderPaymentID,
		})
		err = orders.PaidOrder(ctx, domain.PaymentConfirmation{
			ProviderPaymentID: event.ProviderPaymentID,
			OrderID:           event.OrderID,
			ReceiptURL:        event.ReceiptURL,
		})
		switch {
		case err == nil:
			entry.Debug("payment event applied")
			return nil
		case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
			entry.WithError(err).Warn("payment event rejected")
			return kafka.Permanent(err)
		default:
			entry.WithError(err).Error("payment event failed")
			return err
		}
	}
}
