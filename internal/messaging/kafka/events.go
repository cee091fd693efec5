package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
)

// Topics для Kafka
const (
	TopicPaymentSucceeded = "payment.succeeded"
	TopicOrderEvents      = "orders.events"
	TopicDeadLetterQueue  = "orders.dlq" // Dead Letter Queue для failed messages
)

// DefaultGroupID: consumer group сервиса заказов.
const DefaultGroupID = "orders-service"

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// ErrPermanent помечает ошибку, которую бессмысленно повторять: сообщение сразу уходит в DLQ.
var ErrPermanent = errors.New("permanent message failure")

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent оборачивает ошибку обработки как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// PaymentSucceededEvent: подтверждение оплаты от платёжного сервиса.
type PaymentSucceededEvent struct {
	ProviderPaymentID string `json:"provider_payment_id"`
	OrderID           string `json:"order_id"`
	ReceiptURL        string `json:"receipt_url"`
}

// Validate проверяет обязательные поля события.
func (e PaymentSucceededEvent) Validate() error {
	var missing []string
	if strings.TrimSpace(e.ProviderPaymentID) == "" {
		missing = append(missing, "provider_payment_id")
	}
	if strings.TrimSpace(e.OrderID) == "" {
		missing = append(missing, "order_id")
	}
	if strings.TrimSpace(e.ReceiptURL) == "" {
		missing = append(missing, "receipt_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("payment event is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParsePaymentSucceeded разбирает событие оплаты. Ошибки разбора постоянные.
func ParsePaymentSucceeded(message *sarama.ConsumerMessage) (PaymentSucceededEvent, error) {
	var event PaymentSucceededEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return PaymentSucceededEvent{}, Permanent(fmt.Errorf("failed to unmarshal payment event: %w", err))
	}
	if err := event.Validate(); err != nil {
		return PaymentSucceededEvent{}, Permanent(err)
	}
	return event, nil
}

// DLQMessage: содержимое сообщения в Dead Letter Queue.
type DLQMessage struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}
