package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/events"
)

// kafkaRuntime объединяет producer, паблишеры outbox и consumer платёжных событий.
type kafkaRuntime struct {
	producer    *kafka.Producer
	events      domain.OutboxPublisher
	deadLetters domain.OutboxPublisher
	consumer    *kafka.Consumer
}

// initKafkaProducer возвращает nil без ошибки, если брокеры не заданы.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafkaRuntime, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, err
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")

	return &kafkaRuntime{
		producer:    producer,
		events:      kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		deadLetters: kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
	}, nil
}

// attachPaymentConsumer подписывает сервис на payment.succeeded.
func (k *kafkaRuntime) attachPaymentConsumer(cfg Config, orders events.PaymentReconciler, logger *log.Entry) error {
	handler := events.NewPaymentSucceededHandler(orders, logger.WithField("component", "payment-events"))
	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.KafkaGroupID,
		[]string{kafka.TopicPaymentSucceeded},
		handler,
		k.producer,
		cfg.KafkaMaxRetries,
	)
	if err != nil {
		return err
	}
	k.consumer = consumer
	return nil
}

// closeKafka останавливает consumer и закрывает producer.
func closeKafka(k *kafkaRuntime, logger *log.Entry) {
	if k == nil {
		return
	}
	if k.consumer != nil {
		if err := k.consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if err := k.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
