// Package dlq переигрывает сообщения из orders.dlq обратно в рабочие topics.
//
// В DLQ попадают два вида сообщений: kafka.DLQMessage от consumer'а платёжных
// событий и outbox.DeadLetter, упакованный outbox-паблишером в kafka.OutboxEnvelope.
// Первые возвращаются в исходный topic как есть, вторые снова заворачиваются в
// конверт orders.events. PaidOrder идемпотентен, поэтому повторная доставка
// payment.succeeded безопасна.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
)

const (
	DefaultLimit       = 100
	DefaultIdleTimeout = 2 * time.Second
)

// ErrUnsupported помечает сообщения, которые нельзя переиграть.
var ErrUnsupported = errors.New("unsupported dlq message")

// Options задаёт параметры прогона.
type Options struct {
	SourceTopic string
	EventsTopic string
	Limit       int
	Execute     bool
	FromNewest  bool
	IdleTimeout time.Duration
}

func (o *Options) normalize() error {
	if strings.TrimSpace(o.SourceTopic) == "" {
		o.SourceTopic = kafka.TopicDeadLetterQueue
	}
	if strings.TrimSpace(o.EventsTopic) == "" {
		o.EventsTopic = kafka.TopicOrderEvents
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must be > 0")
	}
	if o.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must be > 0")
	}
	return nil
}

// OffsetClient: часть sarama.Client, нужная для обхода partitions.
type OffsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

// PartitionConsumer: часть sarama.PartitionConsumer.
type PartitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// PartitionSource открывает чтение partition с offset.
type PartitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (PartitionConsumer, error)
}

// Sender отправляет сообщение в topic. Реализуется *kafka.Producer.
type Sender interface {
	Send(topic, key string, value []byte, headers map[string]string) error
}

// Message: подготовленное к повторной отправке сообщение.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Report: итоги прогона.
type Report struct {
	Processed int
	Replayed  int
	Skipped   int
}

// Replayer читает DLQ и отправляет сообщения заново.
type Replayer struct {
	client OffsetClient
	source PartitionSource
	sender Sender
	logger *log.Entry
	now    func() time.Time
}

// NewReplayer создаёт Replayer. sender может быть nil для dry-run.
func NewReplayer(client OffsetClient, source PartitionSource, sender Sender, logger *log.Entry) *Replayer {
	if logger == nil {
		logger = log.WithField("component", "dlq-replay")
	}
	return &Replayer{
		client: client,
		source: source,
		sender: sender,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run обходит partitions DLQ по возрастанию номера, пока не обработает Limit сообщений.
func (r *Replayer) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report
	if err := opts.normalize(); err != nil {
		return report, err
	}
	if opts.Execute && r.sender == nil {
		return report, fmt.Errorf("sender is required in execute mode")
	}

	partitions, err := r.client.Partitions(opts.SourceTopic)
	if err != nil {
		return report, fmt.Errorf("partitions of %s: %w", opts.SourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if report.Processed >= opts.Limit {
			break
		}
		if err := r.replayPartition(ctx, opts, partition, &report); err != nil {
			return report, err
		}
	}

	r.logger.WithFields(log.Fields{
		"execute":   opts.Execute,
		"processed": report.Processed,
		"replayed":  report.Replayed,
		"skipped":   report.Skipped,
	}).Info("dlq replay finished")
	return report, nil
}

func (r *Replayer) replayPartition(ctx context.Context, opts Options, partition int32, report *Report) error {
	oldest, err := r.client.GetOffset(opts.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(opts.SourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	remaining := opts.Limit - report.Processed
	start := oldest
	if opts.FromNewest {
		start = max(newest-int64(remaining), oldest)
	}

	pc, err := r.source.ConsumePartition(opts.SourceTopic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(opts.IdleTimeout)
	defer idle.Stop()

	for report.Processed < opts.Limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case cerr, ok := <-pc.Errors():
			if ok && cerr != nil {
				return fmt.Errorf("partition %d: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(opts.IdleTimeout)

			if err := r.replayOne(msg, opts, report); err != nil {
				return err
			}
			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

func (r *Replayer) replayOne(msg *sarama.ConsumerMessage, opts Options, report *Report) error {
	report.Processed++
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, err := Decode(msg.Value, opts.EventsTopic, r.now())
	if err != nil {
		report.Skipped++
		entry.WithError(err).Warn("skip dlq message")
		return nil
	}

	entry = entry.WithFields(log.Fields{"target_topic": replay.Topic, "key": replay.Key})
	if !opts.Execute {
		report.Replayed++
		entry.Info("dlq replay candidate")
		return nil
	}
	if err := r.sender.Send(replay.Topic, replay.Key, replay.Value, replay.Headers); err != nil {
		return fmt.Errorf("replay offset %d: %w", msg.Offset, err)
	}
	report.Replayed++
	entry.Debug("dlq message replayed")
	return nil
}

// Decode превращает сообщение DLQ в сообщение для повторной отправки.
func Decode(value []byte, eventsTopic string, now time.Time) (Message, error) {
	var consumed kafka.DLQMessage
	if err := json.Unmarshal(value, &consumed); err == nil && consumed.OriginalValue != "" {
		if consumed.OriginalTopic == "" {
			return Message{}, fmt.Errorf("%w: consumer dlq message without original topic", ErrUnsupported)
		}
		return Message{
			Topic: consumed.OriginalTopic,
			Key:   consumed.OriginalKey,
			Value: []byte(consumed.OriginalValue),
		}, nil
	}

	var envelope kafka.OutboxEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return Message{}, fmt.Errorf("%w: neither consumer nor outbox format", ErrUnsupported)
	}
	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return Message{}, fmt.Errorf("%w: decode dead letter: %v", ErrUnsupported, err)
	}
	if len(letter.Payload) == 0 {
		return Message{}, fmt.Errorf("%w: dead letter without event payload", ErrUnsupported)
	}

	replay := kafka.OutboxEnvelope{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       letter.Payload,
		PublishedAt:   now,
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return Message{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return Message{
		Topic:   eventsTopic,
		Key:     firstNonEmpty(replay.AggregateID, replay.ID),
		Value:   encoded,
		Headers: map[string]string{kafka.HeaderEventType: replay.EventType},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (PartitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

// Connect подключается к брокерам. В dry-run producer не создаётся.
// Возвращённая функция закрывает все соединения.
func Connect(brokers []string, execute bool, logger *log.Entry) (*Replayer, func(), error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	var producer *kafka.Producer
	if execute {
		if producer, err = kafka.NewProducer(brokers); err != nil {
			_ = consumer.Close()
			_ = client.Close()
			return nil, nil, err
		}
	}

	closeAll := func() {
		if producer != nil {
			_ = producer.Close()
		}
		_ = consumer.Close()
		_ = client.Close()
	}

	var sender Sender
	if producer != nil {
		sender = producer
	}
	return NewReplayer(client, saramaSource{consumer: consumer}, sender, logger), closeAll, nil
}
