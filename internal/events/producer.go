// Package events публикует события заказов из outbox в Kafka
package events

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

type Producer interface {
	Produce(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

type KafkaProducer struct {
	sync sarama.SyncProducer
}

func NewKafkaProducer(brokers []string) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}
	return &KafkaProducer{sync: p}, nil
}

// Produce кладёт контекст трассы в заголовки сообщения
func (p *KafkaProducer) Produce(ctx context.Context, topic, key string, value []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}
	if _, _, err := p.sync.SendMessage(msg); err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.sync.Close()
}

// LogProducer пишет события в лог, когда брокеры не настроены
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	return &LogProducer{logger: logger}
}

func (p *LogProducer) Produce(ctx context.Context, topic, key string, value []byte) error {
	logging.Info(ctx, p.logger, "Event",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("value", value),
	)
	return nil
}

func (p *LogProducer) Close() error { return nil }
