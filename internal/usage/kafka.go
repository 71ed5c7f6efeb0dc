package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	segmentio "github.com/segmentio/kafka-go"
)

// KafkaEmitter publishes events to a Kafka topic keyed by tenant, so one
// tenant's events stay ordered within a partition.
type KafkaEmitter struct {
	writer *segmentio.Writer
	logger *slog.Logger
}

// NewKafkaEmitter creates an emitter writing to topic on brokers.
// No connection is made until the first Emit.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	logger = logger.With("sink", "kafka", "topic", topic)
	return &KafkaEmitter{
		writer: &segmentio.Writer{
			Addr:                   segmentio.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &segmentio.Hash{},
			RequiredAcks:           segmentio.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
			ErrorLogger: segmentio.LoggerFunc(func(msg string, args ...any) {
				logger.Warn(fmt.Sprintf(msg, args...))
			}),
		},
		logger: logger,
	}
}

func (k *KafkaEmitter) Emit(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(e.TenantID),
		Value: value,
		Time:  e.At,
	})
	if err != nil {
		return fmt.Errorf("write usage event: %w", err)
	}
	return nil
}

func (k *KafkaEmitter) Close() error {
	return k.writer.Close()
}
