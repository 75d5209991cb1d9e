package eventlogger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLogger publishes every event to a topic, keyed by event type.
type KafkaLogger struct {
	writer messageWriter
}

func NewKafkaLogger(brokers []string, topic string) *KafkaLogger {
	return &KafkaLogger{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (k *KafkaLogger) Save(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Type),
		Value: data,
		Time:  e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	return nil
}

func (k *KafkaLogger) Close() error {
	return k.writer.Close()
}
