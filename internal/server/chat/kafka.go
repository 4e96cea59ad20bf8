package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes chat messages to the chat topic, keyed by group so
// that messages for one channel stay ordered on one partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds a sink writing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaSink{writer: w}
}

// PostMessage publishes one message keyed by its group ID.
func (s *KafkaSink) PostMessage(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.GroupID),
		Value: value,
		Time:  time.Now(),
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
