package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"purchasegate/internal/platform/kafka/producer"
)

// Producer is the subset of the platform Kafka producer used here.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes notifications to a topic keyed by parent, so a parent's
// events stay ordered within one partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(msg.ParentID.String()),
		Value: value,
		Headers: map[string]string{
			"event":      string(msg.Event),
			"request_id": msg.RequestID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
