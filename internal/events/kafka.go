package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the producer connection settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Envelope is the message value written to the topic.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// KafkaPublisher writes events to a topic keyed by token address, so every
// event of one token lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		// flush each trade without waiting out a batch
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := encodeMessage(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind(), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeMessage(e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	value, err := json.Marshal(Envelope{Kind: e.Kind(), Payload: payload})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return kafka.Message{
		Key:   []byte(e.Subject().Hex()),
		Value: value,
		Time:  time.Now(),
	}, nil
}
