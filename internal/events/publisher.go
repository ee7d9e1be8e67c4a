package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers events to whatever listens downstream.
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by Event.Key.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a writer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...*Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := e.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Key),
			Value: data,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d event(s) to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher prints events instead of sending them. Used when no brokers are configured.
type LogPublisher struct {
	mu sync.Mutex
}

func (p *LogPublisher) Publish(ctx context.Context, events ...*Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		data, err := e.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
		log.Printf("Event: %s", data)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
