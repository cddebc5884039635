package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

// Message header names set by Producer and read back by Consumer.
const (
	HeaderEventType   = "event-type"
	HeaderRequestID   = "request-id"
	HeaderContentType = "content-type"
)

// Event is one message. Key picks the partition, so every event about a
// book goes to the same partition and is consumed in order. Type and
// RequestID travel as headers; an empty RequestID is taken from ctx.
type Event struct {
	Key       string
	Type      string
	RequestID string
	Value     any
}

// Producer publishes JSON-encoded events to one topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := NewMessage(ctx, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed",
			"key", event.Key,
			"event_type", event.Type,
			"error", err,
		)
		return fmt.Errorf("publishing %s to %s: %w", event.Type, p.topic, err)
	}
	p.logger.Debug("event published",
		"key", event.Key,
		"event_type", event.Type,
		"request_id", headerValue(msg.Headers, HeaderRequestID),
		"value_size", len(msg.Value),
	)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NewMessage encodes event as a Kafka message with its headers set.
func NewMessage(ctx context.Context, event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	requestID := event.RequestID
	if requestID == "" {
		requestID = logger.RequestID(ctx)
	}
	headers := []kafka.Header{{Key: HeaderContentType, Value: []byte("application/json")}}
	if event.Type != "" {
		headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	}
	if requestID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(requestID)})
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: headers,
		Time:    time.Now().UTC(),
	}, nil
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
