package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Publisher announces committed orders. Delivery is best effort and never
// affects the outcome of the order that triggered it.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

// NewKafkaWriter builds a writer for topic that balances by message key
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}
}

func NewKafkaPublisher(writer MessageWriter, log *zap.Logger) Publisher {
	return &kafkaPublisher{writer: writer, log: log}
}

func (p *kafkaPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ProductID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.placed")},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write order event: %w", err)
	}
	p.log.Debug("order event published", zap.String("order_id", event.OrderID.String()))
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

// NewNopPublisher is used when no brokers are configured
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error { return nil }
func (nopPublisher) Close() error                                                      { return nil }

// headerCarrier adapts kafka headers to the otel propagation carrier
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
