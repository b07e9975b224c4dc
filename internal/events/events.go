// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"shopfront_back_end/internal/models"
)

const (
	OrderPlaced        = "order.placed"
	OrderPaid          = "order.paid"
	OrderCancelled     = "order.cancelled"
	OrderStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	Type      string             `json:"type"`
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	Amount    float64            `json:"amount"`
	Status    models.OrderStatus `json:"status"`
	Payment   bool               `json:"payment"`
	Timestamp time.Time          `json:"timestamp"`
}

func NewOrderEvent(eventType string, o models.Order) OrderEvent {
	return OrderEvent{
		Type:      eventType,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Amount:    o.Amount,
		Status:    o.Status,
		Payment:   o.Payment,
		Timestamp: time.Now().UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{topic: topic, writer: newWriter(brokers, topic)}
}

// newWriter flushes every message on its own so a publish never waits for a batch to fill.
func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// PublishOrder writes the event keyed by order id so one order's events stay ordered.
func (p *Producer) PublishOrder(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
