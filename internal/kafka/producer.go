package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/models"
)

// Event is the envelope every booking event is published in. Consumers
// switch on Type.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	EventTicketsCreated  = "tickets.created"
	EventTicketsReleased = "tickets.released"
	EventOrderPurchased  = "order.purchased"
	EventOrderCancelled  = "order.cancelled"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(key, eventType string, payload interface{}) error {
	msgBytes, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishTicketsCreated streams a successful allocation batch.
func (p *Producer) PublishTicketsCreated(tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return p.publish(tickets[0].ShowID, EventTicketsCreated, tickets)
}

// PublishTicketsReleased streams tickets deleted by cart removal,
// reservation cancel, or the expiry sweep.
func (p *Producer) PublishTicketsReleased(tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return p.publish(tickets[0].ShowID, EventTicketsReleased, tickets)
}

// PublishOrderPurchased streams a completed checkout.
func (p *Producer) PublishOrderPurchased(order models.Order) error {
	return p.publish(order.OrderID, EventOrderPurchased, order)
}

// PublishOrderCancelled streams a refunded cancellation.
func (p *Producer) PublishOrderCancelled(order models.Order) error {
	return p.publish(order.OrderID, EventOrderCancelled, order)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
