// Package kafka publishes ticket routing events to a Kafka topic so team
// queues can consume them.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

const writeTimeout = 10 * time.Second

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes every notification, alert or queue, as a JSON message
// keyed by team so one team's events stay ordered within a partition.
type Publisher struct {
	w messageWriter
}

// New creates a Publisher for topic on brokers.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}}
}

// Notify implements triage.Notifier.
func (p *Publisher) Notify(ctx context.Context, n *triage.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.Team),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(n.Kind)},
			{Key: "priority", Value: []byte(n.Priority)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write event for ticket %s: %w", n.TicketID, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
