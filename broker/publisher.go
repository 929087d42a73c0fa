// Package broker publishes charter lifecycle events to a RabbitMQ topic exchange.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys of the lifecycle events
const (
	BookingAccepted  = "booking.accepted"
	ContractExecuted = "contract.executed"
	EscrowFunded     = "escrow.funded"
	EscrowReleased   = "escrow.released"
)

// Publisher emits lifecycle events. Publishing is best-effort: callers log failures
// and never roll back a committed transition because of them.
type Publisher interface {
	Publish(ctx context.Context, key string, data any) error
}

// Envelope is the body of every published message
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, data any) error {
	env := NewEnvelope(key, data)
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         key,
		Body:         b,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func NewEnvelope(key string, data any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Noop drops every event. Used when no broker URL is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, key string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEnvelope(key, data))
	return nil
}

// Keys returns the routing keys published so far, in order
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.events))
	for _, e := range r.events {
		keys = append(keys, e.Type)
	}
	return keys
}

// Count returns how many events were published under key
func (r *Recorder) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == key {
			n++
		}
	}
	return n
}
