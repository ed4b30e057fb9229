package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "reservations.events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url, queue string) (conn *amqp.Connection, ch channel, err error)

// AMQPPublisher publishes events to a durable RabbitMQ queue over a lazily
// opened connection that is re-dialled after a failure.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger
	dial   dialFunc

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

var _ Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher returns a publisher for url. The connection is opened on the
// first Publish.
func NewAMQPPublisher(url, queue string, logger *slog.Logger) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, queue: queue, logger: logger, dial: dialAMQP}
}

func dialAMQP(url, queue string) (*amqp.Connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("events: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("events: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("events: declare queue %s: %w", queue, err)
	}
	return conn, ch, nil
}

// Publish sends event as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := publishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		conn, ch, err := p.dial(p.url, p.queue)
		if err != nil {
			return err
		}
		p.conn, p.ch = conn, ch
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	p.logger.DebugContext(ctx, "event published", "type", event.Type, "reservation_id", event.ReservationID)
	return nil
}

// Close shuts the channel and connection down.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetLocked()
}

func (p *AMQPPublisher) resetLocked() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.conn, p.ch = nil, nil
	return errors.Join(errs...)
}

func publishing(event Event) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}, nil
}
