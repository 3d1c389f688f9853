// Package events publishes job lifecycle notifications to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
)

const (
	KindCompleted = "job.completed"
	KindFailed    = "job.failed"
)

// Event is the message body; the routing key is Kind.
type Event struct {
	Kind       string           `json:"kind"`
	TrackingID string           `json:"tracking_id"`
	Status     entity.JobStatus `json:"status"`
	Title      string           `json:"title,omitempty"`
	WordCount  int              `json:"word_count,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorType  entity.ErrorType `json:"error_type,omitempty"`
	At         time.Time        `json:"at"`
}

// FromJob builds the terminal event for j, or false if j is not terminal.
func FromJob(j *entity.Job, at time.Time) (Event, bool) {
	ev := Event{
		TrackingID: j.TrackingID.String(),
		Status:     j.Status,
		At:         at,
	}
	switch j.Status {
	case entity.StatusCompleted:
		ev.Kind = KindCompleted
		ev.Title = j.Title
		ev.WordCount = j.WordCount
	case entity.StatusFailed:
		ev.Kind = KindFailed
		ev.Error = j.Error
		ev.ErrorType = j.ErrorType
	default:
		return Event{}, false
	}
	return ev, true
}

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger

	mu sync.Mutex
}

// Dial connects and declares a durable topic exchange.
func Dial(url, exchange string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		log:      log.With().Str("component", "events").Logger(),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.TrackingID,
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	p.log.Debug().Str("job_id", ev.TrackingID).Str("kind", ev.Kind).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
