package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// ErrNotConfirmed is returned when the broker nacks a published change.
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// RabbitMQ announces catalog changes on a durable topic exchange, one routing
// key per change action. Every publish waits for the broker's confirm.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

type Config struct {
	URL           string
	Exchange      string
	RoutingPrefix string
	QueueName     string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	r := &RabbitMQ{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("component", "publisher"),
		now:    time.Now,
	}

	if err := r.openChannel(); err != nil {
		r.Close()
		return nil, err
	}

	r.logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_prefix", cfg.RoutingPrefix,
	)
	return r, nil
}

func (r *RabbitMQ) openChannel() error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	r.channel = ch

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	return declareTopology(ch, r.cfg)
}

// EventMessage is the body of every published message.
type EventMessage struct {
	Action    domain.ChangeAction `json:"action"`
	Event     domain.Event        `json:"event"`
	Timestamp time.Time           `json:"timestamp"`
}

func newEventMessage(event *domain.Event, action domain.ChangeAction, now time.Time) ([]byte, error) {
	msg := EventMessage{
		Action:    action,
		Event:     *event,
		Timestamp: now.UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return body, nil
}

func newPublishing(event *domain.Event, action domain.ChangeAction, body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID + ":" + string(action),
		Type:         string(action),
		Body:         body,
		Timestamp:    now,
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, event *domain.Event, action domain.ChangeAction) error {
	now := r.now()
	body, err := newEventMessage(event, action, now)
	if err != nil {
		return err
	}

	key := RoutingKey(r.cfg.RoutingPrefix, action)
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		r.cfg.Exchange,
		key,
		false,
		false,
		newPublishing(event, action, body, now),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("%s %s: %w", key, event.ID, ErrNotConfirmed)
	}

	r.logger.Debug("published event",
		"id", event.ID,
		"routing_key", key,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
