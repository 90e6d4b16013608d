package publisher

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

const exchangeKind = amqp.ExchangeTopic

// changeActions lists every action the catalog feed announces. Each one is
// bound to the queue under its own routing key.
var changeActions = []domain.ChangeAction{
	domain.ActionCreated,
	domain.ActionUpdated,
	domain.ActionArchived,
}

// RoutingKey returns the key a change is published under, for example
// "events.archived". Consumers that only care about one action bind to its key.
func RoutingKey(prefix string, action domain.ChangeAction) string {
	if prefix == "" {
		return string(action)
	}
	return prefix + "." + string(action)
}

// declareTopology makes sure the exchange and queue exist and that the queue
// receives every change action.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	for _, action := range changeActions {
		key := RoutingKey(cfg.RoutingPrefix, action)
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}
	return nil
}
