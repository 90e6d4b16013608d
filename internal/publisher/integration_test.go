//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func testEvent(id string) *domain.Event {
	start := time.Date(2025, 9, 5, 17, 0, 0, 0, time.UTC)
	return &domain.Event{
		ID:         id,
		Title:      "Levi Henriksen",
		Start:      start,
		Venue:      "Verket Scene",
		City:       "Moss",
		Price:      "kr 350",
		SourceType: domain.SourceTypeCalendar,
		FirstSeen:  start.Add(-72 * time.Hour),
		LastSeen:   start.Add(-24 * time.Hour),
		Status:     domain.StatusUpcoming,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishCreated() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-created",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-created",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, testEvent("0123456789abcdef"), domain.ActionCreated)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received EventMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(domain.ActionCreated, received.Action)
	s.Equal("0123456789abcdef", received.Event.ID)
	s.Equal("Levi Henriksen", received.Event.Title)
	s.Equal("created", msg.Type)
	s.Equal("test.events.created", msg.RoutingKey)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishArchived() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-archived",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-archived",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := testEvent("fedcba9876543210")
	event.Status = domain.StatusArchived

	err = pub.Publish(s.ctx, event, domain.ActionArchived)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received EventMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(domain.ActionArchived, received.Action)
	s.Equal(domain.StatusArchived, received.Event.Status)
	s.Equal("fedcba9876543210:archived", msg.MessageId)
	s.Equal("test.events.archived", msg.RoutingKey)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessageFormat() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-format",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-format",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := testEvent("0123456789abcdef")
	end := event.Start.Add(2 * time.Hour)
	event.End = &end
	event.Description = "Konsert med band."
	event.TicketURL = "https://tickets.example.org/levi"

	err = pub.Publish(s.ctx, event, domain.ActionUpdated)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)

	var received EventMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)

	s.Equal(domain.ActionUpdated, received.Action)
	s.Equal(*event, received.Event)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-persist",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-persist",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, testEvent("0123456789abcdef"), domain.ActionCreated)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_ActionsShareQueue() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-actions",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-actions",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	event := testEvent("0123456789abcdef")
	for _, action := range changeActions {
		s.Require().NoError(pub.Publish(s.ctx, event, action))
	}

	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()
	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	var keys []string
	for range changeActions {
		select {
		case msg := <-msgs:
			keys = append(keys, msg.RoutingKey)
		case <-time.After(5 * time.Second):
			s.FailNow("Timeout waiting for message")
		}
	}
	s.ElementsMatch([]string{"test.events.created", "test.events.updated", "test.events.archived"}, keys)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_SelectiveConsumer() {
	cfg := Config{
		URL:           s.amqpURL,
		Exchange:      "test-exchange-selective",
		RoutingPrefix: "test.events",
		QueueName:     "test-queue-selective",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()
	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	q, err := ch.QueueDeclare("test-queue-archived-only", false, true, false, false, nil)
	s.Require().NoError(err)
	s.Require().NoError(ch.QueueBind(q.Name, RoutingKey(cfg.RoutingPrefix, domain.ActionArchived), cfg.Exchange, false, nil))

	s.Require().NoError(pub.Publish(s.ctx, testEvent("aaaaaaaaaaaaaaaa"), domain.ActionCreated))
	s.Require().NoError(pub.Publish(s.ctx, testEvent("bbbbbbbbbbbbbbbb"), domain.ActionArchived))

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		s.Equal("bbbbbbbbbbbbbbbb:archived", msg.MessageId)
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
	}

	select {
	case msg := <-msgs:
		s.Failf("unexpected message", "got %s", msg.MessageId)
	case <-time.After(500 * time.Millisecond):
	}
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}