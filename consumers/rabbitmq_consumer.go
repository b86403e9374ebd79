package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/publishers"
)

const handleTimeout = 30 * time.Second

// EventHandler reacts to one listing event. A returned error requeues it.
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.ListingEvent) error
}

// RabbitMQConsumer reads listing events from a queue bound to the
// event exchange. Each consumer gets its own exclusive queue, so every
// instance sees every event.
type RabbitMQConsumer struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	handler    EventHandler
	logger     *zap.Logger
	done       chan struct{}
}

// NewRabbitMQConsumer connects, declares the exchange and binds a fresh
// server-named queue to it.
func NewRabbitMQConsumer(rabbitURL, exchange string, handler EventHandler, logger *zap.Logger) (*RabbitMQConsumer, error) {
	logger.Info("connecting to RabbitMQ", zap.String("exchange", exchange))

	// 1. Connect
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// 2. Declare the exchange and this instance's queue
	if err := publishers.DeclareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",    // name, chosen by the server
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("queue bound", zap.String("queue", q.Name), zap.String("exchange", exchange))
	return newConsumer(handler, logger, conn, ch, q.Name), nil
}

func newConsumer(handler EventHandler, logger *zap.Logger, conn *amqp.Connection, ch *amqp.Channel, queue string) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		connection: conn,
		channel:    ch,
		queueName:  queue,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start registers the consumer and processes deliveries in the background.
func (c *RabbitMQConsumer) Start() error {
	// one message at a time
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		defer close(c.done)
		for msg := range msgs {
			c.processMessage(msg)
		}
		c.logger.Info("event consumer stopped", zap.String("queue", c.queueName))
	}()
	return nil
}

// Done is closed when the delivery channel closes.
func (c *RabbitMQConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *RabbitMQConsumer) processMessage(msg amqp.Delivery) {
	// 1. Decode; malformed events are dropped
	var event domain.ListingEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("dropping malformed event", zap.ByteString("body", msg.Body), zap.Error(err))
		c.nack(msg, false)
		return
	}
	if !event.Action.Known() {
		c.logger.Warn("dropping unknown event", zap.String("action", string(event.Action)))
		c.nack(msg, false)
		return
	}

	// 2. Handle; failures go back to the queue
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.logger.Error("event handling failed",
			zap.String("action", string(event.Action)),
			zap.Error(err))
		c.nack(msg, true)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Warn("ack failed", zap.Error(err))
	}
}

func (c *RabbitMQConsumer) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Warn("nack failed", zap.Error(err))
	}
}

// Close closes the channel and the connection. The delivery loop ends
// once the broker acknowledges.
func (c *RabbitMQConsumer) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.connection != nil {
		if err := c.connection.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
