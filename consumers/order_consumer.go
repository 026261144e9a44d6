// Package consumers processes order events delivered through RabbitMQ.
package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"food-order-service/config"
	"food-order-service/models"
)

// ChatCloser closes the chat of an order whose grace period is over.
type ChatCloser interface {
	CloseExpiredChat(ctx context.Context, orderID string) (bool, error)
}

const handleTimeout = 10 * time.Second

type OrderConsumer struct {
	chats        ChatCloser
	log          *logrus.Logger
	onDeadLetter func(eventType string)
}

type Option func(*OrderConsumer)

// WithDeadLetterHook is called for every message read from the dead letter
// queue.
func WithDeadLetterHook(fn func(eventType string)) Option {
	return func(c *OrderConsumer) { c.onDeadLetter = fn }
}

func NewOrderConsumer(chats ChatCloser, log *logrus.Logger, opts ...Option) *OrderConsumer {
	c := &OrderConsumer{chats: chats, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start registers consumers on the order queue and the dead letter queue
// and processes deliveries until the channel closes.
func (c *OrderConsumer) Start(ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"food-order-service", // consumer tag
		false,                // auto-ack
		false,                // exclusive
		false,                // no-local
		false,                // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register order consumer: %w", err)
	}
	go func() {
		for msg := range msgs {
			c.ProcessOrderMessage(msg)
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"food-order-service-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.log.WithError(err).Warn("register dead letter consumer failed")
		return nil
	}
	go func() {
		for msg := range dlqMsgs {
			c.ProcessDeadLetterMessage(msg)
		}
	}()
	return nil
}

// ProcessOrderMessage handles one order event. Malformed messages go to the
// dead letter queue straight away; failed handling is retried once.
func (c *OrderConsumer) ProcessOrderMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("recovered from panic in message processing")
			_ = msg.Nack(false, false)
		}
	}()

	var ev models.OrderEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil || ev.OrderID == "" || ev.Type == "" {
		c.log.WithField("body", string(msg.Body)).Warn("invalid order message")
		_ = msg.Nack(false, false)
		return
	}

	entry := c.log.WithFields(logrus.Fields{"order_id": ev.OrderID, "type": ev.Type})
	if err := c.handle(ev); err != nil {
		requeue := !msg.Redelivered
		entry.WithError(err).WithField("requeue", requeue).Warn("order event failed")
		_ = msg.Nack(false, requeue)
		return
	}
	if err := msg.Ack(false); err != nil {
		entry.WithError(err).Warn("ack failed")
	}
}

func (c *OrderConsumer) handle(ev models.OrderEvent) error {
	switch ev.Type {
	case models.EventChatClose:
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		closed, err := c.chats.CloseExpiredChat(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{"order_id": ev.OrderID, "closed": closed}).Debug("chat close reminder handled")
	case models.EventCreated, models.EventStatusUpdated, models.EventItemsUpdated:
		c.log.WithFields(logrus.Fields{
			"order_id": ev.OrderID,
			"user_id":  ev.UserID,
			"type":     ev.Type,
			"status":   ev.Status,
			"total":    ev.Total,
		}).Info("order event")
	default:
		c.log.WithField("type", ev.Type).Warn("unknown order event type")
	}
	return nil
}

func (c *OrderConsumer) ProcessDeadLetterMessage(msg amqp.Delivery) {
	c.log.WithFields(logrus.Fields{
		"type": msg.Type,
		"body": string(msg.Body),
	}).Error("received dead letter")
	if c.onDeadLetter != nil {
		c.onDeadLetter(msg.Type)
	}
	_ = msg.Ack(false)
}
