// Package rabbitmq declares the order topology and publishes order
// lifecycle events.
package rabbitmq

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

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config
	log     *logrus.Logger
}

func NewRabbitMQ(cfg *config.Config, log *logrus.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
		log:     log,
	}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

// SetupQueues declares the order exchange and queue, the dead letter queue
// and the delayed exchange used for chat close reminders.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(
		r.deadLetterExchange(),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}

	if err := r.Channel.QueueBind(
		r.Cfg.DeadLetterQueue,
		r.Cfg.DeadLetterQueue,
		r.deadLetterExchange(),
		false,
		nil,
	); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.deadLetterExchange(),
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	// The delayed exchange needs the rabbitmq_delayed_message_exchange
	// plugin. Without it chats are still closed by the periodic sweep.
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		r.log.WithError(err).Warn("delayed exchange not supported")
		// A failed declare closes the channel.
		ch, err := r.Conn.Channel()
		if err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
		r.Channel = ch
		return nil
	}
	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil); err != nil {
		return fmt.Errorf("bind delayed exchange: %w", err)
	}
	return nil
}

// NewPublishing encodes ev as a persistent JSON message.
func NewPublishing(ev models.OrderEvent, priority uint8) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode order event: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         ev.Type,
		MessageId:    ev.OrderID + ":" + ev.Type + ":" + ev.Occurred.Format(time.RFC3339Nano),
		Body:         body,
		Priority:     priority,
	}, nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, ev models.OrderEvent, priority uint8) error {
	msg, err := NewPublishing(ev, priority)
	if err != nil {
		return err
	}
	return r.Channel.PublishWithContext(ctx,
		r.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

// PublishDelayedEvent routes ev through the delayed exchange so that it
// reaches the order queue after delay.
func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, ev models.OrderEvent, delay time.Duration) error {
	msg, err := NewPublishing(ev, 0)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
	return r.Channel.PublishWithContext(ctx,
		r.Cfg.DelayExchange,
		"",
		false,
		false,
		msg,
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.log.WithError(err).Warn("close rabbitmq channel")
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.log.WithError(err).Warn("close rabbitmq connection")
		}
	}
}
