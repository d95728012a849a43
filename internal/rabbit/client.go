package rabbit

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

const delayedExchangeKind = "x-delayed-message"

type Config struct {
	URL          string
	Exchange     string
	ExchangeKind string
	Queue        string
	RoutingKey   string
	Prefetch     int
}

type Client struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	queue      string
	routingKey string
}

// Publisher is the send side used by the notification dispatcher.
type Publisher interface {
	Publish(ctx context.Context, messageID string, body []byte) error
}

type Consumer interface {
	Consume(handler func([]byte) error) error
}

func NewRabbit(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		queue:      cfg.Queue,
		routingKey: cfg.RoutingKey,
	}

	if err := client.declare(cfg); err != nil {
		client.Close()
		return nil, err
	}

	zlog.Logger.Info().Msgf("RabbitMQ initialized (exchange=%s, kind=%s, queue=%s)", cfg.Exchange, cfg.ExchangeKind, cfg.Queue)

	return client, nil
}

func (c *Client) declare(cfg Config) error {
	kind := cfg.ExchangeKind
	if kind == "" {
		kind = amqp.ExchangeDirect
	}

	var args amqp.Table
	if kind == delayedExchangeKind {
		args = amqp.Table{"x-delayed-type": amqp.ExchangeDirect}
	}
	if err := c.channel.ExchangeDeclare(
		cfg.Exchange,
		kind,
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to declare exchange")
		return err
	}

	if _, err := c.channel.QueueDeclare(
		cfg.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to declare queue")
		return err
	}

	if err := c.channel.QueueBind(
		cfg.Queue,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to bind queue")
		return err
	}

	if cfg.Prefetch > 0 {
		if err := c.channel.Qos(cfg.Prefetch, 0, false); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to set prefetch")
			return err
		}
	}
	return nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

func (c *Client) Publish(ctx context.Context, messageID string, body []byte) error {
	err := c.channel.PublishWithContext(
		ctx,
		c.exchange,
		c.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)

	if err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", messageID).Msg("failed to publish message to RabbitMQ")
		return fmt.Errorf("publish %s: %w", messageID, err)
	}
	zlog.Logger.Debug().Str("message_id", messageID).Msgf("Message published to exchange=%s", c.exchange)
	return nil
}

// Consume delivers messages to handler until the channel closes. A handler
// error requeues the message once; a redelivered failure is dropped.
func (c *Client) Consume(handler func([]byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				zlog.Logger.Warn().Str("message_id", d.MessageId).Bool("redelivered", d.Redelivered).Msgf("failed to process message: %v", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	zlog.Logger.Info().Msgf("Started consuming from queue %s", c.queue)
	return nil
}
