package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// Consumer drains the email queue into a Sender. It reconnects with
// exponential backoff until its context is cancelled.
type Consumer struct {
	cfg    ConsumerConfig
	sender Sender
	lg     zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, s Sender, lg zerolog.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	return &Consumer{cfg: cfg, sender: s, lg: lg.With().Str("component", "email_consumer").Logger()}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			c.lg.Info().Msg("consumer stopped")
			return nil
		}
		c.lg.Warn().Err(err).Dur("backoff", backoff).Msg("consumer disconnected; retrying")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch, c.cfg.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(c.cfg.Queue, "email.#", c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.lg.Info().Str("queue", c.cfg.Queue).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks on success, on permanent failure and on undecodable bodies.
// Temporary failures go back on the queue.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var m Message
	if err := json.Unmarshal(d.Body, &m); err != nil || m.To == "" {
		c.lg.Error().Err(err).Str("message_id", d.MessageId).Msg("dropping malformed message")
		_ = d.Ack(false)
		return
	}

	err := deliver(ctx, c.sender, m, 1, 0)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case IsPermanent(err):
		c.lg.Error().Err(err).Str("kind", string(m.Kind)).Str("id", m.ID).Msg("permanent send failure; dropping")
		_ = d.Ack(false)
	default:
		c.lg.Warn().Err(err).Str("kind", string(m.Kind)).Str("id", m.ID).Msg("temporary send failure; requeueing")
		_ = d.Nack(false, true)
	}
}
