package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKey is the topic key a message of kind k is published with.
func RoutingKey(k Kind) string { return "email." + string(k) }

// Queue publishes messages to a durable topic exchange. The connection is
// opened lazily and re-established after a failed publish.
type Queue struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueue(url, exchange string) (*Queue, error) {
	q := &Queue{url: url, exchange: exchange}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareExchange(ch, q.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	q.conn, q.ch = conn, ch
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

func (q *Queue) Dispatch(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() || q.ch == nil {
		if err := q.connect(); err != nil {
			return err
		}
	}

	err = q.ch.PublishWithContext(ctx, q.exchange, RoutingKey(m.Kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    m.ID,
			Type:         string(m.Kind),
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		q.reset()
		return fmt.Errorf("publish %s: %w", m.Kind, err)
	}
	return nil
}

func (q *Queue) reset() {
	if q.ch != nil {
		_ = q.ch.Close()
		q.ch = nil
	}
	if q.conn != nil {
		_ = q.conn.Close()
		q.conn = nil
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reset()
	return nil
}
