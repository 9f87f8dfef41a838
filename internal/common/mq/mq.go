package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ChangesExchange carries the change-data-capture feed. Routing keys are
// "<schema>.<table>.<kind>" with kind one of insert|update|delete.
const ChangesExchange = "changes"

type Client struct {
	conn *amqp.Connection
}

func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close()
}

func (c *Client) IsClosed() bool {
	return c == nil || c.conn == nil || c.conn.IsClosed()
}

// Channel opens a fresh channel. Publishers and consumers get their own
// channels; they must not be shared.
func (c *Client) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// DeclareAll declares the feed topology. Idempotent.
func (c *Client) DeclareAll() error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(ChangesExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ChangesExchange, err)
	}
	return nil
}

// PublishJSON publishes a persistent JSON message to the changes exchange.
func PublishJSON(ctx context.Context, ch *amqp.Channel, key string, body []byte) error {
	return ch.PublishWithContext(ctx, ChangesExchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// SubscriberQueue declares an exclusive auto-delete queue bound to the
// changes exchange with the given binding key and starts consuming it.
func SubscriberQueue(ch *amqp.Channel, bindingKey string) (<-chan amqp.Delivery, string, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, ChangesExchange, false, nil); err != nil {
		return nil, "", fmt.Errorf("bind %s to %s: %w", q.Name, bindingKey, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, q.Name, nil
}
