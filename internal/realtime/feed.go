package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/common/mq"
	"restaurant-pos/internal/domain"
)

// Filter scopes one subscription to a (schema, table, kind, row filter)
// tuple. Expression is "column=eq.value"; eq is the only supported operator.
type Filter struct {
	Schema     string
	Table      string
	Kind       domain.ChangeKind
	Expression string
}

func (f Filter) bindingKey() string {
	kind := "*"
	if f.Kind != "" && f.Kind != domain.ChangeAny {
		kind = string(f.Kind)
	}
	schema := f.Schema
	if schema == "" {
		schema = "public"
	}
	return fmt.Sprintf("%s.%s.%s", schema, f.Table, kind)
}

type rowMatcher struct {
	column string
	value  string
}

func parseExpression(expr string) (*rowMatcher, error) {
	if expr == "" {
		return nil, nil
	}
	col, rest, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("malformed filter %q", expr)
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("unsupported filter operator in %q (only eq is supported)", expr)
	}
	return &rowMatcher{column: col, value: val}, nil
}

func (m *rowMatcher) matches(ev domain.ChangeEvent) bool {
	if m == nil {
		return true
	}
	v, ok := ev.Row[m.column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == m.value
}

// Channel is one open stream of change events. Errors terminates the stream;
// after an error the channel must be closed and reopened.
type Channel interface {
	Events() <-chan domain.ChangeEvent
	Errors() <-chan error
	Close() error
}

// Source opens filtered change-event channels.
type Source interface {
	Open(ctx context.Context, f Filter) (Channel, error)
}

// EventPublisher is the write side of the feed. Services depend on this
// rather than the broker-backed Publisher directly.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// Publisher fans writes out to feed subscribers. Services call Publish after
// every committed row change, which is what stands in for the backing
// store's own CDC stream.
type Publisher struct {
	ch  *amqp.Channel
	log *logger.Logger
}

func NewPublisher(client *mq.Client, log *logger.Logger) (*Publisher, error) {
	ch, err := client.Channel()
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	if ev.Schema == "" {
		ev.Schema = "public"
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	key := fmt.Sprintf("%s.%s.%s", ev.Schema, ev.Table, ev.Kind)
	if err := p.ch.PublishWithContext(ctx, mq.ChangesExchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("change_published", map[string]any{"key": key})
	return nil
}

func (p *Publisher) Close() {
	if p != nil && p.ch != nil {
		_ = p.ch.Close()
	}
}

// AMQPSource consumes the changes exchange. Each Open gets its own channel
// and an exclusive auto-delete queue, so subscriptions are independent.
type AMQPSource struct {
	client *mq.Client
	log    *logger.Logger
}

func NewAMQPSource(client *mq.Client, log *logger.Logger) *AMQPSource {
	return &AMQPSource{client: client, log: log}
}

func (s *AMQPSource) Open(ctx context.Context, f Filter) (Channel, error) {
	matcher, err := parseExpression(f.Expression)
	if err != nil {
		return nil, err
	}
	ch, err := s.client.Channel()
	if err != nil {
		return nil, err
	}
	deliveries, queue, err := mq.SubscriberQueue(ch, f.bindingKey())
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	ac := &amqpChannel{
		ch:     ch,
		events: make(chan domain.ChangeEvent),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	closeNotify := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		defer close(ac.events)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					ac.fail(fmt.Errorf("CHANNEL_ERROR: delivery stream closed"))
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					s.log.Warn("change_unmarshal_failed", map[string]any{"queue": queue})
					continue
				}
				if !matcher.matches(ev) {
					continue
				}
				select {
				case ac.events <- ev:
				case <-ac.done:
					return
				}
			case amqpErr := <-closeNotify:
				if amqpErr != nil {
					ac.fail(fmt.Errorf("CHANNEL_ERROR: %s", amqpErr.Reason))
				}
				return
			case <-ac.done:
				return
			case <-ctx.Done():
				ac.fail(ctx.Err())
				return
			}
		}
	}()
	return ac, nil
}

type amqpChannel struct {
	ch     *amqp.Channel
	events chan domain.ChangeEvent
	errs   chan error
	done   chan struct{}
	closed bool
}

func (c *amqpChannel) Events() <-chan domain.ChangeEvent { return c.events }
func (c *amqpChannel) Errors() <-chan error              { return c.errs }

func (c *amqpChannel) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

func (c *amqpChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.ch.Close()
}
