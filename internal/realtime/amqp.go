package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Bridge carries events between API instances over a RabbitMQ fanout
// exchange. Publish sends to the exchange; Run relays everything received on
// this instance's private queue into the local hub, so events published by
// any instance reach every instance's subscribers.
type Bridge struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

var _ Publisher = (*Bridge)(nil)

// ErrDisconnected is returned by Publish while the broker connection is down.
// Reconnecting is left to Run.
var ErrDisconnected = errors.New("rabbitmq connection is closed")

func DialBridge(ctx context.Context, url, exchange string) (*Bridge, error) {
	b := &Bridge{url: url, exchange: exchange}
	if err := b.connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// connect dials with a short linear backoff.
func (b *Bridge) connect(ctx context.Context) error {
	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = b.dialOnce(); err == nil {
			slog.Info("Connected to RabbitMQ", "exchange", b.exchange)
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		wait := time.Duration(i+1) * 2 * time.Second
		slog.Warn("RabbitMQ connection failed, retrying", "error", err, "wait", wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to RabbitMQ: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (b *Bridge) dialOnce() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	err = ch.ExchangeDeclare(
		b.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}

	b.mu.Lock()
	b.closeLocked()
	b.conn, b.pub = conn, ch
	b.mu.Unlock()
	return nil
}

func (b *Bridge) closeLocked() error {
	var err error
	if b.pub != nil {
		b.pub.Close()
		b.pub = nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		err = b.conn.Close()
	}
	b.conn = nil
	return err
}

func (b *Bridge) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.Lock()
	conn, ch := b.conn, b.pub
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() || ch == nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, ErrDisconnected)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		b.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
			Type:         ev.Kind,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Run consumes from an exclusive, auto-deleted queue bound to the exchange
// and forwards each event to local. It reconnects when the broker drops the
// connection and returns when ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, local Publisher) error {
	for {
		err := b.consume(ctx, local)
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("RabbitMQ consumer stopped, reconnecting", "error", err)
		if err := b.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("RabbitMQ still unreachable", "error", err)
		}
	}
}

func (b *Bridge) consume(ctx context.Context, local Publisher) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return ErrDisconnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack: events are not replayed
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	slog.Info("Relaying RabbitMQ events to local subscribers", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			ev, err := decodeDelivery(d.Body)
			if err != nil {
				slog.Warn("Discarding malformed event", "error", err)
				continue
			}
			local.Publish(ctx, ev)
		}
	}
}

func decodeDelivery(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, err
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("event kind missing")
	}
	return ev, nil
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}
