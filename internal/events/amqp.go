package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tally/internal/logger"
)

const publishTimeout = 5 * time.Second

// AMQPPublisher publishes entry events to a durable direct exchange, routed
// by event kind. A channel or connection closed by the broker is reopened on
// the next publish.
type AMQPPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect (re)opens whatever part of the connection is gone. Callers hold
// p.mu or own p exclusively.
func (p *AMQPPublisher) connect() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp091.Dial(p.url)
		if err != nil {
			return fmt.Errorf("dial AMQP: %w", err)
		}
		p.conn = conn
		p.channel = nil
	}

	if p.channel == nil || p.channel.IsClosed() {
		channel, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("open channel: %w", err)
		}

		err = channel.ExchangeDeclare(
			p.exchange, // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			channel.Close()
			return fmt.Errorf("declare exchange: %w", err)
		}
		p.channel = channel
	}
	return nil
}

// Publish sends the event with its kind as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, event *EntryEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,         // exchange
		string(event.Kind), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EntryID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	logger.Component("events").Debugw("Published entry event",
		"kind", event.Kind,
		"entry_id", event.EntryID,
		"exchange", p.exchange,
	)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil && !p.channel.IsClosed() {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
