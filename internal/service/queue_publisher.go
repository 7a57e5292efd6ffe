// Package queue_publisher publishes booking lifecycle events to RabbitMQ.
// Publishing is best effort: errors are logged and returned so the ledger
// can record them without failing the request that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/event-reservations/internal/queue"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

// Publisher keeps one connection and channel open and redials lazily after
// a failure.  It implements ledger.Notifier.
type Publisher struct {
	url  string
	log  *zap.Logger
	dial dialFunc

	mu   sync.Mutex
	conn io.Closer
	ch   channel
}

// NewPublisher returns a publisher for url.  No connection is made until
// the first event.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log, dial: dialAMQP}
}

// dialAMQP connects and declares the durable booking queue.
func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(
		q.QueueName, // name
		true,        // durable
		false,       // autoDelete
		false,       // exclusive
		false,       // noWait
		nil,         // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// Notify publishes ev as a persistent JSON message on the booking queue.
func (p *Publisher) Notify(ctx context.Context, ev q.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("rabbitmq: marshal event failed", zap.String("type", ev.Type), zap.Error(err))
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, conn, err := p.dial(p.url)
		if err != nil {
			p.log.Warn("rabbitmq: dial failed", zap.Error(err))
			return err
		}
		p.ch, p.conn = ch, conn
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx,
		"",          // default exchange
		q.QueueName, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		pub,
	); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.String("type", ev.Type), zap.Error(err))
		p.reset()
		return err
	}
	return nil
}

// Close releases the connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reset()
}

func (p *Publisher) reset() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
