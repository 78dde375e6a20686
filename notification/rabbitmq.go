package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

const (
	// Exchange receives every notification; consumers bind their own queues.
	Exchange = "notifications_fanout"

	publishTimeout = 5 * time.Second
	dialAttempts   = 5
	dialBackoff    = 2 * time.Second
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes notifications to the fanout exchange.
type RabbitMQ struct {
	conn *amqp.Connection
	ch   Channel
	mu   sync.Mutex
}

// DialRabbitMQ connects, retrying a few times while the broker starts up.
func DialRabbitMQ(url string) (*RabbitMQ, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		utils.InfoLogger.Warnf("rabbitmq dial attempt %d/%d failed: %v", attempt, dialAttempts, err)
		time.Sleep(dialBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	r, err := NewRabbitMQ(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.conn = conn
	utils.InfoLogger.Infof("RabbitMQ connected, exchange %s declared", Exchange)
	return r, nil
}

// NewRabbitMQ declares the exchange on an open channel.
func NewRabbitMQ(ch Channel) (*RabbitMQ, error) {
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return &RabbitMQ{ch: ch}, nil
}

func (r *RabbitMQ) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx,
		Exchange, // exchange
		"",       // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.CreatedAt,
		})
}

func (r *RabbitMQ) Close() error {
	if err := r.ch.Close(); err != nil {
		return fmt.Errorf("close rabbitmq channel: %w", err)
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
