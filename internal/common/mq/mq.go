package mq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-billing/internal/common/config"
)

const (
	ExchangeOrders        = "orders_topic"
	ExchangeNotifications = "notifications_fanout"
	ExchangeDeadLetter    = "dlx"

	QueueKitchen       = "kitchen.q"
	QueueNotifications = "notifications.q"
	QueueDeadLetter    = "dlq"
)

// Client owns one confirm-mode channel for publishing. Consumers get their
// own channels from Consume.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex
}

func Dial(cfg config.MQ) (*Client, error) {
	vhost := cfg.VHost
	if vhost == "" || vhost == "/" {
		vhost = ""
	}
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	url := fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, cfg.User, cfg.Pass, cfg.Host, cfg.Port, vhost)

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareAll is idempotent; every mode calls it on start.
func (c *Client) DeclareAll() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	if err := c.ch.ExchangeDeclare(ExchangeOrders, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(ExchangeNotifications, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	_, err := c.ch.QueueDeclare(QueueKitchen, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": QueueDeadLetter,
		"x-max-priority":            int32(10),
	})
	if err != nil {
		return err
	}
	if _, err = c.ch.QueueDeclare(QueueNotifications, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": QueueDeadLetter,
	}); err != nil {
		return err
	}
	if _, err = c.ch.QueueDeclare(QueueDeadLetter, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(QueueKitchen, "kitchen.#", ExchangeOrders, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(QueueNotifications, "", ExchangeNotifications, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(QueueDeadLetter, QueueDeadLetter, ExchangeDeadLetter, false, nil)
}

type Message struct {
	Exchange      string
	Key           string
	Body          []byte
	Headers       amqp.Table
	MessageID     string
	CorrelationID string
	Priority      uint8
}

// Publish sends a persistent JSON message and waits for the broker confirm.
// Calls are serialized so each confirm matches its publish.
func (c *Client) Publish(ctx context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(ctx, m.Exchange, m.Key, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     m.MessageID,
		CorrelationId: m.CorrelationID,
		Priority:      m.Priority,
		Timestamp:     time.Now().UTC(),
		Headers:       m.Headers,
		Body:          m.Body,
	}); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Consumer struct {
	ch  *amqp.Channel
	tag string
	// Deliveries closes when the consumer is cancelled or the channel dies.
	Deliveries <-chan amqp.Delivery
	Closed     <-chan *amqp.Error
}

func (c *Client) Consume(queue, tag string, prefetch int) (*Consumer, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Consumer{
		ch:         ch,
		tag:        tag,
		Deliveries: msgs,
		Closed:     ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

// Cancel stops new deliveries; in-flight ones keep draining.
func (c *Consumer) Cancel() error { return c.ch.Cancel(c.tag, false) }

func (c *Consumer) Close() error { return c.ch.Close() }
