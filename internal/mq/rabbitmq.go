package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeCleanup = "blob.cleanup.exchange"
	ExchangeRetry   = "blob.cleanup.retry.exchange"
	ExchangeDLQ     = "blob.cleanup.dlq.exchange"

	QueueCleanup = "blob.cleanup"
	QueueRetry   = "blob.cleanup.retry"
	QueueDLQ     = "blob.cleanup.dlq"

	RoutingCleanup = "cleanup"
	RoutingRetry   = "cleanup.retry"
	RoutingDLQ     = "cleanup.dlq"
)

type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *Client) closed() bool {
	return c.Conn.IsClosed() || c.Channel.IsClosed()
}

type queueSpec struct {
	queue    string
	exchange string
	key      string
	args     amqp.Table
}

// topology lists the work queue, the delayed retry queue that dead-letters back into the
// work queue once a message's TTL runs out, and the DLQ.
var topology = []queueSpec{
	{queue: QueueCleanup, exchange: ExchangeCleanup, key: RoutingCleanup},
	{queue: QueueRetry, exchange: ExchangeRetry, key: RoutingRetry, args: amqp.Table{
		"x-dead-letter-exchange":    ExchangeCleanup,
		"x-dead-letter-routing-key": RoutingCleanup,
	}},
	{queue: QueueDLQ, exchange: ExchangeDLQ, key: RoutingDLQ},
}

// DeclareTopology is idempotent and safe to call from both the API and the worker.
func (c *Client) DeclareTopology() error {
	for _, spec := range topology {
		if err := c.Channel.ExchangeDeclare(spec.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", spec.exchange, err)
		}
		if _, err := c.Channel.QueueDeclare(spec.queue, true, false, false, false, spec.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", spec.queue, err)
		}
		if err := c.Channel.QueueBind(spec.queue, spec.key, spec.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", spec.queue, err)
		}
	}
	return nil
}

func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeCleanup, RoutingCleanup, body, "")
}

// PublishRetry parks body in the retry queue for delay.
func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, fmt.Sprintf("%d", delay.Milliseconds()))
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Expiration:   expiration,
	}
	return c.Channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}

// Publisher holds one lazily dialled client and redials after the connection drops.
type Publisher struct {
	url    string
	mu     sync.Mutex
	client *Client
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) Get() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if !p.client.closed() {
			return p.client, nil
		}
		p.client.Close()
		p.client = nil
	}
	client, err := Dial(p.url)
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	p.client = client
	return client, nil
}

// PublishTask sends body to the cleanup queue, dialling if needed.
func (p *Publisher) PublishTask(ctx context.Context, body []byte) error {
	client, err := p.Get()
	if err != nil {
		return err
	}
	return client.PublishTask(ctx, body)
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Close()
	p.client = nil
}
