// Package amqp publishes engine events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/monitoring"
	infralogger "github.com/kilianp07/fleetremind/infra/logger"
)

// Config locates the broker and exchange.
type Config struct {
	URL       string `json:"url"`
	Exchange  string `json:"exchange"`
	KeyPrefix string `json:"key_prefix"`
	TimeoutMS int    `json:"timeout_ms"`
}

func (c *Config) SetDefaults() {
	if c.Exchange == "" {
		c.Exchange = "fleetremind.events"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "reminder"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 2000
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("amqp: url is required")
	}
	return nil
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var dial = func(url string) (io.Closer, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// EventPublisher is an events.Observer publishing every event as a
// persistent JSON message with routing key <prefix>.<kind>.
type EventPublisher struct {
	conn     io.Closer
	exchange string
	prefix   string
	timeout  time.Duration
	log      logger.Logger
	monitor  monitoring.Monitor

	mu sync.Mutex
	ch channel
}

var _ events.Observer = (*EventPublisher)(nil)

// NewEventPublisher connects and declares a durable topic exchange.
func NewEventPublisher(cfg Config, mon monitoring.Monitor) (*EventPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, ch, err := dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &EventPublisher{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		prefix:   strings.TrimSuffix(cfg.KeyPrefix, "."),
		timeout:  time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:      infralogger.New("amqp_events"),
		monitor:  monitoring.OrNop(mon),
	}, nil
}

// RoutingKey returns the key used for an event kind.
func (p *EventPublisher) RoutingKey(kind events.Kind) string { return p.prefix + "." + string(kind) }

// Notify publishes e. Failures are logged and reported to the monitor.
func (p *EventPublisher) Notify(ctx context.Context, e events.Event) {
	if err := p.publish(ctx, e); err != nil {
		p.log.Errorf("publish %s event: %v", e.Kind, err)
		p.monitor.CaptureException(err, map[string]string{"module": "amqp", "event": string(e.Kind)})
	}
}

func (p *EventPublisher) publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, p.RoutingKey(e.Kind), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: e.CycleID,
		Timestamp:     ts,
		Type:          string(e.Kind),
		Body:          body,
	})
}

// Close closes the channel and the connection.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}
